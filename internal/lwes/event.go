package lwes

import "iter"

// Attribute is one named value of an event.
type Attribute struct {
	Name  string
	Value Value
}

// Event is a decoded LWES event.
// Attributes keep the order in which they were first set.
type Event struct {
	Name  string
	attrs []Attribute
	index map[string]int
}

// NewEvent creates an empty event with the given name.
func NewEvent(name string) *Event {
	return &Event{Name: name}
}

// Set stores v under name. An existing attribute keeps its position.
func (e *Event) Set(name string, v Value) {
	if i, ok := e.index[name]; ok {
		e.attrs[i].Value = v
		return
	}
	if e.index == nil {
		e.index = make(map[string]int)
	}
	e.index[name] = len(e.attrs)
	e.attrs = append(e.attrs, Attribute{Name: name, Value: v})
}

// Get returns the value stored under name.
func (e *Event) Get(name string) (Value, bool) {
	i, ok := e.index[name]
	if !ok {
		return nil, false
	}
	return e.attrs[i].Value, true
}

// Len returns the number of attributes.
func (e *Event) Len() int {
	return len(e.attrs)
}

// All iterates over the attributes in insertion order.
func (e *Event) All() iter.Seq2[string, Value] {
	return func(yield func(string, Value) bool) {
		for _, a := range e.attrs {
			if !yield(a.Name, a.Value) {
				return
			}
		}
	}
}

// Reset clears the event so it can be reused, keeping allocated storage.
func (e *Event) Reset() {
	e.Name = ""
	clear(e.attrs)
	e.attrs = e.attrs[:0]
	clear(e.index)
}
