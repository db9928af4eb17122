package filter

import (
	"slices"

	"github.com/mrzor/lwes-filter-listener/internal/lwes"
)

// Result tells whether an event passed and, if not, which check rejected it.
type Result int

const (
	Pass Result = iota
	NameMismatch
	AttributeMismatch
)

func (r Result) String() string {
	switch r {
	case Pass:
		return "pass"
	case NameMismatch:
		return "name"
	case AttributeMismatch:
		return "attribute"
	default:
		return "unknown"
	}
}

// Filter combines a name whitelist and an attribute constraint.
// It is immutable once built and safe to share.
type Filter struct {
	names []string
	pairs []Pair
}

// New builds a filter. An empty names or pairs slice disables that check.
func New(names []string, pairs []Pair) *Filter {
	return &Filter{
		names: slices.Clone(names),
		pairs: slices.Clone(pairs),
	}
}

// Names returns the whitelist, or nil when every name is accepted.
func (f *Filter) Names() []string {
	if f == nil {
		return nil
	}
	return slices.Clone(f.names)
}

// Pairs returns the attribute constraint, or nil when there is none.
func (f *Filter) Pairs() []Pair {
	if f == nil {
		return nil
	}
	return slices.Clone(f.pairs)
}

// Passes reports whether ev should be printed. A nil filter accepts everything.
func (f *Filter) Passes(ev *lwes.Event) bool {
	return f.Evaluate(ev) == Pass
}

// Evaluate runs the name check, then the attribute pairs in order,
// stopping at the first failure.
func (f *Filter) Evaluate(ev *lwes.Event) Result {
	if f == nil {
		return Pass
	}

	if len(f.names) > 0 && !slices.Contains(f.names, ev.Name) {
		return NameMismatch
	}

	for _, p := range f.pairs {
		v, ok := ev.Get(p.Key)
		if !ok {
			return AttributeMismatch
		}
		if lwes.FormatValue(v) != p.Value {
			return AttributeMismatch
		}
	}

	return Pass
}
