package output

import (
	"errors"
	"fmt"
	"io"
	"os"
	"syscall"

	"github.com/mrzor/lwes-filter-listener/internal/lwes"
)

// ErrOutputClosed is returned when the reader of the output went away.
var ErrOutputClosed = errors.New("output closed")

// Sink receives every event that passed the filter.
type Sink interface {
	Write(ev *lwes.Event) error
}

// TextSink writes one rendered line per event with a single Write call.
// A failed write only loses that line.
type TextSink struct {
	w   io.Writer
	buf []byte
}

// NewTextSink creates a TextSink writing to w.
func NewTextSink(w io.Writer) *TextSink {
	return &TextSink{w: w}
}

// Write renders ev and writes the line.
func (s *TextSink) Write(ev *lwes.Event) error {
	s.buf = AppendRender(s.buf[:0], ev)
	if _, err := s.w.Write(s.buf); err != nil {
		return wrapWriteError(err)
	}
	return nil
}

func wrapWriteError(err error) error {
	if errors.Is(err, syscall.EPIPE) || errors.Is(err, os.ErrClosed) {
		return fmt.Errorf("%w: %v", ErrOutputClosed, err)
	}
	return fmt.Errorf("writing event: %w", err)
}

// MultiSink writes each event to every sink in order.
// A failing sink does not keep the event from the others; the errors are joined.
type MultiSink []Sink

// Write implements Sink.
func (m MultiSink) Write(ev *lwes.Event) error {
	var errs []error
	for _, s := range m {
		if err := s.Write(ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
