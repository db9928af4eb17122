// Package eventstream drives the listener: receive, filter, write, release.
package eventstream

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/mrzor/lwes-filter-listener/internal/filter"
	"github.com/mrzor/lwes-filter-listener/internal/listener"
	"github.com/mrzor/lwes-filter-listener/internal/lwes"
	"github.com/mrzor/lwes-filter-listener/internal/metrics"
	"github.com/mrzor/lwes-filter-listener/internal/output"

	"golang.org/x/time/rate"
)

// DefaultErrorLogInterval limits how often receive errors are logged.
const DefaultErrorLogInterval = 10 * time.Second

// Source yields decoded events.
//
// Receive may return a non-nil event together with an error when decoding
// failed part way. Every non-nil event is passed to Release exactly once.
type Source interface {
	Receive(ctx context.Context) (*lwes.Event, error)
	Release(ev *lwes.Event)
}

// Stream reads events from a Source and writes those passing the filter to a Sink.
type Stream struct {
	source  Source
	filter  *filter.Filter
	sink    output.Sink
	metrics *metrics.Metrics
	errLog  *rate.Sometimes
}

// New creates a Stream. A nil filter accepts every event and a nil
// metrics value gets a private set of counters.
func New(source Source, f *filter.Filter, sink output.Sink, m *metrics.Metrics) *Stream {
	if m == nil {
		m = metrics.New()
	}
	return &Stream{
		source:  source,
		filter:  f,
		sink:    sink,
		metrics: m,
		errLog:  &rate.Sometimes{Interval: DefaultErrorLogInterval},
	}
}

// SetErrorLogInterval changes how often receive errors are logged.
// A zero or negative interval logs every error.
func (s *Stream) SetErrorLogInterval(d time.Duration) {
	if d <= 0 {
		s.errLog = &rate.Sometimes{Every: 1}
		return
	}
	s.errLog = &rate.Sometimes{Interval: d}
}

// Run processes events until ctx is cancelled, returning nil in that case.
// It returns an error when the source is closed under it or the output
// reader went away (output.ErrOutputClosed).
func (s *Stream) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if err := s.processNext(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

// processNext handles a single receive attempt.
func (s *Stream) processNext(ctx context.Context) error {
	ev, err := s.source.Receive(ctx)
	if ev != nil {
		defer s.source.Release(ev)
	}
	if err != nil {
		return s.handleReceiveError(ctx, err)
	}

	s.metrics.EventsReceived.Inc()

	if result := s.filter.Evaluate(ev); result != filter.Pass {
		s.metrics.EventsFiltered.WithLabelValues(result.String()).Inc()
		return nil
	}

	if err := s.sink.Write(ev); err != nil {
		s.metrics.SinkErrors.Inc()
		if errors.Is(err, output.ErrOutputClosed) {
			return err
		}
		log.Printf("writing event %q: %v", ev.Name, err)
		return nil
	}
	s.metrics.EventsPrinted.Inc()

	return nil
}

// handleReceiveError returns nil for conditions the loop should ride out.
func (s *Stream) handleReceiveError(ctx context.Context, err error) error {
	var decErr *lwes.DecodeError
	switch {
	case ctx.Err() != nil:
		return ctx.Err()
	case errors.Is(err, listener.ErrNoEvent):
		s.metrics.ReceiveErrors.WithLabelValues(metrics.KindTimeout).Inc()
		return nil
	case errors.Is(err, listener.ErrClosed):
		return err
	case errors.As(err, &decErr):
		s.metrics.ReceiveErrors.WithLabelValues(metrics.KindDecode).Inc()
		s.errLog.Do(func() { log.Printf("dropping malformed datagram: %v", err) })
		return nil
	default:
		s.metrics.ReceiveErrors.WithLabelValues(metrics.KindRead).Inc()
		s.errLog.Do(func() { log.Printf("receiving event: %v", err) })
		return nil
	}
}
