package eventstream

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/mrzor/lwes-filter-listener/internal/filter"
	"github.com/mrzor/lwes-filter-listener/internal/listener"
	"github.com/mrzor/lwes-filter-listener/internal/lwes"
	"github.com/mrzor/lwes-filter-listener/internal/metrics"
	"github.com/mrzor/lwes-filter-listener/internal/output"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type step struct {
	ev  *lwes.Event
	err error
}

// scriptedSource replays steps, then cancels the run.
type scriptedSource struct {
	steps    []step
	cancel   context.CancelFunc
	released map[*lwes.Event]int
}

func newScriptedSource(cancel context.CancelFunc, steps ...step) *scriptedSource {
	return &scriptedSource{steps: steps, cancel: cancel, released: make(map[*lwes.Event]int)}
}

func (s *scriptedSource) Receive(ctx context.Context) (*lwes.Event, error) {
	if len(s.steps) == 0 {
		s.cancel()
		return nil, ctx.Err()
	}
	next := s.steps[0]
	s.steps = s.steps[1:]
	return next.ev, next.err
}

func (s *scriptedSource) Release(ev *lwes.Event) {
	s.released[ev]++
}

func event(name string, kv ...string) *lwes.Event {
	ev := lwes.NewEvent(name)
	for i := 0; i+1 < len(kv); i += 2 {
		ev.Set(kv[i], lwes.String(kv[i+1]))
	}
	return ev
}

func TestStream_FiltersAndRenders(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pass := event("Login", "status", "ok")
	wrongValue := event("Login", "status", "fail")
	wrongName := event("Heartbeat", "status", "ok")
	missingKey := event("Logout")

	src := newScriptedSource(cancel,
		step{ev: pass},
		step{ev: wrongValue},
		step{ev: wrongName},
		step{ev: missingKey},
	)

	pairs, err := filter.ParseAttributeConstraint("status=ok")
	require.NoError(t, err)
	f := filter.New(filter.ParseNameList("Login,Logout"), pairs)

	var out bytes.Buffer
	m := metrics.New()
	stream := New(src, f, output.NewTextSink(&out), m)

	require.NoError(t, stream.Run(ctx))

	assert.Equal(t, "Login[1] {status = ok;}\n", out.String())
	for _, ev := range []*lwes.Event{pass, wrongValue, wrongName, missingKey} {
		assert.Equal(t, 1, src.released[ev], "event %q released once", ev.Name)
	}

	assert.Equal(t, 4.0, testutil.ToFloat64(m.EventsReceived))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventsPrinted))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventsFiltered.WithLabelValues("name")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.EventsFiltered.WithLabelValues("attribute")))
}

func TestStream_NoFilterPrintsEverything(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	src := newScriptedSource(cancel, step{ev: event("A")}, step{ev: event("B", "k", "v")})

	var out bytes.Buffer
	require.NoError(t, New(src, nil, output.NewTextSink(&out), nil).Run(ctx))
	assert.Equal(t, "A[0] {}\nB[1] {k = v;}\n", out.String())
}

func TestStream_TransientErrorsKeepRunning(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	partial := event("Broken")
	decodeErr := &lwes.DecodeError{Offset: 3, Err: lwes.ErrTruncated}
	last := event("Survivor")

	src := newScriptedSource(cancel,
		step{err: listener.ErrNoEvent},
		step{ev: partial, err: decodeErr},
		step{err: fmt.Errorf("reading datagram: %w", syscall.ECONNREFUSED)},
		step{ev: last},
	)

	var out bytes.Buffer
	m := metrics.New()
	stream := New(src, nil, output.NewTextSink(&out), m)
	stream.SetErrorLogInterval(time.Hour)

	require.NoError(t, stream.Run(ctx))
	assert.Equal(t, "Survivor[0] {}\n", out.String())
	assert.Equal(t, 1, src.released[partial], "partial event released")
	assert.Equal(t, 1, src.released[last])
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ReceiveErrors.WithLabelValues(metrics.KindTimeout)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ReceiveErrors.WithLabelValues(metrics.KindDecode)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ReceiveErrors.WithLabelValues(metrics.KindRead)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventsReceived))
}

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := log.Writer()
	log.SetOutput(&buf)
	t.Cleanup(func() { log.SetOutput(prev) })
	return &buf
}

func TestStream_ErrorLogInterval(t *testing.T) {
	decodeErr := &lwes.DecodeError{Offset: 0, Err: lwes.ErrTruncated}

	tests := []struct {
		name     string
		interval time.Duration
		want     int
	}{
		{"zero logs every error", 0, 3},
		{"long interval logs once", time.Hour, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logs := captureLog(t)
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			src := newScriptedSource(cancel,
				step{err: decodeErr},
				step{err: decodeErr},
				step{err: decodeErr},
			)
			stream := New(src, nil, output.NewTextSink(&bytes.Buffer{}), nil)
			stream.SetErrorLogInterval(tt.interval)

			require.NoError(t, stream.Run(ctx))
			assert.Equal(t, tt.want, strings.Count(logs.String(), "dropping malformed datagram"))
		})
	}
}

func TestStream_SourceClosed(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	src := newScriptedSource(cancel, step{err: listener.ErrClosed})
	err := New(src, nil, output.NewTextSink(&bytes.Buffer{}), nil).Run(ctx)
	assert.ErrorIs(t, err, listener.ErrClosed)
}

type brokenSink struct {
	err error
}

func (b brokenSink) Write(*lwes.Event) error { return b.err }

func TestStream_OutputClosedStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ev := event("A")
	src := newScriptedSource(cancel, step{ev: ev}, step{ev: event("B")})
	sink := brokenSink{err: fmt.Errorf("%w: broken pipe", output.ErrOutputClosed)}

	err := New(src, nil, sink, nil).Run(ctx)
	assert.ErrorIs(t, err, output.ErrOutputClosed)
	assert.Equal(t, 1, src.released[ev])
	assert.Len(t, src.steps, 1, "loop stops after the failed write")
}

func TestStream_SinkErrorIsLogged(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	src := newScriptedSource(cancel, step{ev: event("A")}, step{ev: event("B")})
	m := metrics.New()

	err := New(src, nil, brokenSink{err: errors.New("disk full")}, m).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.SinkErrors))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.EventsPrinted))
}

func TestStream_StopsWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	src := newScriptedSource(cancel, step{ev: event("A")})
	var out bytes.Buffer
	require.NoError(t, New(src, nil, output.NewTextSink(&out), nil).Run(ctx))
	assert.Empty(t, out.String())
	assert.Len(t, src.steps, 1, "no receive after stop")
}

func TestStream_WithListener(t *testing.T) {
	l, err := listener.New(listener.Config{Address: "127.0.0.1", ReadTimeout: 50 * time.Millisecond})
	require.NoError(t, err)
	defer func() { _ = l.Close() }()

	ev := lwes.NewEvent("Login")
	ev.Set("user", lwes.String("alice"))
	payload, err := lwes.Encode(ev)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var out bytes.Buffer
	sink := output.MultiSink{output.NewTextSink(&out), cancelSink(cancel)}
	done := make(chan error, 1)
	go func() { done <- New(l, nil, sink, nil).Run(ctx) }()

	conn, err := net.Dial("udp4", l.LocalAddr().String())
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()
	_, err = conn.Write(payload)
	require.NoError(t, err)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("stream did not stop")
	}
	assert.Equal(t, "Login[1] {user = alice;}\n", out.String())
}

type cancelSink context.CancelFunc

func (c cancelSink) Write(*lwes.Event) error {
	c()
	return nil
}
