// Package metrics exposes listener counters in Prometheus format.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Label values for the receive error counter.
const (
	KindTimeout = "timeout"
	KindDecode  = "decode"
	KindRead    = "read"
)

// Metrics holds the listener counters.
type Metrics struct {
	registry *prometheus.Registry

	EventsReceived prometheus.Counter
	EventsPrinted  prometheus.Counter
	EventsFiltered *prometheus.CounterVec
	ReceiveErrors  *prometheus.CounterVec
	SinkErrors     prometheus.Counter
}

// New creates the counters on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		EventsReceived: factory.NewCounter(prometheus.CounterOpts{
			Name: "lwes_listener_events_received_total",
			Help: "Total number of events decoded from the network",
		}),
		EventsPrinted: factory.NewCounter(prometheus.CounterOpts{
			Name: "lwes_listener_events_printed_total",
			Help: "Total number of events that passed the filter",
		}),
		EventsFiltered: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "lwes_listener_events_filtered_total",
			Help: "Total number of events dropped by the filter",
		}, []string{"reason"}),
		ReceiveErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "lwes_listener_receive_errors_total",
			Help: "Total number of receive attempts that produced no event",
		}, []string{"kind"}),
		SinkErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "lwes_listener_sink_errors_total",
			Help: "Total number of failed writes to an output sink",
		}),
	}
}

// Handler returns an HTTP handler serving the metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
// It returns once the listening socket is open.
func (m *Metrics) Serve(ctx context.Context, addr string) (net.Addr, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listening for metrics on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("metrics server: %v", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx) //nolint:errcheck // Best-effort shutdown
	}()

	return ln.Addr(), nil
}
