// lwes-filter-listener prints LWES events received from a multicast group,
// optionally restricted to a set of event names and attribute values.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mrzor/lwes-filter-listener/internal/config"
	"github.com/mrzor/lwes-filter-listener/internal/eventstream"
	"github.com/mrzor/lwes-filter-listener/internal/filter"
	"github.com/mrzor/lwes-filter-listener/internal/listener"
	"github.com/mrzor/lwes-filter-listener/internal/metrics"
	"github.com/mrzor/lwes-filter-listener/internal/otel"
	"github.com/mrzor/lwes-filter-listener/internal/output"
)

// Version information injected by GoReleaser at build time.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	if err := run(os.Args); err != nil {
		switch {
		case errors.Is(err, config.ErrHelp):
			fmt.Fprint(os.Stderr, config.Usage)
			os.Exit(1)
		case errors.Is(err, config.ErrUsage):
			fmt.Fprintf(os.Stderr, "error: %v\n\n%s", err, config.Usage)
			os.Exit(1)
		}
		log.Fatalf("Error: %v", err)
	}
}

// setupOTEL initializes the OTEL provider when an endpoint is configured.
// It returns a nil sink when span export is disabled.
func setupOTEL(ctx context.Context, versionInfo string) (output.Sink, func(), error) {
	otelCfg, err := config.ParseOTELConfig()
	if err != nil {
		return nil, nil, err
	}
	if !otelCfg.Enabled() {
		return nil, func() {}, nil
	}

	tp, err := otel.InitProvider(otelCfg, versionInfo)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize OTEL provider: %w", err)
	}

	cleanup := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otel.ShutdownProvider(shutdownCtx, tp); err != nil {
			log.Printf("Error shutting down OTEL provider: %v", err)
		}
	}

	return output.NewSpanSink(ctx, tp.Tracer("lwes-filter-listener")), cleanup, nil
}

// setupListener opens the socket and returns it with its cleanup function.
func setupListener(cfg *config.Config) (*listener.Listener, func(), error) {
	l, err := listener.New(listener.Config{
		Address:     cfg.Address,
		Port:        cfg.Port,
		Interface:   cfg.Interface,
		ReadTimeout: cfg.ReadTimeout,
		ReadBuffer:  cfg.ReadBuffer,
	})
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() {
		if err := l.Close(); err != nil {
			log.Printf("Error closing listener: %v", err)
		}
	}

	return l, cleanup, nil
}

// logFilter reports the active filter on stderr.
func logFilter(f *filter.Filter) {
	if names := f.Names(); len(names) > 0 {
		log.Printf("Printing events named: %s", strings.Join(names, ", "))
	}
	for _, p := range f.Pairs() {
		log.Printf("Requiring attribute %s = %s", p.Key, p.Value)
	}
}

func run(args []string) error {
	cfg, err := config.ParseArgs(args)
	if err != nil {
		return err
	}

	// SIGPIPE is caught so a closed stdout stops the loop instead of killing us.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGPIPE)
	defer stop()

	log.Printf("Starting lwes-filter-listener %s (commit: %s, built: %s)", version, commit, date)

	m := metrics.New()
	if cfg.MetricsAddr != "" {
		addr, err := m.Serve(ctx, cfg.MetricsAddr)
		if err != nil {
			return err
		}
		log.Printf("Serving metrics on http://%s/metrics", addr)
	}

	sinks := output.MultiSink{output.NewTextSink(os.Stdout)}
	spanSink, cleanupOTEL, err := setupOTEL(ctx, fmt.Sprintf("%s (%s)", version, commit))
	if err != nil {
		return err
	}
	defer cleanupOTEL()
	if spanSink != nil {
		sinks = append(sinks, spanSink)
	}

	l, cleanupListener, err := setupListener(cfg)
	if err != nil {
		return err
	}
	defer cleanupListener()

	log.Printf("Listening on %s", net.JoinHostPort(cfg.Address, strconv.Itoa(cfg.Port)))

	f := cfg.Filter()
	logFilter(f)

	stream := eventstream.New(l, f, sinks, m)
	stream.SetErrorLogInterval(cfg.DecodeLogInterval)

	if err := stream.Run(ctx); err != nil {
		if errors.Is(err, output.ErrOutputClosed) {
			return nil
		}
		return err
	}

	log.Println("Received signal, terminating...")
	return nil
}
