package config

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/mrzor/lwes-filter-listener/internal/filter"
	"github.com/mrzor/lwes-filter-listener/internal/lwes"
	"github.com/spf13/pflag"
)

var (
	// ErrHelp is returned when -h is given.
	ErrHelp = errors.New("help requested")
	// ErrUsage wraps every command-line error.
	ErrUsage = errors.New("usage error")
)

// Usage is the help text printed for -h and usage errors.
const Usage = `lwes-filter-listener [options]

  where options are:

    -m [one argument]
       The multicast ip address to listen on.
       (default: 224.1.1.11, env: LWES_MULTICAST_ADDR)

    -p [one argument]
       The ip port to listen on.
       (default: 12345, env: LWES_PORT)

    -i [one argument]
       The interface to listen on, by address or name.
       (default: 0.0.0.0, env: LWES_INTERFACE)

    -e [comma separated list]
       The list of events to print out.
       (env: LWES_EVENTS)

    -a [comma separated k=v pairs]
       Key=value pairs to check before printing the event.
       (env: LWES_ATTRIBUTES)

    -h
       show this message

  arguments are specified as -option value or -optionvalue
  (-option=value also works; the '=' is not part of the value)
`

// EnvConfig holds defaults taken from the environment.
type EnvConfig struct {
	Address           string        `env:"LWES_MULTICAST_ADDR" envDefault:"224.1.1.11"`
	Port              int           `env:"LWES_PORT" envDefault:"12345"`
	Interface         string        `env:"LWES_INTERFACE" envDefault:""`
	Events            string        `env:"LWES_EVENTS" envDefault:""`
	Attributes        string        `env:"LWES_ATTRIBUTES" envDefault:""`
	ReadTimeout       time.Duration `env:"LWES_READ_TIMEOUT" envDefault:"1s"`
	ReadBuffer        int           `env:"LWES_RECV_BUFFER" envDefault:"0"`
	MetricsAddr       string        `env:"LWES_METRICS_ADDR" envDefault:""`
	DecodeLogInterval time.Duration `env:"LWES_DECODE_LOG_INTERVAL" envDefault:"10s"`
}

// ParseEnvConfig reads EnvConfig from the environment.
func ParseEnvConfig() (*EnvConfig, error) {
	var cfg EnvConfig
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	return &cfg, nil
}

// Config holds the parsed configuration.
type Config struct {
	// Address is the multicast group (or unicast address) to listen on
	Address string
	// Port is the UDP port
	Port int
	// Interface selects the interface joining the group
	Interface string
	// Events is the event name whitelist; empty means all events
	Events []string
	// Attributes are the key=value constraints; empty means none
	Attributes []filter.Pair

	ReadTimeout       time.Duration
	ReadBuffer        int
	MetricsAddr       string
	DecodeLogInterval time.Duration
}

// ParseArgs parses command-line arguments on top of the environment defaults.
// Expected format: program_name [-m addr] [-p port] [-i iface] [-e names] [-a pairs] [-h]
func ParseArgs(args []string) (*Config, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("%w: no arguments provided", ErrUsage)
	}

	envCfg, err := ParseEnvConfig()
	if err != nil {
		return nil, err
	}

	fs := pflag.NewFlagSet(args[0], pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.Usage = func() {}
	fs.SortFlags = false

	address := fs.StringP("multicast-ip", "m", envCfg.Address, "multicast ip address to listen on")
	port := fs.IntP("port", "p", envCfg.Port, "ip port to listen on")
	iface := fs.StringP("interface", "i", envCfg.Interface, "interface to listen on")
	events := fs.StringP("events", "e", envCfg.Events, "comma separated list of events to print")
	attrs := fs.StringP("attributes", "a", envCfg.Attributes, "comma separated key=value pairs to match")
	help := fs.BoolP("help", "h", false, "show help")

	if err := fs.Parse(args[1:]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUsage, err)
	}
	if *help {
		return nil, ErrHelp
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("%w: unexpected argument %q", ErrUsage, fs.Arg(0))
	}

	pairs, err := filter.ParseAttributeConstraint(*attrs)
	if err != nil {
		return nil, fmt.Errorf("invalid attribute list %q: %w", *attrs, err)
	}

	cfg := &Config{
		Address:           *address,
		Port:              *port,
		Interface:         *iface,
		Events:            filter.ParseNameList(*events),
		Attributes:        pairs,
		ReadTimeout:       envCfg.ReadTimeout,
		ReadBuffer:        envCfg.ReadBuffer,
		MetricsAddr:       envCfg.MetricsAddr,
		DecodeLogInterval: envCfg.DecodeLogInterval,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the listening parameters.
func (c *Config) Validate() error {
	if _, err := lwes.ParseIPv4Address(c.Address); err != nil {
		return fmt.Errorf("%w: invalid IPv4 address %q", ErrUsage, c.Address)
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("%w: port must be between 1 and 65535, got %d", ErrUsage, c.Port)
	}
	if c.ReadTimeout < 0 {
		return fmt.Errorf("%w: read timeout cannot be negative", ErrUsage)
	}
	if c.ReadBuffer < 0 {
		return fmt.Errorf("%w: receive buffer cannot be negative", ErrUsage)
	}
	return nil
}

// Filter builds the event filter described by the configuration.
func (c *Config) Filter() *filter.Filter {
	return filter.New(c.Events, c.Attributes)
}
