// Package config provides configuration and CLI argument parsing for the
// loopback mixer daemon.
package config

import (
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"
)

// LogLevel controls the verbosity of the daemon's structured logger.
type LogLevel int

const (
	LogLevelInfo LogLevel = iota
	LogLevelDebug
	LogLevelWarn
	LogLevelError
)

// ParseLogLevel converts a string flag value into a charmbracelet/log level.
func ParseLogLevel(s string) (log.Level, error) {
	switch s {
	case "debug":
		return log.DebugLevel, nil
	case "info":
		return log.InfoLevel, nil
	case "warn":
		return log.WarnLevel, nil
	case "error":
		return log.ErrorLevel, nil
	default:
		return log.InfoLevel, fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", s)
	}
}

// Config holds all configuration for the loopback mixer daemon. Populated
// from CLI flags or defaults.
type Config struct {
	// SampleRate is the device and mix sample rate in Hz.
	SampleRate int

	// MaxBlockFrames bounds the largest render quantum the host may request
	// per callback; sizes the source scratch buffers.
	MaxBlockFrames int

	// DefaultSourceCapacityFrames sizes a newly registered source's ring
	// buffer when the caller does not specify one.
	DefaultSourceCapacityFrames int

	// HTTPAddr is the bind address for the status/control HTTP surface.
	HTTPAddr string

	// MetricsAddr is the bind address for the Prometheus metrics endpoint,
	// if different from HTTPAddr. Empty reuses HTTPAddr.
	MetricsAddr string

	// LogLevel controls logger verbosity.
	LogLevel string

	// Verbose enables debug-level logging; equivalent to LogLevel=debug.
	Verbose bool
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		SampleRate:                  48000,
		MaxBlockFrames:              960,
		DefaultSourceCapacityFrames: 48000 * 2,
		HTTPAddr:                    "127.0.0.1:8787",
		MetricsAddr:                 "",
		LogLevel:                    "info",
		Verbose:                     false,
	}
}

// ParseFlags parses command-line flags and returns a Config.
func ParseFlags() (*Config, error) {
	cfg := DefaultConfig()

	pflag.IntVar(&cfg.SampleRate, "sample-rate", cfg.SampleRate, "Mixer and device sample rate in Hz")
	pflag.IntVar(&cfg.MaxBlockFrames, "max-block-frames", cfg.MaxBlockFrames, "Largest render quantum the host may request per callback")
	pflag.IntVar(&cfg.DefaultSourceCapacityFrames, "source-capacity-frames", cfg.DefaultSourceCapacityFrames, "Default ring buffer capacity in frames for newly registered sources")
	pflag.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "Bind address for the status/control HTTP surface")
	pflag.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "Bind address for Prometheus metrics (defaults to http-addr)")
	pflag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn, or error")
	pflag.BoolVar(&cfg.Verbose, "verbose", cfg.Verbose, "Enable debug logging (equivalent to --log-level=debug)")

	pflag.Parse()

	if cfg.Verbose {
		cfg.LogLevel = "debug"
	}

	if _, err := ParseLogLevel(cfg.LogLevel); err != nil {
		return nil, err
	}

	if cfg.MetricsAddr == "" {
		cfg.MetricsAddr = cfg.HTTPAddr
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample-rate must be positive, got %d", c.SampleRate)
	}
	if c.MaxBlockFrames <= 0 {
		return fmt.Errorf("max-block-frames must be positive, got %d", c.MaxBlockFrames)
	}
	if c.DefaultSourceCapacityFrames < c.MaxBlockFrames*2 {
		return fmt.Errorf("source-capacity-frames (%d) must be at least 2x max-block-frames (%d)", c.DefaultSourceCapacityFrames, c.MaxBlockFrames)
	}
	return nil
}
