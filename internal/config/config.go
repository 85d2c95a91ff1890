package config

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"

	"github.com/gotcp/relay"
)

type Config struct {
	Host              string        `env:"RELAY_HOST" default:"127.0.0.1"`
	Port              int           `env:"RELAY_PORT" default:"8080"`
	ListenBacklog     int           `env:"RELAY_LISTEN_BACKLOG" default:"1024"`
	AcceptConcurrency int           `env:"RELAY_ACCEPT_CONCURRENCY" default:"10"`
	AcceptBackoff     time.Duration `env:"RELAY_ACCEPT_BACKOFF" default:"100ms"`
	RingEntries       int           `env:"RELAY_RING_ENTRIES" default:"256"`
	MaxEvents         int           `env:"RELAY_MAX_EVENTS" default:"128"`
	ReadBuffer        int           `env:"RELAY_READ_BUFFER" default:"2048"`
	BufferCapacity    int           `env:"RELAY_BUFFER_CAPACITY" default:"4096"`
	Workers           int           `env:"RELAY_WORKERS" default:"4"`
	WorkerQueue       int           `env:"RELAY_WORKER_QUEUE" default:"4096"`
	WaitTimeout       int           `env:"RELAY_WAIT_TIMEOUT_MS" default:"-1"`
	IdleTimeout       time.Duration `env:"RELAY_IDLE_TIMEOUT" default:"0s"`
	KeepAlive         bool          `env:"RELAY_KEEPALIVE" default:"true"`
	Policy            string        `env:"RELAY_POLICY" default:"all-except-sender"`
	Framing           string        `env:"RELAY_FRAMING" default:"raw"`
	FrameSize         int           `env:"RELAY_FRAME_SIZE" default:"1024"`
	Delimiter         string        `env:"RELAY_DELIMITER" default:"\n"`

	LogLevel    string `env:"LOG_LEVEL" default:"info"`
	LogFormat   string `env:"LOG_FORMAT" default:"text"`
	MetricsAddr string `env:"METRICS_ADDR"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	if cfg.Port < 0 || cfg.Port > 65535 {
		return fmt.Errorf("RELAY_PORT must be between 0 and 65535, got %d", cfg.Port)
	}
	positive := map[string]int{
		"RELAY_LISTEN_BACKLOG":     cfg.ListenBacklog,
		"RELAY_ACCEPT_CONCURRENCY": cfg.AcceptConcurrency,
		"RELAY_RING_ENTRIES":       cfg.RingEntries,
		"RELAY_MAX_EVENTS":         cfg.MaxEvents,
		"RELAY_READ_BUFFER":        cfg.ReadBuffer,
		"RELAY_BUFFER_CAPACITY":    cfg.BufferCapacity,
		"RELAY_WORKER_QUEUE":       cfg.WorkerQueue,
	}
	for name, value := range positive {
		if value <= 0 {
			return fmt.Errorf("%s must be positive, got %d", name, value)
		}
	}
	if cfg.Workers < 0 || cfg.Workers > relay.DEFAULT_MAX_WORKERS {
		return fmt.Errorf("RELAY_WORKERS must be between 0 and %d, got %d", relay.DEFAULT_MAX_WORKERS, cfg.Workers)
	}
	if cfg.Workers > 0 && cfg.WorkerQueue < cfg.Workers {
		return fmt.Errorf("RELAY_WORKER_QUEUE must be at least RELAY_WORKERS (%d), got %d", cfg.Workers, cfg.WorkerQueue)
	}
	if cfg.WaitTimeout < -1 {
		return fmt.Errorf("RELAY_WAIT_TIMEOUT_MS must be -1 or greater, got %d", cfg.WaitTimeout)
	}
	if cfg.AcceptBackoff < 0 {
		return errors.New("RELAY_ACCEPT_BACKOFF must not be negative")
	}
	if cfg.IdleTimeout < 0 {
		return errors.New("RELAY_IDLE_TIMEOUT must not be negative")
	}
	if _, err := relay.ParsePolicy(cfg.Policy); err != nil {
		return fmt.Errorf("RELAY_POLICY: %w", err)
	}
	framing, err := relay.ParseFraming(cfg.Framing)
	if err != nil {
		return fmt.Errorf("RELAY_FRAMING: %w", err)
	}
	if framing == relay.FRAMING_FIXED && cfg.FrameSize <= 0 {
		return fmt.Errorf("RELAY_FRAME_SIZE must be positive, got %d", cfg.FrameSize)
	}
	if framing == relay.FRAMING_LINE && len(cfg.Delimiter) != 1 {
		return fmt.Errorf("RELAY_DELIMITER must be exactly one byte, got %q", cfg.Delimiter)
	}
	return nil
}

// Options converts a validated Config into reactor options.
func (c *Config) Options() relay.Options {
	opts := relay.DefaultOptions()
	opts.Host = c.Host
	opts.Port = c.Port
	opts.ListenBacklog = c.ListenBacklog
	opts.AcceptConcurrency = c.AcceptConcurrency
	opts.AcceptBackoff = c.AcceptBackoff
	opts.RingEntries = c.RingEntries
	opts.MaxEvents = c.MaxEvents
	opts.ReadBuffer = c.ReadBuffer
	opts.BufferCapacity = c.BufferCapacity
	opts.Workers = c.Workers
	opts.WorkerQueue = c.WorkerQueue
	opts.WaitTimeout = c.WaitTimeout
	opts.IdleTimeout = c.IdleTimeout
	opts.KeepAlive = c.KeepAlive
	opts.Policy, _ = relay.ParsePolicy(c.Policy)
	opts.Framing, _ = relay.ParseFraming(c.Framing)
	opts.FrameSize = c.FrameSize
	if len(c.Delimiter) == 1 {
		opts.Delimiter = c.Delimiter[0]
	}
	return opts
}
