package server

import (
	"fmt"

	"github.com/mwantia/blockdb/log"
	"golang.org/x/time/rate"
)

const DefaultMaxBodySize int64 = 10 << 20

type ServerOptions struct {
	Logger *log.Logger

	// RateLimit is the number of requests per second admitted. Zero disables limiting.
	RateLimit rate.Limit
	Burst     int

	MaxBodySize int64
}

type ServerOption func(*ServerOptions) error

func newDefaultOptions() *ServerOptions {
	return &ServerOptions{
		Logger:      log.NewDiscardLogger(),
		MaxBodySize: DefaultMaxBodySize,
	}
}

func WithLogger(logger *log.Logger) ServerOption {
	return func(opts *ServerOptions) error {
		if logger == nil {
			return fmt.Errorf("server: logger must not be nil")
		}

		opts.Logger = logger
		return nil
	}
}

// WithRateLimit admits perSecond requests on average with bursts of up to burst.
func WithRateLimit(perSecond float64, burst int) ServerOption {
	return func(opts *ServerOptions) error {
		if perSecond < 0 || burst < 0 {
			return fmt.Errorf("server: rate limit must not be negative")
		}

		opts.RateLimit = rate.Limit(perSecond)
		opts.Burst = max(burst, 1)
		return nil
	}
}

func WithMaxBodySize(size int64) ServerOption {
	return func(opts *ServerOptions) error {
		if size <= 0 {
			return fmt.Errorf("server: max body size must be positive")
		}

		opts.MaxBodySize = size
		return nil
	}
}
