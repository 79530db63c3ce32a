package lock

import (
	"time"

	"github.com/mwantia/blockdb/log"
)

const (
	DefaultLeaseDuration = 30 * time.Second
	DefaultPollInterval  = 500 * time.Millisecond
	DefaultTimeout       = 10 * time.Second
)

// Options tunes a single acquisition.
type Options struct {
	// LeaseDuration is how long a claim stays valid without being released.
	LeaseDuration time.Duration `json:"lease_duration" yaml:"lease_duration"`
	// PollInterval is the wait between two claim attempts.
	PollInterval time.Duration `json:"poll_interval" yaml:"poll_interval"`
	// Timeout bounds the whole acquisition, measured from the first attempt.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
}

func DefaultOptions() Options {
	return Options{
		LeaseDuration: DefaultLeaseDuration,
		PollInterval:  DefaultPollInterval,
		Timeout:       DefaultTimeout,
	}
}

// orDefaults replaces unset durations with their defaults.
func (o Options) orDefaults() Options {
	if o.LeaseDuration <= 0 {
		o.LeaseDuration = DefaultLeaseDuration
	}
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}

	return o
}

type ManagerOptions struct {
	Logger   *log.Logger
	HolderID func() string
}

type ManagerOption func(*ManagerOptions) error

func WithLogger(logger *log.Logger) ManagerOption {
	return func(opts *ManagerOptions) error {
		opts.Logger = logger
		return nil
	}
}

// WithHolderID overrides how holder ids are generated for new leases.
func WithHolderID(fn func() string) ManagerOption {
	return func(opts *ManagerOptions) error {
		opts.HolderID = fn
		return nil
	}
}
