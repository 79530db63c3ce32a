package blockdb

import (
	"github.com/mwantia/blockdb/hierarchy"
	"github.com/mwantia/blockdb/lock"
	"github.com/mwantia/blockdb/log"
)

type Options struct {
	Logger        *log.Logger
	LogLevel      log.LogLevel
	LogFile       string
	NoTerminalLog bool

	LockOptions lock.Options
	Hierarchy   hierarchy.Tree
}

type Option func(*Options) error

func newDefaultOptions() *Options {
	return &Options{
		LogLevel:    log.Warn,
		LockOptions: lock.DefaultOptions(),
	}
}

func WithLogger(logger *log.Logger) Option {
	return func(opts *Options) error {
		opts.Logger = logger
		return nil
	}
}

func WithLogLevel(logLevel log.LogLevel) Option {
	return func(opts *Options) error {
		opts.LogLevel = logLevel
		return nil
	}
}

func WithoutTerminalLog() Option {
	return func(opts *Options) error {
		opts.NoTerminalLog = true
		return nil
	}
}

func WithLogFile(logFile string) Option {
	return func(opts *Options) error {
		opts.LogFile = logFile
		return nil
	}
}

// WithLockOptions sets the lease, poll interval and timeout used by every
// locked block operation. Zero durations keep their defaults.
func WithLockOptions(lockOptions lock.Options) Option {
	return func(opts *Options) error {
		opts.LockOptions = lockOptions
		return nil
	}
}

// WithHierarchy materializes tree below the root collection when the database is opened.
func WithHierarchy(tree hierarchy.Tree) Option {
	return func(opts *Options) error {
		if err := hierarchy.Validate(tree); err != nil {
			return err
		}

		opts.Hierarchy = tree
		return nil
	}
}
