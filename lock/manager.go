package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mwantia/blockdb/backend"
	"github.com/mwantia/blockdb/data"
	"github.com/mwantia/blockdb/data/errors"
	"github.com/mwantia/blockdb/log"
	"github.com/mwantia/blockdb/metrics"
)

// Manager serializes mutation of single blocks on top of a backend's claim primitive.
// Waiters poll; acquisition order between competing callers is not fair.
type Manager struct {
	claimer backend.LockBackend
	log     *log.Logger

	holderID func() string
}

func NewManager(claimer backend.LockBackend, opts ...ManagerOption) (*Manager, error) {
	options := &ManagerOptions{
		Logger: log.NewDiscardLogger(),
		HolderID: func() string {
			return uuid.Must(uuid.NewV7()).String()
		},
	}

	for _, opt := range opts {
		if err := opt(options); err != nil {
			return nil, err
		}
	}

	return &Manager{
		claimer:  claimer,
		log:      options.Logger.Named("lock"),
		holderID: options.HolderID,
	}, nil
}

// Acquire claims the lock of the block at path, polling until the claim
// succeeds or opts.Timeout has passed since the first attempt.
// A missing block fails immediately with data.ErrBlockNotFound.
func (m *Manager) Acquire(ctx context.Context, path string, opts Options) (*Lease, error) {
	opts = opts.orDefaults()
	path = data.Normalize(path)

	exists, err := m.claimer.ContainsBlock(ctx, path)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, errors.BlockNotFound(path)
	}

	holder := m.holderID()
	start := time.Now()
	deadline := start.Add(opts.Timeout)

	timer := time.NewTimer(opts.PollInterval)
	defer timer.Stop()

	for attempt := 1; ; attempt++ {
		now := time.Now()
		expiresAt := now.Add(opts.LeaseDuration)

		claimed, err := m.claimer.ClaimLock(ctx, path, holder, now, expiresAt)
		if err != nil {
			if errors.Is(err, data.ErrBlockNotFound) {
				metrics.LockAcquisitions.WithLabelValues("not_found").Inc()
				return nil, err
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}

			m.log.Warn("Claim attempt %d on '%s' failed: %v", attempt, path, err)
		}

		if claimed {
			metrics.LockAcquisitions.WithLabelValues("acquired").Inc()
			metrics.LockWaitSeconds.Observe(time.Since(start).Seconds())

			m.log.Debug("Acquired lock on '%s' as '%s' after %d attempt(s)", path, holder, attempt)
			return &Lease{
				manager:   m,
				path:      path,
				holder:    holder,
				expiresAt: expiresAt,
			}, nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			metrics.LockAcquisitions.WithLabelValues("timeout").Inc()
			metrics.LockWaitSeconds.Observe(time.Since(start).Seconds())
			return nil, errors.LockTimeout(path, opts.Timeout)
		}

		timer.Reset(min(opts.PollInterval, remaining))
		select {
		case <-ctx.Done():
			metrics.LockAcquisitions.WithLabelValues("canceled").Inc()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

// WithLock runs fn while holding the lock of the block at path.
// The lock is released on every exit path before fn's result is returned,
// including when fn panics.
func (m *Manager) WithLock(ctx context.Context, path string, opts Options, fn func(ctx context.Context) error) (err error) {
	lease, err := m.Acquire(ctx, path, opts)
	if err != nil {
		return err
	}

	defer func() {
		// Release with a context that survives cancellation of the caller.
		releaseErr := lease.Release(context.WithoutCancel(ctx))
		if releaseErr == nil {
			return
		}

		m.log.Error("Unable to release lock on '%s': %v", lease.path, releaseErr)
		if err == nil {
			err = fmt.Errorf("blockdb: failed to release lock on '%s': %w", lease.path, releaseErr)
		}
	}()

	return fn(ctx)
}
