package lock_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mwantia/blockdb/backend"
	"github.com/mwantia/blockdb/data"
	"github.com/mwantia/blockdb/lock"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

type claimer struct {
	mu       sync.Mutex
	records  map[string]*backend.Record
	claims   atomic.Int32
	failures atomic.Int32
}

func newClaimer(paths ...string) *claimer {
	c := &claimer{
		records: make(map[string]*backend.Record),
	}
	for _, path := range paths {
		c.records[path] = backend.NewRecord(false)
	}

	return c
}

func (c *claimer) ClaimLock(ctx context.Context, path string, holder string, now time.Time, expiresAt time.Time) (bool, error) {
	c.claims.Add(1)
	if c.failures.Load() > 0 {
		c.failures.Add(-1)
		return false, errors.New("transient")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	rec, ok := c.records[path]
	if !ok {
		return false, data.ErrBlockNotFound
	}

	return rec.Claim(holder, now.UnixMilli(), expiresAt.UnixMilli()), nil
}

func (c *claimer) ReleaseLock(ctx context.Context, path string, holder string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if rec, ok := c.records[path]; ok {
		rec.Release(holder)
	}
	return nil
}

func (c *claimer) ContainsBlock(ctx context.Context, path string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.records[path]
	return ok, nil
}

func (c *claimer) lock(path string) data.LockState {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.records[path].Lock()
}

func fast() lock.Options {
	return lock.Options{
		LeaseDuration: time.Second,
		PollInterval:  5 * time.Millisecond,
		Timeout:       time.Second,
	}
}

func TestAcquire_MissingBlock(t *testing.T) {
	c := newClaimer()
	m, err := lock.NewManager(c)
	require.NoError(t, err)

	_, err = m.Acquire(t.Context(), "/missing", fast())
	require.ErrorIs(t, err, data.ErrBlockNotFound)
	require.Zero(t, c.claims.Load())
}

func TestAcquire_ReleaseRestoresSentinel(t *testing.T) {
	c := newClaimer("/a")
	m, err := lock.NewManager(c)
	require.NoError(t, err)

	lease, err := m.Acquire(t.Context(), "a", fast())
	require.NoError(t, err)
	require.Equal(t, "/a", lease.Path())
	require.Equal(t, lease.Holder(), c.lock("/a").Holder)
	require.Equal(t, lease.ExpiresAt().UnixMilli(), c.lock("/a").ExpiresAt)

	require.NoError(t, lease.Release(t.Context()))
	require.Equal(t, data.UnclaimedLock(), c.lock("/a"))
}

func TestAcquire_Timeout(t *testing.T) {
	c := newClaimer("/a")
	m, err := lock.NewManager(c)
	require.NoError(t, err)

	held, err := m.Acquire(t.Context(), "/a", fast())
	require.NoError(t, err)
	defer held.Release(t.Context())

	opts := fast()
	opts.Timeout = 50 * time.Millisecond

	start := time.Now()
	_, err = m.Acquire(t.Context(), "/a", opts)
	require.ErrorIs(t, err, data.ErrLockTimeout)
	require.GreaterOrEqual(t, time.Since(start), opts.Timeout)
	// Polling is paced by the interval instead of spinning
	require.Less(t, c.claims.Load(), int32(30))
}

func TestAcquire_StaleLockIsReclaimed(t *testing.T) {
	c := newClaimer("/a")
	m, err := lock.NewManager(c)
	require.NoError(t, err)

	short := fast()
	short.LeaseDuration = 30 * time.Millisecond

	stale, err := m.Acquire(t.Context(), "/a", short)
	require.NoError(t, err)

	// The first holder never releases; the lease expires instead
	next, err := m.Acquire(t.Context(), "/a", fast())
	require.NoError(t, err)
	require.NotEqual(t, stale.Holder(), next.Holder())

	// Releasing the reclaimed lease must not free the new holder's claim
	require.NoError(t, stale.Release(t.Context()))
	require.Equal(t, next.Holder(), c.lock("/a").Holder)

	require.NoError(t, next.Release(t.Context()))
	require.Equal(t, data.LockUnclaimed, c.lock("/a").ExpiresAt)
}

func TestAcquire_RetriesFailedClaims(t *testing.T) {
	c := newClaimer("/a")
	c.failures.Store(2)

	m, err := lock.NewManager(c)
	require.NoError(t, err)

	lease, err := m.Acquire(t.Context(), "/a", fast())
	require.NoError(t, err)
	require.Equal(t, int32(3), c.claims.Load())
	require.NoError(t, lease.Release(t.Context()))
}

func TestAcquire_ContextCancellation(t *testing.T) {
	c := newClaimer("/a")
	m, err := lock.NewManager(c)
	require.NoError(t, err)

	held, err := m.Acquire(t.Context(), "/a", fast())
	require.NoError(t, err)
	defer held.Release(t.Context())

	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()

	_, err = m.Acquire(ctx, "/a", fast())
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWithLock_MutualExclusion(t *testing.T) {
	c := newClaimer("/counter")
	m, err := lock.NewManager(c)
	require.NoError(t, err)

	var inside atomic.Int32
	counter := 0

	g, ctx := errgroup.WithContext(t.Context())
	for range 8 {
		g.Go(func() error {
			return m.WithLock(ctx, "/counter", fast(), func(ctx context.Context) error {
				if inside.Add(1) != 1 {
					return errors.New("two holders inside the critical section")
				}
				defer inside.Add(-1)

				value := counter
				time.Sleep(time.Millisecond)
				counter = value + 1
				return nil
			})
		})
	}

	require.NoError(t, g.Wait())
	require.Equal(t, 8, counter)
	require.Equal(t, data.UnclaimedLock(), c.lock("/counter"))
}

func TestWithLock_ReleasesOnErrorAndPanic(t *testing.T) {
	c := newClaimer("/a")
	m, err := lock.NewManager(c)
	require.NoError(t, err)

	failure := errors.New("failure")
	err = m.WithLock(t.Context(), "/a", fast(), func(ctx context.Context) error {
		return failure
	})
	require.ErrorIs(t, err, failure)
	require.Equal(t, data.UnclaimedLock(), c.lock("/a"))

	require.Panics(t, func() {
		_ = m.WithLock(t.Context(), "/a", fast(), func(ctx context.Context) error {
			panic("boom")
		})
	})
	require.Equal(t, data.UnclaimedLock(), c.lock("/a"))
}

func TestOptions_Defaults(t *testing.T) {
	opts := lock.DefaultOptions()
	require.Equal(t, 30*time.Second, opts.LeaseDuration)
	require.Equal(t, 500*time.Millisecond, opts.PollInterval)
	require.Equal(t, 10*time.Second, opts.Timeout)
}
