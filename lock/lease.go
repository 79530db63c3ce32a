package lock

import (
	"context"
	"sync"
	"time"
)

// Lease is a successful claim on a block lock.
type Lease struct {
	manager *Manager
	once    sync.Once

	path      string
	holder    string
	expiresAt time.Time
}

func (l *Lease) Path() string {
	return l.path
}

// Holder returns the opaque id stored alongside the block while the lease is held.
func (l *Lease) Holder() string {
	return l.holder
}

func (l *Lease) ExpiresAt() time.Time {
	return l.expiresAt
}

// Release frees the lock unless someone else has reclaimed it after expiry.
// Only the first call reaches the backend.
func (l *Lease) Release(ctx context.Context) error {
	var err error
	l.once.Do(func() {
		err = l.manager.claimer.ReleaseLock(ctx, l.path, l.holder)
		if err == nil {
			l.manager.log.Debug("Released lock on '%s' held by '%s'", l.path, l.holder)
		}
	})

	return err
}
