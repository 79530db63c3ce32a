package backend

import (
	"context"
	"time"

	"github.com/mwantia/blockdb/data"
)

// LockBackend supplies the atomic claim primitive the lock manager builds on.
type LockBackend interface {
	// ClaimLock atomically assigns holder and expiresAt to the lock of the
	// block at path, but only if the stored expiry is not after now.
	// It returns false without error when another valid claim exists.
	ClaimLock(ctx context.Context, path string, holder string, now time.Time, expiresAt time.Time) (bool, error)
	// ReleaseLock clears the lock of the block at path if it is still held by holder.
	// Releasing a lock that has been reclaimed by someone else is a no-op.
	ReleaseLock(ctx context.Context, path string, holder string) error

	ContainsBlock(ctx context.Context, path string) (bool, error)
}

// LockedBackend is implemented by backends that run locked read-modify-write
// cycles on their side, such as a remote server. The façade delegates to it
// instead of polling the claim primitive across the network.
type LockedBackend interface {
	LockAndGet(ctx context.Context, path string, query data.Document) (data.Document, error)
	LockAndSet(ctx context.Context, path string, doc data.Document, overwrite bool) (data.Document, error)
	LockAndUpdate(ctx context.Context, path string, spec data.Document) (data.Document, error)
}
