package memory

import (
	"context"
	"time"

	"github.com/mwantia/blockdb/data"
)

func (mb *MemoryBackend) ClaimLock(ctx context.Context, path string, holder string, now time.Time, expiresAt time.Time) (bool, error) {
	path = data.Normalize(path)

	mb.mu.Lock()
	defer mb.mu.Unlock()

	rec, err := mb.readRecordUnsafe(path)
	if err != nil {
		return false, err
	}

	return rec.Claim(holder, now.UnixMilli(), expiresAt.UnixMilli()), nil
}

func (mb *MemoryBackend) ReleaseLock(ctx context.Context, path string, holder string) error {
	path = data.Normalize(path)

	mb.mu.Lock()
	defer mb.mu.Unlock()

	// A block deleted while locked has nothing left to release
	if rec, err := mb.readRecordUnsafe(path); err == nil {
		rec.Release(holder)
	}

	return nil
}
