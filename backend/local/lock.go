package local

import (
	"context"
	"time"

	"github.com/mwantia/blockdb/data"
	"github.com/mwantia/blockdb/data/errors"
)

func (lb *LocalBackend) ClaimLock(ctx context.Context, path string, holder string, now time.Time, expiresAt time.Time) (bool, error) {
	path = data.Normalize(path)

	lb.mu.RLock()
	defer lb.mu.RUnlock()

	if !lb.isBlock(path) {
		return false, errors.BlockNotFound(path)
	}

	release, err := lb.guard(ctx, path)
	if err != nil {
		return false, err
	}
	defer release()

	rec, err := lb.readRecord(path)
	if err != nil {
		return false, err
	}
	if !rec.Claim(holder, now.UnixMilli(), expiresAt.UnixMilli()) {
		return false, nil
	}

	return true, lb.writeRecord(path, rec)
}

func (lb *LocalBackend) ReleaseLock(ctx context.Context, path string, holder string) error {
	path = data.Normalize(path)

	lb.mu.RLock()
	defer lb.mu.RUnlock()

	if !lb.isBlock(path) {
		return nil
	}

	release, err := lb.guard(ctx, path)
	if err != nil {
		if errors.Is(err, data.ErrBlockNotFound) {
			return nil
		}
		return err
	}
	defer release()

	rec, err := lb.readRecord(path)
	if err != nil {
		if errors.Is(err, data.ErrBlockNotFound) {
			return nil
		}
		return err
	}
	if !rec.Release(holder) {
		return nil
	}

	return lb.writeRecord(path, rec)
}
