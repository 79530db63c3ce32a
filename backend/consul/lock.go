package consul

import (
	"context"
	"time"

	"github.com/mwantia/blockdb/backend"
	"github.com/mwantia/blockdb/data"
	"github.com/mwantia/blockdb/data/errors"
)

func (cb *ConsulBackend) ClaimLock(ctx context.Context, path string, holder string, now time.Time, expiresAt time.Time) (bool, error) {
	return cb.modify(ctx, data.Normalize(path), func(rec *backend.Record) (bool, error) {
		return rec.Claim(holder, now.UnixMilli(), expiresAt.UnixMilli()), nil
	})
}

func (cb *ConsulBackend) ReleaseLock(ctx context.Context, path string, holder string) error {
	_, err := cb.modify(ctx, data.Normalize(path), func(rec *backend.Record) (bool, error) {
		return rec.Release(holder), nil
	})

	if errors.Is(err, data.ErrBlockNotFound) {
		return nil
	}
	return err
}
