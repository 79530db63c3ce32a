package s3

import (
	"context"
	"time"

	"github.com/mwantia/blockdb/backend"
	"github.com/mwantia/blockdb/data"
	"github.com/mwantia/blockdb/data/errors"
)

// ClaimLock rewrites the record only if its ETag is unchanged since it was read.
func (sb *S3Backend) ClaimLock(ctx context.Context, path string, holder string, now time.Time, expiresAt time.Time) (bool, error) {
	return sb.modify(ctx, data.Normalize(path), func(rec *backend.Record) (bool, error) {
		return rec.Claim(holder, now.UnixMilli(), expiresAt.UnixMilli()), nil
	})
}

func (sb *S3Backend) ReleaseLock(ctx context.Context, path string, holder string) error {
	_, err := sb.modify(ctx, data.Normalize(path), func(rec *backend.Record) (bool, error) {
		return rec.Release(holder), nil
	})

	if errors.Is(err, data.ErrBlockNotFound) {
		return nil
	}
	return err
}
