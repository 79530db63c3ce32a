package postgres

import (
	"context"
	"time"

	"github.com/mwantia/blockdb/data"
	dataerrors "github.com/mwantia/blockdb/data/errors"
)

func (pb *PostgresBackend) ClaimLock(ctx context.Context, path string, holder string, now time.Time, expiresAt time.Time) (bool, error) {
	path = data.Normalize(path)

	pb.mu.RLock()
	defer pb.mu.RUnlock()

	tag, err := pb.pool.Exec(ctx,
		"UPDATE blockdb_blocks SET lock_holder = $1, lock_expires_at = $2 WHERE path = $3 AND lock_expires_at <= $4",
		holder, expiresAt.UnixMilli(), path, now.UnixMilli())
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() > 0 {
		return true, nil
	}

	block, err := isBlock(ctx, pb.pool, path)
	if err != nil {
		return false, err
	}
	if !block {
		return false, dataerrors.BlockNotFound(path)
	}

	return false, nil
}

func (pb *PostgresBackend) ReleaseLock(ctx context.Context, path string, holder string) error {
	pb.mu.RLock()
	defer pb.mu.RUnlock()

	_, err := pb.pool.Exec(ctx,
		"UPDATE blockdb_blocks SET lock_holder = '', lock_expires_at = $1 WHERE path = $2 AND lock_holder = $3",
		data.LockUnclaimed, data.Normalize(path), holder)
	return err
}
