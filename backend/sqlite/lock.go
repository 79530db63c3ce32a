package sqlite

import (
	"context"
	"time"

	"github.com/mwantia/blockdb/data"
	dataerrors "github.com/mwantia/blockdb/data/errors"
)

// ClaimLock is a single conditional UPDATE; SQLite executes it atomically.
func (sb *SQLiteBackend) ClaimLock(ctx context.Context, path string, holder string, now time.Time, expiresAt time.Time) (bool, error) {
	path = data.Normalize(path)

	sb.mu.RLock()
	defer sb.mu.RUnlock()

	result, err := sb.db.ExecContext(ctx,
		"UPDATE blockdb_blocks SET lock_holder = ?, lock_expires_at = ? WHERE path = ? AND lock_expires_at <= ?",
		holder, expiresAt.UnixMilli(), path, now.UnixMilli())
	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	if affected > 0 {
		return true, nil
	}

	block, err := isBlock(ctx, sb.db, path)
	if err != nil {
		return false, err
	}
	if !block {
		return false, dataerrors.BlockNotFound(path)
	}

	return false, nil
}

func (sb *SQLiteBackend) ReleaseLock(ctx context.Context, path string, holder string) error {
	sb.mu.RLock()
	defer sb.mu.RUnlock()

	_, err := sb.db.ExecContext(ctx,
		"UPDATE blockdb_blocks SET lock_holder = '', lock_expires_at = ? WHERE path = ? AND lock_holder = ?",
		data.LockUnclaimed, data.Normalize(path), holder)
	return err
}
