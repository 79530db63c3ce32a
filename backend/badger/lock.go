package badger

import (
	"context"
	"errors"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/mwantia/blockdb/data"
)

// ClaimLock runs the compare-and-set in a single transaction. Losing a
// conflict against a concurrent transaction counts as a failed claim.
func (bb *BadgerBackend) ClaimLock(ctx context.Context, path string, holder string, now time.Time, expiresAt time.Time) (bool, error) {
	path = data.Normalize(path)

	bb.mu.RLock()
	defer bb.mu.RUnlock()

	if bb.db == nil {
		return false, data.ErrClosed
	}

	claimed := false
	err := bb.db.Update(func(txn *badger.Txn) error {
		rec, err := readRecord(txn, path)
		if err != nil {
			return err
		}

		if claimed = rec.Claim(holder, now.UnixMilli(), expiresAt.UnixMilli()); !claimed {
			return nil
		}
		return writeRecord(txn, path, rec)
	})

	if errors.Is(err, badger.ErrConflict) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	return claimed, nil
}

func (bb *BadgerBackend) ReleaseLock(ctx context.Context, path string, holder string) error {
	path = data.Normalize(path)

	err := bb.update(ctx, func(txn *badger.Txn) error {
		rec, err := readRecord(txn, path)
		if err != nil {
			return err
		}

		if !rec.Release(holder) {
			return nil
		}
		return writeRecord(txn, path, rec)
	})

	if errors.Is(err, data.ErrBlockNotFound) {
		return nil
	}
	return err
}
