package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/mwantia/blockdb/data"
	dataerrors "github.com/mwantia/blockdb/data/errors"
)

func (sb *SQLiteBackend) ReadBlock(ctx context.Context, path string) (data.Document, error) {
	path = data.Normalize(path)

	sb.mu.RLock()
	defer sb.mu.RUnlock()

	var nonce, payload []byte
	err := sb.db.QueryRowContext(ctx,
		"SELECT nonce, data FROM blockdb_blocks WHERE path = ?",
		path).Scan(&nonce, &payload)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, dataerrors.BlockNotFound(path)
	}
	if err != nil {
		return nil, err
	}

	return sb.codec.Decode(path, nonce, payload)
}

func (sb *SQLiteBackend) WriteBlock(ctx context.Context, path string, doc data.Document) error {
	path = data.Normalize(path)

	sb.mu.RLock()
	defer sb.mu.RUnlock()

	return sb.tx(ctx, func(tx *sql.Tx) error {
		info, err := blockInfo(ctx, tx, path)
		if err != nil {
			return err
		}

		nonce, payload, err := sb.codec.Encode(path, doc, info.Encrypted)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx,
			"UPDATE blockdb_blocks SET nonce = ?, data = ? WHERE path = ?",
			nonce, payload, path)
		return err
	})
}

func (sb *SQLiteBackend) CreateBlock(ctx context.Context, path string, opts data.BlockOptions) error {
	path = data.Normalize(path)

	sb.mu.RLock()
	defer sb.mu.RUnlock()

	return sb.tx(ctx, func(tx *sql.Tx) error {
		return sb.createBlock(ctx, tx, path, opts)
	})
}

func (sb *SQLiteBackend) DeleteBlock(ctx context.Context, path string) error {
	path = data.Normalize(path)

	sb.mu.RLock()
	defer sb.mu.RUnlock()

	result, err := sb.db.ExecContext(ctx, "DELETE FROM blockdb_blocks WHERE path = ?", path)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return dataerrors.BlockNotFound(path)
	}

	return nil
}

func (sb *SQLiteBackend) BlockInfo(ctx context.Context, path string) (*data.BlockInfo, error) {
	sb.mu.RLock()
	defer sb.mu.RUnlock()

	return blockInfo(ctx, sb.db, data.Normalize(path))
}

func (sb *SQLiteBackend) ListBlocks(ctx context.Context, path string) ([]string, error) {
	sb.mu.RLock()
	defer sb.mu.RUnlock()

	var result []string
	err := sb.tx(ctx, func(tx *sql.Tx) error {
		var err error
		result, err = listChildren(ctx, tx, "blockdb_blocks", data.Normalize(path))
		return err
	})
	return result, err
}

func (sb *SQLiteBackend) CreateCollection(ctx context.Context, path string) error {
	path = data.Normalize(path)

	sb.mu.RLock()
	defer sb.mu.RUnlock()

	return sb.tx(ctx, func(tx *sql.Tx) error {
		return createCollection(ctx, tx, path)
	})
}

func (sb *SQLiteBackend) DeleteCollection(ctx context.Context, path string) error {
	path = data.Normalize(path)
	if data.IsRoot(path) {
		return dataerrors.InvalidPath(path, "is the root collection")
	}

	sb.mu.RLock()
	defer sb.mu.RUnlock()

	return sb.tx(ctx, func(tx *sql.Tx) error {
		collection, err := isCollection(ctx, tx, path)
		if err != nil {
			return err
		}
		if !collection {
			return dataerrors.CollectionNotFound(path)
		}

		lower, upper := descendantRange(path)
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM blockdb_blocks WHERE path >= ? AND path < ?",
			lower, upper); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx,
			"DELETE FROM blockdb_collections WHERE path = ? OR (path >= ? AND path < ?)",
			path, lower, upper)
		return err
	})
}

func (sb *SQLiteBackend) ListCollections(ctx context.Context, path string) ([]string, error) {
	sb.mu.RLock()
	defer sb.mu.RUnlock()

	var result []string
	err := sb.tx(ctx, func(tx *sql.Tx) error {
		var err error
		result, err = listChildren(ctx, tx, "blockdb_collections", data.Normalize(path))
		return err
	})
	return result, err
}

func (sb *SQLiteBackend) ContainsBlock(ctx context.Context, path string) (bool, error) {
	sb.mu.RLock()
	defer sb.mu.RUnlock()

	return isBlock(ctx, sb.db, data.Normalize(path))
}

func (sb *SQLiteBackend) ContainsCollection(ctx context.Context, path string) (bool, error) {
	sb.mu.RLock()
	defer sb.mu.RUnlock()

	return isCollection(ctx, sb.db, data.Normalize(path))
}
