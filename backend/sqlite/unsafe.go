package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/mwantia/blockdb/backend"
	"github.com/mwantia/blockdb/data"
	dataerrors "github.com/mwantia/blockdb/data/errors"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func exists(ctx context.Context, q querier, table string, path string) (bool, error) {
	var found bool
	err := q.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM "+table+" WHERE path = ?)", path).Scan(&found)
	return found, err
}

func isBlock(ctx context.Context, q querier, path string) (bool, error) {
	return exists(ctx, q, "blockdb_blocks", path)
}

func isCollection(ctx context.Context, q querier, path string) (bool, error) {
	return exists(ctx, q, "blockdb_collections", path)
}

// missingAncestors returns the ancestors of path without a collection row,
// shallowest first, and fails if any ancestor is a block.
func missingAncestors(ctx context.Context, q querier, path string) ([]string, error) {
	var missing []string
	for _, ancestor := range data.Ancestors(path) {
		block, err := isBlock(ctx, q, ancestor)
		if err != nil {
			return nil, err
		}
		if block {
			return nil, dataerrors.InvalidPath(path, "has a block as ancestor '"+ancestor+"'")
		}

		collection, err := isCollection(ctx, q, ancestor)
		if err != nil {
			return nil, err
		}
		if !collection {
			missing = append(missing, ancestor)
		}
	}

	return missing, nil
}

func insertCollections(ctx context.Context, q querier, paths ...string) error {
	for _, path := range paths {
		if _, err := q.ExecContext(ctx,
			"INSERT OR IGNORE INTO blockdb_collections (path, parent_path) VALUES (?, ?)",
			path, data.Parent(path)); err != nil {
			return err
		}
	}

	return nil
}

func (sb *SQLiteBackend) createBlock(ctx context.Context, q querier, path string, opts data.BlockOptions) error {
	if data.IsRoot(path) {
		return dataerrors.InvalidPath(path, "is the root collection")
	}

	collection, err := isCollection(ctx, q, path)
	if err != nil {
		return err
	}
	if collection {
		return dataerrors.InvalidPath(path, "is a collection")
	}

	block, err := isBlock(ctx, q, path)
	if err != nil {
		return err
	}
	if block {
		if opts.Strict {
			return dataerrors.BlockAlreadyExists(path)
		}
		return nil
	}

	missing, err := missingAncestors(ctx, q, path)
	if err != nil {
		return err
	}
	if len(missing) > 0 && !opts.Recursive {
		return dataerrors.ParentCollectionMissing(data.Parent(path))
	}

	if err := insertCollections(ctx, q, missing...); err != nil {
		return err
	}

	rec := backend.NewRecord(opts.Encrypted)
	nonce, payload, err := sb.codec.Encode(path, data.Document{}, rec.Encrypted)
	if err != nil {
		return err
	}

	_, err = q.ExecContext(ctx,
		"INSERT INTO blockdb_blocks (path, parent_path, encrypted, nonce, data, lock_holder, lock_expires_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		path, data.Parent(path), rec.Encrypted, nonce, payload, rec.LockHolder, rec.LockExpiresAt)
	return err
}

func createCollection(ctx context.Context, q querier, path string) error {
	if data.IsRoot(path) {
		return nil
	}

	block, err := isBlock(ctx, q, path)
	if err != nil {
		return err
	}
	if block {
		return dataerrors.InvalidPath(path, "is a block")
	}

	missing, err := missingAncestors(ctx, q, path)
	if err != nil {
		return err
	}

	return insertCollections(ctx, q, append(missing, path)...)
}

func blockInfo(ctx context.Context, q querier, path string) (*data.BlockInfo, error) {
	info := &data.BlockInfo{Path: path}
	err := q.QueryRowContext(ctx,
		"SELECT encrypted, lock_holder, lock_expires_at FROM blockdb_blocks WHERE path = ?",
		path).Scan(&info.Encrypted, &info.Lock.Holder, &info.Lock.ExpiresAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, dataerrors.BlockNotFound(path)
	}
	if err != nil {
		return nil, err
	}

	return info, nil
}

func listChildren(ctx context.Context, q querier, table string, path string) ([]string, error) {
	collection, err := isCollection(ctx, q, path)
	if err != nil {
		return nil, err
	}
	if !collection {
		return nil, dataerrors.CollectionNotFound(path)
	}

	rows, err := q.QueryContext(ctx,
		"SELECT path FROM "+table+" WHERE parent_path = ? AND path != ? ORDER BY path",
		path, data.RootPath)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]string, 0)
	for rows.Next() {
		var child string
		if err := rows.Scan(&child); err != nil {
			return nil, err
		}
		result = append(result, child)
	}

	return result, rows.Err()
}

// descendantRange returns the bounds of all paths strictly below path.
// Every such path starts with path + "/", and '0' is the byte following '/'.
func descendantRange(path string) (string, string) {
	return path + "/", path + "0"
}
