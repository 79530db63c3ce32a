package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mwantia/blockdb/backend"
	"github.com/mwantia/blockdb/data"
	dataerrors "github.com/mwantia/blockdb/data/errors"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func exists(ctx context.Context, q querier, table string, path string) (bool, error) {
	var found bool
	err := q.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM "+table+" WHERE path = $1)", path).Scan(&found)
	return found, err
}

func isBlock(ctx context.Context, q querier, path string) (bool, error) {
	return exists(ctx, q, "blockdb_blocks", path)
}

func isCollection(ctx context.Context, q querier, path string) (bool, error) {
	return exists(ctx, q, "blockdb_collections", path)
}

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

// insertCollections treats rows created concurrently as success.
func insertCollections(ctx context.Context, q querier, paths ...string) error {
	for _, path := range paths {
		if _, err := q.Exec(ctx,
			"INSERT INTO blockdb_collections (path, parent_path) VALUES ($1, $2) ON CONFLICT (path) DO NOTHING",
			path, data.Parent(path)); err != nil {
			return err
		}
	}

	return nil
}

func (pb *PostgresBackend) createBlock(ctx context.Context, q querier, path string, opts data.BlockOptions) error {
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

	missing, err := missingAncestors(ctx, q, path)
	if err != nil {
		return err
	}
	if len(missing) > 0 && !opts.Recursive {
		block, err := isBlock(ctx, q, path)
		if err != nil || block {
			return err
		}
		return dataerrors.ParentCollectionMissing(data.Parent(path))
	}

	if err := insertCollections(ctx, q, missing...); err != nil {
		return err
	}

	rec := backend.NewRecord(opts.Encrypted)
	nonce, payload, err := pb.codec.Encode(path, data.Document{}, rec.Encrypted)
	if err != nil {
		return err
	}

	tag, err := q.Exec(ctx,
		`INSERT INTO blockdb_blocks (path, parent_path, encrypted, nonce, data, lock_holder, lock_expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7) ON CONFLICT (path) DO NOTHING`,
		path, data.Parent(path), rec.Encrypted, nonce, payload, rec.LockHolder, rec.LockExpiresAt)
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 && opts.Strict {
		return dataerrors.BlockAlreadyExists(path)
	}
	return nil
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
	err := q.QueryRow(ctx,
		"SELECT encrypted, lock_holder, lock_expires_at FROM blockdb_blocks WHERE path = $1",
		path).Scan(&info.Encrypted, &info.Lock.Holder, &info.Lock.ExpiresAt)

	if errors.Is(err, pgx.ErrNoRows) {
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

	rows, err := q.Query(ctx,
		"SELECT path FROM "+table+" WHERE parent_path = $1 AND path <> $2 ORDER BY path COLLATE \"C\"",
		path, data.RootPath)
	if err != nil {
		return nil, err
	}

	result, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, err
	}
	if result == nil {
		result = make([]string, 0)
	}

	return result, nil
}

// descendantRange returns the bounds of all paths strictly below path.
func descendantRange(path string) (string, string) {
	return path + "/", path + "0"
}
