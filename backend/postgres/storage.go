package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/mwantia/blockdb/data"
	dataerrors "github.com/mwantia/blockdb/data/errors"
)

func (pb *PostgresBackend) ReadBlock(ctx context.Context, path string) (data.Document, error) {
	path = data.Normalize(path)

	pb.mu.RLock()
	defer pb.mu.RUnlock()

	var nonce, payload []byte
	err := pb.pool.QueryRow(ctx,
		"SELECT nonce, data FROM blockdb_blocks WHERE path = $1",
		path).Scan(&nonce, &payload)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, dataerrors.BlockNotFound(path)
	}
	if err != nil {
		return nil, err
	}

	return pb.codec.Decode(path, nonce, payload)
}

func (pb *PostgresBackend) WriteBlock(ctx context.Context, path string, doc data.Document) error {
	path = data.Normalize(path)

	pb.mu.RLock()
	defer pb.mu.RUnlock()

	info, err := blockInfo(ctx, pb.pool, path)
	if err != nil {
		return err
	}

	nonce, payload, err := pb.codec.Encode(path, doc, info.Encrypted)
	if err != nil {
		return err
	}

	tag, err := pb.pool.Exec(ctx,
		"UPDATE blockdb_blocks SET nonce = $1, data = $2 WHERE path = $3",
		nonce, payload, path)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return dataerrors.BlockNotFound(path)
	}

	return nil
}

func (pb *PostgresBackend) CreateBlock(ctx context.Context, path string, opts data.BlockOptions) error {
	path = data.Normalize(path)

	pb.mu.RLock()
	defer pb.mu.RUnlock()

	return pb.tx(ctx, func(tx pgx.Tx) error {
		return pb.createBlock(ctx, tx, path, opts)
	})
}

func (pb *PostgresBackend) DeleteBlock(ctx context.Context, path string) error {
	path = data.Normalize(path)

	pb.mu.RLock()
	defer pb.mu.RUnlock()

	tag, err := pb.pool.Exec(ctx, "DELETE FROM blockdb_blocks WHERE path = $1", path)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return dataerrors.BlockNotFound(path)
	}

	return nil
}

func (pb *PostgresBackend) BlockInfo(ctx context.Context, path string) (*data.BlockInfo, error) {
	pb.mu.RLock()
	defer pb.mu.RUnlock()

	return blockInfo(ctx, pb.pool, data.Normalize(path))
}

func (pb *PostgresBackend) ListBlocks(ctx context.Context, path string) ([]string, error) {
	pb.mu.RLock()
	defer pb.mu.RUnlock()

	return listChildren(ctx, pb.pool, "blockdb_blocks", data.Normalize(path))
}

func (pb *PostgresBackend) CreateCollection(ctx context.Context, path string) error {
	path = data.Normalize(path)

	pb.mu.RLock()
	defer pb.mu.RUnlock()

	return pb.tx(ctx, func(tx pgx.Tx) error {
		return createCollection(ctx, tx, path)
	})
}

func (pb *PostgresBackend) DeleteCollection(ctx context.Context, path string) error {
	path = data.Normalize(path)
	if data.IsRoot(path) {
		return dataerrors.InvalidPath(path, "is the root collection")
	}

	pb.mu.RLock()
	defer pb.mu.RUnlock()

	return pb.tx(ctx, func(tx pgx.Tx) error {
		collection, err := isCollection(ctx, tx, path)
		if err != nil {
			return err
		}
		if !collection {
			return dataerrors.CollectionNotFound(path)
		}

		lower, upper := descendantRange(path)
		if _, err := tx.Exec(ctx,
			"DELETE FROM blockdb_blocks WHERE path COLLATE \"C\" >= $1 AND path COLLATE \"C\" < $2",
			lower, upper); err != nil {
			return err
		}

		_, err = tx.Exec(ctx,
			"DELETE FROM blockdb_collections WHERE path = $1 OR (path COLLATE \"C\" >= $2 AND path COLLATE \"C\" < $3)",
			path, lower, upper)
		return err
	})
}

func (pb *PostgresBackend) ListCollections(ctx context.Context, path string) ([]string, error) {
	pb.mu.RLock()
	defer pb.mu.RUnlock()

	return listChildren(ctx, pb.pool, "blockdb_collections", data.Normalize(path))
}

func (pb *PostgresBackend) ContainsBlock(ctx context.Context, path string) (bool, error) {
	pb.mu.RLock()
	defer pb.mu.RUnlock()

	return isBlock(ctx, pb.pool, data.Normalize(path))
}

func (pb *PostgresBackend) ContainsCollection(ctx context.Context, path string) (bool, error) {
	pb.mu.RLock()
	defer pb.mu.RUnlock()

	return isCollection(ctx, pb.pool, data.Normalize(path))
}
