package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/mwantia/blockdb/data"
	"github.com/mwantia/blockdb/hierarchy"
)

type txStore struct {
	pb *PostgresBackend
	tx pgx.Tx
}

func (s *txStore) ContainsBlock(ctx context.Context, path string) (bool, error) {
	return isBlock(ctx, s.tx, path)
}

func (s *txStore) ContainsCollection(ctx context.Context, path string) (bool, error) {
	return isCollection(ctx, s.tx, path)
}

func (s *txStore) CreateBlock(ctx context.Context, path string, opts data.BlockOptions) error {
	return s.pb.createBlock(ctx, s.tx, path, opts)
}

func (s *txStore) CreateCollection(ctx context.Context, path string) error {
	return createCollection(ctx, s.tx, path)
}

func (s *txStore) BlockInfo(ctx context.Context, path string) (*data.BlockInfo, error) {
	return blockInfo(ctx, s.tx, path)
}

// EnsureHierarchy materializes tree inside one transaction.
func (pb *PostgresBackend) EnsureHierarchy(ctx context.Context, tree hierarchy.Tree, root string) error {
	pb.mu.RLock()
	defer pb.mu.RUnlock()

	return pb.tx(ctx, func(tx pgx.Tx) error {
		return hierarchy.Walk(ctx, &txStore{pb: pb, tx: tx}, tree, root)
	})
}
