package sqlite

import (
	"context"
	"database/sql"

	"github.com/mwantia/blockdb/data"
	"github.com/mwantia/blockdb/hierarchy"
)

// txStore exposes a running transaction to the hierarchy walker.
type txStore struct {
	sb *SQLiteBackend
	tx *sql.Tx
}

func (s *txStore) ContainsBlock(ctx context.Context, path string) (bool, error) {
	return isBlock(ctx, s.tx, path)
}

func (s *txStore) ContainsCollection(ctx context.Context, path string) (bool, error) {
	return isCollection(ctx, s.tx, path)
}

func (s *txStore) CreateBlock(ctx context.Context, path string, opts data.BlockOptions) error {
	return s.sb.createBlock(ctx, s.tx, path, opts)
}

func (s *txStore) CreateCollection(ctx context.Context, path string) error {
	return createCollection(ctx, s.tx, path)
}

func (s *txStore) BlockInfo(ctx context.Context, path string) (*data.BlockInfo, error) {
	return blockInfo(ctx, s.tx, path)
}

// EnsureHierarchy materializes tree inside one transaction, so a conflict
// found halfway leaves the database unchanged.
func (sb *SQLiteBackend) EnsureHierarchy(ctx context.Context, tree hierarchy.Tree, root string) error {
	sb.mu.RLock()
	defer sb.mu.RUnlock()

	return sb.tx(ctx, func(tx *sql.Tx) error {
		return hierarchy.Walk(ctx, &txStore{sb: sb, tx: tx}, tree, root)
	})
}
