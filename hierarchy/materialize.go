package hierarchy

import (
	"context"

	"github.com/mwantia/blockdb/data"
	"github.com/mwantia/blockdb/data/errors"
	"github.com/mwantia/blockdb/metrics"
)

// Store is the subset of a storage backend the generic walker needs.
type Store interface {
	ContainsBlock(ctx context.Context, path string) (bool, error)
	ContainsCollection(ctx context.Context, path string) (bool, error)
	CreateBlock(ctx context.Context, path string, opts data.BlockOptions) error
	CreateCollection(ctx context.Context, path string) error
	BlockInfo(ctx context.Context, path string) (*data.BlockInfo, error)
}

// Backend is implemented by stores that materialize a hierarchy natively.
type Backend interface {
	EnsureHierarchy(ctx context.Context, tree Tree, root string) error
}

// Materialize validates tree and makes it exist below root. Stores implementing
// Backend handle the walk themselves; every other store is walked with Walk.
func Materialize(ctx context.Context, store Store, tree Tree, root string) error {
	if err := Validate(tree); err != nil {
		metrics.HierarchyRuns.WithLabelValues("invalid").Inc()
		return err
	}

	var err error
	if native, ok := store.(Backend); ok {
		err = native.EnsureHierarchy(ctx, tree, data.Normalize(root))
	} else {
		err = Walk(ctx, store, tree, root)
	}

	if err != nil {
		metrics.HierarchyRuns.WithLabelValues("failed").Inc()
		return err
	}

	metrics.HierarchyRuns.WithLabelValues("ok").Inc()
	return nil
}

// Walk creates every node of tree missing below root, root itself included.
// Nodes that already exist in the expected shape are left untouched, so a
// repeated walk performs no mutation at all.
func Walk(ctx context.Context, store Store, tree Tree, root string) error {
	root = data.Normalize(root)
	if err := ensureCollection(ctx, store, root); err != nil {
		return err
	}

	return walk(ctx, store, tree, root)
}

func walk(ctx context.Context, store Store, tree Tree, at string) error {
	for _, entry := range tree {
		if err := ctx.Err(); err != nil {
			return err
		}

		path := data.Join(at, entry.Name)
		if entry.Node.IsBlock() {
			if err := ensureBlock(ctx, store, path, entry.Node.Kind == KindEncryptedBlock); err != nil {
				return err
			}
			continue
		}

		if err := ensureCollection(ctx, store, path); err != nil {
			return err
		}
		for _, child := range entry.Node.Children {
			if err := walk(ctx, store, child, path); err != nil {
				return err
			}
		}
	}

	return nil
}

func ensureCollection(ctx context.Context, store Store, path string) error {
	exists, err := store.ContainsCollection(ctx, path)
	if err != nil || exists {
		return err
	}

	isBlock, err := store.ContainsBlock(ctx, path)
	if err != nil {
		return err
	}
	if isBlock {
		return errors.HierarchyConflict(path, "expected a collection, found a block")
	}

	if err := store.CreateCollection(ctx, path); err != nil {
		if errors.Is(err, data.ErrInvalidPath) {
			return errors.HierarchyConflict(path, err.Error())
		}
		return err
	}

	return nil
}

func ensureBlock(ctx context.Context, store Store, path string, encrypted bool) error {
	info, err := store.BlockInfo(ctx, path)
	if err != nil && !errors.Is(err, data.ErrBlockNotFound) {
		return err
	}

	if info == nil {
		isCollection, err := store.ContainsCollection(ctx, path)
		if err != nil {
			return err
		}
		if isCollection {
			return errors.HierarchyConflict(path, "expected a block, found a collection")
		}

		opts := data.BlockOptions{
			Encrypted: encrypted,
			Strict:    false,
			Recursive: true,
		}
		if err := store.CreateBlock(ctx, path, opts); err != nil {
			if errors.Is(err, data.ErrInvalidPath) {
				return errors.HierarchyConflict(path, err.Error())
			}
			return err
		}

		// A concurrent creator may have won with a different flag.
		if info, err = store.BlockInfo(ctx, path); err != nil {
			return err
		}
	}

	if info.Encrypted != encrypted {
		return errors.HierarchyConflict(path, "existing block has a different encryption flag")
	}

	return nil
}
