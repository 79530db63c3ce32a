package local

import (
	"context"
	"os"
	"slices"

	"github.com/mwantia/blockdb/backend"
	"github.com/mwantia/blockdb/data"
	"github.com/mwantia/blockdb/data/errors"
)

func (lb *LocalBackend) ReadBlock(ctx context.Context, path string) (data.Document, error) {
	path = data.Normalize(path)

	lb.mu.RLock()
	defer lb.mu.RUnlock()

	rec, err := lb.readRecord(path)
	if err != nil {
		return nil, err
	}

	return lb.codec.Load(rec, path)
}

func (lb *LocalBackend) WriteBlock(ctx context.Context, path string, doc data.Document) error {
	path = data.Normalize(path)

	lb.mu.RLock()
	defer lb.mu.RUnlock()

	if !lb.isBlock(path) {
		return errors.BlockNotFound(path)
	}

	release, err := lb.guard(ctx, path)
	if err != nil {
		return err
	}
	defer release()

	rec, err := lb.readRecord(path)
	if err != nil {
		return err
	}
	if err := lb.codec.Store(rec, path, doc); err != nil {
		return err
	}

	return lb.writeRecord(path, rec)
}

func (lb *LocalBackend) CreateBlock(ctx context.Context, path string, opts data.BlockOptions) error {
	path = data.Normalize(path)
	if data.IsRoot(path) {
		return errors.InvalidPath(path, "is the root collection")
	}

	lb.mu.Lock()
	defer lb.mu.Unlock()

	if lb.isDir(path) {
		return errors.InvalidPath(path, "is a collection")
	}
	if lb.isBlock(path) {
		if opts.Strict {
			return errors.BlockAlreadyExists(path)
		}
		return nil
	}

	missing, err := lb.missingAncestors(path)
	if err != nil {
		return err
	}
	if len(missing) > 0 && !opts.Recursive {
		return errors.ParentCollectionMissing(data.Parent(path))
	}

	if err := os.MkdirAll(lb.resolvePath(data.Parent(path)), 0755); err != nil {
		return err
	}

	created, err := lb.createRecord(path, backend.NewRecord(opts.Encrypted))
	if err != nil {
		return err
	}
	if !created && opts.Strict {
		return errors.BlockAlreadyExists(path)
	}

	return nil
}

func (lb *LocalBackend) DeleteBlock(ctx context.Context, path string) error {
	path = data.Normalize(path)

	lb.mu.Lock()
	defer lb.mu.Unlock()

	if !lb.isBlock(path) {
		return errors.BlockNotFound(path)
	}

	return os.Remove(lb.blockFile(path))
}

func (lb *LocalBackend) BlockInfo(ctx context.Context, path string) (*data.BlockInfo, error) {
	path = data.Normalize(path)

	lb.mu.RLock()
	defer lb.mu.RUnlock()

	rec, err := lb.readRecord(path)
	if err != nil {
		return nil, err
	}

	return rec.Info(path), nil
}

func (lb *LocalBackend) ListBlocks(ctx context.Context, path string) ([]string, error) {
	path = data.Normalize(path)

	lb.mu.RLock()
	defer lb.mu.RUnlock()

	blocks, err := lb.list(path, false)
	if err != nil {
		return nil, err
	}

	slices.Sort(blocks)
	return blocks, nil
}

func (lb *LocalBackend) CreateCollection(ctx context.Context, path string) error {
	path = data.Normalize(path)
	if data.IsRoot(path) {
		return nil
	}

	lb.mu.Lock()
	defer lb.mu.Unlock()

	if lb.isBlock(path) {
		return errors.InvalidPath(path, "is a block")
	}
	if _, err := lb.missingAncestors(path); err != nil {
		return err
	}

	return os.MkdirAll(lb.resolvePath(path), 0755)
}

func (lb *LocalBackend) DeleteCollection(ctx context.Context, path string) error {
	path = data.Normalize(path)
	if data.IsRoot(path) {
		return errors.InvalidPath(path, "is the root collection")
	}

	lb.mu.Lock()
	defer lb.mu.Unlock()

	if !lb.isDir(path) {
		return errors.CollectionNotFound(path)
	}

	return os.RemoveAll(lb.resolvePath(path))
}

func (lb *LocalBackend) ListCollections(ctx context.Context, path string) ([]string, error) {
	path = data.Normalize(path)

	lb.mu.RLock()
	defer lb.mu.RUnlock()

	collections, err := lb.list(path, true)
	if err != nil {
		return nil, err
	}

	slices.Sort(collections)
	return collections, nil
}

func (lb *LocalBackend) ContainsBlock(ctx context.Context, path string) (bool, error) {
	lb.mu.RLock()
	defer lb.mu.RUnlock()

	return lb.isBlock(data.Normalize(path)), nil
}

func (lb *LocalBackend) ContainsCollection(ctx context.Context, path string) (bool, error) {
	lb.mu.RLock()
	defer lb.mu.RUnlock()

	return lb.isDir(data.Normalize(path)), nil
}
