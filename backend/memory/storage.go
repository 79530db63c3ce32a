package memory

import (
	"context"

	"github.com/mwantia/blockdb/backend"
	"github.com/mwantia/blockdb/data"
	"github.com/mwantia/blockdb/data/errors"
)

func (mb *MemoryBackend) ReadBlock(ctx context.Context, path string) (data.Document, error) {
	path = data.Normalize(path)

	mb.mu.RLock()
	defer mb.mu.RUnlock()

	rec, err := mb.readRecordUnsafe(path)
	if err != nil {
		return nil, err
	}

	return mb.codec.Load(rec, path)
}

func (mb *MemoryBackend) WriteBlock(ctx context.Context, path string, doc data.Document) error {
	path = data.Normalize(path)

	mb.mu.Lock()
	defer mb.mu.Unlock()

	rec, err := mb.readRecordUnsafe(path)
	if err != nil {
		return err
	}

	return mb.codec.Store(rec, path, doc)
}

func (mb *MemoryBackend) CreateBlock(ctx context.Context, path string, opts data.BlockOptions) error {
	path = data.Normalize(path)
	if data.IsRoot(path) {
		return errors.InvalidPath(path, "is the root collection")
	}

	mb.mu.Lock()
	defer mb.mu.Unlock()

	if e, exists := mb.entries.Get(path); exists {
		if e.collection {
			return errors.InvalidPath(path, "is a collection")
		}
		if opts.Strict {
			return errors.BlockAlreadyExists(path)
		}
		return nil
	}

	missing, err := mb.missingAncestorsUnsafe(path)
	if err != nil {
		return err
	}
	if len(missing) > 0 && !opts.Recursive {
		return errors.ParentCollectionMissing(data.Parent(path))
	}

	for _, ancestor := range missing {
		mb.entries.Set(ancestor, &entry{collection: true})
	}
	mb.entries.Set(path, &entry{record: backend.NewRecord(opts.Encrypted)})

	return nil
}

func (mb *MemoryBackend) DeleteBlock(ctx context.Context, path string) error {
	path = data.Normalize(path)

	mb.mu.Lock()
	defer mb.mu.Unlock()

	if _, err := mb.readRecordUnsafe(path); err != nil {
		return err
	}

	mb.entries.Delete(path)
	return nil
}

func (mb *MemoryBackend) BlockInfo(ctx context.Context, path string) (*data.BlockInfo, error) {
	path = data.Normalize(path)

	mb.mu.RLock()
	defer mb.mu.RUnlock()

	rec, err := mb.readRecordUnsafe(path)
	if err != nil {
		return nil, err
	}

	return rec.Info(path), nil
}

func (mb *MemoryBackend) ListBlocks(ctx context.Context, path string) ([]string, error) {
	path = data.Normalize(path)

	mb.mu.RLock()
	defer mb.mu.RUnlock()

	return mb.listUnsafe(path, false)
}

func (mb *MemoryBackend) CreateCollection(ctx context.Context, path string) error {
	path = data.Normalize(path)
	if data.IsRoot(path) {
		return nil
	}

	mb.mu.Lock()
	defer mb.mu.Unlock()

	if e, exists := mb.entries.Get(path); exists {
		if !e.collection {
			return errors.InvalidPath(path, "is a block")
		}
		return nil
	}

	missing, err := mb.missingAncestorsUnsafe(path)
	if err != nil {
		return err
	}

	for _, p := range append(missing, path) {
		mb.entries.Set(p, &entry{collection: true})
	}
	return nil
}

func (mb *MemoryBackend) DeleteCollection(ctx context.Context, path string) error {
	path = data.Normalize(path)
	if data.IsRoot(path) {
		return errors.InvalidPath(path, "is the root collection")
	}

	mb.mu.Lock()
	defer mb.mu.Unlock()

	if !mb.isCollectionUnsafe(path) {
		return errors.CollectionNotFound(path)
	}

	keys := []string{path}
	mb.descendUnsafe(path, func(key string, _ *entry) {
		keys = append(keys, key)
	})

	for _, key := range keys {
		mb.entries.Delete(key)
	}
	return nil
}

func (mb *MemoryBackend) ListCollections(ctx context.Context, path string) ([]string, error) {
	path = data.Normalize(path)

	mb.mu.RLock()
	defer mb.mu.RUnlock()

	return mb.listUnsafe(path, true)
}

func (mb *MemoryBackend) ContainsBlock(ctx context.Context, path string) (bool, error) {
	path = data.Normalize(path)

	mb.mu.RLock()
	defer mb.mu.RUnlock()

	e, exists := mb.entries.Get(path)
	return exists && !e.collection, nil
}

func (mb *MemoryBackend) ContainsCollection(ctx context.Context, path string) (bool, error) {
	path = data.Normalize(path)

	mb.mu.RLock()
	defer mb.mu.RUnlock()

	return mb.isCollectionUnsafe(path), nil
}
