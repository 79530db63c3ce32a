package blockdb

import (
	"context"

	"github.com/mwantia/blockdb/backend"
	"github.com/mwantia/blockdb/data"
	"github.com/mwantia/blockdb/query"
)

// Block is a handle for a leaf document of the namespace.
type Block struct {
	db   *DB
	path string
}

func (b *Block) Path() string {
	return b.path
}

// Info returns the encryption flag and lock state stored for this block.
func (b *Block) Info(ctx context.Context) (*data.BlockInfo, error) {
	if err := b.db.checkOpen(); err != nil {
		return nil, err
	}

	return b.db.backend.BlockInfo(ctx, b.path)
}

// Get reads the document and projects it through q. An empty q returns the whole document.
func (b *Block) Get(ctx context.Context, q data.Document) (data.Document, error) {
	if err := b.db.checkOpen(); err != nil {
		return nil, err
	}

	doc, err := b.db.backend.ReadBlock(ctx, b.path)
	if err != nil {
		return nil, err
	}

	return query.Project(doc, q), nil
}

// Set replaces the document when overwrite is true, otherwise merges doc into
// the stored document. The resulting document is returned.
func (b *Block) Set(ctx context.Context, doc data.Document, overwrite bool) (data.Document, error) {
	if err := b.db.checkOpen(); err != nil {
		return nil, err
	}

	result := data.Clone(doc)
	if result == nil {
		result = data.Document{}
	}

	if !overwrite {
		current, err := b.db.backend.ReadBlock(ctx, b.path)
		if err != nil {
			return nil, err
		}
		result = query.Merge(current, result)
	}

	if err := b.db.backend.WriteBlock(ctx, b.path, result); err != nil {
		return nil, err
	}
	return result, nil
}

// Update applies a patch spec to the stored document and writes it back.
func (b *Block) Update(ctx context.Context, spec data.Document) (data.Document, error) {
	if err := b.db.checkOpen(); err != nil {
		return nil, err
	}

	current, err := b.db.backend.ReadBlock(ctx, b.path)
	if err != nil {
		return nil, err
	}

	result, err := query.Patch(current, spec)
	if err != nil {
		return nil, err
	}

	if err := b.db.backend.WriteBlock(ctx, b.path, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AcquireLock runs fn while holding this block's lock. The lock is released
// before AcquireLock returns, whatever fn does.
func (b *Block) AcquireLock(ctx context.Context, fn func(ctx context.Context, b *Block) error) error {
	if err := b.db.checkOpen(); err != nil {
		return err
	}

	return b.db.locks.WithLock(ctx, b.path, b.db.lockOptions, func(ctx context.Context) error {
		return fn(ctx, b)
	})
}

func (b *Block) LockAndGet(ctx context.Context, q data.Document) (data.Document, error) {
	if locked, ok := b.db.backend.(backend.LockedBackend); ok {
		if err := b.db.checkOpen(); err != nil {
			return nil, err
		}
		return locked.LockAndGet(ctx, b.path, q)
	}

	var result data.Document
	err := b.AcquireLock(ctx, func(ctx context.Context, b *Block) error {
		var err error
		result, err = b.Get(ctx, q)
		return err
	})
	return result, err
}

func (b *Block) LockAndSet(ctx context.Context, doc data.Document, overwrite bool) (data.Document, error) {
	if locked, ok := b.db.backend.(backend.LockedBackend); ok {
		if err := b.db.checkOpen(); err != nil {
			return nil, err
		}
		return locked.LockAndSet(ctx, b.path, doc, overwrite)
	}

	var result data.Document
	err := b.AcquireLock(ctx, func(ctx context.Context, b *Block) error {
		var err error
		result, err = b.Set(ctx, doc, overwrite)
		return err
	})
	return result, err
}

func (b *Block) LockAndUpdate(ctx context.Context, spec data.Document) (data.Document, error) {
	if locked, ok := b.db.backend.(backend.LockedBackend); ok {
		if err := b.db.checkOpen(); err != nil {
			return nil, err
		}
		return locked.LockAndUpdate(ctx, b.path, spec)
	}

	var result data.Document
	err := b.AcquireLock(ctx, func(ctx context.Context, b *Block) error {
		var err error
		result, err = b.Update(ctx, spec)
		return err
	})
	return result, err
}
