package badger

import (
	"context"

	"github.com/dgraph-io/badger/v4"
	"github.com/mwantia/blockdb/backend"
	"github.com/mwantia/blockdb/data"
	"github.com/mwantia/blockdb/data/errors"
)

func (bb *BadgerBackend) ReadBlock(ctx context.Context, path string) (data.Document, error) {
	path = data.Normalize(path)

	var rec *backend.Record
	err := bb.view(func(txn *badger.Txn) error {
		var err error
		rec, err = readRecord(txn, path)
		return err
	})
	if err != nil {
		return nil, err
	}

	return bb.codec.Load(rec, path)
}

func (bb *BadgerBackend) WriteBlock(ctx context.Context, path string, doc data.Document) error {
	path = data.Normalize(path)

	return bb.update(ctx, func(txn *badger.Txn) error {
		rec, err := readRecord(txn, path)
		if err != nil {
			return err
		}
		if err := bb.codec.Store(rec, path, doc); err != nil {
			return err
		}

		return writeRecord(txn, path, rec)
	})
}

func (bb *BadgerBackend) CreateBlock(ctx context.Context, path string, opts data.BlockOptions) error {
	path = data.Normalize(path)
	if data.IsRoot(path) {
		return errors.InvalidPath(path, "is the root collection")
	}

	return bb.update(ctx, func(txn *badger.Txn) error {
		collection, err := isCollection(txn, path)
		if err != nil {
			return err
		}
		if collection {
			return errors.InvalidPath(path, "is a collection")
		}

		block, err := isBlock(txn, path)
		if err != nil {
			return err
		}
		if block {
			if opts.Strict {
				return errors.BlockAlreadyExists(path)
			}
			return nil
		}

		missing, err := missingAncestors(txn, path)
		if err != nil {
			return err
		}
		if len(missing) > 0 && !opts.Recursive {
			return errors.ParentCollectionMissing(data.Parent(path))
		}

		for _, ancestor := range missing {
			if err := txn.Set(collectionKey(ancestor), nil); err != nil {
				return err
			}
		}

		rec := backend.NewRecord(opts.Encrypted)
		if err := bb.codec.Store(rec, path, data.Document{}); err != nil {
			return err
		}
		return writeRecord(txn, path, rec)
	})
}

func (bb *BadgerBackend) DeleteBlock(ctx context.Context, path string) error {
	path = data.Normalize(path)

	return bb.update(ctx, func(txn *badger.Txn) error {
		block, err := isBlock(txn, path)
		if err != nil {
			return err
		}
		if !block {
			return errors.BlockNotFound(path)
		}

		return txn.Delete(blockKey(path))
	})
}

func (bb *BadgerBackend) BlockInfo(ctx context.Context, path string) (*data.BlockInfo, error) {
	path = data.Normalize(path)

	var info *data.BlockInfo
	err := bb.view(func(txn *badger.Txn) error {
		rec, err := readRecord(txn, path)
		if err != nil {
			return err
		}

		info = rec.Info(path)
		return nil
	})
	return info, err
}

func (bb *BadgerBackend) list(path string, keyPrefix string) ([]string, error) {
	var result []string
	err := bb.view(func(txn *badger.Txn) error {
		collection, err := isCollection(txn, path)
		if err != nil {
			return err
		}
		if !collection {
			return errors.CollectionNotFound(path)
		}

		result = children(txn, keyPrefix, path)
		return nil
	})
	return result, err
}

func (bb *BadgerBackend) ListBlocks(ctx context.Context, path string) ([]string, error) {
	return bb.list(data.Normalize(path), blockPrefix)
}

func (bb *BadgerBackend) CreateCollection(ctx context.Context, path string) error {
	path = data.Normalize(path)
	if data.IsRoot(path) {
		return nil
	}

	return bb.update(ctx, func(txn *badger.Txn) error {
		block, err := isBlock(txn, path)
		if err != nil {
			return err
		}
		if block {
			return errors.InvalidPath(path, "is a block")
		}

		missing, err := missingAncestors(txn, path)
		if err != nil {
			return err
		}

		for _, p := range append(missing, path) {
			if err := txn.Set(collectionKey(p), nil); err != nil {
				return err
			}
		}
		return nil
	})
}

func (bb *BadgerBackend) DeleteCollection(ctx context.Context, path string) error {
	path = data.Normalize(path)
	if data.IsRoot(path) {
		return errors.InvalidPath(path, "is the root collection")
	}

	return bb.update(ctx, func(txn *badger.Txn) error {
		collection, err := isCollection(txn, path)
		if err != nil {
			return err
		}
		if !collection {
			return errors.CollectionNotFound(path)
		}

		keys := append(descendants(txn, blockPrefix, path), descendants(txn, collectionPrefix, path)...)
		keys = append(keys, collectionKey(path))

		for _, key := range keys {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
}

func (bb *BadgerBackend) ListCollections(ctx context.Context, path string) ([]string, error) {
	return bb.list(data.Normalize(path), collectionPrefix)
}

func (bb *BadgerBackend) ContainsBlock(ctx context.Context, path string) (bool, error) {
	var found bool
	err := bb.view(func(txn *badger.Txn) error {
		var err error
		found, err = isBlock(txn, data.Normalize(path))
		return err
	})
	return found, err
}

func (bb *BadgerBackend) ContainsCollection(ctx context.Context, path string) (bool, error) {
	var found bool
	err := bb.view(func(txn *badger.Txn) error {
		var err error
		found, err = isCollection(txn, data.Normalize(path))
		return err
	})
	return found, err
}
