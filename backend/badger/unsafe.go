package badger

import (
	"context"
	"errors"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/mwantia/blockdb/backend"
	"github.com/mwantia/blockdb/data"
	dataerrors "github.com/mwantia/blockdb/data/errors"
)

// update runs fn in a read-write transaction and retries it on conflicts.
func (bb *BadgerBackend) update(ctx context.Context, fn func(txn *badger.Txn) error) error {
	bb.mu.RLock()
	defer bb.mu.RUnlock()

	if bb.db == nil {
		return data.ErrClosed
	}

	var err error
	for range conflictRetries {
		if err = ctx.Err(); err != nil {
			return err
		}

		err = bb.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}

	return err
}

func (bb *BadgerBackend) view(fn func(txn *badger.Txn) error) error {
	bb.mu.RLock()
	defer bb.mu.RUnlock()

	if bb.db == nil {
		return data.ErrClosed
	}

	return bb.db.View(fn)
}

func has(txn *badger.Txn, key []byte) (bool, error) {
	_, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}

	return err == nil, err
}

func isBlock(txn *badger.Txn, path string) (bool, error) {
	if data.IsRoot(path) {
		return false, nil
	}
	return has(txn, blockKey(path))
}

func isCollection(txn *badger.Txn, path string) (bool, error) {
	return has(txn, collectionKey(path))
}

func readRecord(txn *badger.Txn, path string) (*backend.Record, error) {
	item, err := txn.Get(blockKey(path))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, dataerrors.BlockNotFound(path)
	}
	if err != nil {
		return nil, err
	}

	var rec *backend.Record
	err = item.Value(func(val []byte) error {
		rec, err = backend.UnmarshalRecord(val)
		return err
	})
	return rec, err
}

func writeRecord(txn *badger.Txn, path string, rec *backend.Record) error {
	b, err := backend.MarshalRecord(rec)
	if err != nil {
		return err
	}

	return txn.Set(blockKey(path), b)
}

func missingAncestors(txn *badger.Txn, path string) ([]string, error) {
	var missing []string
	for _, ancestor := range data.Ancestors(path) {
		block, err := isBlock(txn, ancestor)
		if err != nil {
			return nil, err
		}
		if block {
			return nil, dataerrors.InvalidPath(path, "has a block as ancestor '"+ancestor+"'")
		}

		collection, err := isCollection(txn, ancestor)
		if err != nil {
			return nil, err
		}
		if !collection {
			missing = append(missing, ancestor)
		}
	}

	return missing, nil
}

// descendants returns the keys of everything below path under the given key prefix.
func descendants(txn *badger.Txn, keyPrefix string, path string) [][]byte {
	prefix := []byte(keyPrefix + strings.TrimSuffix(path, "/") + "/")

	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)
	defer it.Close()

	var keys [][]byte
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}

	return keys
}

func children(txn *badger.Txn, keyPrefix string, path string) []string {
	result := make([]string, 0)
	for _, key := range descendants(txn, keyPrefix, path) {
		child := strings.TrimPrefix(string(key), keyPrefix)
		if data.IsChild(path, child) {
			result = append(result, child)
		}
	}

	return result
}
