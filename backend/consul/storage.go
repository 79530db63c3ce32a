package consul

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/hashicorp/consul/api"
	"github.com/mwantia/blockdb/backend"
	"github.com/mwantia/blockdb/data"
	"github.com/mwantia/blockdb/data/errors"
)

func (cb *ConsulBackend) readPair(ctx context.Context, path string) (*api.KVPair, *backend.Record, error) {
	pair, _, err := cb.kv.Get(cb.blockKey(path), (&api.QueryOptions{}).WithContext(ctx))
	if err != nil {
		return nil, nil, err
	}
	if pair == nil {
		return nil, nil, errors.BlockNotFound(path)
	}

	rec, err := backend.UnmarshalRecord(pair.Value)
	if err != nil {
		return nil, nil, err
	}

	return pair, rec, nil
}

// modify applies fn to the block record until the check-and-set succeeds.
// fn returning false leaves the record untouched.
func (cb *ConsulBackend) modify(ctx context.Context, path string, fn func(rec *backend.Record) (bool, error)) (bool, error) {
	for {
		pair, rec, err := cb.readPair(ctx, path)
		if err != nil {
			return false, err
		}

		changed, err := fn(rec)
		if err != nil || !changed {
			return false, err
		}

		if pair.Value, err = backend.MarshalRecord(rec); err != nil {
			return false, err
		}

		ok, _, err := cb.kv.CAS(pair, (&api.WriteOptions{}).WithContext(ctx))
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}

		if err := ctx.Err(); err != nil {
			return false, err
		}
	}
}

func (cb *ConsulBackend) exists(ctx context.Context, key string) (bool, error) {
	pair, _, err := cb.kv.Get(key, (&api.QueryOptions{}).WithContext(ctx))
	return pair != nil, err
}

func (cb *ConsulBackend) isCollection(ctx context.Context, path string) (bool, error) {
	if data.IsRoot(path) {
		return true, nil
	}
	return cb.exists(ctx, cb.collectionKey(path))
}

// txn runs ops atomically. It reports false when a check operation failed.
func (cb *ConsulBackend) txn(ctx context.Context, ops api.TxnOps) (bool, error) {
	ok, resp, _, err := cb.client.Txn().Txn(ops, (&api.QueryOptions{}).WithContext(ctx))
	if err != nil {
		return false, err
	}

	if !ok && resp != nil {
		for _, e := range resp.Errors {
			cb.log.Debug("Transaction operation %d rejected: %s", e.OpIndex, e.What)
		}
	}
	return ok, nil
}

// structureOps guards path against collisions with a node of the other kind and
// against block ancestors, and creates all ancestor collections.
func (cb *ConsulBackend) structureOps(path string, otherKind string) api.TxnOps {
	ops := api.TxnOps{
		{KV: &api.KVTxnOp{Verb: api.KVCheckNotExists, Key: otherKind}},
	}

	for _, ancestor := range data.Ancestors(path) {
		ops = append(ops,
			&api.TxnOp{KV: &api.KVTxnOp{Verb: api.KVCheckNotExists, Key: cb.blockKey(ancestor)}},
			&api.TxnOp{KV: &api.KVTxnOp{Verb: api.KVSet, Key: cb.collectionKey(ancestor)}},
		)
	}

	return ops
}

// classify explains why a structural transaction was rejected.
func (cb *ConsulBackend) classify(ctx context.Context, path string, isBlock bool) error {
	if isBlock {
		collection, err := cb.exists(ctx, cb.collectionKey(path))
		if err != nil {
			return err
		}
		if collection {
			return errors.InvalidPath(path, "is a collection")
		}
	} else {
		block, err := cb.exists(ctx, cb.blockKey(path))
		if err != nil {
			return err
		}
		if block {
			return errors.InvalidPath(path, "is a block")
		}
	}

	for _, ancestor := range data.Ancestors(path) {
		block, err := cb.exists(ctx, cb.blockKey(ancestor))
		if err != nil {
			return err
		}
		if block {
			return errors.InvalidPath(path, "has a block as ancestor '"+ancestor+"'")
		}
	}

	return nil
}

func (cb *ConsulBackend) ReadBlock(ctx context.Context, path string) (data.Document, error) {
	path = data.Normalize(path)

	_, rec, err := cb.readPair(ctx, path)
	if err != nil {
		return nil, err
	}

	return cb.codec.Load(rec, path)
}

func (cb *ConsulBackend) WriteBlock(ctx context.Context, path string, doc data.Document) error {
	path = data.Normalize(path)

	_, err := cb.modify(ctx, path, func(rec *backend.Record) (bool, error) {
		return true, cb.codec.Store(rec, path, doc)
	})
	return err
}

func (cb *ConsulBackend) CreateBlock(ctx context.Context, path string, opts data.BlockOptions) error {
	path = data.Normalize(path)
	if data.IsRoot(path) {
		return errors.InvalidPath(path, "is the root collection")
	}

	block, err := cb.exists(ctx, cb.blockKey(path))
	if err != nil {
		return err
	}
	if block {
		if opts.Strict {
			return errors.BlockAlreadyExists(path)
		}
		return cb.classify(ctx, path, true)
	}

	if !opts.Recursive {
		parent, err := cb.isCollection(ctx, data.Parent(path))
		if err != nil {
			return err
		}
		if !parent {
			if err := cb.classify(ctx, path, true); err != nil {
				return err
			}
			return errors.ParentCollectionMissing(data.Parent(path))
		}
	}

	rec := backend.NewRecord(opts.Encrypted)
	if err := cb.codec.Store(rec, path, data.Document{}); err != nil {
		return err
	}
	value, err := backend.MarshalRecord(rec)
	if err != nil {
		return err
	}

	ops := cb.structureOps(path, cb.collectionKey(path))
	// Index 0 turns the check-and-set into create-if-absent
	ops = append(ops, &api.TxnOp{KV: &api.KVTxnOp{Verb: api.KVCAS, Key: cb.blockKey(path), Value: value, Index: 0}})

	ok, err := cb.txn(ctx, ops)
	if err != nil || ok {
		return err
	}

	if err := cb.classify(ctx, path, true); err != nil {
		return err
	}
	// Lost the race against a concurrent creator of the same block
	if opts.Strict {
		return errors.BlockAlreadyExists(path)
	}
	return nil
}

func (cb *ConsulBackend) DeleteBlock(ctx context.Context, path string) error {
	path = data.Normalize(path)

	block, err := cb.exists(ctx, cb.blockKey(path))
	if err != nil {
		return err
	}
	if !block {
		return errors.BlockNotFound(path)
	}

	_, err = cb.kv.Delete(cb.blockKey(path), (&api.WriteOptions{}).WithContext(ctx))
	return err
}

func (cb *ConsulBackend) BlockInfo(ctx context.Context, path string) (*data.BlockInfo, error) {
	path = data.Normalize(path)

	_, rec, err := cb.readPair(ctx, path)
	if err != nil {
		return nil, err
	}

	return rec.Info(path), nil
}

func (cb *ConsulBackend) list(ctx context.Context, path string, key func(string) string) ([]string, error) {
	collection, err := cb.isCollection(ctx, path)
	if err != nil {
		return nil, err
	}
	if !collection {
		return nil, errors.CollectionNotFound(path)
	}

	prefix := childPrefix(key(path))
	keys, _, err := cb.kv.Keys(prefix, "/", (&api.QueryOptions{}).WithContext(ctx))
	if err != nil {
		return nil, err
	}

	result := make([]string, 0, len(keys))
	for _, k := range keys {
		name := strings.TrimPrefix(k, prefix)
		// Keys ending with the separator are folders of deeper descendants
		if name == "" || strings.Contains(name, "/") {
			continue
		}
		result = append(result, data.Join(path, name))
	}

	slices.Sort(result)
	return result, nil
}

func (cb *ConsulBackend) ListBlocks(ctx context.Context, path string) ([]string, error) {
	return cb.list(ctx, data.Normalize(path), cb.blockKey)
}

func (cb *ConsulBackend) CreateCollection(ctx context.Context, path string) error {
	path = data.Normalize(path)
	if data.IsRoot(path) {
		return nil
	}

	ops := cb.structureOps(path, cb.blockKey(path))
	ops = append(ops, &api.TxnOp{KV: &api.KVTxnOp{Verb: api.KVSet, Key: cb.collectionKey(path)}})

	ok, err := cb.txn(ctx, ops)
	if err != nil || ok {
		return err
	}

	if err := cb.classify(ctx, path, false); err != nil {
		return err
	}
	return fmt.Errorf("blockdb: consul rejected creation of collection '%s'", path)
}

func (cb *ConsulBackend) DeleteCollection(ctx context.Context, path string) error {
	path = data.Normalize(path)
	if data.IsRoot(path) {
		return errors.InvalidPath(path, "is the root collection")
	}

	collection, err := cb.isCollection(ctx, path)
	if err != nil {
		return err
	}
	if !collection {
		return errors.CollectionNotFound(path)
	}

	_, err = cb.txn(ctx, api.TxnOps{
		{KV: &api.KVTxnOp{Verb: api.KVDeleteTree, Key: childPrefix(cb.blockKey(path))}},
		{KV: &api.KVTxnOp{Verb: api.KVDeleteTree, Key: childPrefix(cb.collectionKey(path))}},
		{KV: &api.KVTxnOp{Verb: api.KVDelete, Key: cb.collectionKey(path)}},
	})
	return err
}

func (cb *ConsulBackend) ListCollections(ctx context.Context, path string) ([]string, error) {
	return cb.list(ctx, data.Normalize(path), cb.collectionKey)
}

func (cb *ConsulBackend) ContainsBlock(ctx context.Context, path string) (bool, error) {
	return cb.exists(ctx, cb.blockKey(path))
}

func (cb *ConsulBackend) ContainsCollection(ctx context.Context, path string) (bool, error) {
	return cb.isCollection(ctx, data.Normalize(path))
}
