package remote

import (
	"context"
	"time"

	"github.com/mwantia/blockdb/data"
	"github.com/mwantia/blockdb/hierarchy"
	"github.com/mwantia/blockdb/protocol"
)

func (rb *RemoteBackend) ClaimLock(ctx context.Context, path string, holder string, now time.Time, expiresAt time.Time) (bool, error) {
	var claimed bool
	err := rb.call(ctx, protocol.OpClaimLock, path, &protocol.ClaimData{
		Holder:    holder,
		Now:       now.UnixMilli(),
		ExpiresAt: expiresAt.UnixMilli(),
	}, &claimed)

	return claimed, err
}

func (rb *RemoteBackend) ReleaseLock(ctx context.Context, path string, holder string) error {
	return rb.call(ctx, protocol.OpReleaseLock, path, &protocol.ReleaseData{Holder: holder}, nil)
}

// LockAndGet runs the whole locked read on the server in a single round trip.
func (rb *RemoteBackend) LockAndGet(ctx context.Context, path string, query data.Document) (data.Document, error) {
	var doc data.Document
	err := rb.call(ctx, protocol.OpLockAndGet, path, &protocol.QueryData{Query: query}, &doc)
	return doc, err
}

func (rb *RemoteBackend) LockAndSet(ctx context.Context, path string, doc data.Document, overwrite bool) (data.Document, error) {
	var result data.Document
	err := rb.call(ctx, protocol.OpLockAndSet, path, &protocol.SetData{
		Query: doc,
		Opts:  protocol.SetOptions{Overwrite: overwrite},
	}, &result)

	return result, err
}

func (rb *RemoteBackend) LockAndUpdate(ctx context.Context, path string, spec data.Document) (data.Document, error) {
	var result data.Document
	err := rb.call(ctx, protocol.OpLockAndUpdate, path, &protocol.QueryData{Query: spec}, &result)
	return result, err
}

// EnsureHierarchy lets the server materialize tree below root.
func (rb *RemoteBackend) EnsureHierarchy(ctx context.Context, tree hierarchy.Tree, root string) error {
	return rb.call(ctx, protocol.OpEnsureHierarchy, root, &protocol.HierarchyData{Tree: tree}, nil)
}
