package readonly

import (
	"context"
	"slices"
	"time"

	"github.com/mwantia/blockdb/backend"
	"github.com/mwantia/blockdb/data"
	"github.com/mwantia/blockdb/data/errors"
)

// ReadOnlyBackend wraps any storage backend to make its namespace read-only.
// Reads and lock claims are passed through to the underlying backend, so
// locked reads still serialize with writers of the same store.
// Every structural or document write fails with data.ErrBackendUnsupported.
type ReadOnlyBackend struct {
	backend backend.StorageBackend
}

// NewReadOnlyBackend creates a new read-only wrapper around the given backend.
func NewReadOnlyBackend(sb backend.StorageBackend) *ReadOnlyBackend {
	return &ReadOnlyBackend{
		backend: sb,
	}
}

// Name returns the identifier name defined for this backend
func (rob *ReadOnlyBackend) Name() string {
	return rob.backend.Name()
}

// Open is part of the lifecycle behaviour and gets called when opening this backend.
func (rob *ReadOnlyBackend) Open(ctx context.Context) error {
	return rob.backend.Open(ctx)
}

// Close is part of the lifecycle behaviour and gets called when closing this backend.
func (rob *ReadOnlyBackend) Close(ctx context.Context) error {
	return rob.backend.Close(ctx)
}

// GetCapabilities returns the wrapped capabilities without transactions or hierarchy support.
func (rob *ReadOnlyBackend) GetCapabilities() *backend.BackendCapabilities {
	caps := rob.backend.GetCapabilities()

	return &backend.BackendCapabilities{
		Capabilities: slices.DeleteFunc(slices.Clone(caps.Capabilities), func(c backend.BackendCapability) bool {
			return c == backend.CapabilityTransactions || c == backend.CapabilityHierarchy
		}),
		MaxObjectSize: caps.MaxObjectSize,
	}
}

func (rob *ReadOnlyBackend) denied(path string) error {
	return errors.BackendUnsupported(rob.backend.Name()+"(read-only)", "write to '"+data.Normalize(path)+"'")
}

func (rob *ReadOnlyBackend) ReadBlock(ctx context.Context, path string) (data.Document, error) {
	return rob.backend.ReadBlock(ctx, path)
}

func (rob *ReadOnlyBackend) WriteBlock(ctx context.Context, path string, doc data.Document) error {
	return rob.denied(path)
}

func (rob *ReadOnlyBackend) CreateBlock(ctx context.Context, path string, opts data.BlockOptions) error {
	return rob.denied(path)
}

func (rob *ReadOnlyBackend) DeleteBlock(ctx context.Context, path string) error {
	return rob.denied(path)
}

func (rob *ReadOnlyBackend) BlockInfo(ctx context.Context, path string) (*data.BlockInfo, error) {
	return rob.backend.BlockInfo(ctx, path)
}

func (rob *ReadOnlyBackend) ListBlocks(ctx context.Context, path string) ([]string, error) {
	return rob.backend.ListBlocks(ctx, path)
}

func (rob *ReadOnlyBackend) CreateCollection(ctx context.Context, path string) error {
	return rob.denied(path)
}

func (rob *ReadOnlyBackend) DeleteCollection(ctx context.Context, path string) error {
	return rob.denied(path)
}

func (rob *ReadOnlyBackend) ListCollections(ctx context.Context, path string) ([]string, error) {
	return rob.backend.ListCollections(ctx, path)
}

func (rob *ReadOnlyBackend) ContainsBlock(ctx context.Context, path string) (bool, error) {
	return rob.backend.ContainsBlock(ctx, path)
}

func (rob *ReadOnlyBackend) ContainsCollection(ctx context.Context, path string) (bool, error) {
	return rob.backend.ContainsCollection(ctx, path)
}

func (rob *ReadOnlyBackend) ClaimLock(ctx context.Context, path string, holder string, now time.Time, expiresAt time.Time) (bool, error) {
	return rob.backend.ClaimLock(ctx, path, holder, now, expiresAt)
}

func (rob *ReadOnlyBackend) ReleaseLock(ctx context.Context, path string, holder string) error {
	return rob.backend.ReleaseLock(ctx, path, holder)
}
