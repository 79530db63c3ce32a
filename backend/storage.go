package backend

import (
	"context"

	"github.com/mwantia/blockdb/data"
)

// StorageBackend is the contract every physical backend implements.
// All paths are normalized absolute paths; the root collection "/" always exists.
// Block and collection paths are disjoint: creating one where the other
// exists fails with data.ErrInvalidPath.
type StorageBackend interface {
	Backend
	LockBackend

	// ReadBlock returns the document stored in the block at path.
	ReadBlock(ctx context.Context, path string) (data.Document, error)
	// WriteBlock replaces the document stored in the block at path.
	WriteBlock(ctx context.Context, path string, doc data.Document) error
	// CreateBlock creates an empty block. An existing block is reused unless
	// opts.Strict is set; missing ancestors are created only with opts.Recursive.
	CreateBlock(ctx context.Context, path string, opts data.BlockOptions) error
	// DeleteBlock removes the block at path.
	DeleteBlock(ctx context.Context, path string) error
	// BlockInfo returns the encryption flag and lock state of the block at path.
	BlockInfo(ctx context.Context, path string) (*data.BlockInfo, error)
	// ListBlocks returns the paths of all blocks directly inside a collection.
	ListBlocks(ctx context.Context, path string) ([]string, error)

	// CreateCollection creates a collection and all missing ancestors.
	// Creating an existing collection succeeds.
	CreateCollection(ctx context.Context, path string) error
	// DeleteCollection removes a collection and everything below it.
	DeleteCollection(ctx context.Context, path string) error
	// ListCollections returns the paths of all collections directly inside a collection.
	ListCollections(ctx context.Context, path string) ([]string, error)

	ContainsBlock(ctx context.Context, path string) (bool, error)
	ContainsCollection(ctx context.Context, path string) (bool, error)
}
