package blockdb

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/mwantia/blockdb/backend"
	"github.com/mwantia/blockdb/data"
	"github.com/mwantia/blockdb/lock"
	"github.com/mwantia/blockdb/log"
)

// DB is an opened backend together with the lock manager guarding its blocks.
// A DB is safe for concurrent use; handles obtained from it are cheap values
// that only carry a path.
type DB struct {
	backend backend.StorageBackend
	locks   *lock.Manager
	log     *log.Logger

	lockOptions lock.Options
	closed      atomic.Bool
}

// Open opens sb and returns a database rooted at its root collection.
func Open(ctx context.Context, sb backend.StorageBackend, opts ...Option) (*DB, error) {
	options := newDefaultOptions()
	for _, opt := range opts {
		if err := opt(options); err != nil {
			return nil, err
		}
	}

	logger := options.Logger
	if logger == nil {
		logger = log.NewLogger("blockdb", options.LogLevel, options.LogFile, options.NoTerminalLog)
	}

	locks, err := lock.NewManager(sb, lock.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	if err := sb.Open(ctx); err != nil {
		return nil, err
	}

	db := &DB{
		backend:     sb,
		locks:       locks,
		log:         logger,
		lockOptions: options.LockOptions,
	}

	logger.Info("Opened backend '%s'", sb.Name())

	if len(options.Hierarchy) > 0 {
		if err := db.Root().EnsureHierarchy(ctx, options.Hierarchy); err != nil {
			if cerr := sb.Close(ctx); cerr != nil {
				logger.Warn("Failed to close backend '%s': %v", sb.Name(), cerr)
				err = errors.Join(err, cerr)
			}
			return nil, err
		}
	}

	return db, nil
}

// Backend returns the storage backend the database was opened with.
func (db *DB) Backend() backend.StorageBackend {
	return db.backend
}

func (db *DB) Root() *Collection {
	return db.Collection(data.RootPath)
}

// Collection returns a handle for the collection at path without touching storage.
func (db *DB) Collection(path string) *Collection {
	return &Collection{
		db:   db,
		path: data.Normalize(path),
	}
}

// Block returns a handle for the block at path without touching storage.
func (db *DB) Block(path string) *Block {
	return &Block{
		db:   db,
		path: data.Normalize(path),
	}
}

// Close closes the backend. Handles used afterwards fail with data.ErrClosed.
func (db *DB) Close(ctx context.Context) error {
	if !db.closed.CompareAndSwap(false, true) {
		return data.ErrClosed
	}

	db.log.Info("Closing backend '%s'", db.backend.Name())
	return db.backend.Close(ctx)
}

func (db *DB) checkOpen() error {
	if db.closed.Load() {
		return data.ErrClosed
	}

	return nil
}
