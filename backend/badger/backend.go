package badger

import (
	"context"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/mwantia/blockdb/backend"
	"github.com/mwantia/blockdb/data"
	"github.com/mwantia/blockdb/log"
)

const (
	blockPrefix      = "b:"
	collectionPrefix = "c:"

	// conflictRetries bounds how often a structural transaction is retried
	// after losing against a concurrent writer.
	conflictRetries = 16
)

// BadgerBackend stores the namespace in an embedded Badger database.
// Every operation runs in a serializable transaction; a claim that loses
// against a concurrent transaction is reported as not acquired.
type BadgerBackend struct {
	mu sync.RWMutex
	db *badger.DB

	dir   string
	codec *backend.Codec
	log   *log.Logger
}

// NewBadgerBackend creates a Badger backed storage backend in dir.
// An empty dir keeps the database in memory.
func NewBadgerBackend(dir string, opts ...backend.Option) (*BadgerBackend, error) {
	options, err := backend.NewOptions(opts...)
	if err != nil {
		return nil, err
	}

	return &BadgerBackend{
		dir:   dir,
		codec: options.Codec(),
		log:   options.Logger.Named("badger"),
	}, nil
}

// Name returns the identifier name defined for this backend
func (*BadgerBackend) Name() string {
	return "badger"
}

// Open is part of the lifecycle behaviour and gets called when opening this backend.
func (bb *BadgerBackend) Open(ctx context.Context) error {
	bb.mu.Lock()
	defer bb.mu.Unlock()

	if bb.db != nil {
		return nil
	}

	opts := badger.DefaultOptions(bb.dir).
		WithInMemory(bb.dir == "").
		WithLogger(&logger{log: bb.log})

	db, err := badger.Open(opts)
	if err != nil {
		return fmt.Errorf("blockdb: failed to open badger database: %w", err)
	}

	err = db.Update(func(txn *badger.Txn) error {
		return txn.Set(collectionKey(data.RootPath), nil)
	})
	if err != nil {
		db.Close()
		return err
	}

	bb.db = db
	return nil
}

// Close is part of the lifecycle behaviour and gets called when closing this backend.
func (bb *BadgerBackend) Close(ctx context.Context) error {
	bb.mu.Lock()
	defer bb.mu.Unlock()

	if bb.db == nil {
		return nil
	}

	err := bb.db.Close()
	bb.db = nil
	return err
}

// GetCapabilities returns a list of capabilities supported by this backend.
func (bb *BadgerBackend) GetCapabilities() *backend.BackendCapabilities {
	caps := &backend.BackendCapabilities{
		Capabilities: []backend.BackendCapability{
			backend.CapabilityStorage,
			backend.CapabilityLock,
			backend.CapabilityTransactions,
		},
	}
	if bb.dir != "" {
		caps.Capabilities = append(caps.Capabilities, backend.CapabilityPersistent)
	}
	if bb.codec.CanEncrypt() {
		caps.Capabilities = append(caps.Capabilities, backend.CapabilityEncrypt)
	}

	return caps
}

func blockKey(path string) []byte {
	return []byte(blockPrefix + data.Normalize(path))
}

func collectionKey(path string) []byte {
	return []byte(collectionPrefix + data.Normalize(path))
}

// logger forwards badger's internal messages onto the backend logger.
type logger struct {
	log *log.Logger
}

func (l *logger) Errorf(format string, args ...any) {
	l.log.Error(format, args...)
}

func (l *logger) Warningf(format string, args ...any) {
	l.log.Warn(format, args...)
}

func (l *logger) Infof(format string, args ...any) {
	l.log.Debug(format, args...)
}

func (l *logger) Debugf(format string, args ...any) {
	l.log.Debug(format, args...)
}
