package sqlite

import (
	"context"
	"database/sql"
	"sync"

	"github.com/mwantia/blockdb/backend"
	"github.com/mwantia/blockdb/data"
	"github.com/mwantia/blockdb/log"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SQLiteBackend stores blocks and collections in two SQLite tables:
//
// blockdb_collections holds one row per collection, the root included.
// blockdb_blocks holds the record envelope of every block.
//
// Structural changes run inside transactions, and claims are a single
// conditional UPDATE on the expiry column.
type SQLiteBackend struct {
	mu sync.RWMutex
	db *sql.DB

	codec *backend.Codec
	log   *log.Logger
}

// NewSQLiteBackend creates a new SQLite-backed storage backend.
// The dbPath can be ":memory:" for an in-memory database or a file path.
func NewSQLiteBackend(dbPath string, opts ...backend.Option) (*SQLiteBackend, error) {
	options, err := backend.NewOptions(opts...)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	// A single connection keeps ':memory:' databases shared and serializes writers
	db.SetMaxOpenConns(1)

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, err
	}

	sb := &SQLiteBackend{
		db:    db,
		codec: options.Codec(),
		log:   options.Logger.Named("sqlite"),
	}

	if err := sb.initSchema(); err != nil {
		db.Close()
		return nil, err
	}

	return sb, nil
}

// initSchema creates the database schema.
func (sb *SQLiteBackend) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS blockdb_collections (
		path TEXT PRIMARY KEY,
		parent_path TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_blockdb_collections_parent ON blockdb_collections(parent_path);

	CREATE TABLE IF NOT EXISTS blockdb_blocks (
		path TEXT PRIMARY KEY,
		parent_path TEXT NOT NULL,
		encrypted INTEGER NOT NULL DEFAULT 0,
		nonce BLOB,
		data BLOB NOT NULL,
		lock_holder TEXT NOT NULL DEFAULT '',
		lock_expires_at INTEGER NOT NULL DEFAULT -1
	);
	CREATE INDEX IF NOT EXISTS idx_blockdb_blocks_parent ON blockdb_blocks(parent_path);
	`

	if _, err := sb.db.Exec(schema); err != nil {
		return err
	}

	_, err := sb.db.Exec("INSERT OR IGNORE INTO blockdb_collections (path, parent_path) VALUES (?, ?)", data.RootPath, data.RootPath)
	return err
}

// Name returns the identifier name defined for this backend
func (*SQLiteBackend) Name() string {
	return "sqlite"
}

// Open is part of the lifecycle behaviour and gets called when opening this backend.
func (sb *SQLiteBackend) Open(ctx context.Context) error {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	// Verify database connection
	return sb.db.PingContext(ctx)
}

// Close is part of the lifecycle behaviour and gets called when closing this backend.
func (sb *SQLiteBackend) Close(ctx context.Context) error {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	return sb.db.Close()
}

// GetCapabilities returns a list of capabilities supported by this backend.
func (sb *SQLiteBackend) GetCapabilities() *backend.BackendCapabilities {
	caps := &backend.BackendCapabilities{
		Capabilities: []backend.BackendCapability{
			backend.CapabilityStorage,
			backend.CapabilityLock,
			backend.CapabilityHierarchy,
			backend.CapabilityTransactions,
			backend.CapabilityPersistent,
		},
	}
	if sb.codec.CanEncrypt() {
		caps.Capabilities = append(caps.Capabilities, backend.CapabilityEncrypt)
	}

	return caps
}

// tx runs fn inside a transaction that is committed when fn succeeds.
func (sb *SQLiteBackend) tx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := sb.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit()
}
