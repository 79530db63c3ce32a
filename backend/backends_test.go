package backend_test

import (
	"context"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mwantia/blockdb"
	"github.com/mwantia/blockdb/backend"
	"github.com/mwantia/blockdb/backend/badger"
	"github.com/mwantia/blockdb/backend/consul"
	"github.com/mwantia/blockdb/backend/local"
	"github.com/mwantia/blockdb/backend/memory"
	"github.com/mwantia/blockdb/backend/postgres"
	"github.com/mwantia/blockdb/backend/remote"
	"github.com/mwantia/blockdb/backend/s3"
	"github.com/mwantia/blockdb/backend/sqlite"
	"github.com/mwantia/blockdb/data"
	"github.com/mwantia/blockdb/extension/encrypt"
	"github.com/mwantia/blockdb/hierarchy"
	"github.com/mwantia/blockdb/lock"
	"github.com/mwantia/blockdb/log"
	"github.com/mwantia/blockdb/server"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

var testLockOptions = lock.Options{
	LeaseDuration: 30 * time.Second,
	PollInterval:  5 * time.Millisecond,
	Timeout:       10 * time.Second,
}

// TestBackendFactory creates a new, unopened backend instance for testing.
type TestBackendFactory func(t *testing.T, opts ...backend.Option) (backend.StorageBackend, error)

// GetTestBackendFactories returns all backend implementations to test.
// External services are only tested when their environment variables are set.
func GetTestBackendFactories() map[string]TestBackendFactory {
	factories := map[string]TestBackendFactory{
		"memory": func(t *testing.T, opts ...backend.Option) (backend.StorageBackend, error) {
			return memory.NewMemoryBackend(opts...)
		},
		"local": func(t *testing.T, opts ...backend.Option) (backend.StorageBackend, error) {
			return local.NewLocalBackend(t.TempDir(), opts...)
		},
		"sqlite": func(t *testing.T, opts ...backend.Option) (backend.StorageBackend, error) {
			return sqlite.NewSQLiteBackend(":memory:", opts...)
		},
		"badger": func(t *testing.T, opts ...backend.Option) (backend.StorageBackend, error) {
			return badger.NewBadgerBackend("", opts...)
		},
		"remote": func(t *testing.T, opts ...backend.Option) (backend.StorageBackend, error) {
			mb, err := memory.NewMemoryBackend(opts...)
			if err != nil {
				return nil, err
			}

			db, err := blockdb.Open(t.Context(), mb,
				blockdb.WithLogger(log.NewDiscardLogger()),
				blockdb.WithLockOptions(testLockOptions))
			if err != nil {
				return nil, err
			}

			srv, err := server.NewServer(db)
			if err != nil {
				return nil, err
			}

			ts := httptest.NewServer(srv.Handler())
			t.Cleanup(ts.Close)

			return remote.NewRemoteBackend(ts.URL, ts.Client())
		},
	}

	if conn := os.Getenv("BLOCKDB_TEST_POSTGRES"); conn != "" {
		factories["postgres"] = func(t *testing.T, opts ...backend.Option) (backend.StorageBackend, error) {
			return postgres.NewPostgresBackend(t.Context(), conn, opts...)
		}
	}

	if addr := os.Getenv("BLOCKDB_TEST_CONSUL"); addr != "" {
		factories["consul"] = func(t *testing.T, opts ...backend.Option) (backend.StorageBackend, error) {
			return consul.NewConsulBackend(&consul.ConsulBackendConfig{
				Address: addr,
				Prefix:  "blockdb-test-" + uuid.NewString(),
			}, opts...)
		}
	}

	if endpoint := os.Getenv("BLOCKDB_TEST_S3_ENDPOINT"); endpoint != "" {
		factories["s3"] = func(t *testing.T, opts ...backend.Option) (backend.StorageBackend, error) {
			return s3.NewS3Backend(&s3.S3BackendConfig{
				Endpoint:  endpoint,
				Bucket:    os.Getenv("BLOCKDB_TEST_S3_BUCKET"),
				AccessKey: os.Getenv("BLOCKDB_TEST_S3_ACCESS_KEY"),
				SecretKey: os.Getenv("BLOCKDB_TEST_S3_SECRET_KEY"),
				Prefix:    "blockdb-test-" + uuid.NewString(),
			}, opts...)
		}
	}

	return factories
}

// openTestDB opens the backend below a database and returns it together with
// a fresh base collection, so shared external services do not collide.
func openTestDB(t *testing.T, factory TestBackendFactory, opts ...backend.Option) (*blockdb.DB, string) {
	t.Helper()

	sb, err := factory(t, opts...)
	require.NoError(t, err, "backend init failed")

	db, err := blockdb.Open(t.Context(), sb,
		blockdb.WithLogger(log.NewDiscardLogger()),
		blockdb.WithLockOptions(testLockOptions))
	require.NoError(t, err, "open failed")

	base := "/test-" + uuid.NewString()[:8]
	require.NoError(t, sb.CreateCollection(t.Context(), base))

	t.Cleanup(func() {
		ctx := context.Background()
		sb.DeleteCollection(ctx, base)
		db.Close(ctx)
	})

	return db, base
}

// countingStore counts every mutating call passed to the wrapped backend.
type countingStore struct {
	backend.StorageBackend
	mutations atomic.Int32
}

func (cs *countingStore) CreateBlock(ctx context.Context, path string, opts data.BlockOptions) error {
	cs.mutations.Add(1)
	return cs.StorageBackend.CreateBlock(ctx, path, opts)
}

func (cs *countingStore) CreateCollection(ctx context.Context, path string) error {
	cs.mutations.Add(1)
	return cs.StorageBackend.CreateCollection(ctx, path)
}

func (cs *countingStore) WriteBlock(ctx context.Context, path string, doc data.Document) error {
	cs.mutations.Add(1)
	return cs.StorageBackend.WriteBlock(ctx, path, doc)
}

func (cs *countingStore) DeleteBlock(ctx context.Context, path string) error {
	cs.mutations.Add(1)
	return cs.StorageBackend.DeleteBlock(ctx, path)
}

func (cs *countingStore) DeleteCollection(ctx context.Context, path string) error {
	cs.mutations.Add(1)
	return cs.StorageBackend.DeleteCollection(ctx, path)
}

// TestAllBackends_BlockLifecycle verifies create, read, write and delete of a single block.
func TestAllBackends_BlockLifecycle(t *testing.T) {
	for name, factory := range GetTestBackendFactories() {
		t.Run(name, func(t *testing.T) {
			ctx := t.Context()
			db, base := openTestDB(t, factory)
			sb := db.Backend()
			path := data.Join(base, "profile")

			require.NoError(t, sb.CreateBlock(ctx, path, data.BlockOptions{Recursive: true}))

			// A fresh block reads as an empty document with a free lock
			doc, err := sb.ReadBlock(ctx, path)
			require.NoError(t, err)
			require.Equal(t, data.Document{}, doc)

			info, err := sb.BlockInfo(ctx, path)
			require.NoError(t, err)
			require.Equal(t, path, info.Path)
			require.False(t, info.Encrypted)
			require.Equal(t, data.LockUnclaimed, info.Lock.ExpiresAt)

			written := data.Document{
				"name": "Dushyant",
				"education": map[string]any{
					"college": "BITS Pilani",
				},
				"tags": []any{"a", 2.0, true, nil},
			}
			require.NoError(t, sb.WriteBlock(ctx, path, written))

			doc, err = sb.ReadBlock(ctx, path)
			require.NoError(t, err)
			require.Equal(t, written, doc)

			found, err := sb.ContainsBlock(ctx, path)
			require.NoError(t, err)
			require.True(t, found)

			found, err = sb.ContainsCollection(ctx, path)
			require.NoError(t, err)
			require.False(t, found)

			require.NoError(t, sb.DeleteBlock(ctx, path))

			_, err = sb.ReadBlock(ctx, path)
			require.ErrorIs(t, err, data.ErrBlockNotFound)
			require.ErrorIs(t, sb.WriteBlock(ctx, path, written), data.ErrBlockNotFound)
			require.ErrorIs(t, sb.DeleteBlock(ctx, path), data.ErrBlockNotFound)

			_, err = sb.BlockInfo(ctx, path)
			require.ErrorIs(t, err, data.ErrBlockNotFound)
		})
	}
}

// TestAllBackends_CreateBlockSemantics verifies the strict, recursive and collision rules of block creation.
func TestAllBackends_CreateBlockSemantics(t *testing.T) {
	for name, factory := range GetTestBackendFactories() {
		t.Run(name, func(t *testing.T) {
			ctx := t.Context()
			db, base := openTestDB(t, factory)
			sb := db.Backend()

			path := data.Join(base, "block")
			require.NoError(t, sb.CreateBlock(ctx, path, data.BlockOptions{}))
			require.NoError(t, sb.WriteBlock(ctx, path, data.Document{"keep": true}))

			// Existing block: strict fails, non-strict reuses it untouched
			require.ErrorIs(t, sb.CreateBlock(ctx, path, data.BlockOptions{Strict: true}), data.ErrBlockAlreadyExists)
			require.NoError(t, sb.CreateBlock(ctx, path, data.BlockOptions{}))

			doc, err := sb.ReadBlock(ctx, path)
			require.NoError(t, err)
			require.Equal(t, data.Document{"keep": true}, doc)

			// Missing parent without recursion creates nothing
			orphan := data.Join(base, "missing/child")
			require.ErrorIs(t, sb.CreateBlock(ctx, orphan, data.BlockOptions{}), data.ErrParentCollectionMissing)

			found, err := sb.ContainsCollection(ctx, data.Join(base, "missing"))
			require.NoError(t, err)
			require.False(t, found)

			found, err = sb.ContainsBlock(ctx, orphan)
			require.NoError(t, err)
			require.False(t, found)

			// Recursive creation makes every ancestor
			deep := data.Join(base, "x/y/z/leaf")
			require.NoError(t, sb.CreateBlock(ctx, deep, data.BlockOptions{Recursive: true}))
			for _, ancestor := range []string{"x", "x/y", "x/y/z"} {
				found, err := sb.ContainsCollection(ctx, data.Join(base, ancestor))
				require.NoError(t, err)
				require.True(t, found, ancestor)
			}

			// Kind collisions
			require.ErrorIs(t, sb.CreateBlock(ctx, data.Join(base, "x/y"), data.BlockOptions{Recursive: true}), data.ErrInvalidPath)
			require.ErrorIs(t, sb.CreateBlock(ctx, data.Join(path, "below"), data.BlockOptions{Recursive: true}), data.ErrInvalidPath)
			require.ErrorIs(t, sb.CreateCollection(ctx, path), data.ErrInvalidPath)
			require.ErrorIs(t, sb.CreateCollection(ctx, data.Join(path, "below")), data.ErrInvalidPath)
		})
	}
}

// TestAllBackends_LargeIntegers verifies integers beyond float64 precision are stored exactly.
func TestAllBackends_LargeIntegers(t *testing.T) {
	for name, factory := range GetTestBackendFactories() {
		t.Run(name, func(t *testing.T) {
			ctx := t.Context()
			db, base := openTestDB(t, factory)
			sb := db.Backend()

			path := data.Join(base, "ids")
			require.NoError(t, sb.CreateBlock(ctx, path, data.BlockOptions{}))

			doc := data.Document{"id": int64(1)<<62 + 1, "n": 2.0}
			require.NoError(t, sb.WriteBlock(ctx, path, doc))

			stored, err := sb.ReadBlock(ctx, path)
			require.NoError(t, err)
			require.Equal(t, doc, stored)
		})
	}
}

// TestAllBackends_LookalikeNames verifies that names resembling storage
// artifacts are ordinary nodes and never interfere with their neighbours.
func TestAllBackends_LookalikeNames(t *testing.T) {
	for name, factory := range GetTestBackendFactories() {
		t.Run(name, func(t *testing.T) {
			ctx := t.Context()
			db, base := openTestDB(t, factory)
			sb := db.Backend()

			for _, collection := range []string{"x.lock", "a.json", "a.block", "x.tmp"} {
				require.NoError(t, sb.CreateCollection(ctx, data.Join(base, collection)))
			}
			for _, block := range []string{"x", "a", ".config"} {
				require.NoError(t, sb.CreateBlock(ctx, data.Join(base, block), data.BlockOptions{Strict: true}))
			}

			x := data.Join(base, "x")
			require.NoError(t, sb.WriteBlock(ctx, x, data.Document{"v": 1.0}))

			now := time.Now()
			claimCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			claimed, err := sb.ClaimLock(claimCtx, x, "a", now, now.Add(time.Minute))
			require.NoError(t, err)
			require.True(t, claimed)
			require.NoError(t, sb.ReleaseLock(claimCtx, x, "a"))

			doc, err := sb.ReadBlock(ctx, data.Join(base, "a"))
			require.NoError(t, err)
			require.Equal(t, data.Document{}, doc)

			blocks, err := sb.ListBlocks(ctx, base)
			require.NoError(t, err)
			require.ElementsMatch(t, []string{
				data.Join(base, ".config"),
				data.Join(base, "a"),
				x,
			}, blocks)

			collections, err := sb.ListCollections(ctx, base)
			require.NoError(t, err)
			require.ElementsMatch(t, []string{
				data.Join(base, "a.block"),
				data.Join(base, "a.json"),
				data.Join(base, "x.lock"),
				data.Join(base, "x.tmp"),
			}, collections)

			// Creating a block over an existing collection is a kind collision
			require.ErrorIs(t, sb.CreateBlock(ctx, data.Join(base, "a.json"), data.BlockOptions{}), data.ErrInvalidPath)
		})
	}
}

// TestAllBackends_Collections verifies listing, idempotent creation and cascading deletes.
func TestAllBackends_Collections(t *testing.T) {
	for name, factory := range GetTestBackendFactories() {
		t.Run(name, func(t *testing.T) {
			ctx := t.Context()
			db, base := openTestDB(t, factory)
			sb := db.Backend()

			users := data.Join(base, "users")
			require.NoError(t, sb.CreateCollection(ctx, users))
			require.NoError(t, sb.CreateCollection(ctx, users))
			require.NoError(t, sb.CreateCollection(ctx, data.Join(users, "admins/root")))

			for _, name := range []string{"alice", "bob", "bob-2"} {
				require.NoError(t, sb.CreateBlock(ctx, data.Join(users, name), data.BlockOptions{}))
			}
			require.NoError(t, sb.CreateBlock(ctx, data.Join(users, "admins/carol"), data.BlockOptions{}))

			blocks, err := sb.ListBlocks(ctx, users)
			require.NoError(t, err)
			require.ElementsMatch(t, []string{
				data.Join(users, "alice"),
				data.Join(users, "bob"),
				data.Join(users, "bob-2"),
			}, blocks)

			collections, err := sb.ListCollections(ctx, users)
			require.NoError(t, err)
			require.Equal(t, []string{data.Join(users, "admins")}, collections)

			collections, err = sb.ListCollections(ctx, base)
			require.NoError(t, err)
			require.Equal(t, []string{users}, collections)

			empty, err := sb.ListBlocks(ctx, data.Join(users, "admins/root"))
			require.NoError(t, err)
			require.Empty(t, empty)

			_, err = sb.ListBlocks(ctx, data.Join(base, "nothing"))
			require.ErrorIs(t, err, data.ErrCollectionNotFound)
			_, err = sb.ListCollections(ctx, data.Join(base, "nothing"))
			require.ErrorIs(t, err, data.ErrCollectionNotFound)

			// The root collection always exists and cannot be removed
			found, err := sb.ContainsCollection(ctx, data.RootPath)
			require.NoError(t, err)
			require.True(t, found)
			require.ErrorIs(t, sb.DeleteCollection(ctx, data.RootPath), data.ErrInvalidPath)

			// Cascade
			require.NoError(t, sb.DeleteCollection(ctx, users))
			for _, path := range []string{"users", "users/admins", "users/admins/root"} {
				found, err := sb.ContainsCollection(ctx, data.Join(base, path))
				require.NoError(t, err)
				require.False(t, found, path)
			}
			for _, path := range []string{"users/alice", "users/admins/carol"} {
				found, err := sb.ContainsBlock(ctx, data.Join(base, path))
				require.NoError(t, err)
				require.False(t, found, path)
			}

			require.ErrorIs(t, sb.DeleteCollection(ctx, users), data.ErrCollectionNotFound)

			collections, err = sb.ListCollections(ctx, base)
			require.NoError(t, err)
			require.Empty(t, collections)
		})
	}
}

// TestAllBackends_ClaimAndRelease verifies the compare-and-set lock contract.
func TestAllBackends_ClaimAndRelease(t *testing.T) {
	for name, factory := range GetTestBackendFactories() {
		t.Run(name, func(t *testing.T) {
			ctx := t.Context()
			db, base := openTestDB(t, factory)
			sb := db.Backend()

			path := data.Join(base, "locked")
			require.NoError(t, sb.CreateBlock(ctx, path, data.BlockOptions{}))

			now := time.Now()
			claimed, err := sb.ClaimLock(ctx, path, "a", now, now.Add(time.Minute))
			require.NoError(t, err)
			require.True(t, claimed)

			claimed, err = sb.ClaimLock(ctx, path, "b", now, now.Add(time.Minute))
			require.NoError(t, err)
			require.False(t, claimed)

			// Releasing as somebody else does nothing
			require.NoError(t, sb.ReleaseLock(ctx, path, "b"))
			info, err := sb.BlockInfo(ctx, path)
			require.NoError(t, err)
			require.Equal(t, "a", info.Lock.Holder)

			require.NoError(t, sb.ReleaseLock(ctx, path, "a"))
			info, err = sb.BlockInfo(ctx, path)
			require.NoError(t, err)
			require.Equal(t, data.LockUnclaimed, info.Lock.ExpiresAt)

			_, err = sb.ClaimLock(ctx, data.Join(base, "missing"), "a", now, now.Add(time.Minute))
			require.ErrorIs(t, err, data.ErrBlockNotFound)
			require.NoError(t, sb.ReleaseLock(ctx, data.Join(base, "missing"), "a"))
		})
	}
}

// TestAllBackends_StaleLockReclaim verifies that an expired lease can be taken over
// and that the previous holder's release does not free the new claim.
func TestAllBackends_StaleLockReclaim(t *testing.T) {
	for name, factory := range GetTestBackendFactories() {
		t.Run(name, func(t *testing.T) {
			ctx := t.Context()
			db, base := openTestDB(t, factory)
			sb := db.Backend()

			path := data.Join(base, "stale")
			require.NoError(t, sb.CreateBlock(ctx, path, data.BlockOptions{}))

			past := time.Now().Add(-time.Hour)
			claimed, err := sb.ClaimLock(ctx, path, "crashed", past, past.Add(time.Second))
			require.NoError(t, err)
			require.True(t, claimed)

			now := time.Now()
			claimed, err = sb.ClaimLock(ctx, path, "fresh", now, now.Add(time.Minute))
			require.NoError(t, err)
			require.True(t, claimed)

			require.NoError(t, sb.ReleaseLock(ctx, path, "crashed"))

			info, err := sb.BlockInfo(ctx, path)
			require.NoError(t, err)
			require.Equal(t, "fresh", info.Lock.Holder)
			require.True(t, info.Lock.IsHeld(time.Now()))
		})
	}
}

// TestAllBackends_LockedSections verifies mutual exclusion of read-modify-write sections.
func TestAllBackends_LockedSections(t *testing.T) {
	for name, factory := range GetTestBackendFactories() {
		t.Run(name, func(t *testing.T) {
			ctx := t.Context()
			db, base := openTestDB(t, factory)

			counter, err := db.Collection(base).CreateNewBlock(ctx, "counter", &data.BlockOptions{})
			require.NoError(t, err)
			_, err = counter.Set(ctx, data.Document{"count": 0.0}, true)
			require.NoError(t, err)

			g, gctx := errgroup.WithContext(ctx)
			for range 2 {
				g.Go(func() error {
					return counter.AcquireLock(gctx, func(ctx context.Context, b *blockdb.Block) error {
						doc, err := b.Get(ctx, nil)
						if err != nil {
							return err
						}

						// Widen the window a lost update would need
						time.Sleep(20 * time.Millisecond)

						_, err = b.Set(ctx, data.Document{"count": doc["count"].(float64) + 1}, false)
						return err
					})
				})
			}
			require.NoError(t, g.Wait())

			doc, err := counter.Get(ctx, nil)
			require.NoError(t, err)
			require.Equal(t, 2.0, doc["count"])

			info, err := counter.Info(ctx)
			require.NoError(t, err)
			require.Equal(t, data.LockUnclaimed, info.Lock.ExpiresAt)
		})
	}
}

// TestAllBackends_LockAndUpdate verifies that concurrent locked patches are all applied.
func TestAllBackends_LockAndUpdate(t *testing.T) {
	for name, factory := range GetTestBackendFactories() {
		t.Run(name, func(t *testing.T) {
			ctx := t.Context()
			db, base := openTestDB(t, factory)

			block, err := db.Collection(base).CreateNewBlock(ctx, "vals", &data.BlockOptions{})
			require.NoError(t, err)

			g, gctx := errgroup.WithContext(ctx)
			for range 3 {
				g.Go(func() error {
					_, err := block.LockAndUpdate(gctx, data.Document{
						"vals": map[string]any{"$push": []any{1.0}},
					})
					return err
				})
			}
			require.NoError(t, g.Wait())

			doc, err := block.LockAndGet(ctx, data.Document{"vals": []any{}})
			require.NoError(t, err)
			require.Equal(t, data.Document{"vals": []any{1.0, 1.0, 1.0}}, doc)

			result, err := block.LockAndSet(ctx, data.Document{"extra": "x"}, false)
			require.NoError(t, err)
			require.Equal(t, "x", result["extra"])
			require.Len(t, result["vals"], 3)

			_, err = block.LockAndUpdate(ctx, data.Document{"vals": map[string]any{"$pop": 1.0}})
			require.ErrorIs(t, err, data.ErrInvalidPatchOperator)

			_, err = db.Block(data.Join(base, "missing")).LockAndGet(ctx, nil)
			require.ErrorIs(t, err, data.ErrBlockNotFound)
		})
	}
}

// TestAllBackends_LockTimeout verifies that a held lock makes acquisition fail after the timeout.
func TestAllBackends_LockTimeout(t *testing.T) {
	for name, factory := range GetTestBackendFactories() {
		t.Run(name, func(t *testing.T) {
			ctx := t.Context()
			db, base := openTestDB(t, factory)
			sb := db.Backend()

			path := data.Join(base, "busy")
			require.NoError(t, sb.CreateBlock(ctx, path, data.BlockOptions{}))

			now := time.Now()
			claimed, err := sb.ClaimLock(ctx, path, "other", now, now.Add(time.Minute))
			require.NoError(t, err)
			require.True(t, claimed)

			manager, err := lock.NewManager(sb)
			require.NoError(t, err)

			_, err = manager.Acquire(ctx, path, lock.Options{
				LeaseDuration: time.Second,
				PollInterval:  10 * time.Millisecond,
				Timeout:       100 * time.Millisecond,
			})
			require.ErrorIs(t, err, data.ErrLockTimeout)

			info, err := sb.BlockInfo(ctx, path)
			require.NoError(t, err)
			require.Equal(t, "other", info.Lock.Holder)
		})
	}
}

// TestAllBackends_Hierarchy verifies materialization, idempotence and conflicts.
func TestAllBackends_Hierarchy(t *testing.T) {
	tree, err := hierarchy.Parse([]byte(`
users:
  - bob: ENCRYPTED_BLOCK
  - settings: BLOCK
    groups: []
config: BLOCK
`))
	require.NoError(t, err)

	for name, factory := range GetTestBackendFactories() {
		t.Run(name, func(t *testing.T) {
			ctx := t.Context()
			db, base := openTestDB(t, factory)
			sb := db.Backend()

			require.NoError(t, hierarchy.Materialize(ctx, sb, tree, base))

			for path, encrypted := range map[string]bool{"users/bob": true, "users/settings": false, "config": false} {
				info, err := sb.BlockInfo(ctx, data.Join(base, path))
				require.NoError(t, err, path)
				require.Equal(t, encrypted, info.Encrypted, path)
			}

			found, err := sb.ContainsCollection(ctx, data.Join(base, "users/groups"))
			require.NoError(t, err)
			require.True(t, found)

			// A second run leaves stored documents alone and mutates nothing
			require.NoError(t, sb.WriteBlock(ctx, data.Join(base, "config"), data.Document{"v": 1.0}))
			require.NoError(t, hierarchy.Materialize(ctx, sb, tree, base))

			counting := &countingStore{StorageBackend: sb}
			require.NoError(t, hierarchy.Materialize(ctx, counting, tree, base))
			require.Zero(t, counting.mutations.Load())

			doc, err := sb.ReadBlock(ctx, data.Join(base, "config"))
			require.NoError(t, err)
			require.Equal(t, data.Document{"v": 1.0}, doc)

			// Encryption flag mismatch
			conflict := hierarchy.Tree{{Name: "config", Node: hierarchy.EncryptedBlock()}}
			require.ErrorIs(t, hierarchy.Materialize(ctx, sb, conflict, base), data.ErrHierarchyConflict)

			// Kind mismatch
			conflict = hierarchy.Tree{{Name: "config", Node: hierarchy.Collection()}}
			require.ErrorIs(t, hierarchy.Materialize(ctx, sb, conflict, base), data.ErrHierarchyConflict)

			conflict = hierarchy.Tree{{Name: "users", Node: hierarchy.Block()}}
			require.ErrorIs(t, hierarchy.Materialize(ctx, sb, conflict, base), data.ErrHierarchyConflict)

			// Invalid specs fail before anything is created
			invalid := hierarchy.Tree{
				{Name: "fresh", Node: hierarchy.Collection()},
				{Name: "bad/name", Node: hierarchy.Block()},
			}
			require.ErrorIs(t, hierarchy.Materialize(ctx, sb, invalid, base), data.ErrInvalidHierarchySpec)

			found, err = sb.ContainsCollection(ctx, data.Join(base, "fresh"))
			require.NoError(t, err)
			require.False(t, found)
		})
	}
}

// TestAllBackends_Encryption verifies that encrypted blocks round-trip when a key is configured.
func TestAllBackends_Encryption(t *testing.T) {
	secret, err := encrypt.GenerateSecretKey()
	require.NoError(t, err)

	for name, factory := range GetTestBackendFactories() {
		t.Run(name, func(t *testing.T) {
			ctx := t.Context()
			db, base := openTestDB(t, factory, backend.WithSecretKey(secret))
			sb := db.Backend()

			sealed := data.Join(base, "sealed")
			plain := data.Join(base, "plain")
			require.NoError(t, sb.CreateBlock(ctx, sealed, data.BlockOptions{Encrypted: true}))
			require.NoError(t, sb.CreateBlock(ctx, plain, data.BlockOptions{Encrypted: false}))

			doc, err := sb.ReadBlock(ctx, sealed)
			require.NoError(t, err)
			require.Equal(t, data.Document{}, doc)

			secretDoc := data.Document{"password": "hunter2", "nested": map[string]any{"pin": 1234.0}}
			require.NoError(t, sb.WriteBlock(ctx, sealed, secretDoc))
			require.NoError(t, sb.WriteBlock(ctx, plain, data.Document{"public": true}))

			doc, err = sb.ReadBlock(ctx, sealed)
			require.NoError(t, err)
			require.Equal(t, secretDoc, doc)

			doc, err = sb.ReadBlock(ctx, plain)
			require.NoError(t, err)
			require.Equal(t, data.Document{"public": true}, doc)

			info, err := sb.BlockInfo(ctx, sealed)
			require.NoError(t, err)
			require.True(t, info.Encrypted)

			// Locking rewrites the envelope and must keep the payload readable
			now := time.Now()
			claimed, err := sb.ClaimLock(ctx, sealed, "a", now, now.Add(time.Minute))
			require.NoError(t, err)
			require.True(t, claimed)
			require.NoError(t, sb.ReleaseLock(ctx, sealed, "a"))

			doc, err = sb.ReadBlock(ctx, sealed)
			require.NoError(t, err)
			require.Equal(t, secretDoc, doc)
		})
	}
}

// TestAllBackends_Capabilities verifies that every backend advertises storage and lock support.
func TestAllBackends_Capabilities(t *testing.T) {
	for name, factory := range GetTestBackendFactories() {
		t.Run(name, func(t *testing.T) {
			sb, err := factory(t)
			require.NoError(t, err)

			require.Equal(t, name, sb.Name())

			caps := sb.GetCapabilities()
			require.True(t, caps.Contains(backend.CapabilityStorage))
			require.True(t, caps.Contains(backend.CapabilityLock))
		})
	}
}
