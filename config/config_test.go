package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mwantia/blockdb/backend/memory"
	"github.com/mwantia/blockdb/backend/readonly"
	"github.com/mwantia/blockdb/backend/sqlite"
	"github.com/mwantia/blockdb/data"
	"github.com/mwantia/blockdb/log"
	"github.com/stretchr/testify/require"
)

const sample = `
listen: 0.0.0.0:9000
log_level: debug
rate_limit: 50
rate_burst: 10
lock:
  lease_duration: 1m
  poll_interval: 250ms
  timeout: 5s
backend:
  type: sqlite
  path: /var/lib/blockdb/data.db
  s3:
    bucket: blocks
`

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blockdb.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "0.0.0.0:9000", cfg.Listen)
	require.Equal(t, log.Debug, cfg.Level())
	require.Equal(t, 50.0, cfg.RateLimit)
	require.Equal(t, 10, cfg.RateBurst)
	require.Equal(t, time.Minute, cfg.Lock.LeaseDuration)
	require.Equal(t, 250*time.Millisecond, cfg.Lock.PollInterval)
	require.Equal(t, 5*time.Second, cfg.Lock.Timeout)
	require.Equal(t, BackendSQLite, cfg.Backend.Type)
	require.Equal(t, "blocks", cfg.Backend.S3.Bucket)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blockdb.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))

	t.Setenv("BLOCKDB_LISTEN", "127.0.0.1:1234")
	t.Setenv("BLOCKDB_BACKEND", "Badger")
	t.Setenv("BLOCKDB_RATE_BURST", "3")

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "127.0.0.1:1234", cfg.Listen)
	require.Equal(t, BackendBadger, cfg.Backend.Type)
	require.Equal(t, 3, cfg.RateBurst)
	// Untouched values keep the file contents
	require.Equal(t, "debug", cfg.LogLevel)
}

func TestApplyEnv_InvalidNumber(t *testing.T) {
	cfg := Default()
	err := cfg.applyEnv(func(key string) (string, bool) {
		if key == EnvPrefix+"RATE_LIMIT" {
			return "fast", true
		}
		return "", false
	})
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	cfg.LogLevel = "loud"
	require.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Backend.Type = "floppy"
	require.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Backend.Type = BackendPostgres
	require.Error(t, cfg.Validate())

	cfg.Backend.URL = "postgres://localhost/blockdb"
	require.NoError(t, cfg.Validate())
}

func TestBackendConfig_Build(t *testing.T) {
	bc := &BackendConfig{Type: BackendMemory}
	sb, err := bc.Build(t.Context())
	require.NoError(t, err)
	require.IsType(t, &memory.MemoryBackend{}, sb)

	bc = &BackendConfig{Type: BackendSQLite, Path: filepath.Join(t.TempDir(), "data.db")}
	sb, err = bc.Build(t.Context())
	require.NoError(t, err)
	require.IsType(t, &sqlite.SQLiteBackend{}, sb)
	t.Cleanup(func() {
		sb.Close(t.Context())
	})
	require.Equal(t, "sqlite", sb.Name())
}

func TestBackendConfig_BuildReadOnly(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.applyEnv(func(key string) (string, bool) {
		if key == EnvPrefix+"BACKEND_READ_ONLY" {
			return "true", true
		}
		return "", false
	}))
	require.True(t, cfg.Backend.ReadOnly)

	sb, err := cfg.Backend.Build(t.Context())
	require.NoError(t, err)
	require.IsType(t, &readonly.ReadOnlyBackend{}, sb)
	require.Equal(t, "memory", sb.Name())

	require.ErrorIs(t, sb.CreateCollection(t.Context(), "/users"), data.ErrBackendUnsupported)
}
