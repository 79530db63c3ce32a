package config

import (
	"context"
	"fmt"
	"net/http"
	"slices"

	"github.com/mwantia/blockdb/backend"
	"github.com/mwantia/blockdb/backend/badger"
	"github.com/mwantia/blockdb/backend/consul"
	"github.com/mwantia/blockdb/backend/local"
	"github.com/mwantia/blockdb/backend/memory"
	"github.com/mwantia/blockdb/backend/postgres"
	"github.com/mwantia/blockdb/backend/readonly"
	"github.com/mwantia/blockdb/backend/remote"
	"github.com/mwantia/blockdb/backend/s3"
	"github.com/mwantia/blockdb/backend/sqlite"
)

const (
	BackendMemory   = "memory"
	BackendLocal    = "local"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendConsul   = "consul"
	BackendS3       = "s3"
	BackendBadger   = "badger"
	BackendRemote   = "remote"
)

func BackendTypes() []string {
	return []string{
		BackendMemory, BackendLocal, BackendSQLite, BackendPostgres,
		BackendConsul, BackendS3, BackendBadger, BackendRemote,
	}
}

type BackendConfig struct {
	Type string `yaml:"type"`

	// Path is the directory of local and badger, or the database file of sqlite.
	Path string `yaml:"path"`

	// URL is the connection string of postgres, or the server address of remote.
	URL string `yaml:"url"`

	// ReadOnly rejects every write while reads and locked reads keep working.
	ReadOnly bool `yaml:"read_only"`

	Consul consul.ConsulBackendConfig `yaml:"consul"`
	S3     s3.S3BackendConfig         `yaml:"s3"`
}

func (bc *BackendConfig) Validate() error {
	if !slices.Contains(BackendTypes(), bc.Type) {
		return fmt.Errorf("unknown backend type '%s'", bc.Type)
	}

	switch bc.Type {
	case BackendLocal, BackendSQLite:
		if bc.Path == "" {
			return fmt.Errorf("backend '%s' requires a path", bc.Type)
		}
	case BackendPostgres, BackendRemote:
		if bc.URL == "" {
			return fmt.Errorf("backend '%s' requires a url", bc.Type)
		}
	}

	return nil
}

// Build creates the configured storage backend without opening it.
func (bc *BackendConfig) Build(ctx context.Context, opts ...backend.Option) (backend.StorageBackend, error) {
	sb, err := bc.build(ctx, opts...)
	if err != nil {
		return nil, err
	}

	if bc.ReadOnly {
		return readonly.NewReadOnlyBackend(sb), nil
	}

	return sb, nil
}

func (bc *BackendConfig) build(ctx context.Context, opts ...backend.Option) (backend.StorageBackend, error) {
	switch bc.Type {
	case BackendMemory:
		return memory.NewMemoryBackend(opts...)
	case BackendLocal:
		return local.NewLocalBackend(bc.Path, opts...)
	case BackendSQLite:
		return sqlite.NewSQLiteBackend(bc.Path, opts...)
	case BackendPostgres:
		return postgres.NewPostgresBackend(ctx, bc.URL, opts...)
	case BackendConsul:
		return consul.NewConsulBackend(&bc.Consul, opts...)
	case BackendS3:
		return s3.NewS3Backend(&bc.S3, opts...)
	case BackendBadger:
		return badger.NewBadgerBackend(bc.Path, opts...)
	case BackendRemote:
		return remote.NewRemoteBackend(bc.URL, &http.Client{}, opts...)
	}

	return nil, fmt.Errorf("unknown backend type '%s'", bc.Type)
}
