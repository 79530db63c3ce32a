package s3

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/mwantia/blockdb/backend"
	"github.com/mwantia/blockdb/data"
	"github.com/mwantia/blockdb/log"
)

const (
	blockSuffix      = ".block"
	collectionMarker = ".collection"
)

// S3Backend keeps the namespace in a bucket of any S3 compatible object store.
//
// Layout below the configured prefix:
// - '<path>.block' holds the record envelope of a block
// - '<path>/.collection' marks a collection
//
// Claims and writes are conditional PUTs on the record's ETag. The object store
// offers no multi-object transactions, so the block/collection disjointness
// checks are not atomic against concurrent structural changes.
type S3Backend struct {
	mu sync.RWMutex

	client *minio.Client
	config *S3BackendConfig

	codec *backend.Codec
	log   *log.Logger
}

type S3BackendConfig struct {
	Endpoint  string `yaml:"endpoint"`
	Bucket    string `yaml:"bucket"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Region    string `yaml:"region"`
	UseSSL    bool   `yaml:"use_ssl"`

	// Prefix for all object keys (default: none)
	Prefix string `yaml:"prefix"`
}

func NewS3Backend(config *S3BackendConfig, opts ...backend.Option) (*S3Backend, error) {
	options, err := backend.NewOptions(opts...)
	if err != nil {
		return nil, err
	}

	if config == nil || config.Endpoint == "" || config.Bucket == "" {
		return nil, fmt.Errorf("blockdb: s3 backend requires an endpoint and a bucket")
	}

	client, err := minio.New(config.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(config.AccessKey, config.SecretKey, ""),
		Secure: config.UseSSL,
		Region: config.Region,
	})
	if err != nil {
		return nil, err
	}

	config.Prefix = strings.Trim(config.Prefix, "/")

	return &S3Backend{
		client: client,
		config: config,
		codec:  options.Codec(),
		log:    options.Logger.Named("s3"),
	}, nil
}

// Name returns the identifier name defined for this backend
func (*S3Backend) Name() string {
	return "s3"
}

// Open is part of the lifecycle behaviour and gets called when opening this backend.
func (sb *S3Backend) Open(ctx context.Context) error {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	exists, err := sb.client.BucketExists(ctx, sb.config.Bucket)
	if err != nil {
		return err
	}

	if !exists {
		return fmt.Errorf("blockdb: bucket '%s' does not exist", sb.config.Bucket)
	}

	return nil
}

// Close is part of the lifecycle behaviour and gets called when closing this backend.
func (sb *S3Backend) Close(ctx context.Context) error {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	return nil
}

// GetCapabilities returns a list of capabilities supported by this backend.
func (sb *S3Backend) GetCapabilities() *backend.BackendCapabilities {
	caps := &backend.BackendCapabilities{
		Capabilities: []backend.BackendCapability{
			backend.CapabilityStorage,
			backend.CapabilityLock,
			backend.CapabilityPersistent,
		},
	}
	if sb.codec.CanEncrypt() {
		caps.Capabilities = append(caps.Capabilities, backend.CapabilityEncrypt)
	}

	return caps
}

// objectKey maps a namespace path to an object key below the prefix.
func (sb *S3Backend) objectKey(path string) string {
	key := strings.TrimPrefix(data.Normalize(path), "/")
	if sb.config.Prefix == "" {
		return key
	}
	if key == "" {
		return sb.config.Prefix
	}
	return sb.config.Prefix + "/" + key
}

func (sb *S3Backend) blockKey(path string) string {
	return sb.objectKey(path) + blockSuffix
}

// childPrefix returns the key prefix of everything stored below path.
func (sb *S3Backend) childPrefix(path string) string {
	key := sb.objectKey(path)
	if key == "" {
		return ""
	}
	return key + "/"
}

func (sb *S3Backend) collectionKey(path string) string {
	return sb.childPrefix(path) + collectionMarker
}

func isNotFound(err error) bool {
	code := minio.ToErrorResponse(err).Code
	return code == "NoSuchKey" || code == "NotFound"
}

func isPreconditionFailed(err error) bool {
	return minio.ToErrorResponse(err).Code == "PreconditionFailed"
}
