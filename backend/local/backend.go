package local

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/mwantia/blockdb/backend"
	"github.com/mwantia/blockdb/log"
)

// LocalBackend maps collections onto directories and blocks onto record
// files below '<root>/data'. Guards and temporary files live in '<root>/state'.
type LocalBackend struct {
	mu   sync.RWMutex
	path string

	codec *backend.Codec
	log   *log.Logger
}

func NewLocalBackend(path string, opts ...backend.Option) (*LocalBackend, error) {
	options, err := backend.NewOptions(opts...)
	if err != nil {
		return nil, err
	}

	return &LocalBackend{
		path:  filepath.Clean(path),
		codec: options.Codec(),
		log:   options.Logger.Named("local"),
	}, nil
}

// Name returns the identifier name defined for this backend
func (*LocalBackend) Name() string {
	return "local"
}

// Open is part of the lifecycle behaviour and gets called when opening this backend.
func (lb *LocalBackend) Open(ctx context.Context) error {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	if err := os.MkdirAll(lb.path, 0755); err != nil {
		return fmt.Errorf("blockdb: unable to create root '%s': %w", lb.path, err)
	}

	// Ensure the root is a directory
	info, err := os.Stat(lb.path)
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return fmt.Errorf("blockdb: permission denied for root '%s': %w", lb.path, err)
		}
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("blockdb: root '%s' is not a directory", lb.path)
	}

	for _, dir := range []string{dataDir, stateDir} {
		if err := os.MkdirAll(filepath.Join(lb.path, dir), 0755); err != nil {
			return fmt.Errorf("blockdb: unable to create '%s' below root '%s': %w", dir, lb.path, err)
		}
	}

	lb.log.Debug("Using root directory '%s'", lb.path)
	return nil
}

// Close is part of the lifecycle behaviour and gets called when closing this backend.
func (lb *LocalBackend) Close(ctx context.Context) error {
	// The underlying filesystem persists independently
	return nil
}

// GetCapabilities returns a list of capabilities supported by this backend.
func (lb *LocalBackend) GetCapabilities() *backend.BackendCapabilities {
	caps := &backend.BackendCapabilities{
		Capabilities: []backend.BackendCapability{
			backend.CapabilityStorage,
			backend.CapabilityLock,
			backend.CapabilityPersistent,
		},
	}
	if lb.codec.CanEncrypt() {
		caps.Capabilities = append(caps.Capabilities, backend.CapabilityEncrypt)
	}

	return caps
}
