package memory

import (
	"context"
	"sync"

	"github.com/mwantia/blockdb/backend"
	"github.com/mwantia/blockdb/data"
	"github.com/mwantia/blockdb/log"
	"github.com/tidwall/btree"
)

type entry struct {
	collection bool
	record     *backend.Record
}

// MemoryBackend keeps every node in an ordered in-process index.
// All state is lost on Close.
type MemoryBackend struct {
	mu sync.RWMutex

	entries *btree.Map[string, *entry]
	codec   *backend.Codec
	log     *log.Logger
}

func NewMemoryBackend(opts ...backend.Option) (*MemoryBackend, error) {
	options, err := backend.NewOptions(opts...)
	if err != nil {
		return nil, err
	}

	mb := &MemoryBackend{
		entries: btree.NewMap[string, *entry](0),
		codec:   options.Codec(),
		log:     options.Logger.Named("memory"),
	}
	mb.entries.Set(data.RootPath, &entry{collection: true})

	return mb, nil
}

// Name returns the identifier name defined for this backend
func (*MemoryBackend) Name() string {
	return "memory"
}

// Open is part of the lifecycle behaviour and gets called when opening this backend.
func (mb *MemoryBackend) Open(ctx context.Context) error {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	if _, exists := mb.entries.Get(data.RootPath); !exists {
		mb.entries.Set(data.RootPath, &entry{collection: true})
	}

	return nil
}

// Close is part of the lifecycle behaviour and gets called when closing this backend.
func (mb *MemoryBackend) Close(ctx context.Context) error {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	mb.log.Debug("Dropping %d entries", mb.entries.Len())
	mb.entries.Clear()

	return nil
}

// GetCapabilities returns a list of capabilities supported by this backend.
func (mb *MemoryBackend) GetCapabilities() *backend.BackendCapabilities {
	caps := &backend.BackendCapabilities{
		Capabilities: []backend.BackendCapability{
			backend.CapabilityStorage,
			backend.CapabilityLock,
		},
	}
	if mb.codec.CanEncrypt() {
		caps.Capabilities = append(caps.Capabilities, backend.CapabilityEncrypt)
	}

	return caps
}
