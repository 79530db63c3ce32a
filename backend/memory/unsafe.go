package memory

import (
	"strings"

	"github.com/mwantia/blockdb/backend"
	"github.com/mwantia/blockdb/data"
	"github.com/mwantia/blockdb/data/errors"
)

// The helpers in this file expect mb.mu to be held by the caller.

func (mb *MemoryBackend) readRecordUnsafe(path string) (*backend.Record, error) {
	e, exists := mb.entries.Get(path)
	if !exists || e.collection {
		return nil, errors.BlockNotFound(path)
	}

	return e.record, nil
}

// missingAncestorsUnsafe returns the ancestors of path that do not exist yet,
// shallowest first, and fails if any ancestor is a block.
func (mb *MemoryBackend) missingAncestorsUnsafe(path string) ([]string, error) {
	var missing []string
	for _, ancestor := range data.Ancestors(path) {
		e, exists := mb.entries.Get(ancestor)
		if !exists {
			missing = append(missing, ancestor)
			continue
		}
		if !e.collection {
			return nil, errors.InvalidPath(path, "has a block as ancestor '"+ancestor+"'")
		}
	}

	return missing, nil
}

func (mb *MemoryBackend) isCollectionUnsafe(path string) bool {
	e, exists := mb.entries.Get(path)
	return exists && e.collection
}

func (mb *MemoryBackend) listUnsafe(path string, collections bool) ([]string, error) {
	if !mb.isCollectionUnsafe(path) {
		return nil, errors.CollectionNotFound(path)
	}

	result := make([]string, 0)
	mb.descendUnsafe(path, func(key string, e *entry) {
		if data.IsChild(path, key) && e.collection == collections {
			result = append(result, key)
		}
	})

	return result, nil
}

// descendUnsafe visits every node below path in key order, path itself excluded.
func (mb *MemoryBackend) descendUnsafe(path string, fn func(key string, e *entry)) {
	prefix := path + "/"
	if data.IsRoot(path) {
		prefix = path
	}

	mb.entries.Ascend(prefix, func(key string, e *entry) bool {
		if !strings.HasPrefix(key, prefix) {
			return false
		}
		if key != path {
			fn(key, e)
		}
		return true
	})
}
