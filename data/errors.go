package data

import (
	"errors"
	"sync"
)

// Standard errors that backends and the façade surface to callers.
var (
	// Node resolution errors
	ErrBlockNotFound           = errors.New("blockdb: block does not exist")
	ErrCollectionNotFound      = errors.New("blockdb: collection does not exist")
	ErrBlockAlreadyExists      = errors.New("blockdb: block already exists")
	ErrParentCollectionMissing = errors.New("blockdb: parent collection does not exist")
	ErrInvalidPath             = errors.New("blockdb: path collides with a node of the wrong kind")

	// Hierarchy errors
	ErrHierarchyConflict    = errors.New("blockdb: existing node contradicts hierarchy")
	ErrInvalidHierarchySpec = errors.New("blockdb: invalid hierarchy specification")

	// Lock errors
	ErrLockTimeout = errors.New("blockdb: unable to acquire lock: timeout")

	// Query errors
	ErrInvalidPatchOperator = errors.New("blockdb: invalid patch operator")

	// Backend errors
	ErrBackendUnsupported = errors.New("blockdb: backend capability unsupported")
	ErrEncryptionKey      = errors.New("blockdb: invalid or missing encryption key")
	ErrClosed             = errors.New("blockdb: backend already closed")
)

type Errors struct {
	mu     sync.RWMutex
	errors []error
}

func (e *Errors) Add(err error) {
	if err == nil {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.errors = append(e.errors, err)
}

func (e *Errors) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.errors = make([]error, 0)
}

func (e *Errors) Errors() error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if len(e.errors) == 0 {
		return nil
	}

	return errors.Join(e.errors...)
}
