package errors

import (
	"time"

	"github.com/mwantia/blockdb/data"
)

func LockTimeout(path string, timeout time.Duration) error {
	return newError(data.ErrLockTimeout, "'%s' after %s", path, timeout)
}

func InvalidPatchOperator(key string, reason string) error {
	return newError(data.ErrInvalidPatchOperator, "'%s' %s", key, reason)
}

func BackendUnsupported(name string, capability string) error {
	return newError(data.ErrBackendUnsupported, "'%s' does not provide '%s'", name, capability)
}
