package errors

import "github.com/mwantia/blockdb/data"

func CollectionNotFound(path string) error {
	return newError(data.ErrCollectionNotFound, "'%s'", path)
}

// InvalidPath reports a path that is already occupied by a node of another kind.
func InvalidPath(path string, reason string) error {
	return newError(data.ErrInvalidPath, "'%s' %s", path, reason)
}
