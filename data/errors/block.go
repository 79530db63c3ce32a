package errors

import "github.com/mwantia/blockdb/data"

func BlockNotFound(path string) error {
	return newError(data.ErrBlockNotFound, "'%s'", path)
}

func BlockAlreadyExists(path string) error {
	return newError(data.ErrBlockAlreadyExists, "'%s'", path)
}

func ParentCollectionMissing(path string) error {
	return newError(data.ErrParentCollectionMissing, "'%s'", path)
}

func EncryptionKey(cause error, path string) error {
	return withCause(newError(data.ErrEncryptionKey, "block '%s'", path), cause)
}
