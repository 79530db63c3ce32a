package protocol

import (
	"errors"
	"net/http"

	"github.com/mwantia/blockdb/data"
)

const (
	NameBlockNotFound           = "BLOCK_NOT_FOUND"
	NameCollectionNotFound      = "COLLECTION_NOT_FOUND"
	NameBlockAlreadyExists      = "BLOCK_ALREADY_EXISTS"
	NameParentCollectionMissing = "PARENT_COLLECTION_MISSING"
	NameInvalidPath             = "INVALID_PATH"
	NameHierarchyConflict       = "HIERARCHY_CONFLICT"
	NameInvalidHierarchySpec    = "INVALID_HIERARCHY_SPEC"
	NameLockTimeout             = "LOCK_TIMEOUT"
	NameInvalidPatchOperator    = "INVALID_PATCH_OPERATOR"
	NameBackendUnsupported      = "BACKEND_UNSUPPORTED"
	NameEncryptionKey           = "ENCRYPTION_KEY"
	NameClosed                  = "CLOSED"
	NameBadRequest              = "BAD_REQUEST"
	NameRateLimited             = "RATE_LIMITED"
	NameInternal                = "INTERNAL"
)

type errorClass struct {
	name     string
	sentinel error
	status   int
}

var classes = []errorClass{
	{NameBlockNotFound, data.ErrBlockNotFound, http.StatusNotFound},
	{NameCollectionNotFound, data.ErrCollectionNotFound, http.StatusNotFound},
	{NameBlockAlreadyExists, data.ErrBlockAlreadyExists, http.StatusConflict},
	{NameParentCollectionMissing, data.ErrParentCollectionMissing, http.StatusConflict},
	{NameInvalidPath, data.ErrInvalidPath, http.StatusConflict},
	{NameHierarchyConflict, data.ErrHierarchyConflict, http.StatusConflict},
	{NameInvalidHierarchySpec, data.ErrInvalidHierarchySpec, http.StatusBadRequest},
	{NameLockTimeout, data.ErrLockTimeout, http.StatusRequestTimeout},
	{NameInvalidPatchOperator, data.ErrInvalidPatchOperator, http.StatusBadRequest},
	{NameBackendUnsupported, data.ErrBackendUnsupported, http.StatusBadRequest},
	{NameEncryptionKey, data.ErrEncryptionKey, http.StatusInternalServerError},
	{NameClosed, data.ErrClosed, http.StatusInternalServerError},
}

// Error is the wire form of a failed operation. Known names unwrap to the
// matching data sentinel, so errors.Is keeps working on the client side.
type Error struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

func NewError(name, message string) *Error {
	return &Error{Name: name, Message: message}
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	for _, class := range classes {
		if class.name == e.Name {
			return class.sentinel
		}
	}

	return nil
}

// StatusCode returns the HTTP status a server answers this error with.
func (e *Error) StatusCode() int {
	switch e.Name {
	case NameBadRequest:
		return http.StatusBadRequest
	case NameRateLimited:
		return http.StatusTooManyRequests
	}

	for _, class := range classes {
		if class.name == e.Name {
			return class.status
		}
	}

	return http.StatusInternalServerError
}

// FromError classifies err by the first matching sentinel.
func FromError(err error) *Error {
	var perr *Error
	if errors.As(err, &perr) {
		return perr
	}

	for _, class := range classes {
		if errors.Is(err, class.sentinel) {
			return NewError(class.name, err.Error())
		}
	}

	return NewError(NameInternal, err.Error())
}
