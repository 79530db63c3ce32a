package errors

import "github.com/mwantia/blockdb/data"

func HierarchyConflict(path string, reason string) error {
	return newError(data.ErrHierarchyConflict, "'%s': %s", path, reason)
}

func InvalidHierarchySpec(path string, reason string) error {
	return newError(data.ErrInvalidHierarchySpec, "at '%s': %s", path, reason)
}
