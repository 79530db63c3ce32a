package data

import (
	"path"
	"strings"
)

// RootPath is the path of the root collection.
const RootPath = "/"

// Normalize collapses empty, '.' and '..' segments and guarantees a leading slash.
// Normalize is idempotent and never fails; '..' cannot climb above the root.
func Normalize(raw string) string {
	if raw == "" {
		return RootPath
	}

	return path.Clean("/" + raw)
}

// Join resolves rel against base and returns the normalized result.
func Join(base, rel string) string {
	return Normalize(base + "/" + rel)
}

// Parent returns the immediate ancestor of p. The root is its own parent.
func Parent(p string) string {
	return path.Dir(Normalize(p))
}

// Base returns the last segment of p, or "" for the root.
func Base(p string) string {
	p = Normalize(p)
	if p == RootPath {
		return ""
	}

	return path.Base(p)
}

// IsRoot reports whether p normalizes to the root collection.
func IsRoot(p string) bool {
	return Normalize(p) == RootPath
}

// Ancestors returns every ancestor of p below the root, shallowest first.
// The path itself is not included.
func Ancestors(p string) []string {
	p = Normalize(p)
	if p == RootPath {
		return nil
	}

	segments := strings.Split(strings.TrimPrefix(p, "/"), "/")
	result := make([]string, 0, len(segments)-1)

	current := ""
	for _, segment := range segments[:len(segments)-1] {
		current += "/" + segment
		result = append(result, current)
	}

	return result
}

// IsChild reports whether p is a direct child of parent.
func IsChild(parent, p string) bool {
	parent, p = Normalize(parent), Normalize(p)
	if p == RootPath {
		return false
	}

	return Parent(p) == parent
}

// HasPrefix reports whether p equals prefix or lies somewhere below it.
// Both paths are normalized before comparing.
func HasPrefix(p, prefix string) bool {
	p, prefix = Normalize(p), Normalize(prefix)
	// Root matches everything
	if prefix == RootPath {
		return true
	}

	if p == prefix {
		return true
	}

	return strings.HasPrefix(p, prefix+"/")
}
