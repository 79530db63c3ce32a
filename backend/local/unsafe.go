package local

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/mwantia/blockdb/backend"
	"github.com/mwantia/blockdb/data"
	dataerrors "github.com/mwantia/blockdb/data/errors"
)

const (
	// Namespace nodes live below dataDir, so no user path can reach stateDir.
	dataDir  = "data"
	stateDir = "state"

	guardSuffix = ".lock"
	tempSuffix  = ".tmp"

	// A guard older than this is left behind by a crashed process.
	staleGuard = 10 * time.Second
	guardRetry = 5 * time.Millisecond
)

// resolvePath maps a namespace path onto its file below the data directory.
func (lb *LocalBackend) resolvePath(path string) string {
	return filepath.Join(lb.path, dataDir, filepath.FromSlash(data.Normalize(path)))
}

// blockFile is the record file of a block. Blocks and collections share one
// name per directory entry, so the filesystem keeps both kinds disjoint.
func (lb *LocalBackend) blockFile(path string) string {
	return lb.resolvePath(path)
}

// guardFile returns the guard of path inside the state directory.
func (lb *LocalBackend) guardFile(path string) string {
	sum := sha256.Sum256([]byte(data.Normalize(path)))
	return filepath.Join(lb.path, stateDir, hex.EncodeToString(sum[:])+guardSuffix)
}

func (lb *LocalBackend) isDir(path string) bool {
	info, err := os.Stat(lb.resolvePath(path))
	return err == nil && info.IsDir()
}

func (lb *LocalBackend) isBlock(path string) bool {
	if data.IsRoot(path) {
		return false
	}

	info, err := os.Stat(lb.blockFile(path))
	return err == nil && info.Mode().IsRegular()
}

// missingAncestors returns the ancestors of path without a directory,
// shallowest first, and fails if any ancestor is a block.
func (lb *LocalBackend) missingAncestors(path string) ([]string, error) {
	var missing []string
	for _, ancestor := range data.Ancestors(path) {
		if lb.isBlock(ancestor) {
			return nil, dataerrors.InvalidPath(path, "has a block as ancestor '"+ancestor+"'")
		}
		if !lb.isDir(ancestor) {
			missing = append(missing, ancestor)
		}
	}

	return missing, nil
}

func (lb *LocalBackend) readRecord(path string) (*backend.Record, error) {
	b, err := os.ReadFile(lb.blockFile(path))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || !lb.isBlock(path) {
			return nil, dataerrors.BlockNotFound(path)
		}
		return nil, err
	}

	return backend.UnmarshalRecord(b)
}

// writeRecord replaces the record file atomically through a rename.
func (lb *LocalBackend) writeRecord(path string, rec *backend.Record) error {
	temp, err := lb.writeTemp(path, rec)
	if err != nil {
		return err
	}

	if err := os.Rename(temp, lb.blockFile(path)); err != nil {
		os.Remove(temp)
		return err
	}
	return nil
}

// createRecord writes the record only if nothing exists at path yet.
// It reports false when another creator of the block was first and fails
// with ErrInvalidPath when the entry is a collection.
func (lb *LocalBackend) createRecord(path string, rec *backend.Record) (bool, error) {
	temp, err := lb.writeTemp(path, rec)
	if err != nil {
		return false, err
	}
	defer os.Remove(temp)

	if err := os.Link(temp, lb.blockFile(path)); err != nil {
		if !errors.Is(err, fs.ErrExist) {
			return false, err
		}
		if !lb.isBlock(path) {
			return false, dataerrors.InvalidPath(path, "is a collection")
		}
		return false, nil
	}
	return true, nil
}

func (lb *LocalBackend) writeTemp(path string, rec *backend.Record) (string, error) {
	b, err := backend.MarshalRecord(rec)
	if err != nil {
		return "", err
	}

	f, err := os.CreateTemp(filepath.Join(lb.path, stateDir), "record-*"+tempSuffix)
	if err != nil {
		return "", err
	}

	if _, err := f.Write(b); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}

	return f.Name(), nil
}

// guard serializes record mutations of a block across processes through an
// exclusively created file in the state directory. The returned func removes it.
func (lb *LocalBackend) guard(ctx context.Context, path string) (func(), error) {
	file := lb.guardFile(path)
	for {
		f, err := os.OpenFile(file, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
		if err == nil {
			f.Close()
			return func() {
				os.Remove(file)
			}, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, err
		}

		info, err := os.Lstat(file)
		if err == nil && info.Mode().IsRegular() && time.Since(info.ModTime()) > staleGuard {
			lb.log.Warn("Breaking stale guard of '%s'", path)
			os.Remove(file)
			continue
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(guardRetry):
		}
	}
}

func (lb *LocalBackend) list(path string, collections bool) ([]string, error) {
	if !lb.isDir(path) {
		return nil, dataerrors.CollectionNotFound(path)
	}

	entries, err := os.ReadDir(lb.resolvePath(path))
	if err != nil {
		return nil, err
	}

	result := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		switch {
		case collections && entry.IsDir():
			result = append(result, data.Join(path, name))
		case !collections && entry.Type().IsRegular():
			result = append(result, data.Join(path, name))
		}
	}

	return result, nil
}
