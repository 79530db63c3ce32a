package main

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/mwantia/blockdb"
	"github.com/mwantia/blockdb/log"
)

// hierarchyWatcher ensures the hierarchy file again whenever it changes.
type hierarchyWatcher struct {
	path    string
	root    *blockdb.Collection
	log     *log.Logger
	watcher *fsnotify.Watcher
}

func newHierarchyWatcher(path string, root *blockdb.Collection, logger *log.Logger) (*hierarchyWatcher, error) {
	abs, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	// Editors replace files on save, so the directory is watched instead of the file.
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return nil, err
	}

	return &hierarchyWatcher{
		path:    abs,
		root:    root,
		log:     logger.Named("watcher"),
		watcher: watcher,
	}, nil
}

func (hw *hierarchyWatcher) Run(ctx context.Context) error {
	defer hw.watcher.Close()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-hw.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != hw.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			hw.reload(ctx)

		case err, ok := <-hw.watcher.Errors:
			if !ok {
				return nil
			}
			hw.log.Warn("Error watching '%s': %v", hw.path, err)
		}
	}
}

func (hw *hierarchyWatcher) reload(ctx context.Context) {
	tree, err := readHierarchy(hw.path)
	if err != nil {
		hw.log.Error("Failed to read hierarchy: %v", err)
		return
	}

	if err := hw.root.EnsureHierarchy(ctx, tree); err != nil {
		hw.log.Error("Failed to ensure hierarchy: %v", err)
		return
	}

	hw.log.Info("Ensured hierarchy from '%s'", hw.path)
}
