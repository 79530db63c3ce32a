package blockdb

import (
	"context"

	"github.com/mwantia/blockdb/data"
	"github.com/mwantia/blockdb/hierarchy"
)

// Collection is a handle for an interior node of the namespace.
type Collection struct {
	db   *DB
	path string
}

func (c *Collection) Path() string {
	return c.path
}

// Block resolves rel against this collection.
func (c *Collection) Block(rel string) *Block {
	return c.db.Block(data.Join(c.path, rel))
}

// Collection resolves rel against this collection.
func (c *Collection) Collection(rel string) *Collection {
	return c.db.Collection(data.Join(c.path, rel))
}

// CreateNewBlock creates a block at rel. A nil opts uses data.DefaultBlockOptions.
func (c *Collection) CreateNewBlock(ctx context.Context, rel string, opts *data.BlockOptions) (*Block, error) {
	if err := c.db.checkOpen(); err != nil {
		return nil, err
	}

	options := data.DefaultBlockOptions()
	if opts != nil {
		options = *opts
	}

	block := c.Block(rel)
	if err := c.db.backend.CreateBlock(ctx, block.path, options); err != nil {
		return nil, err
	}

	return block, nil
}

func (c *Collection) CreateNewCollection(ctx context.Context, rel string) (*Collection, error) {
	if err := c.db.checkOpen(); err != nil {
		return nil, err
	}

	collection := c.Collection(rel)
	if err := c.db.backend.CreateCollection(ctx, collection.path); err != nil {
		return nil, err
	}

	return collection, nil
}

func (c *Collection) DeleteBlock(ctx context.Context, rel string) error {
	if err := c.db.checkOpen(); err != nil {
		return err
	}

	return c.db.backend.DeleteBlock(ctx, data.Join(c.path, rel))
}

// DeleteCollection removes the collection at rel with everything below it.
func (c *Collection) DeleteCollection(ctx context.Context, rel string) error {
	if err := c.db.checkOpen(); err != nil {
		return err
	}

	return c.db.backend.DeleteCollection(ctx, data.Join(c.path, rel))
}

// GetAllBlocks returns handles for the blocks directly inside this collection.
func (c *Collection) GetAllBlocks(ctx context.Context) ([]*Block, error) {
	if err := c.db.checkOpen(); err != nil {
		return nil, err
	}

	paths, err := c.db.backend.ListBlocks(ctx, c.path)
	if err != nil {
		return nil, err
	}

	blocks := make([]*Block, 0, len(paths))
	for _, path := range paths {
		blocks = append(blocks, c.db.Block(path))
	}
	return blocks, nil
}

// GetAllCollections returns handles for the collections directly inside this collection.
func (c *Collection) GetAllCollections(ctx context.Context) ([]*Collection, error) {
	if err := c.db.checkOpen(); err != nil {
		return nil, err
	}

	paths, err := c.db.backend.ListCollections(ctx, c.path)
	if err != nil {
		return nil, err
	}

	collections := make([]*Collection, 0, len(paths))
	for _, path := range paths {
		collections = append(collections, c.db.Collection(path))
	}
	return collections, nil
}

func (c *Collection) ContainsBlock(ctx context.Context, rel string) (bool, error) {
	if err := c.db.checkOpen(); err != nil {
		return false, err
	}

	return c.db.backend.ContainsBlock(ctx, data.Join(c.path, rel))
}

func (c *Collection) ContainsCollection(ctx context.Context, rel string) (bool, error) {
	if err := c.db.checkOpen(); err != nil {
		return false, err
	}

	return c.db.backend.ContainsCollection(ctx, data.Join(c.path, rel))
}

// EnsureHierarchy makes tree exist below this collection. The tree is
// validated on every call before anything is created.
func (c *Collection) EnsureHierarchy(ctx context.Context, tree hierarchy.Tree) error {
	if err := c.db.checkOpen(); err != nil {
		return err
	}

	c.db.log.Debug("Ensuring hierarchy of %d node(s) below '%s'", len(tree), c.path)
	return hierarchy.Materialize(ctx, c.db.backend, tree, c.path)
}
