package remote

import (
	"context"

	"github.com/mwantia/blockdb/data"
	"github.com/mwantia/blockdb/protocol"
)

func (rb *RemoteBackend) ReadBlock(ctx context.Context, path string) (data.Document, error) {
	var doc data.Document
	if err := rb.call(ctx, protocol.OpReadFromBlock, path, nil, &doc); err != nil {
		return nil, err
	}

	if doc == nil {
		doc = data.Document{}
	}
	return doc, nil
}

func (rb *RemoteBackend) WriteBlock(ctx context.Context, path string, doc data.Document) error {
	return rb.call(ctx, protocol.OpWriteToBlock, path, &protocol.WriteData{Payload: doc}, nil)
}

func (rb *RemoteBackend) CreateBlock(ctx context.Context, path string, opts data.BlockOptions) error {
	return rb.call(ctx, protocol.OpCreateBlock, path, &protocol.CreateBlockData{Opts: opts}, nil)
}

func (rb *RemoteBackend) DeleteBlock(ctx context.Context, path string) error {
	return rb.call(ctx, protocol.OpDeleteBlock, path, nil, nil)
}

func (rb *RemoteBackend) BlockInfo(ctx context.Context, path string) (*data.BlockInfo, error) {
	var info data.BlockInfo
	if err := rb.call(ctx, protocol.OpBlockInfo, path, nil, &info); err != nil {
		return nil, err
	}

	return &info, nil
}

func (rb *RemoteBackend) ListBlocks(ctx context.Context, path string) ([]string, error) {
	result := make([]string, 0)
	err := rb.call(ctx, protocol.OpGetAllBlocks, path, nil, &result)
	return result, err
}

func (rb *RemoteBackend) CreateCollection(ctx context.Context, path string) error {
	return rb.call(ctx, protocol.OpCreateCollection, path, nil, nil)
}

func (rb *RemoteBackend) DeleteCollection(ctx context.Context, path string) error {
	return rb.call(ctx, protocol.OpDeleteCollection, path, nil, nil)
}

func (rb *RemoteBackend) ListCollections(ctx context.Context, path string) ([]string, error) {
	result := make([]string, 0)
	err := rb.call(ctx, protocol.OpGetAllCollections, path, nil, &result)
	return result, err
}

func (rb *RemoteBackend) ContainsBlock(ctx context.Context, path string) (bool, error) {
	var found bool
	err := rb.call(ctx, protocol.OpIncludesBlock, path, nil, &found)
	return found, err
}

func (rb *RemoteBackend) ContainsCollection(ctx context.Context, path string) (bool, error) {
	var found bool
	err := rb.call(ctx, protocol.OpIncludesCollection, path, nil, &found)
	return found, err
}
