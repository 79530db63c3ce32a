package server

import (
	"context"
	"time"

	"github.com/mwantia/blockdb/data"
	"github.com/mwantia/blockdb/protocol"
)

// execute runs a single request against the database and returns its result value.
func (s *Server) execute(ctx context.Context, req *protocol.Request) (any, error) {
	path := data.Normalize(req.Path)
	sb := s.db.Backend()

	switch req.Operation {
	case protocol.OpReadFromBlock:
		return s.db.Block(path).Get(ctx, nil)

	case protocol.OpWriteToBlock:
		var payload protocol.WriteData
		if err := req.Decode(&payload); err != nil {
			return nil, err
		}
		return s.db.Block(path).Set(ctx, payload.Payload, true)

	case protocol.OpCreateBlock:
		payload := protocol.CreateBlockData{Opts: data.DefaultBlockOptions()}
		if err := req.Decode(&payload); err != nil {
			return nil, err
		}
		if _, err := s.db.Root().CreateNewBlock(ctx, path, &payload.Opts); err != nil {
			return nil, err
		}
		return path, nil

	case protocol.OpDeleteBlock:
		return nil, s.db.Root().DeleteBlock(ctx, path)

	case protocol.OpBlockInfo:
		return s.db.Block(path).Info(ctx)

	case protocol.OpGetAllBlocks:
		return sb.ListBlocks(ctx, path)

	case protocol.OpCreateCollection:
		if _, err := s.db.Root().CreateNewCollection(ctx, path); err != nil {
			return nil, err
		}
		return path, nil

	case protocol.OpDeleteCollection:
		return nil, s.db.Root().DeleteCollection(ctx, path)

	case protocol.OpGetAllCollections:
		return sb.ListCollections(ctx, path)

	case protocol.OpIncludesBlock:
		return s.db.Root().ContainsBlock(ctx, path)

	case protocol.OpIncludesCollection:
		return s.db.Root().ContainsCollection(ctx, path)

	case protocol.OpClaimLock:
		var payload protocol.ClaimData
		if err := req.Decode(&payload); err != nil {
			return nil, err
		}
		return sb.ClaimLock(ctx, path, payload.Holder, time.UnixMilli(payload.Now), time.UnixMilli(payload.ExpiresAt))

	case protocol.OpReleaseLock:
		var payload protocol.ReleaseData
		if err := req.Decode(&payload); err != nil {
			return nil, err
		}
		return nil, sb.ReleaseLock(ctx, path, payload.Holder)

	case protocol.OpEnsureHierarchy:
		var payload protocol.HierarchyData
		if err := req.Decode(&payload); err != nil {
			return nil, err
		}
		return nil, s.db.Collection(path).EnsureHierarchy(ctx, payload.Tree)

	case protocol.OpLockAndGet:
		var payload protocol.QueryData
		if err := req.Decode(&payload); err != nil {
			return nil, err
		}
		return s.db.Block(path).LockAndGet(ctx, payload.Query)

	case protocol.OpLockAndSet:
		var payload protocol.SetData
		if err := req.Decode(&payload); err != nil {
			return nil, err
		}
		return s.db.Block(path).LockAndSet(ctx, payload.Query, payload.Opts.Overwrite)

	case protocol.OpLockAndUpdate:
		var payload protocol.QueryData
		if err := req.Decode(&payload); err != nil {
			return nil, err
		}
		return s.db.Block(path).LockAndUpdate(ctx, payload.Query)
	}

	return nil, protocol.NewError(protocol.NameBadRequest, "unknown operation '"+string(req.Operation)+"'")
}
