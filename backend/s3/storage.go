package s3

import (
	"bytes"
	"context"
	"io"
	"slices"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/mwantia/blockdb/backend"
	"github.com/mwantia/blockdb/data"
	"github.com/mwantia/blockdb/data/errors"
)

// readRecord returns the block record together with its ETag.
func (sb *S3Backend) readRecord(ctx context.Context, path string) (*backend.Record, string, error) {
	object, err := sb.client.GetObject(ctx, sb.config.Bucket, sb.blockKey(path), minio.GetObjectOptions{})
	if err != nil {
		return nil, "", err
	}
	defer object.Close()

	info, err := object.Stat()
	if err != nil {
		if isNotFound(err) {
			return nil, "", errors.BlockNotFound(path)
		}
		return nil, "", err
	}

	b, err := io.ReadAll(object)
	if err != nil {
		return nil, "", err
	}

	rec, err := backend.UnmarshalRecord(b)
	if err != nil {
		return nil, "", err
	}

	return rec, info.ETag, nil
}

// putRecord writes the record conditionally: an empty etag only creates the
// object, any other etag only replaces that exact version.
// It reports false when the precondition did not hold.
func (sb *S3Backend) putRecord(ctx context.Context, path string, rec *backend.Record, etag string) (bool, error) {
	b, err := backend.MarshalRecord(rec)
	if err != nil {
		return false, err
	}

	opts := minio.PutObjectOptions{
		ContentType: "application/json",
	}
	if etag == "" {
		opts.SetMatchETagExcept("*")
	} else {
		opts.SetMatchETag(etag)
	}

	if _, err := sb.client.PutObject(ctx, sb.config.Bucket, sb.blockKey(path), bytes.NewReader(b), int64(len(b)), opts); err != nil {
		if isPreconditionFailed(err) {
			return false, nil
		}
		return false, err
	}

	return true, nil
}

// modify applies fn to the block record until the conditional write succeeds.
func (sb *S3Backend) modify(ctx context.Context, path string, fn func(rec *backend.Record) (bool, error)) (bool, error) {
	for {
		rec, etag, err := sb.readRecord(ctx, path)
		if err != nil {
			return false, err
		}

		changed, err := fn(rec)
		if err != nil || !changed {
			return false, err
		}

		ok, err := sb.putRecord(ctx, path, rec, etag)
		if err != nil || ok {
			return ok, err
		}

		if err := ctx.Err(); err != nil {
			return false, err
		}
	}
}

func (sb *S3Backend) exists(ctx context.Context, key string) (bool, error) {
	if _, err := sb.client.StatObject(ctx, sb.config.Bucket, key, minio.StatObjectOptions{}); err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, err
	}

	return true, nil
}

func (sb *S3Backend) isBlock(ctx context.Context, path string) (bool, error) {
	if data.IsRoot(path) {
		return false, nil
	}
	return sb.exists(ctx, sb.blockKey(path))
}

func (sb *S3Backend) isCollection(ctx context.Context, path string) (bool, error) {
	if data.IsRoot(path) {
		return true, nil
	}
	return sb.exists(ctx, sb.collectionKey(path))
}

func (sb *S3Backend) putMarker(ctx context.Context, path string) error {
	_, err := sb.client.PutObject(ctx, sb.config.Bucket, sb.collectionKey(path), bytes.NewReader(nil), 0, minio.PutObjectOptions{})
	return err
}

func (sb *S3Backend) missingAncestors(ctx context.Context, path string) ([]string, error) {
	var missing []string
	for _, ancestor := range data.Ancestors(path) {
		block, err := sb.isBlock(ctx, ancestor)
		if err != nil {
			return nil, err
		}
		if block {
			return nil, errors.InvalidPath(path, "has a block as ancestor '"+ancestor+"'")
		}

		collection, err := sb.isCollection(ctx, ancestor)
		if err != nil {
			return nil, err
		}
		if !collection {
			missing = append(missing, ancestor)
		}
	}

	return missing, nil
}

func (sb *S3Backend) ReadBlock(ctx context.Context, path string) (data.Document, error) {
	path = data.Normalize(path)

	rec, _, err := sb.readRecord(ctx, path)
	if err != nil {
		return nil, err
	}

	return sb.codec.Load(rec, path)
}

func (sb *S3Backend) WriteBlock(ctx context.Context, path string, doc data.Document) error {
	path = data.Normalize(path)

	_, err := sb.modify(ctx, path, func(rec *backend.Record) (bool, error) {
		return true, sb.codec.Store(rec, path, doc)
	})
	return err
}

func (sb *S3Backend) CreateBlock(ctx context.Context, path string, opts data.BlockOptions) error {
	path = data.Normalize(path)
	if data.IsRoot(path) {
		return errors.InvalidPath(path, "is the root collection")
	}

	sb.mu.Lock()
	defer sb.mu.Unlock()

	collection, err := sb.isCollection(ctx, path)
	if err != nil {
		return err
	}
	if collection {
		return errors.InvalidPath(path, "is a collection")
	}

	missing, err := sb.missingAncestors(ctx, path)
	if err != nil {
		return err
	}
	if len(missing) > 0 && !opts.Recursive {
		return errors.ParentCollectionMissing(data.Parent(path))
	}

	for _, ancestor := range missing {
		if err := sb.putMarker(ctx, ancestor); err != nil {
			return err
		}
	}

	rec := backend.NewRecord(opts.Encrypted)
	if err := sb.codec.Store(rec, path, data.Document{}); err != nil {
		return err
	}

	created, err := sb.putRecord(ctx, path, rec, "")
	if err != nil {
		return err
	}
	if !created && opts.Strict {
		return errors.BlockAlreadyExists(path)
	}

	return nil
}

func (sb *S3Backend) DeleteBlock(ctx context.Context, path string) error {
	path = data.Normalize(path)

	block, err := sb.isBlock(ctx, path)
	if err != nil {
		return err
	}
	if !block {
		return errors.BlockNotFound(path)
	}

	return sb.client.RemoveObject(ctx, sb.config.Bucket, sb.blockKey(path), minio.RemoveObjectOptions{})
}

func (sb *S3Backend) BlockInfo(ctx context.Context, path string) (*data.BlockInfo, error) {
	path = data.Normalize(path)

	rec, _, err := sb.readRecord(ctx, path)
	if err != nil {
		return nil, err
	}

	return rec.Info(path), nil
}

// list returns the direct children of path. Blocks are '.block' objects,
// collections show up as common prefixes.
func (sb *S3Backend) list(ctx context.Context, path string, collections bool) ([]string, error) {
	collection, err := sb.isCollection(ctx, path)
	if err != nil {
		return nil, err
	}
	if !collection {
		return nil, errors.CollectionNotFound(path)
	}

	prefix := sb.childPrefix(path)
	result := make([]string, 0)

	for object := range sb.client.ListObjects(ctx, sb.config.Bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: false,
	}) {
		if object.Err != nil {
			return nil, object.Err
		}

		name := strings.TrimPrefix(object.Key, prefix)
		switch {
		case collections && strings.HasSuffix(name, "/"):
			result = append(result, data.Join(path, strings.TrimSuffix(name, "/")))
		case !collections && strings.HasSuffix(name, blockSuffix) && !strings.Contains(name, "/"):
			result = append(result, data.Join(path, strings.TrimSuffix(name, blockSuffix)))
		}
	}

	slices.Sort(result)
	return result, nil
}

func (sb *S3Backend) ListBlocks(ctx context.Context, path string) ([]string, error) {
	return sb.list(ctx, data.Normalize(path), false)
}

func (sb *S3Backend) CreateCollection(ctx context.Context, path string) error {
	path = data.Normalize(path)
	if data.IsRoot(path) {
		return nil
	}

	sb.mu.Lock()
	defer sb.mu.Unlock()

	block, err := sb.isBlock(ctx, path)
	if err != nil {
		return err
	}
	if block {
		return errors.InvalidPath(path, "is a block")
	}

	missing, err := sb.missingAncestors(ctx, path)
	if err != nil {
		return err
	}

	for _, p := range append(missing, path) {
		if err := sb.putMarker(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

func (sb *S3Backend) DeleteCollection(ctx context.Context, path string) error {
	path = data.Normalize(path)
	if data.IsRoot(path) {
		return errors.InvalidPath(path, "is the root collection")
	}

	sb.mu.Lock()
	defer sb.mu.Unlock()

	collection, err := sb.isCollection(ctx, path)
	if err != nil {
		return err
	}
	if !collection {
		return errors.CollectionNotFound(path)
	}

	objects := sb.client.ListObjects(ctx, sb.config.Bucket, minio.ListObjectsOptions{
		Prefix:    sb.childPrefix(path),
		Recursive: true,
	})

	var errs data.Errors
	for removeErr := range sb.client.RemoveObjects(ctx, sb.config.Bucket, objects, minio.RemoveObjectsOptions{}) {
		errs.Add(removeErr.Err)
	}

	return errs.Errors()
}

func (sb *S3Backend) ListCollections(ctx context.Context, path string) ([]string, error) {
	return sb.list(ctx, data.Normalize(path), true)
}

func (sb *S3Backend) ContainsBlock(ctx context.Context, path string) (bool, error) {
	return sb.isBlock(ctx, data.Normalize(path))
}

func (sb *S3Backend) ContainsCollection(ctx context.Context, path string) (bool, error) {
	return sb.isCollection(ctx, data.Normalize(path))
}
