package s3

import (
	"bytes"
	"context"
	"path"

	"github.com/minio/minio-go/v7"

	"github.com/PlakarLabs/tilediff/objects"
	"github.com/PlakarLabs/tilediff/snapshot/exporter"
	"github.com/PlakarLabs/tilediff/snapshot/importer"
	s3importer "github.com/PlakarLabs/tilediff/snapshot/importer/s3"
)

// S3Exporter uploads under a staging prefix and copies objects into the
// final prefix on commit. S3 has no atomic rename, a commit interrupted
// midway leaves a partial destination.
type S3Exporter struct {
	minioClient   *minio.Client
	bucket        string
	prefix        string
	stagingPrefix string
	matcher       *importer.ChunkMatcher
	keys          []string
}

func init() {
	exporter.Register("s3", NewS3Exporter)
}

func NewS3Exporter(location string, opts *exporter.Options) (exporter.ExporterBackend, error) {
	conn, bucket, prefix, err := s3importer.Connect(location)
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	exists, err := conn.BucketExists(ctx, bucket)
	if err != nil {
		return nil, err
	}
	if !exists {
		if err := conn.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, err
		}
	}

	return &S3Exporter{
		minioClient:   conn,
		bucket:        bucket,
		prefix:        prefix,
		stagingPrefix: exporter.TemporaryName(path.Join(prefix, ".staging")),
		matcher:       importer.NewChunkMatcher(opts.Extension),
	}, nil
}

func (p *S3Exporter) StoreChunk(entry objects.Entry) error {
	key := p.matcher.Pathname(entry.Coord)
	_, err := p.minioClient.PutObject(context.Background(), p.bucket, path.Join(p.stagingPrefix, key),
		bytes.NewReader(entry.Data), int64(len(entry.Data)), minio.PutObjectOptions{})
	if err != nil {
		return err
	}
	p.keys = append(p.keys, key)
	return nil
}

func (p *S3Exporter) Commit() error {
	ctx := context.Background()
	for _, key := range p.keys {
		_, err := p.minioClient.CopyObject(ctx,
			minio.CopyDestOptions{Bucket: p.bucket, Object: path.Join(p.prefix, key)},
			minio.CopySrcOptions{Bucket: p.bucket, Object: path.Join(p.stagingPrefix, key)})
		if err != nil {
			return err
		}
	}
	return p.Abort()
}

// Abort removes the staging objects, best effort.
func (p *S3Exporter) Abort() error {
	ctx := context.Background()
	var firstErr error
	for _, key := range p.keys {
		err := p.minioClient.RemoveObject(ctx, p.bucket, path.Join(p.stagingPrefix, key), minio.RemoveObjectOptions{})
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	p.keys = nil
	return firstErr
}
