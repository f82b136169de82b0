/*
 * Copyright (c) 2023 Gilles Chehade <gilles@poolp.org>
 *
 * Permission to use, copy, modify, and distribute this software for any
 * purpose with or without fee is hereby granted, provided that the above
 * copyright notice and this permission notice appear in all copies.
 *
 * THE SOFTWARE IS PROVIDED "AS IS" AND THE AUTHOR DISCLAIMS ALL WARRANTIES
 * WITH REGARD TO THIS SOFTWARE INCLUDING ALL IMPLIED WARRANTIES OF
 * MERCHANTABILITY AND FITNESS. IN NO EVENT SHALL THE AUTHOR BE LIABLE FOR
 * ANY SPECIAL, DIRECT, INDIRECT, OR CONSEQUENTIAL DAMAGES OR ANY DAMAGES
 * WHATSOEVER RESULTING FROM LOSS OF USE, DATA OR PROFITS, WHETHER IN AN
 * ACTION OF CONTRACT, NEGLIGENCE OR OTHER TORTIOUS ACTION, ARISING OUT OF
 * OR IN CONNECTION WITH THE USE OR PERFORMANCE OF THIS SOFTWARE.
 */

package s3

import (
	"context"
	"fmt"
	"io"
	"iter"
	"net/url"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/PlakarLabs/tilediff/objects"
	"github.com/PlakarLabs/tilediff/snapshot/importer"
)

type S3Importer struct {
	minioClient *minio.Client
	location    string
	bucket      string
	prefix      string
	identity    string
	matcher     *importer.ChunkMatcher

	muIndex sync.Mutex
	index   map[objects.Coord]string
}

func init() {
	importer.Register("s3", NewS3Importer)
}

// Connect opens a minio client for s3://access:secret@host/bucket/prefix
// locations and returns the bucket and prefix.
func Connect(location string) (*minio.Client, string, string, error) {
	parsed, err := url.Parse(location)
	if err != nil {
		return nil, "", "", err
	}

	endpoint := parsed.Host
	accessKeyID := parsed.User.Username()
	secretAccessKey, _ := parsed.User.Password()
	useSSL := parsed.Query().Get("tls") == "true"

	conn, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKeyID, secretAccessKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, "", "", err
	}

	atoms := strings.SplitN(strings.TrimPrefix(parsed.Path, "/"), "/", 2)
	if atoms[0] == "" {
		return nil, "", "", fmt.Errorf("%s: missing bucket name", location)
	}
	bucket := atoms[0]
	prefix := ""
	if len(atoms) == 2 {
		prefix = strings.Trim(atoms[1], "/")
	}
	return conn, bucket, prefix, nil
}

func NewS3Importer(location string, opts *importer.Options) (importer.Source, error) {
	conn, bucket, prefix, err := Connect(location)
	if err != nil {
		return nil, objects.SourceError(location, err)
	}

	return &S3Importer{
		minioClient: conn,
		location:    location,
		bucket:      bucket,
		prefix:      prefix,
		identity:    opts.Identity,
		matcher:     importer.NewChunkMatcher(opts.Extension, opts.Excludes...),
	}, nil
}

func (p *S3Importer) Identity() string {
	return p.identity
}

func (p *S3Importer) listPrefix() string {
	if p.prefix == "" {
		return ""
	}
	return p.prefix + "/"
}

func (p *S3Importer) Entries() iter.Seq2[objects.Entry, error] {
	return func(yield func(objects.Entry, error) bool) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		for object := range p.minioClient.ListObjects(ctx, p.bucket, minio.ListObjectsOptions{Prefix: p.listPrefix(), Recursive: true}) {
			if object.Err != nil {
				if !yield(objects.Entry{}, objects.SourceError(p.location, object.Err)) {
					return
				}
				continue
			}

			coord, ok := p.matcher.Match(strings.TrimPrefix(object.Key, p.listPrefix()))
			if !ok {
				continue
			}

			data, err := p.get(ctx, object.Key)
			if err != nil {
				if !yield(objects.Entry{}, objects.SourceError(object.Key, err)) {
					return
				}
				continue
			}
			if !yield(objects.NewEntry(coord, data), nil) {
				return
			}
		}
	}
}

func (p *S3Importer) get(ctx context.Context, key string) ([]byte, error) {
	obj, err := p.minioClient.GetObject(ctx, p.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()
	return io.ReadAll(obj)
}

// buildIndex lists the prefix once and records the key of each chunk, so
// lookups accept the same layouts as Entries.
func (p *S3Importer) buildIndex(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	index := make(map[objects.Coord]string)
	for object := range p.minioClient.ListObjects(ctx, p.bucket, minio.ListObjectsOptions{Prefix: p.listPrefix(), Recursive: true}) {
		if object.Err != nil {
			return objects.SourceError(p.location, object.Err)
		}
		coord, ok := p.matcher.Match(strings.TrimPrefix(object.Key, p.listPrefix()))
		if !ok {
			continue
		}
		if previous, exists := index[coord]; exists {
			return objects.NewChunkError(objects.ErrDuplicateChunk, coord, "%s and %s", previous, object.Key)
		}
		index[coord] = object.Key
	}
	p.index = index
	return nil
}

func (p *S3Importer) Lookup(coord objects.Coord) ([]byte, bool, error) {
	p.muIndex.Lock()
	if p.index == nil {
		if err := p.buildIndex(context.Background()); err != nil {
			p.muIndex.Unlock()
			return nil, false, err
		}
	}
	key, exists := p.index[coord]
	p.muIndex.Unlock()
	if !exists {
		return nil, false, nil
	}

	data, err := p.get(context.Background(), key)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, false, nil
		}
		return nil, false, objects.SourceError(key, err)
	}
	return data, true, nil
}

func (p *S3Importer) Close() error {
	return nil
}
