package caching

import (
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"strings"

	"github.com/PlakarLabs/tilediff/compression"
	"github.com/PlakarLabs/tilediff/diffile"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
	"github.com/vmihailenco/msgpack/v5"
)

const locationPrefix = "__location__"

type cachedIndex struct {
	Size    int64          `msgpack:"size"`
	ModTime int64          `msgpack:"mtime"`
	Index   *diffile.Index `msgpack:"index"`
}

// _LocationCache remembers the scanned index of diff files, keyed by
// absolute path. An entry is only served while the file keeps the size
// and modification time it was scanned with.
type _LocationCache struct {
	manager *Manager
	db      *leveldb.DB
}

func newLocationCache(cacheManager *Manager, cacheDir string) (*_LocationCache, error) {
	db, err := leveldb.OpenFile(cacheDir, nil)
	if err != nil {
		return nil, err
	}

	return &_LocationCache{
		manager: cacheManager,
		db:      db,
	}, nil
}

func (c *_LocationCache) Close() error {
	return c.db.Close()
}

func locationKey(pathname string) []byte {
	return []byte(fmt.Sprintf("%s:%s", locationPrefix, pathname))
}

func fileKey(pathname string) (string, os.FileInfo, error) {
	abs, err := filepath.Abs(pathname)
	if err != nil {
		return "", nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", nil, err
	}
	return abs, info, nil
}

func (c *_LocationCache) PutIndex(pathname string, idx *diffile.Index) error {
	abs, info, err := fileKey(pathname)
	if err != nil {
		return err
	}

	serialized, err := msgpack.Marshal(&cachedIndex{Size: info.Size(), ModTime: info.ModTime().UnixNano(), Index: idx})
	if err != nil {
		return err
	}
	compressed, err := compression.Deflate("lz4", serialized)
	if err != nil {
		return err
	}
	return c.db.Put(locationKey(abs), compressed, nil)
}

// GetIndex returns the cached index of pathname. Stale, corrupt or
// undecodable values are reported as a miss.
func (c *_LocationCache) GetIndex(pathname string) (*diffile.Index, bool, error) {
	abs, info, err := fileKey(pathname)
	if err != nil {
		return nil, false, err
	}

	data, err := c.db.Get(locationKey(abs), nil)
	if err != nil {
		if err == leveldb.ErrNotFound {
			return nil, false, nil
		}
		return nil, false, err
	}

	serialized, err := compression.Inflate("lz4", data)
	if err != nil {
		return nil, false, nil
	}
	var cached cachedIndex
	if err := msgpack.Unmarshal(serialized, &cached); err != nil || cached.Index == nil {
		return nil, false, nil
	}
	if cached.Size != info.Size() || cached.ModTime != info.ModTime().UnixNano() {
		return nil, false, nil
	}
	return cached.Index, true, nil
}

func (c *_LocationCache) DelIndex(pathname string) error {
	abs, err := filepath.Abs(pathname)
	if err != nil {
		return err
	}
	return c.db.Delete(locationKey(abs), nil)
}

// ListIndexes yields the paths of every cached diff file.
func (c *_LocationCache) ListIndexes() iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		iter := c.db.NewIterator(util.BytesPrefix([]byte(locationPrefix+":")), nil)
		defer iter.Release()

		for iter.Next() {
			pathname := strings.TrimPrefix(string(iter.Key()), locationPrefix+":")
			if !yield(pathname, nil) {
				return
			}
		}
		if err := iter.Error(); err != nil {
			yield("", err)
		}
	}
}

// Prune drops the entries of diff files that used to live in dir and no
// longer exist, returning how many were removed.
func (c *_LocationCache) Prune(dir string) (int, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return 0, err
	}

	stale := make([]string, 0)
	for pathname, err := range c.ListIndexes() {
		if err != nil {
			return 0, err
		}
		if filepath.Dir(pathname) != abs {
			continue
		}
		if _, err := os.Stat(pathname); os.IsNotExist(err) {
			stale = append(stale, pathname)
		}
	}

	for _, pathname := range stale {
		if err := c.DelIndex(pathname); err != nil {
			return 0, err
		}
	}
	return len(stale), nil
}
