package fetch

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	lru "github.com/hashicorp/golang-lru/v2"
)

// cachedResponse is one cached HTTP response: body plus the validators
// needed for a conditional re-fetch.
type cachedResponse struct {
	Body         []byte
	ETag         string
	LastModified string
}

// responseCache is the fetcher's pluggable cache backend. Both
// implementations below satisfy it identically, so Fetcher never branches
// on which one is active.
type responseCache interface {
	Get(key string) (cachedResponse, bool)
	Put(key string, resp cachedResponse)
}

// memoryCache is the no-cache-dir-configured fallback: an in-process LRU,
// matching original_source's MokaManager in-memory cache role.
type memoryCache struct {
	cache *lru.Cache[string, cachedResponse]
}

func newMemoryCache(size int) (*memoryCache, error) {
	c, err := lru.New[string, cachedResponse](size)
	if err != nil {
		return nil, fmt.Errorf("could not create LRU cache: %w", err)
	}
	return &memoryCache{cache: c}, nil
}

func (m *memoryCache) Get(key string) (cachedResponse, bool) {
	return m.cache.Get(key)
}

func (m *memoryCache) Put(key string, resp cachedResponse) {
	m.cache.Add(key, resp)
}

// diskCache stores one file per cache key plus a JSON metadata sidecar,
// exactly as spec.md §6's cache layout describes: advisory, safe to delete.
type diskCache struct {
	dir string
}

type diskCacheMeta struct {
	ETag         string `json:"etag"`
	LastModified string `json:"last_modified"`
}

func newDiskCache(dir string) (*diskCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("could not create cache directory %q: %w", dir, err)
	}
	return &diskCache{dir: dir}, nil
}

func (d *diskCache) bodyPath(key string) string { return filepath.Join(d.dir, key) }
func (d *diskCache) metaPath(key string) string { return filepath.Join(d.dir, key+".meta.json") }

func (d *diskCache) Get(key string) (cachedResponse, bool) {
	body, err := os.ReadFile(d.bodyPath(key))
	if err != nil {
		return cachedResponse{}, false
	}
	var meta diskCacheMeta
	if raw, err := os.ReadFile(d.metaPath(key)); err == nil {
		_ = json.Unmarshal(raw, &meta)
	}
	return cachedResponse{Body: body, ETag: meta.ETag, LastModified: meta.LastModified}, true
}

func (d *diskCache) Put(key string, resp cachedResponse) {
	_ = os.WriteFile(d.bodyPath(key), resp.Body, 0o644)
	meta, err := json.Marshal(diskCacheMeta{ETag: resp.ETag, LastModified: resp.LastModified})
	if err != nil {
		return
	}
	_ = os.WriteFile(d.metaPath(key), meta, 0o644)
}
