package detect

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/prtriage/prtriage/internal/types"
)

// CacheKey identifies a cached representation. Every content-relevant
// input is part of the key: a new push changes HeadSHA and UpdatedAt, a
// config change alters the extraction parameters, and either rolls the
// key so stale entries simply stop being reachable.
type CacheKey struct {
	Owner         string
	Repo          string
	Number        int
	UpdatedAtUnix int64
	HeadSHA       string
	MaxPatchChars int
	VectorSize    int
}

// Key builds the cache key for a pull request under the given config.
func Key(owner, repo string, pr types.PullRequest, cfg Config) CacheKey {
	return CacheKey{
		Owner:         owner,
		Repo:          repo,
		Number:        pr.Number,
		UpdatedAtUnix: pr.UpdatedAt.Unix(),
		HeadSHA:       pr.Head.SHA,
		MaxPatchChars: cfg.MaxPatchCharsPerFile,
		VectorSize:    cfg.VectorSize,
	}
}

// Cache is a bounded, recency-ordered store of representations shared
// across detection runs. Get promotes the entry to most-recently-used;
// Put evicts the least-recently-used entry once the bound is exceeded.
// Safe for concurrent use. Construct one per process and hand it to the
// detector; there is no package-level instance.
type Cache struct {
	entries *lru.Cache[CacheKey, *Representation]
}

// NewCache creates a cache bounded to size entries. Sizes below 1 fall
// back to the default config bound.
func NewCache(size int) *Cache {
	if size < 1 {
		size = DefaultConfig().CacheSize
	}
	entries, err := lru.New[CacheKey, *Representation](size)
	if err != nil {
		// lru.New only fails on a non-positive size, which is
		// excluded above.
		panic(err)
	}
	return &Cache{entries: entries}
}

// Get returns the cached representation for key, promoting it to
// most-recently-used on a hit.
func (c *Cache) Get(key CacheKey) (*Representation, bool) {
	return c.entries.Get(key)
}

// Put stores a representation, displacing any entry under the same key
// and evicting the least-recently-used entry if the bound is exceeded.
func (c *Cache) Put(key CacheKey, rep *Representation) {
	c.entries.Add(key, rep)
}

// Len returns the current entry count.
func (c *Cache) Len() int {
	return c.entries.Len()
}
