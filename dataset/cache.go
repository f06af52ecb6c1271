package dataset

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru"
)

// LoaderFunc produces sample idx on demand
type LoaderFunc func(idx int) (Sample, error)

// CachedStore is a store whose samples are produced lazily by a loader and
// kept in a bounded LRU cache.
type CachedStore struct {
	mu     sync.Mutex
	n      int
	load   LoaderFunc
	cache  *lru.Cache
	hits   int64
	misses int64
}

// NewCachedStore creates a store of n samples backed by load, caching at
// most cacheSize of them.
func NewCachedStore(n int, cacheSize int, load LoaderFunc) (*CachedStore, error) {
	if n < 0 {
		return nil, fmt.Errorf("number of samples cannot be negative")
	}
	if load == nil {
		return nil, fmt.Errorf("loader cannot be nil")
	}

	cache, err := lru.New(cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create sample cache: %v", err)
	}

	return &CachedStore{
		n:     n,
		load:  load,
		cache: cache,
	}, nil
}

// Len returns the number of samples
func (cs *CachedStore) Len() int {
	return cs.n
}

// Get returns sample idx, loading it on a cache miss
func (cs *CachedStore) Get(idx int) (Sample, error) {
	if idx < 0 || idx >= cs.n {
		return nil, fmt.Errorf("index %d out of range [0, %d)", idx, cs.n)
	}

	cs.mu.Lock()
	defer cs.mu.Unlock()

	if v, ok := cs.cache.Get(idx); ok {
		cs.hits++
		return v.(Sample), nil
	}
	cs.misses++

	s, err := cs.load(idx)
	if err != nil {
		return nil, fmt.Errorf("failed to load sample %d: %v", idx, err)
	}
	cs.cache.Add(idx, s)
	return s, nil
}

// Stats returns cache statistics
func (cs *CachedStore) Stats() CacheStats {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	stats := CacheStats{
		Size:   cs.cache.Len(),
		Hits:   cs.hits,
		Misses: cs.misses,
	}
	if total := cs.hits + cs.misses; total > 0 {
		stats.HitRate = float64(cs.hits) / float64(total) * 100
	}
	return stats
}

// CacheStats holds cache statistics
type CacheStats struct {
	Size    int
	Hits    int64
	Misses  int64
	HitRate float64
}

// String returns a string representation of cache stats
func (s CacheStats) String() string {
	return fmt.Sprintf("Cache: %d items, Hits: %d, Misses: %d, Hit Rate: %.1f%%",
		s.Size, s.Hits, s.Misses, s.HitRate)
}
