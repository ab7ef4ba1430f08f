// Package cache memoizes parse+extract results keyed by a fast hash
// of the content the caller passes in (internal/ingest passes a save's
// decompressed meta text followed by its gamestate text), so a
// debounce firing twice for one
// write (or a campaign folder being rescanned) skips a full
// valtree.Parse + extractor.Extract round-trip when the content is
// unchanged. Grounded on the teacher's internal/core/file_content_store.go
// (xxhash.Sum64 FastHash gate) and internal/cache/metrics_cache.go
// (lock-free sync.Map cache with atomic hit/miss counters and a
// periodic TTL cleanup goroutine).
package cache

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/standardbeagle/clausewitz/internal/extractor"
)

// DefaultTTL mirrors the teacher's DefaultTTL: entries older than this
// are dropped by the periodic cleanup sweep.
const DefaultTTL = 2 * time.Hour

// HashKey computes the cache key for the given content.
func HashKey(content []byte) uint64 {
	return xxhash.Sum64(content)
}

type entry struct {
	snapshot  extractor.Snapshot
	cachedAt  int64 // UnixNano, read/written atomically
	accessCnt int64
}

// Stats is a snapshot of the cache's atomic counters.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Entries   int64
}

// Cache is a lock-free, xxhash-keyed cache of extractor.Snapshot
// results.
type Cache struct {
	entries sync.Map // map[uint64]*entry

	maxEntries int
	ttlNanos   int64

	hits      int64
	misses    int64
	evictions int64
	count     int64

	stopCleanup chan struct{}
	cleanupOnce sync.Once
}

// New creates a Cache holding at most maxEntries results, evicted on
// a TTL-driven background sweep (mirroring the teacher's
// startAutoCleanup). maxEntries <= 0 means unbounded.
func New(maxEntries int) *Cache {
	c := &Cache{
		maxEntries:  maxEntries,
		ttlNanos:    int64(DefaultTTL),
		stopCleanup: make(chan struct{}),
	}
	go c.runCleanup(10 * time.Minute)
	return c
}

// Get returns the cached Snapshot for content's hash, if present and
// not expired.
func (c *Cache) Get(content []byte) (extractor.Snapshot, bool) {
	key := HashKey(content)
	v, ok := c.entries.Load(key)
	if !ok {
		atomic.AddInt64(&c.misses, 1)
		return extractor.Snapshot{}, false
	}
	e := v.(*entry)
	if c.expired(e) {
		c.entries.Delete(key)
		atomic.AddInt64(&c.count, -1)
		atomic.AddInt64(&c.misses, 1)
		return extractor.Snapshot{}, false
	}
	atomic.AddInt64(&e.accessCnt, 1)
	atomic.AddInt64(&c.hits, 1)
	return e.snapshot, true
}

// Put stores snap under content's hash. If the cache is at capacity,
// the insert is skipped and counted as an eviction — the next
// cleanup sweep (or a Get miss on an expired entry) makes room again.
// This is a deliberately approximate capacity bound, same spirit as
// the teacher's MetricsCache: exact LRU eviction over a sync.Map
// would need a second lock-guarded structure, which defeats the
// lock-free read path this cache exists to provide.
func (c *Cache) Put(content []byte, snap extractor.Snapshot) {
	if c.maxEntries > 0 && atomic.LoadInt64(&c.count) >= int64(c.maxEntries) {
		atomic.AddInt64(&c.evictions, 1)
		return
	}
	key := HashKey(content)
	e := &entry{snapshot: snap, cachedAt: time.Now().UnixNano()}
	if _, loaded := c.entries.LoadOrStore(key, e); !loaded {
		atomic.AddInt64(&c.count, 1)
	}
}

func (c *Cache) expired(e *entry) bool {
	return time.Now().UnixNano()-atomic.LoadInt64(&e.cachedAt) > c.ttlNanos
}

func (c *Cache) runCleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.sweep()
		case <-c.stopCleanup:
			return
		}
	}
}

func (c *Cache) sweep() {
	c.entries.Range(func(key, value interface{}) bool {
		e := value.(*entry)
		if c.expired(e) {
			c.entries.Delete(key)
			atomic.AddInt64(&c.count, -1)
			atomic.AddInt64(&c.evictions, 1)
		}
		return true
	})
}

// Stop halts the background cleanup goroutine. Safe to call more than
// once.
func (c *Cache) Stop() {
	c.cleanupOnce.Do(func() { close(c.stopCleanup) })
}

// Stats returns a snapshot of the cache's counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Hits:      atomic.LoadInt64(&c.hits),
		Misses:    atomic.LoadInt64(&c.misses),
		Evictions: atomic.LoadInt64(&c.evictions),
		Entries:   atomic.LoadInt64(&c.count),
	}
}
