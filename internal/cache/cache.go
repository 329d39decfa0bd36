// internal/cache/cache.go
package cache

import (
	"container/list"
	"crypto/sha1"
	"encoding/hex"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Cache stores fetched page bodies keyed by URL hash.
//
// Freshness is decided by the caller at read time: an entry is served only
// while its age is at most maxAge.
type Cache interface {
	// Get returns the body stored under key if it was written no more than
	// maxAge ago.
	Get(key string, maxAge time.Duration) ([]byte, bool, error)

	// Set stores body under key, replacing any previous entry.
	Set(key string, body []byte) error

	// Delete removes an entry. Missing keys are not an error.
	Delete(key string) error

	// Clear removes every entry.
	Clear() error

	// Close releases resources held by the cache.
	Close()
}

// KeyFromURL returns the sha1 hex digest used as the cache key for a URL.
func KeyFromURL(rawURL string) string {
	sum := sha1.Sum([]byte(rawURL))
	return hex.EncodeToString(sum[:])
}

type memoryEntry struct {
	key       string
	body      []byte
	writtenAt time.Time
}

// MemoryCache keeps bodies in process memory with LRU eviction bounded by
// total size.
type MemoryCache struct {
	store   map[string]*list.Element
	lruList *list.List
	mu      sync.Mutex
	maxSize int64
	size    int64
	now     func() time.Time
	hits    uint64
	misses  uint64
}

// NewMemoryCache creates an in-memory cache holding at most maxSizeBytes.
func NewMemoryCache(maxSizeBytes int64) *MemoryCache {
	if maxSizeBytes <= 0 {
		maxSizeBytes = 100 * 1024 * 1024
	}
	return &MemoryCache{
		store:   make(map[string]*list.Element),
		lruList: list.New(),
		maxSize: maxSizeBytes,
		now:     time.Now,
	}
}

// SetClock replaces the clock used for entry ages.
func (mc *MemoryCache) SetClock(now func() time.Time) {
	mc.mu.Lock()
	mc.now = now
	mc.mu.Unlock()
}

func (mc *MemoryCache) Get(key string, maxAge time.Duration) ([]byte, bool, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	element, exists := mc.store[key]
	if !exists {
		mc.misses++
		return nil, false, nil
	}

	entry := element.Value.(*memoryEntry)
	if mc.now().Sub(entry.writtenAt) > maxAge {
		mc.misses++
		return nil, false, nil
	}

	mc.lruList.MoveToFront(element)
	mc.hits++
	log.Debug().Str("key", key).Msg("Memory cache hit")
	return entry.body, true, nil
}

func (mc *MemoryCache) Set(key string, body []byte) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	size := int64(len(body))
	if element, exists := mc.store[key]; exists {
		old := element.Value.(*memoryEntry)
		mc.size -= int64(len(old.body))
		element.Value = &memoryEntry{key: key, body: body, writtenAt: mc.now()}
		mc.lruList.MoveToFront(element)
		mc.size += size
		return nil
	}

	for mc.size+size > mc.maxSize && mc.lruList.Len() > 0 {
		mc.evictLRU()
	}

	element := mc.lruList.PushFront(&memoryEntry{key: key, body: body, writtenAt: mc.now()})
	mc.store[key] = element
	mc.size += size

	log.Debug().
		Str("key", key).
		Int64("size_bytes", size).
		Msg("Cached body in memory")
	return nil
}

func (mc *MemoryCache) Delete(key string) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if element, exists := mc.store[key]; exists {
		entry := element.Value.(*memoryEntry)
		mc.lruList.Remove(element)
		delete(mc.store, key)
		mc.size -= int64(len(entry.body))
	}
	return nil
}

func (mc *MemoryCache) Clear() error {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.store = make(map[string]*list.Element)
	mc.lruList = list.New()
	mc.size = 0
	mc.hits = 0
	mc.misses = 0
	return nil
}

func (mc *MemoryCache) Close() {}

// evictLRU drops the least recently used entry. Caller holds the lock.
func (mc *MemoryCache) evictLRU() {
	element := mc.lruList.Back()
	if element == nil {
		return
	}
	entry := element.Value.(*memoryEntry)
	mc.lruList.Remove(element)
	delete(mc.store, entry.key)
	mc.size -= int64(len(entry.body))

	log.Debug().Str("key", entry.key).Msg("Evicted from memory cache (LRU)")
}

// Stats returns entry counts and hit rate.
func (mc *MemoryCache) Stats() map[string]interface{} {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	hitRate := 0.0
	if total := mc.hits + mc.misses; total > 0 {
		hitRate = float64(mc.hits) / float64(total) * 100
	}
	return map[string]interface{}{
		"entries":    mc.lruList.Len(),
		"size_bytes": mc.size,
		"max_size":   mc.maxSize,
		"hits":       mc.hits,
		"misses":     mc.misses,
		"hit_rate":   hitRate,
	}
}
