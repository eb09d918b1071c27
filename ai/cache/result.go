// Package cache provides in-process caching for recommendation serving.
package cache

import (
	"container/list"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"
	"strings"
	"sync"
	"time"
)

// ResultCacheConfig configures a ResultCache.
type ResultCacheConfig struct {
	// MaxEntries is the maximum number of entries per layer.
	MaxEntries int

	// SimilarityThreshold is the minimum cosine similarity between
	// profile vectors for a fallback match (0-1).
	SimilarityThreshold float32

	// TTL is the time-to-live for cache entries.
	TTL time.Duration
}

// DefaultResultCacheConfig returns the default configuration.
func DefaultResultCacheConfig() ResultCacheConfig {
	return ResultCacheConfig{
		MaxEntries:          512,
		SimilarityThreshold: 0.95,
		TTL:                 5 * time.Minute,
	}
}

// ResultCacheStats represents cache statistics.
type ResultCacheStats struct {
	ExactHits   int64
	SimilarHits int64
	Misses      int64
	Size        int
}

type resultEntry[V any] struct {
	key         string
	fingerprint string
	vector      []float32
	value       V
	expiresAt   time.Time
	element     *list.Element
}

// ResultCache caches computed results keyed by a request fingerprint
// plus the profile vector behind it. Lookups try an exact SHA256 key
// first and fall back to the most cosine-similar entry with the same
// fingerprint, so a re-profiled user whose vector drifted a little keeps
// their warm cache. Cached values are shared; treat them as read-only.
type ResultCache[V any] struct {
	cfg ResultCacheConfig

	// Exact layer.
	exact *LRUCache[string, V]

	// Similarity layer.
	mu      sync.RWMutex
	entries map[string]*resultEntry[V]
	order   *list.List

	statsMu sync.Mutex
	stats   ResultCacheStats
}

// NewResultCache creates a result cache, filling zero config fields with
// defaults.
func NewResultCache[V any](cfg ResultCacheConfig) *ResultCache[V] {
	defaults := DefaultResultCacheConfig()
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = defaults.MaxEntries
	}
	if cfg.SimilarityThreshold <= 0 || cfg.SimilarityThreshold > 1 {
		cfg.SimilarityThreshold = defaults.SimilarityThreshold
	}
	if cfg.TTL <= 0 {
		cfg.TTL = defaults.TTL
	}

	return &ResultCache[V]{
		cfg:     cfg,
		exact:   NewLRUCache[string, V](cfg.MaxEntries, cfg.TTL),
		entries: make(map[string]*resultEntry[V]),
		order:   list.New(),
	}
}

// Get retrieves a cached value. The second return reports whether a
// usable entry was found, exactly or by similarity.
func (c *ResultCache[V]) Get(fingerprint string, vector []float32) (V, bool) {
	exactKey := hashKey(fingerprint, vector)

	if value, found := c.exact.Get(exactKey); found {
		c.record(func(s *ResultCacheStats) { s.ExactHits++ })
		return value, true
	}

	if match := c.findSimilar(fingerprint, vector); match != nil {
		c.record(func(s *ResultCacheStats) { s.SimilarHits++ })
		return match.value, true
	}

	c.record(func(s *ResultCacheStats) { s.Misses++ })
	var zero V
	return zero, false
}

// Set stores a value under the fingerprint and vector.
func (c *ResultCache[V]) Set(fingerprint string, vector []float32, value V) {
	exactKey := hashKey(fingerprint, vector)
	c.exact.Set(exactKey, value, c.cfg.TTL)

	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.entries[exactKey]; ok {
		existing.value = value
		existing.expiresAt = time.Now().Add(c.cfg.TTL)
		c.order.MoveToFront(existing.element)
		return
	}

	e := &resultEntry[V]{
		key:         exactKey,
		fingerprint: fingerprint,
		vector:      vector,
		value:       value,
		expiresAt:   time.Now().Add(c.cfg.TTL),
	}
	e.element = c.order.PushFront(e)
	c.entries[exactKey] = e

	for c.order.Len() > c.cfg.MaxEntries {
		c.evictOldest()
	}
}

// InvalidatePrefix drops every entry whose fingerprint starts with the
// prefix and reports how many were removed. Fingerprints lead with the
// user so a user's whole cache can be dropped after a profile change.
func (c *ResultCache[V]) InvalidatePrefix(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := 0
	for key, e := range c.entries {
		if strings.HasPrefix(e.fingerprint, prefix) {
			c.order.Remove(e.element)
			delete(c.entries, key)
			c.exact.Remove(key)
			count++
		}
	}
	return count
}

// Stats returns a snapshot of the cache statistics.
func (c *ResultCache[V]) Stats() ResultCacheStats {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()

	stats := c.stats
	c.mu.RLock()
	stats.Size = c.order.Len()
	c.mu.RUnlock()
	return stats
}

// Clear removes all cache entries and resets the statistics.
func (c *ResultCache[V]) Clear() {
	c.exact.Clear()

	c.mu.Lock()
	c.entries = make(map[string]*resultEntry[V])
	c.order.Init()
	c.mu.Unlock()

	c.statsMu.Lock()
	c.stats = ResultCacheStats{}
	c.statsMu.Unlock()
}

// findSimilar returns the best live entry with the same fingerprint at
// or above the similarity threshold, or nil.
func (c *ResultCache[V]) findSimilar(fingerprint string, vector []float32) *resultEntry[V] {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var best *resultEntry[V]
	var bestSimilarity float32

	now := time.Now()
	for _, e := range c.entries {
		if e.fingerprint != fingerprint || now.After(e.expiresAt) {
			continue
		}
		if sim := cosineSimilarity(vector, e.vector); sim >= c.cfg.SimilarityThreshold && sim > bestSimilarity {
			bestSimilarity = sim
			best = e
		}
	}
	return best
}

// evictOldest removes the least recently used similarity entry. Caller
// must hold the lock.
func (c *ResultCache[V]) evictOldest() {
	elem := c.order.Back()
	if elem == nil {
		return
	}
	e, ok := elem.Value.(*resultEntry[V])
	if !ok {
		return
	}
	c.order.Remove(elem)
	delete(c.entries, e.key)
}

func (c *ResultCache[V]) record(update func(*ResultCacheStats)) {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	update(&c.stats)
}

// hashKey fingerprints a request and its vector.
func hashKey(fingerprint string, vector []float32) string {
	h := sha256.New()
	h.Write([]byte(fingerprint))
	buf := make([]byte, 4)
	for _, v := range vector {
		binary.LittleEndian.PutUint32(buf, math.Float32bits(v))
		h.Write(buf)
	}
	return hex.EncodeToString(h.Sum(nil)[:16])
}

// cosineSimilarity calculates the cosine similarity between two vectors.
func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float32
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (float32(math.Sqrt(float64(normA))) * float32(math.Sqrt(float64(normB))))
}
