// Package cache implements the query result cache: a capacity-bounded,
// TTL-bounded memo keyed by a fingerprint of the normalized question and
// the resolved table set.
//
// The cache is split into shards addressed by a murmur3 hash of the
// fingerprint. Lookups and stores for fingerprints in different shards
// never contend on the same lock.
package cache

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spaolacci/murmur3"
	"go.uber.org/zap"

	"github.com/quickcommerce/deals-engine/pkg/models"
)

const shardCount = 16 // power of two, see shardFor

// Fingerprint derives the cache key for a question and its resolved table
// set: a stable hash over the lowercased, trimmed question text and the
// sorted table names. Two different phrasings that resolve to the same
// tables produce different fingerprints; this is a documented boundary,
// not a semantic cache.
func Fingerprint(question string, tables []string) string {
	sorted := make([]string, len(tables))
	copy(sorted, tables)
	sort.Strings(sorted)

	h := sha256.New()
	h.Write([]byte(strings.ToLower(strings.TrimSpace(question))))
	h.Write([]byte{0})
	for _, t := range sorted {
		h.Write([]byte(t))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Entry is one cached result. Owned by the cache; mutated only under the
// owning shard's lock.
type Entry struct {
	Fingerprint  string
	Result       *models.QueryResult
	GeneratedSQL string
	TablesUsed   []string
	CreatedAt    time.Time
	LastAccessed time.Time
	ExpiresAt    time.Time
	HitCount     int64
}

func (e *Entry) expired(now time.Time) bool {
	return now.After(e.ExpiresAt)
}

// Stats is a point-in-time snapshot of cache behavior.
type Stats struct {
	Size      int     `json:"size"`
	Capacity  int     `json:"capacity"`
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	Evictions int64   `json:"evictions"`
	HitRate   float64 `json:"hit_rate"`
}

type shard struct {
	mu    sync.Mutex
	ll    *list.List // front = most recently used
	items map[string]*list.Element
	cap   int
}

// Cache is the sharded LRU+TTL result cache.
type Cache struct {
	shards [shardCount]*shard
	ttl    time.Duration
	logger *zap.Logger

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64

	stopSweep chan struct{}
	sweepOnce sync.Once
}

// New creates a cache holding at most maxSize entries with the given TTL.
// Capacity is enforced per shard, so the effective bound is maxSize rounded
// up to a multiple of the shard count.
func New(maxSize int, ttl time.Duration, logger *zap.Logger) *Cache {
	perShard := (maxSize + shardCount - 1) / shardCount
	if perShard < 1 {
		perShard = 1
	}

	c := &Cache{
		ttl:       ttl,
		logger:    logger.Named("cache"),
		stopSweep: make(chan struct{}),
	}
	for i := range c.shards {
		c.shards[i] = &shard{
			ll:    list.New(),
			items: make(map[string]*list.Element),
			cap:   perShard,
		}
	}
	return c
}

func shardFor(fingerprint string) uint32 {
	return murmur3.Sum32([]byte(fingerprint)) & (shardCount - 1)
}

// Lookup returns the entry for a fingerprint, or nil on miss. Expired
// entries are removed on the spot and reported as misses. A hit refreshes
// the entry's LRU position and hit count.
func (c *Cache) Lookup(fingerprint string) *Entry {
	s := c.shards[shardFor(fingerprint)]
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.items[fingerprint]
	if !ok {
		c.misses.Add(1)
		return nil
	}

	entry := el.Value.(*Entry)
	if entry.expired(now) {
		s.ll.Remove(el)
		delete(s.items, fingerprint)
		c.misses.Add(1)
		return nil
	}

	entry.HitCount++
	entry.LastAccessed = now
	s.ll.MoveToFront(el)
	c.hits.Add(1)
	return entry
}

// Store inserts or replaces the entry for a fingerprint, evicting the
// shard's least-recently-used entry if the shard is full.
func (c *Cache) Store(fingerprint string, result *models.QueryResult, generatedSQL string, tablesUsed []string) {
	s := c.shards[shardFor(fingerprint)]
	now := time.Now()

	entry := &Entry{
		Fingerprint:  fingerprint,
		Result:       result,
		GeneratedSQL: generatedSQL,
		TablesUsed:   tablesUsed,
		CreatedAt:    now,
		LastAccessed: now,
		ExpiresAt:    now.Add(c.ttl),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if el, ok := s.items[fingerprint]; ok {
		el.Value = entry
		s.ll.MoveToFront(el)
		return
	}

	if s.ll.Len() >= s.cap {
		oldest := s.ll.Back()
		if oldest != nil {
			s.ll.Remove(oldest)
			delete(s.items, oldest.Value.(*Entry).Fingerprint)
			c.evictions.Add(1)
		}
	}

	s.items[fingerprint] = s.ll.PushFront(entry)
}

// Clear drops every entry.
func (c *Cache) Clear() {
	for _, s := range c.shards {
		s.mu.Lock()
		s.ll.Init()
		s.items = make(map[string]*list.Element)
		s.mu.Unlock()
	}
	c.logger.Info("Cache cleared")
}

// Stats returns a snapshot of cache counters.
func (c *Cache) Stats() Stats {
	size := 0
	capacity := 0
	for _, s := range c.shards {
		s.mu.Lock()
		size += s.ll.Len()
		capacity += s.cap
		s.mu.Unlock()
	}

	hits := c.hits.Load()
	misses := c.misses.Load()
	var hitRate float64
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total)
	}

	return Stats{
		Size:      size,
		Capacity:  capacity,
		Hits:      hits,
		Misses:    misses,
		Evictions: c.evictions.Load(),
		HitRate:   hitRate,
	}
}

// AccessedEntry summarizes one cached entry for the top-accessed listing.
type AccessedEntry struct {
	Fingerprint  string    `json:"fingerprint"`
	GeneratedSQL string    `json:"generated_sql"`
	TablesUsed   []string  `json:"tables_used"`
	HitCount     int64     `json:"hit_count"`
	CreatedAt    time.Time `json:"created_at"`
	LastAccessed time.Time `json:"last_accessed"`
}

// TopAccessed returns up to limit entries ordered by hit count.
func (c *Cache) TopAccessed(limit int) []AccessedEntry {
	var all []AccessedEntry
	for _, s := range c.shards {
		s.mu.Lock()
		for el := s.ll.Front(); el != nil; el = el.Next() {
			e := el.Value.(*Entry)
			all = append(all, AccessedEntry{
				Fingerprint:  e.Fingerprint,
				GeneratedSQL: e.GeneratedSQL,
				TablesUsed:   e.TablesUsed,
				HitCount:     e.HitCount,
				CreatedAt:    e.CreatedAt,
				LastAccessed: e.LastAccessed,
			})
		}
		s.mu.Unlock()
	}

	sort.Slice(all, func(i, j int) bool { return all[i].HitCount > all[j].HitCount })
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all
}

// removeExpired eagerly purges expired entries from every shard.
// Lazy purging on lookup is enough for correctness; the sweep only bounds
// memory held by entries nobody asks for again.
func (c *Cache) removeExpired() int {
	now := time.Now()
	removed := 0
	for _, s := range c.shards {
		s.mu.Lock()
		for el := s.ll.Back(); el != nil; {
			prev := el.Prev()
			if e := el.Value.(*Entry); e.expired(now) {
				s.ll.Remove(el)
				delete(s.items, e.Fingerprint)
				removed++
			}
			el = prev
		}
		s.mu.Unlock()
	}
	return removed
}

// StartSweeper launches the periodic expired-entry sweep. Call Close to
// stop it.
func (c *Cache) StartSweeper(every time.Duration) {
	go func() {
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n := c.removeExpired(); n > 0 {
					c.logger.Debug("Swept expired cache entries", zap.Int("removed", n))
				}
			case <-c.stopSweep:
				return
			}
		}
	}()
}

// Close stops the sweeper goroutine if one was started.
func (c *Cache) Close() {
	c.sweepOnce.Do(func() { close(c.stopSweep) })
}
