package cache

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cuemby/resolvd/pkg/types"
)

const (
	// DefaultTTL is the record lifetime used when none is configured
	DefaultTTL = 300 * time.Second

	// DefaultMaxSize is the record limit used when none is configured
	DefaultMaxSize = 10000

	// softRefreshFraction of the TTL; below this remaining lifetime a
	// record is marked for refresh while still being served
	softRefreshFraction = 0.2

	// highWaterFraction of capacity; above this Update bulk-evicts
	highWaterFraction = 0.9

	// bulkEvictFraction of records removed by a bulk eviction
	bulkEvictFraction = 0.2
)

// Cache is a bounded, TTL-expiring map of hostname to address record.
// All mutating and iterating operations serialize on one mutex; the hit
// and miss counters are atomic and readable without it.
type Cache struct {
	mu      sync.Mutex
	records map[string]*types.Record
	ttl     time.Duration
	maxSize int

	hits   atomic.Uint64
	misses atomic.Uint64
}

// New creates a cache with the given record TTL and size bound.
// Non-positive arguments fall back to the defaults.
func New(ttl time.Duration, maxSize int) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &Cache{
		records: make(map[string]*types.Record),
		ttl:     ttl,
		maxSize: maxSize,
	}
}

// Get returns the cached addresses for hostname. stale is true when the
// record has entered the soft-refresh window: the caller still receives
// the cached addresses but should trigger a background re-query. Expired
// or absent entries count as a miss; expired entries are removed.
func (c *Cache) Get(hostname string) (addresses []string, stale bool, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, found := c.records[hostname]
	if !found {
		c.misses.Add(1)
		return nil, false, false
	}

	now := time.Now()
	if rec.Expired(now) {
		delete(c.records, hostname)
		c.misses.Add(1)
		return nil, false, false
	}

	c.hits.Add(1)

	remaining := rec.ExpireAt.Sub(now)
	if float64(remaining) < float64(c.ttl)*softRefreshFraction {
		rec.Valid = false
	}

	addresses = append([]string(nil), rec.Addresses...)
	return addresses, !rec.Valid, true
}

// Peek returns the cached addresses for hostname without touching the
// hit/miss counters or the soft-refresh marker. Used by the query engine
// to diff against a fresh result.
func (c *Cache) Peek(hostname string) ([]string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, found := c.records[hostname]
	if !found || rec.Expired(time.Now()) {
		return nil, false
	}
	return append([]string(nil), rec.Addresses...), true
}

// Update inserts or replaces the record for hostname. Expired entries are
// purged first; if the cache is still full the single earliest-expiring
// record is evicted. After the insert, crossing the high-water mark
// triggers a bulk eviction of the earliest-expiring records. Update
// never fails.
func (c *Cache) Update(hostname string, addresses []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	c.purgeExpiredLocked(now)

	if len(c.records) >= c.maxSize {
		if _, exists := c.records[hostname]; !exists {
			c.evictEarliestLocked()
		}
	}

	c.records[hostname] = &types.Record{
		Hostname:  hostname,
		Addresses: append([]string(nil), addresses...),
		ExpireAt:  now.Add(c.ttl),
		Valid:     true,
	}

	if float64(len(c.records)) > float64(c.maxSize)*highWaterFraction {
		c.bulkEvictLocked()
	}
}

// Put inserts a record preserving its expiry time and validity, used when
// re-materializing a persisted cache. Expired records are ignored.
func (c *Cache) Put(rec types.Record) {
	now := time.Now()
	if rec.Expired(now) {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.purgeExpiredLocked(now)
	if len(c.records) >= c.maxSize {
		if _, exists := c.records[rec.Hostname]; !exists {
			c.evictEarliestLocked()
		}
	}

	stored := rec
	stored.Addresses = append([]string(nil), rec.Addresses...)
	c.records[rec.Hostname] = &stored
}

// Remove deletes the record for hostname, if present.
func (c *Cache) Remove(hostname string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.records, hostname)
}

// Clear removes every record and resets the hit/miss counters.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = make(map[string]*types.Record)
	c.hits.Store(0)
	c.misses.Store(0)
}

// ForEach calls visitor for every record under the cache lock. The
// visitor must not call back into the cache.
func (c *Cache) ForEach(visitor func(hostname string, rec types.Record)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for hostname, rec := range c.records {
		visitor(hostname, *rec)
	}
}

// Snapshot returns a copy of every unexpired record, for persistence.
func (c *Cache) Snapshot() []types.Record {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	out := make([]types.Record, 0, len(c.records))
	for _, rec := range c.records {
		if rec.Expired(now) {
			continue
		}
		copied := *rec
		copied.Addresses = append([]string(nil), rec.Addresses...)
		out = append(out, copied)
	}
	return out
}

// Size returns the current number of records.
func (c *Cache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.records)
}

// Capacity returns the configured size bound.
func (c *Cache) Capacity() int {
	return c.maxSize
}

// TTL returns the configured record lifetime.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Hits returns the cumulative hit count.
func (c *Cache) Hits() uint64 {
	return c.hits.Load()
}

// Misses returns the cumulative miss count.
func (c *Cache) Misses() uint64 {
	return c.misses.Load()
}

// HitRate returns hits / (hits + misses), or 0 when no lookups happened.
func (c *Cache) HitRate() float64 {
	hits := c.hits.Load()
	total := hits + c.misses.Load()
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}

// purgeExpiredLocked drops expired records and records whose refresh
// marker was set; marked records are served by Get until a mutating
// operation runs.
func (c *Cache) purgeExpiredLocked(now time.Time) {
	for hostname, rec := range c.records {
		if rec.Expired(now) || !rec.Valid {
			delete(c.records, hostname)
		}
	}
}

func (c *Cache) evictEarliestLocked() {
	var earliest string
	var earliestAt time.Time
	first := true
	for hostname, rec := range c.records {
		if first || rec.ExpireAt.Before(earliestAt) {
			earliest = hostname
			earliestAt = rec.ExpireAt
			first = false
		}
	}
	if !first {
		delete(c.records, earliest)
	}
}

func (c *Cache) bulkEvictLocked() {
	type entry struct {
		hostname string
		expireAt time.Time
	}
	entries := make([]entry, 0, len(c.records))
	for hostname, rec := range c.records {
		entries = append(entries, entry{hostname, rec.ExpireAt})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].expireAt.Before(entries[j].expireAt)
	})

	remove := int(float64(len(entries)) * bulkEvictFraction)
	for i := 0; i < remove; i++ {
		delete(c.records, entries[i].hostname)
	}
}
