package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/cuemby/resolvd/pkg/types"
)

// TestUpdateThenGet verifies an immediate Get returns what Update stored
func TestUpdateThenGet(t *testing.T) {
	c := New(time.Minute, 100)

	addresses := []string{"192.0.2.1", "192.0.2.2"}
	hitsBefore := c.Hits()

	c.Update("example.test", addresses)

	got, stale, ok := c.Get("example.test")
	if !ok {
		t.Fatal("Get() missed a record just inserted")
	}
	if stale {
		t.Error("Get() reported a fresh record as stale")
	}
	if len(got) != 2 || got[0] != "192.0.2.1" || got[1] != "192.0.2.2" {
		t.Errorf("Get() = %v, want %v", got, addresses)
	}
	if c.Hits() != hitsBefore+1 {
		t.Errorf("hits = %d, want %d", c.Hits(), hitsBefore+1)
	}
}

// TestExpiry verifies a record past its TTL is a miss and is removed
func TestExpiry(t *testing.T) {
	c := New(50*time.Millisecond, 100)
	c.Update("example.test", []string{"192.0.2.1"})

	time.Sleep(80 * time.Millisecond)

	missesBefore := c.Misses()
	if _, _, ok := c.Get("example.test"); ok {
		t.Fatal("Get() returned an expired record")
	}
	if c.Misses() != missesBefore+1 {
		t.Errorf("misses = %d, want %d", c.Misses(), missesBefore+1)
	}
	if c.Size() != 0 {
		t.Errorf("expired record not removed, size = %d", c.Size())
	}
}

// TestSoftRefresh verifies the valid flag clears inside the refresh window
// while the cached addresses are still returned
func TestSoftRefresh(t *testing.T) {
	ttl := time.Second
	c := New(ttl, 100)
	c.Update("example.test", []string{"192.0.2.1"})

	// Fresh record: not stale
	if _, stale, ok := c.Get("example.test"); !ok || stale {
		t.Fatalf("fresh record: ok=%v stale=%v", ok, stale)
	}

	// Past 80% of the TTL but not expired
	time.Sleep(850 * time.Millisecond)

	got, stale, ok := c.Get("example.test")
	if !ok {
		t.Fatal("record inside TTL reported as miss")
	}
	if !stale {
		t.Error("record inside refresh window not reported stale")
	}
	if len(got) != 1 || got[0] != "192.0.2.1" {
		t.Errorf("stale Get() = %v, want cached addresses", got)
	}
}

// TestMaxSizeOne verifies the boundary capacity of a single record
func TestMaxSizeOne(t *testing.T) {
	c := New(time.Minute, 1)

	c.Update("a.test", []string{"10.0.0.1"})
	c.Update("b.test", []string{"10.0.0.2"})

	if c.Size() != 1 {
		t.Fatalf("size = %d, want 1", c.Size())
	}
	if _, _, ok := c.Get("b.test"); !ok {
		t.Error("latest insert missing after eviction")
	}
}

// TestSizeNeverExceedsCapacity inserts far past capacity
func TestSizeNeverExceedsCapacity(t *testing.T) {
	c := New(time.Minute, 10)

	for i := 0; i < 100; i++ {
		c.Update(fmt.Sprintf("host-%d.test", i), []string{"10.0.0.1"})
		if c.Size() > c.Capacity() {
			t.Fatalf("size %d exceeded capacity %d", c.Size(), c.Capacity())
		}
	}
}

// TestUpdateExistingAtCapacity verifies replacing a record at capacity
// does not evict a different one
func TestUpdateExistingAtCapacity(t *testing.T) {
	c := New(time.Minute, 2)
	c.Update("a.test", []string{"10.0.0.1"})
	c.Update("b.test", []string{"10.0.0.2"})

	c.Update("a.test", []string{"10.0.0.9"})

	if c.Size() != 2 {
		t.Fatalf("size = %d, want 2", c.Size())
	}
	if _, _, ok := c.Get("b.test"); !ok {
		t.Error("untouched record evicted by an in-place update")
	}
	got, _, _ := c.Get("a.test")
	if len(got) != 1 || got[0] != "10.0.0.9" {
		t.Errorf("updated record = %v, want [10.0.0.9]", got)
	}
}

// TestHitRate tests the hit rate law including the zero denominator
func TestHitRate(t *testing.T) {
	c := New(time.Minute, 100)

	if rate := c.HitRate(); rate != 0 {
		t.Errorf("HitRate() with no lookups = %v, want 0", rate)
	}

	c.Update("a.test", []string{"10.0.0.1"})
	c.Get("a.test")    // hit
	c.Get("b.test")    // miss
	c.Get("a.test")    // hit
	c.Get("c.test")    // miss

	want := 0.5
	if rate := c.HitRate(); rate != want {
		t.Errorf("HitRate() = %v, want %v", rate, want)
	}
}

// TestRemoveAndClear tests removal paths
func TestRemoveAndClear(t *testing.T) {
	c := New(time.Minute, 100)
	c.Update("a.test", []string{"10.0.0.1"})
	c.Update("b.test", []string{"10.0.0.2"})

	c.Remove("a.test")
	if _, _, ok := c.Get("a.test"); ok {
		t.Error("removed record still present")
	}

	c.Clear()
	if c.Size() != 0 {
		t.Errorf("size after Clear() = %d, want 0", c.Size())
	}
	if c.Hits() != 0 || c.Misses() != 0 {
		t.Error("Clear() did not reset counters")
	}
}

// TestPeekDoesNotTouchCounters verifies Peek is invisible to stats
func TestPeekDoesNotTouchCounters(t *testing.T) {
	c := New(time.Minute, 100)
	c.Update("a.test", []string{"10.0.0.1"})

	c.Peek("a.test")
	c.Peek("missing.test")

	if c.Hits() != 0 || c.Misses() != 0 {
		t.Errorf("Peek() touched counters: hits=%d misses=%d", c.Hits(), c.Misses())
	}
}

// TestPut preserves the stored expiry and skips expired records
func TestPut(t *testing.T) {
	c := New(time.Minute, 100)

	expired := types.Record{
		Hostname:  "old.test",
		Addresses: []string{"10.0.0.1"},
		ExpireAt:  time.Now().Add(-time.Minute),
		Valid:     true,
	}
	c.Put(expired)
	if c.Size() != 0 {
		t.Error("Put() inserted an expired record")
	}

	live := types.Record{
		Hostname:  "live.test",
		Addresses: []string{"10.0.0.2"},
		ExpireAt:  time.Now().Add(time.Hour),
		Valid:     true,
	}
	c.Put(live)
	got, _, ok := c.Get("live.test")
	if !ok || got[0] != "10.0.0.2" {
		t.Errorf("Put() record not retrievable: %v ok=%v", got, ok)
	}
}

// TestSnapshotRoundTrip verifies Snapshot captures live records
func TestSnapshotRoundTrip(t *testing.T) {
	c := New(time.Minute, 100)
	c.Update("a.test", []string{"10.0.0.1"})
	c.Update("b.test", []string{"10.0.0.2", "10.0.0.3"})

	snap := c.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("Snapshot() len = %d, want 2", len(snap))
	}
	for _, rec := range snap {
		if !rec.Valid {
			t.Errorf("snapshot record %s not valid", rec.Hostname)
		}
		if rec.ExpireAt.Before(time.Now()) {
			t.Errorf("snapshot record %s already expired", rec.Hostname)
		}
	}
}

// TestForEach visits every record under the lock
func TestForEach(t *testing.T) {
	c := New(time.Minute, 100)
	c.Update("a.test", []string{"10.0.0.1"})
	c.Update("b.test", []string{"10.0.0.2"})

	seen := make(map[string]int)
	c.ForEach(func(hostname string, rec types.Record) {
		seen[hostname] = len(rec.Addresses)
	})

	if len(seen) != 2 || seen["a.test"] != 1 || seen["b.test"] != 1 {
		t.Errorf("ForEach() visited %v", seen)
	}
}

// TestConcurrentAccess hammers the cache from several goroutines
func TestConcurrentAccess(t *testing.T) {
	c := New(time.Minute, 50)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				host := fmt.Sprintf("host-%d.test", i%60)
				switch i % 3 {
				case 0:
					c.Update(host, []string{"10.0.0.1"})
				case 1:
					c.Get(host)
				case 2:
					c.Remove(host)
				}
			}
		}(g)
	}
	wg.Wait()

	if c.Size() > c.Capacity() {
		t.Errorf("size %d exceeded capacity %d under concurrency", c.Size(), c.Capacity())
	}
}
