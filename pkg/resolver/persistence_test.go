package resolver

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"

	"github.com/cuemby/resolvd/pkg/events"
	"github.com/cuemby/resolvd/pkg/metrics"
	"github.com/cuemby/resolvd/pkg/types"
)

// TestSaveAndLoadCache round-trips the cache through the facade
func TestSaveAndLoadCache(t *testing.T) {
	server := startTestServer(t, dns.HandlerFunc(func(w dns.ResponseWriter, r *dns.Msg) {
		answerA(w, r, "192.0.2.1")
	}))
	r, _ := newTestResolver(t, testConfig(server))

	outcome := r.Resolve("persisted.test").Wait()
	assert.Equal(t, types.StatusSuccess, outcome.Status)

	file := filepath.Join(t.TempDir(), "cache.db")
	assert.NoError(t, r.SaveCache(file))

	// A second resolver imports the persisted records.
	em := events.NewManager()
	imported := make(chan types.AddressEvent, 1)
	em.AddCallback("import", func(event types.AddressEvent) { imported <- event })

	r2 := New(WithEventManager(em), WithMetrics(metrics.New()))
	assert.NoError(t, r2.LoadConfig(testConfig(server)))
	t.Cleanup(func() { _ = r2.Close() })

	assert.NoError(t, r2.LoadCache(file))

	addresses, _, ok := r2.GetCache().Get("persisted.test")
	assert.True(t, ok, "persisted record should be a cache hit after load")
	assert.Equal(t, []string{"192.0.2.1"}, addresses)

	select {
	case event := <-imported:
		assert.Equal(t, "persisted.test", event.Hostname)
		assert.Equal(t, "import", event.Source)
		assert.Empty(t, event.OldAddresses)
		assert.Equal(t, []string{"192.0.2.1"}, event.NewAddresses)
	case <-time.After(time.Second):
		t.Fatal("no import event delivered")
	}
}

// TestLoadCacheBeforeConfig fails cleanly
func TestLoadCacheBeforeConfig(t *testing.T) {
	r := New(WithEventManager(events.NewManager()), WithMetrics(metrics.New()))
	assert.ErrorIs(t, r.SaveCache("unused.db"), ErrNotInitialized)
	assert.ErrorIs(t, r.LoadCache("unused.db"), ErrNotInitialized)
}

// TestCloseFlushesPersistentCache verifies shutdown persistence
func TestCloseFlushesPersistentCache(t *testing.T) {
	server := startTestServer(t, dns.HandlerFunc(func(w dns.ResponseWriter, r *dns.Msg) {
		answerA(w, r, "192.0.2.9")
	}))

	file := filepath.Join(t.TempDir(), "cache.db")
	cfg := testConfig(server)
	cfg.Cache.Persistent = true
	cfg.Cache.CacheFile = file

	em := events.NewManager()
	r := New(WithEventManager(em), WithMetrics(metrics.New()))
	assert.NoError(t, r.LoadConfig(cfg))

	outcome := r.Resolve("flushed.test").Wait()
	assert.Equal(t, types.StatusSuccess, outcome.Status)

	assert.NoError(t, r.Close())

	r2 := New(WithEventManager(events.NewManager()), WithMetrics(metrics.New()))
	assert.NoError(t, r2.LoadConfig(cfg))
	t.Cleanup(func() { _ = r2.Close() })

	addresses, ok := r2.GetCache().Peek("flushed.test")
	assert.True(t, ok, "record should survive shutdown and reload")
	assert.Equal(t, []string{"192.0.2.9"}, addresses)
}
