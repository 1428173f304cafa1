package resolver

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cuemby/resolvd/pkg/cache"
	"github.com/cuemby/resolvd/pkg/events"
	"github.com/cuemby/resolvd/pkg/log"
	"github.com/cuemby/resolvd/pkg/metrics"
	"github.com/cuemby/resolvd/pkg/persist"
	"github.com/cuemby/resolvd/pkg/transport"
	"github.com/cuemby/resolvd/pkg/types"
)

// ErrConfigInvalid is wrapped by every snapshot rejection.
var ErrConfigInvalid = errors.New("configuration invalid")

// ErrNotInitialized is returned by facade operations that need an
// applied configuration.
var ErrNotInitialized = errors.New("resolver not initialized")

// Resolver is the facade owning the channel, cache, metrics accumulator
// and event manager. It is safe for concurrent use; configuration
// reloads swap the whole snapshot atomically.
type Resolver struct {
	mu      sync.RWMutex
	config  *types.Config
	channel *transport.Channel
	cache   *cache.Cache
	sem     chan struct{}

	genCtx    context.Context
	genCancel context.CancelFunc

	metrics *metrics.Metrics
	events  *events.Manager

	refreshMu  sync.Mutex
	refreshing map[string]struct{}
}

// Option customizes a Resolver at construction time.
type Option func(*Resolver)

// WithEventManager uses an explicit event manager instead of the
// process-wide default. Tests rely on this for isolation.
func WithEventManager(m *events.Manager) Option {
	return func(r *Resolver) { r.events = m }
}

// WithMetrics uses an explicit metrics accumulator.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Resolver) { r.metrics = m }
}

// New creates an unconfigured resolver. Every query fails with
// NOT_INITIALIZED until LoadConfig succeeds.
func New(opts ...Option) *Resolver {
	r := &Resolver{
		refreshing: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.metrics == nil {
		r.metrics = metrics.New()
	}
	if r.events == nil {
		r.events = events.Default()
	}
	return r
}

// validateSnapshot enforces the core's own invariants. The config
// package performs the full validation; these checks are the subset the
// resolver cannot run without.
func validateSnapshot(cfg *types.Config) error {
	if cfg == nil {
		return fmt.Errorf("%w: nil snapshot", ErrConfigInvalid)
	}
	if len(cfg.Servers) == 0 {
		return fmt.Errorf("%w: empty server list", ErrConfigInvalid)
	}
	if len(cfg.EnabledServers()) == 0 {
		return fmt.Errorf("%w: all servers disabled", ErrConfigInvalid)
	}
	if cfg.QueryTimeoutMs < 100 || cfg.QueryTimeoutMs > 30000 {
		return fmt.Errorf("%w: query_timeout_ms %d outside [100,30000]", ErrConfigInvalid, cfg.QueryTimeoutMs)
	}
	if cfg.MaxConcurrentQueries < 1 || cfg.MaxConcurrentQueries > 10000 {
		return fmt.Errorf("%w: max_concurrent_queries %d outside [1,10000]", ErrConfigInvalid, cfg.MaxConcurrentQueries)
	}
	if cfg.Retry.MaxAttempts < 1 {
		return fmt.Errorf("%w: retry max_attempts must be at least 1", ErrConfigInvalid)
	}
	if cfg.Cache.Persistent && cfg.Cache.CacheFile == "" {
		return fmt.Errorf("%w: persistent cache requires cache_file", ErrConfigInvalid)
	}
	return nil
}

// LoadConfig validates and applies a configuration snapshot. On success
// the previous channel is torn down (completing its in-flight queries
// with NOT_INITIALIZED) and replaced; on failure the current snapshot
// stays in place untouched.
func (r *Resolver) LoadConfig(cfg *types.Config) error {
	if err := validateSnapshot(cfg); err != nil {
		r.metrics.RecordError(string(types.StatusConfigInvalid), err.Error())
		return err
	}
	cfg = cfg.Clone()

	channel := transport.NewChannel(transport.Options{
		Servers:      cfg.EnabledServers(),
		QueryTimeout: cfg.QueryTimeout(),
		IPv6Enabled:  cfg.IPv6Enabled,
		LatencyObserver: func(server string, latency time.Duration) {
			r.metrics.RecordServerLatency(server, latency)
		},
	})

	newCache := cache.New(cfg.Cache.TTL(), cfg.Cache.MaxSize)
	genCtx, genCancel := context.WithCancel(context.Background())

	r.mu.Lock()
	oldChannel := r.channel
	oldCancel := r.genCancel
	oldConfig := r.config
	oldCache := r.cache

	r.config = cfg
	r.channel = channel
	r.cache = newCache
	r.sem = make(chan struct{}, cfg.MaxConcurrentQueries)
	r.genCtx = genCtx
	r.genCancel = genCancel
	r.mu.Unlock()

	// Tear down the previous generation: cancel completes in-flight
	// queries with NOT_INITIALIZED.
	if oldCancel != nil {
		oldCancel()
	}
	if oldChannel != nil {
		oldChannel.Close()
	}
	if oldConfig != nil && oldConfig.Cache.Persistent && oldCache != nil {
		if err := persist.Save(oldCache.Snapshot(), oldConfig.Cache.CacheFile); err != nil {
			log.Logger.Warn().
				Err(err).
				Str("component", "resolver").
				Msg("failed to persist cache on reload")
		}
	}

	if cfg.Metrics.Enabled {
		r.metrics.StopExporter()
		if cfg.Metrics.PrometheusAddress != "" {
			r.metrics.StartPrometheusExporter(cfg.Metrics.PrometheusAddress)
		}
		if cfg.Metrics.File != "" && cfg.Metrics.ReportIntervalSec > 0 {
			r.metrics.StartReporter(time.Duration(cfg.Metrics.ReportIntervalSec)*time.Second, cfg.Metrics.File)
		}
	}

	if cfg.Cache.Enabled && cfg.Cache.Persistent {
		if err := r.LoadCache(cfg.Cache.CacheFile); err != nil {
			log.Logger.Debug().
				Err(err).
				Str("component", "resolver").
				Str("file", cfg.Cache.CacheFile).
				Msg("no persisted cache loaded")
		}
	}

	log.Logger.Info().
		Str("component", "resolver").
		Int("servers", len(cfg.EnabledServers())).
		Bool("ipv6", cfg.IPv6Enabled).
		Msg("configuration applied")
	return nil
}

// Resolve returns a future for the hostname's addresses. Cache hits
// complete immediately with zero elapsed time; a hit inside the
// soft-refresh window additionally triggers a background re-query.
func (r *Resolver) Resolve(hostname string) *Future {
	return r.resolve(hostname, "query")
}

func (r *Resolver) resolve(hostname string, source string) *Future {
	return r.resolveWithBaseline(hostname, source, nil, false)
}

// resolveWithBaseline carries the pre-removal cached addresses so a
// refresh still diffs against what was cached before the entry was
// dropped.
func (r *Resolver) resolveWithBaseline(hostname, source string, baseline []string, hasBaseline bool) *Future {
	r.mu.RLock()
	cfg := r.config
	channel := r.channel
	cch := r.cache
	sem := r.sem
	genCtx := r.genCtx
	r.mu.RUnlock()

	if cfg == nil {
		return resolvedFuture(types.Outcome{
			Hostname: hostname,
			Status:   types.StatusNotInitialized,
		})
	}

	if cfg.Cache.Enabled {
		if addresses, stale, ok := cch.Get(hostname); ok {
			r.metrics.RecordCacheHit(hostname)
			if stale {
				r.softRefresh(genCtx, cfg, channel, cch, sem, hostname)
			}
			return resolvedFuture(types.Outcome{
				Hostname:  hostname,
				Addresses: addresses,
				Status:    types.StatusSuccess,
			})
		}
		r.metrics.RecordCacheMiss(hostname)
	}

	future := newFuture()
	qc := &queryContext{
		hostname:    hostname,
		source:      source,
		startTime:   time.Now(),
		future:      future,
		resolver:    r,
		baseline:    baseline,
		hasBaseline: hasBaseline,
	}
	go r.runQuery(genCtx, cfg, channel, cch, sem, qc)
	return future
}

// ResolveBatch resolves hostnames in slices of at most
// max_concurrent_queries, driving each slice to completion before
// dispatching the next. Futures are returned in input order.
func (r *Resolver) ResolveBatch(hostnames []string) []*Future {
	r.mu.RLock()
	cfg := r.config
	r.mu.RUnlock()

	batchSize := len(hostnames)
	if cfg != nil && cfg.MaxConcurrentQueries > 0 && cfg.MaxConcurrentQueries < batchSize {
		batchSize = cfg.MaxConcurrentQueries
	}
	if batchSize < 1 {
		batchSize = 1
	}

	futures := make([]*Future, 0, len(hostnames))
	for start := 0; start < len(hostnames); start += batchSize {
		end := start + batchSize
		if end > len(hostnames) {
			end = len(hostnames)
		}

		slice := make([]*Future, 0, end-start)
		for _, hostname := range hostnames[start:end] {
			f := r.Resolve(hostname)
			slice = append(slice, f)
			futures = append(futures, f)
		}
		for _, f := range slice {
			<-f.Done()
		}
	}
	return futures
}

// Refresh drops the cached record for hostname and resolves it anew.
// The pre-removal addresses remain the change-detection baseline.
func (r *Resolver) Refresh(hostname string) *Future {
	r.mu.RLock()
	cch := r.cache
	r.mu.RUnlock()

	var baseline []string
	hasBaseline := false
	if cch != nil {
		baseline, hasBaseline = cch.Peek(hostname)
		cch.Remove(hostname)
	}
	return r.resolveWithBaseline(hostname, "refresh", baseline, hasBaseline)
}

// ClearCache drops every cached record.
func (r *Resolver) ClearCache() {
	r.mu.RLock()
	cch := r.cache
	r.mu.RUnlock()
	if cch != nil {
		cch.Clear()
	}
}

// SaveCache persists the unexpired records to filename.
func (r *Resolver) SaveCache(filename string) error {
	r.mu.RLock()
	cch := r.cache
	r.mu.RUnlock()
	if cch == nil {
		return ErrNotInitialized
	}
	return persist.Save(cch.Snapshot(), filename)
}

// LoadCache re-materializes persisted records into the cache. Records
// whose address set differs from the current entry emit an address-change
// event with source "import".
func (r *Resolver) LoadCache(filename string) error {
	r.mu.RLock()
	cfg := r.config
	cch := r.cache
	r.mu.RUnlock()
	if cch == nil {
		return ErrNotInitialized
	}

	records, err := persist.Load(filename)
	if err != nil {
		return err
	}

	var ttl time.Duration
	if cfg != nil {
		ttl = cfg.Cache.TTL()
	}
	for _, rec := range records {
		old, _ := cch.Peek(rec.Hostname)
		cch.Put(rec)
		if len(rec.Addresses) > 0 && !multisetEqual(old, rec.Addresses) {
			r.events.Notify(types.AddressEvent{
				Hostname:     rec.Hostname,
				OldAddresses: old,
				NewAddresses: rec.Addresses,
				Source:       "import",
				TTL:          ttl,
				RecordType:   recordTypeOf(rec.Addresses),
			})
		}
	}
	return nil
}

// GetStats returns the metrics snapshot.
func (r *Resolver) GetStats() types.Stats {
	return r.metrics.GetStats()
}

// GetCache exposes the cache handle, nil before LoadConfig.
func (r *Resolver) GetCache() *cache.Cache {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cache
}

// GetMetrics exposes the metrics handle.
func (r *Resolver) GetMetrics() *metrics.Metrics {
	return r.metrics
}

// GetEventManager exposes the event manager handle.
func (r *Resolver) GetEventManager() *events.Manager {
	return r.events
}

// Config returns the active snapshot, nil before LoadConfig.
func (r *Resolver) Config() *types.Config {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.config
}

// Close tears the resolver down: in-flight queries complete with
// NOT_INITIALIZED and, when persistence is enabled, the cache is flushed
// to disk.
func (r *Resolver) Close() error {
	r.mu.Lock()
	cfg := r.config
	cch := r.cache
	channel := r.channel
	cancel := r.genCancel
	r.config = nil
	r.channel = nil
	r.cache = nil
	r.genCtx = nil
	r.genCancel = nil
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if channel != nil {
		channel.Close()
	}
	r.metrics.StopExporter()

	if cfg != nil && cfg.Cache.Persistent && cch != nil {
		if err := persist.Save(cch.Snapshot(), cfg.Cache.CacheFile); err != nil {
			return fmt.Errorf("persisting cache on shutdown: %w", err)
		}
	}
	return nil
}
