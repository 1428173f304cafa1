package metrics

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/cuemby/resolvd/pkg/types"
)

const (
	// maxLatencySamples bounds the per-server latency buffer
	maxLatencySamples = 1000

	// maxRetryHistory bounds the per-hostname retry attempt history
	maxRetryHistory = 100
)

// AlertCallback receives a human-readable alert message when a configured
// threshold is crossed. Callbacks run synchronously on the recording
// goroutine and must not call back into the Metrics object.
type AlertCallback func(message string)

// Metrics accumulates per-query and per-server measurements. Each instance
// owns its own Prometheus registry so independent resolvers (and tests)
// never share state.
type Metrics struct {
	registry *prometheus.Registry

	totalQueries      prometheus.Counter
	successfulQueries prometheus.Counter
	failedQueries     prometheus.Counter
	cacheHits         prometheus.Counter
	cacheMisses       prometheus.Counter
	queryDuration     prometheus.Histogram
	cacheHitRate      prometheus.Gauge
	totalRetries      prometheus.Counter

	// atomic mirrors of the counters, read by GetStats without gathering
	total   atomic.Uint64
	success atomic.Uint64
	failed  atomic.Uint64
	hits    atomic.Uint64
	misses  atomic.Uint64
	retries atomic.Uint64

	durationTotalMs atomic.Uint64 // integer milliseconds, summed

	latencyMu       sync.Mutex
	serverLatencies map[string][]float64 // ms, last maxLatencySamples

	retryMu       sync.Mutex
	retryAttempts map[string][]uint32 // last maxRetryHistory

	errorMu     sync.Mutex
	errorCounts map[string]uint64

	alertMu            sync.Mutex
	alertCallbacks     []AlertCallback
	thresholdsSet      bool
	errorRateThreshold float64
	latencyThreshold   time.Duration

	exporter *exporter
}

// New creates a metrics accumulator with a fresh Prometheus registry.
func New() *Metrics {
	m := &Metrics{
		registry:        prometheus.NewRegistry(),
		serverLatencies: make(map[string][]float64),
		retryAttempts:   make(map[string][]uint32),
		errorCounts:     make(map[string]uint64),
	}

	m.totalQueries = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dns_total_queries",
		Help: "Total number of DNS queries",
	})
	m.successfulQueries = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dns_successful_queries",
		Help: "Number of successful DNS queries",
	})
	m.failedQueries = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dns_failed_queries",
		Help: "Number of failed DNS queries",
	})
	m.cacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dns_cache_hits",
		Help: "Number of cache hits",
	})
	m.cacheMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dns_cache_misses",
		Help: "Number of cache misses",
	})
	m.queryDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "dns_query_duration_seconds",
		Help:    "DNS query duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	})
	m.cacheHitRate = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "dns_cache_hit_rate",
		Help: "Cache hit rate",
	})
	m.totalRetries = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dns_total_retries",
		Help: "Total number of DNS retries",
	})

	m.registry.MustRegister(
		m.totalQueries,
		m.successfulQueries,
		m.failedQueries,
		m.cacheHits,
		m.cacheMisses,
		m.queryDuration,
		m.cacheHitRate,
		m.totalRetries,
	)

	return m
}

// Registry exposes the instance's Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordQuery records one completed resolution attempt and checks the
// latency and error-rate thresholds.
func (m *Metrics) RecordQuery(hostname string, duration time.Duration, success bool) {
	m.total.Add(1)
	m.totalQueries.Inc()
	if success {
		m.success.Add(1)
		m.successfulQueries.Inc()
	} else {
		m.failed.Add(1)
		m.failedQueries.Inc()
	}
	m.durationTotalMs.Add(uint64(duration.Milliseconds()))
	m.queryDuration.Observe(duration.Seconds())

	m.alertMu.Lock()
	thresholdsSet := m.thresholdsSet
	latencyThreshold := m.latencyThreshold
	errorRateThreshold := m.errorRateThreshold
	callbacks := append([]AlertCallback(nil), m.alertCallbacks...)
	m.alertMu.Unlock()

	if !thresholdsSet || len(callbacks) == 0 {
		return
	}

	if duration > latencyThreshold {
		msg := fmt.Sprintf("High latency detected for %s: %dms", hostname, duration.Milliseconds())
		for _, cb := range callbacks {
			cb(msg)
		}
	}

	total := m.success.Load() + m.failed.Load()
	if total > 0 {
		errorRate := float64(m.failed.Load()) / float64(total)
		if errorRate > errorRateThreshold {
			msg := fmt.Sprintf("High error rate detected: %.1f%%", errorRate*100)
			for _, cb := range callbacks {
				cb(msg)
			}
		}
	}
}

// RecordCacheHit records a cache hit and refreshes the hit-rate gauge.
func (m *Metrics) RecordCacheHit(hostname string) {
	m.hits.Add(1)
	m.cacheHits.Inc()
	m.updateCacheHitRate()
}

// RecordCacheMiss records a cache miss and refreshes the hit-rate gauge.
func (m *Metrics) RecordCacheMiss(hostname string) {
	m.misses.Add(1)
	m.cacheMisses.Inc()
	m.updateCacheHitRate()
}

// RecordServerLatency appends a latency sample for an upstream server,
// keeping the most recent samples only.
func (m *Metrics) RecordServerLatency(server string, latency time.Duration) {
	ms := float64(latency.Microseconds()) / 1000

	m.latencyMu.Lock()
	samples := append(m.serverLatencies[server], ms)
	if len(samples) > maxLatencySamples {
		samples = samples[len(samples)-maxLatencySamples:]
	}
	m.serverLatencies[server] = samples
	m.latencyMu.Unlock()

	m.alertMu.Lock()
	thresholdsSet := m.thresholdsSet
	latencyThreshold := m.latencyThreshold
	callbacks := append([]AlertCallback(nil), m.alertCallbacks...)
	m.alertMu.Unlock()

	if thresholdsSet && latency > latencyThreshold {
		msg := fmt.Sprintf("High server latency detected for %s: %dms", server, latency.Milliseconds())
		for _, cb := range callbacks {
			cb(msg)
		}
	}
}

// RecordError bumps the counter for an error kind. The detail string is
// logged by the caller; only the kind is aggregated.
func (m *Metrics) RecordError(kind string, detail string) {
	m.errorMu.Lock()
	defer m.errorMu.Unlock()
	m.errorCounts[kind]++
}

// RecordRetry records one retry attempt for a hostname.
func (m *Metrics) RecordRetry(hostname string, attempt uint32) {
	m.retries.Add(1)
	m.totalRetries.Inc()

	m.retryMu.Lock()
	defer m.retryMu.Unlock()
	attempts := append(m.retryAttempts[hostname], attempt)
	if len(attempts) > maxRetryHistory {
		attempts = attempts[len(attempts)-maxRetryHistory:]
	}
	m.retryAttempts[hostname] = attempts
}

// GetStats returns a consistent snapshot of every counter plus the
// mean-of-samples server latency reduction.
func (m *Metrics) GetStats() types.Stats {
	stats := types.Stats{
		TotalQueries:      m.total.Load(),
		SuccessfulQueries: m.success.Load(),
		FailedQueries:     m.failed.Load(),
		CacheHits:         m.hits.Load(),
		CacheMisses:       m.misses.Load(),
		TotalRetries:      m.retries.Load(),
		ErrorCounts:       make(map[string]uint64),
		ServerLatencies:   make(map[string]float64),
		RetryAttempts:     make(map[string][]uint32),
	}

	if total := stats.CacheHits + stats.CacheMisses; total > 0 {
		stats.CacheHitRate = float64(stats.CacheHits) / float64(total)
	}
	if stats.TotalQueries > 0 {
		stats.AvgQueryTimeMs = float64(m.durationTotalMs.Load()) / float64(stats.TotalQueries)
	}

	m.errorMu.Lock()
	for kind, count := range m.errorCounts {
		stats.ErrorCounts[kind] = count
	}
	m.errorMu.Unlock()

	m.latencyMu.Lock()
	for server, samples := range m.serverLatencies {
		if len(samples) == 0 {
			continue
		}
		var sum float64
		for _, s := range samples {
			sum += s
		}
		stats.ServerLatencies[server] = sum / float64(len(samples))
	}
	m.latencyMu.Unlock()

	m.retryMu.Lock()
	for hostname, attempts := range m.retryAttempts {
		stats.RetryAttempts[hostname] = append([]uint32(nil), attempts...)
	}
	m.retryMu.Unlock()

	return stats
}

// ResetStats clears the error counts and latency buffers. The monotonic
// query counters are left alone.
func (m *Metrics) ResetStats() {
	m.errorMu.Lock()
	m.errorCounts = make(map[string]uint64)
	m.errorMu.Unlock()

	m.latencyMu.Lock()
	m.serverLatencies = make(map[string][]float64)
	m.latencyMu.Unlock()
}

// SetAlertThresholds installs the error-rate and latency thresholds.
// The error rate must be within [0,1] and the latency positive.
func (m *Metrics) SetAlertThresholds(errorRate float64, latency time.Duration) error {
	if errorRate < 0 || errorRate > 1 {
		return fmt.Errorf("error rate threshold must be between 0 and 1, got %v", errorRate)
	}
	if latency <= 0 {
		return fmt.Errorf("latency threshold must be positive, got %v", latency)
	}

	m.alertMu.Lock()
	defer m.alertMu.Unlock()
	m.errorRateThreshold = errorRate
	m.latencyThreshold = latency
	m.thresholdsSet = true
	return nil
}

// RegisterAlertCallback adds a callback invoked on threshold breaches.
func (m *Metrics) RegisterAlertCallback(cb AlertCallback) {
	m.alertMu.Lock()
	defer m.alertMu.Unlock()
	m.alertCallbacks = append(m.alertCallbacks, cb)
}

// ClearAlertCallbacks removes every registered alert callback.
func (m *Metrics) ClearAlertCallbacks() {
	m.alertMu.Lock()
	defer m.alertMu.Unlock()
	m.alertCallbacks = nil
}

func (m *Metrics) updateCacheHitRate() {
	hits := m.hits.Load()
	total := hits + m.misses.Load()
	if total > 0 {
		m.cacheHitRate.Set(float64(hits) / float64(total))
	}
}
