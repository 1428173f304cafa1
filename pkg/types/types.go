package types

import (
	"time"
)

// Record represents a cached resolution for a single hostname.
type Record struct {
	Hostname  string
	Addresses []string // textual IPs, response order preserved
	ExpireAt  time.Time
	Valid     bool // cleared when the record should be refreshed
}

// Expired reports whether the record is past its expiry time.
func (r *Record) Expired(now time.Time) bool {
	return !now.Before(r.ExpireAt)
}

// Status classifies the outcome of a resolution attempt.
type Status string

const (
	StatusSuccess        Status = "SUCCESS"
	StatusNotInitialized Status = "NOT_INITIALIZED"
	StatusNoData         Status = "NODATA"
	StatusNXDomain       Status = "NXDOMAIN"
	StatusTimeout        Status = "TIMEOUT"
	StatusServFail       Status = "SERVFAIL"
	StatusNetwork        Status = "NETWORK"
	StatusMalformed      Status = "MALFORMED"
	StatusConfigInvalid  Status = "CONFIG_INVALID"
)

// Retryable reports whether a failure of this kind may succeed on retry.
// TIMEOUT, SERVFAIL, NETWORK and MALFORMED are transient. NXDOMAIN and
// NODATA are proof of absence, and SUCCESS, NOT_INITIALIZED and
// CONFIG_INVALID are never retried either.
func (s Status) Retryable() bool {
	switch s {
	case StatusTimeout, StatusServFail, StatusNetwork, StatusMalformed:
		return true
	}
	return false
}

// Outcome is the final result of a resolution delivered to the caller.
type Outcome struct {
	Hostname  string
	Addresses []string
	Status    Status
	Elapsed   time.Duration
}

// RecordType identifies the DNS record families present in a result set.
type RecordType string

const (
	RecordTypeA     RecordType = "A"
	RecordTypeAAAA  RecordType = "AAAA"
	RecordTypeMixed RecordType = "MIXED"
)

// AddressEvent describes a change in the resolved address set for a hostname.
type AddressEvent struct {
	ID              string
	Hostname        string
	OldAddresses    []string
	NewAddresses    []string
	Timestamp       time.Time
	Source          string // "query", "refresh" or "import"
	TTL             time.Duration
	RecordType      RecordType
	IsAuthoritative bool
}

// ServerConfig describes a single upstream DNS server.
type ServerConfig struct {
	Address string `yaml:"address" json:"address"`
	Port    uint16 `yaml:"port" json:"port"`
	Weight  uint32 `yaml:"weight" json:"weight"`
	Timeout uint32 `yaml:"timeout_ms" json:"timeout_ms"` // per-server timeout in ms
	Enabled bool   `yaml:"enabled" json:"enabled"`
}

// Addr returns the server's dialable host:port form.
func (s ServerConfig) Addr() string {
	return joinHostPort(s.Address, s.Port)
}

// CacheConfig holds the cache tuning knobs.
type CacheConfig struct {
	Enabled    bool   `yaml:"enabled" json:"enabled"`
	TTLSeconds uint32 `yaml:"ttl_s" json:"ttl_s"`
	MaxSize    int    `yaml:"max_size" json:"max_size"`
	Persistent bool   `yaml:"persistent" json:"persistent"`
	CacheFile  string `yaml:"cache_file" json:"cache_file"`
}

// TTL returns the cache TTL as a duration.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// RetryConfig holds the bounded retry policy.
type RetryConfig struct {
	MaxAttempts uint32 `yaml:"max_attempts" json:"max_attempts"`
	BaseDelayMs uint32 `yaml:"base_delay_ms" json:"base_delay_ms"`
	MaxDelayMs  uint32 `yaml:"max_delay_ms" json:"max_delay_ms"`
}

// Backoff returns the delay before the k-th retry (1-indexed),
// min(base << (k-1), max).
func (r RetryConfig) Backoff(attempt uint32) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	var delay uint64
	if shift := attempt - 1; shift < 32 {
		delay = uint64(r.BaseDelayMs) << shift
	} else {
		delay = uint64(r.MaxDelayMs)
	}
	if delay > uint64(r.MaxDelayMs) {
		delay = uint64(r.MaxDelayMs)
	}
	return time.Duration(delay) * time.Millisecond
}

// MetricsConfig holds the metrics exposition knobs.
type MetricsConfig struct {
	Enabled           bool   `yaml:"enabled" json:"enabled"`
	File              string `yaml:"file" json:"file"`
	ReportIntervalSec uint32 `yaml:"report_interval_s" json:"report_interval_s"`
	PrometheusAddress string `yaml:"prometheus_address" json:"prometheus_address"`
}

// Config is the validated configuration snapshot consumed by the resolver.
// The resolver never mutates a snapshot; reloads replace it wholesale.
type Config struct {
	Servers              []ServerConfig `yaml:"servers" json:"servers"`
	Cache                CacheConfig    `yaml:"cache" json:"cache"`
	Retry                RetryConfig    `yaml:"retry" json:"retry"`
	Metrics              MetricsConfig  `yaml:"metrics" json:"metrics"`
	QueryTimeoutMs       uint32         `yaml:"query_timeout_ms" json:"query_timeout_ms"`
	MaxConcurrentQueries int            `yaml:"max_concurrent_queries" json:"max_concurrent_queries"`
	IPv6Enabled          bool           `yaml:"ipv6_enabled" json:"ipv6_enabled"`
}

// EnabledServers returns the servers with Enabled set, in declared order.
func (c *Config) EnabledServers() []ServerConfig {
	var out []ServerConfig
	for _, s := range c.Servers {
		if s.Enabled {
			out = append(out, s)
		}
	}
	return out
}

// QueryTimeout returns the global query timeout as a duration.
func (c *Config) QueryTimeout() time.Duration {
	return time.Duration(c.QueryTimeoutMs) * time.Millisecond
}

// Clone returns a deep copy of the snapshot.
func (c *Config) Clone() *Config {
	out := *c
	out.Servers = make([]ServerConfig, len(c.Servers))
	copy(out.Servers, c.Servers)
	return &out
}

// Stats is a point-in-time projection of the metrics accumulator.
type Stats struct {
	TotalQueries      uint64              `json:"total_queries"`
	SuccessfulQueries uint64              `json:"successful_queries"`
	FailedQueries     uint64              `json:"failed_queries"`
	CacheHits         uint64              `json:"cache_hits"`
	CacheMisses       uint64              `json:"cache_misses"`
	CacheHitRate      float64             `json:"cache_hit_rate"`
	AvgQueryTimeMs    float64             `json:"avg_query_time_ms"`
	TotalRetries      uint64              `json:"total_retries"`
	ErrorCounts       map[string]uint64   `json:"error_counts"`
	ServerLatencies   map[string]float64  `json:"server_latencies"` // mean ms per server
	RetryAttempts     map[string][]uint32 `json:"retry_attempts"`
}
