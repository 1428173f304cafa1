package config

import (
	"fmt"
	"net"
	"net/netip"
	"strconv"
	"strings"

	"github.com/cuemby/resolvd/pkg/types"
)

// ValidationError describes why a snapshot was rejected.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "config validation: " + e.Reason
}

func invalid(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// Validate checks a snapshot against the full rule set. The resolver
// core re-checks a smaller subset on load; callers that obtained the
// snapshot through LoadFile never see an unvalidated one.
func Validate(cfg *types.Config) error {
	if cfg == nil {
		return invalid("nil configuration")
	}
	if err := validateServers(cfg.Servers); err != nil {
		return err
	}
	if err := validateCache(cfg.Cache); err != nil {
		return err
	}
	if err := validateRetry(cfg.Retry); err != nil {
		return err
	}
	if err := validateMetrics(cfg.Metrics); err != nil {
		return err
	}

	if cfg.QueryTimeoutMs < 100 || cfg.QueryTimeoutMs > 30000 {
		return invalid("query timeout must be between 100ms and 30000ms")
	}
	if cfg.MaxConcurrentQueries < 1 || cfg.MaxConcurrentQueries > 10000 {
		return invalid("max concurrent queries must be between 1 and 10000")
	}

	seen := make(map[string]struct{}, len(cfg.Servers))
	for _, server := range cfg.Servers {
		if _, dup := seen[server.Address]; dup {
			return invalid("duplicate server address: %s", server.Address)
		}
		seen[server.Address] = struct{}{}
	}
	return nil
}

func validateServers(servers []types.ServerConfig) error {
	if len(servers) == 0 {
		return invalid("at least one DNS server must be configured")
	}

	hasEnabled := false
	for _, server := range servers {
		if _, err := netip.ParseAddr(server.Address); err != nil {
			return invalid("invalid server IP address: %s", server.Address)
		}
		if server.Port == 0 {
			return invalid("invalid server port for %s: 0", server.Address)
		}
		if server.Timeout < 100 || server.Timeout > 10000 {
			return invalid("invalid timeout for server %s: %dms", server.Address, server.Timeout)
		}
		if server.Weight < 1 || server.Weight > 100 {
			return invalid("invalid weight for server %s: %d", server.Address, server.Weight)
		}
		if server.Enabled {
			hasEnabled = true
		}
	}
	if !hasEnabled {
		return invalid("at least one server must be enabled")
	}
	return nil
}

func validateCache(cache types.CacheConfig) error {
	if !cache.Enabled {
		return nil
	}
	if cache.TTLSeconds < 1 || cache.TTLSeconds > 86400 {
		return invalid("cache TTL must be between 1 and 86400 seconds")
	}
	if cache.MaxSize < 1 || cache.MaxSize > 1000000 {
		return invalid("cache max size must be between 1 and 1000000 entries")
	}
	if cache.Persistent && cache.CacheFile == "" {
		return invalid("persistent cache requires a cache file path")
	}
	return nil
}

func validateRetry(retry types.RetryConfig) error {
	if retry.MaxAttempts < 1 || retry.MaxAttempts > 10 {
		return invalid("max retry attempts must be between 1 and 10")
	}
	if retry.BaseDelayMs < 50 || retry.BaseDelayMs > 1000 {
		return invalid("base retry delay must be between 50ms and 1000ms")
	}
	if retry.MaxDelayMs < retry.BaseDelayMs || retry.MaxDelayMs > 10000 {
		return invalid("max retry delay must be between base delay and 10000ms")
	}
	return nil
}

func validateMetrics(metrics types.MetricsConfig) error {
	if !metrics.Enabled {
		return nil
	}
	if metrics.ReportIntervalSec < 1 || metrics.ReportIntervalSec > 3600 {
		return invalid("metrics report interval must be between 1 and 3600 seconds")
	}
	if metrics.PrometheusAddress != "" {
		_, portStr, err := net.SplitHostPort(metrics.PrometheusAddress)
		if err != nil {
			return invalid("invalid Prometheus address format: %s", metrics.PrometheusAddress)
		}
		port, err := strconv.Atoi(strings.TrimSpace(portStr))
		if err != nil || port < 1 || port > 65535 {
			return invalid("invalid Prometheus port: %s", portStr)
		}
	}
	return nil
}
