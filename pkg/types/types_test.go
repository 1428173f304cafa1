package types

import (
	"testing"
	"time"
)

// TestStatusRetryable tests the retry classification
func TestStatusRetryable(t *testing.T) {
	tests := []struct {
		status Status
		want   bool
	}{
		{StatusSuccess, false},
		{StatusNotInitialized, false},
		{StatusNoData, false},
		{StatusNXDomain, false},
		{StatusTimeout, true},
		{StatusServFail, true},
		{StatusNetwork, true},
		{StatusMalformed, true},
		{StatusConfigInvalid, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.Retryable(); got != tt.want {
				t.Errorf("Retryable(%s) = %v, want %v", tt.status, got, tt.want)
			}
		})
	}
}

// TestRetryBackoff tests the exponential backoff law
func TestRetryBackoff(t *testing.T) {
	retry := RetryConfig{MaxAttempts: 5, BaseDelayMs: 50, MaxDelayMs: 1000}

	tests := []struct {
		attempt uint32
		want    time.Duration
	}{
		{1, 50 * time.Millisecond},
		{2, 100 * time.Millisecond},
		{3, 200 * time.Millisecond},
		{4, 400 * time.Millisecond},
		{5, 800 * time.Millisecond},
		{6, 1000 * time.Millisecond}, // clamped to max
		{7, 1000 * time.Millisecond},
		{40, 1000 * time.Millisecond}, // shift overflow guard
	}

	for _, tt := range tests {
		if got := retry.Backoff(tt.attempt); got != tt.want {
			t.Errorf("Backoff(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

// TestRetryBackoffZeroAttempt treats attempt 0 as the first retry
func TestRetryBackoffZeroAttempt(t *testing.T) {
	retry := RetryConfig{BaseDelayMs: 100, MaxDelayMs: 1000}
	if got := retry.Backoff(0); got != 100*time.Millisecond {
		t.Errorf("Backoff(0) = %v, want 100ms", got)
	}
}

// TestEnabledServers filters and preserves order
func TestEnabledServers(t *testing.T) {
	cfg := &Config{
		Servers: []ServerConfig{
			{Address: "192.0.2.1", Enabled: true},
			{Address: "192.0.2.2", Enabled: false},
			{Address: "192.0.2.3", Enabled: true},
		},
	}

	enabled := cfg.EnabledServers()
	if len(enabled) != 2 {
		t.Fatalf("EnabledServers() count = %d, want 2", len(enabled))
	}
	if enabled[0].Address != "192.0.2.1" || enabled[1].Address != "192.0.2.3" {
		t.Errorf("EnabledServers() order = %v", enabled)
	}
}

// TestServerAddr tests host:port formatting including IPv6 bracketing
func TestServerAddr(t *testing.T) {
	tests := []struct {
		name   string
		server ServerConfig
		want   string
	}{
		{"ipv4 with port", ServerConfig{Address: "8.8.8.8", Port: 53}, "8.8.8.8:53"},
		{"ipv4 default port", ServerConfig{Address: "8.8.8.8"}, "8.8.8.8:53"},
		{"ipv4 custom port", ServerConfig{Address: "127.0.0.1", Port: 5353}, "127.0.0.1:5353"},
		{"ipv6 bracketed", ServerConfig{Address: "2001:4860:4860::8888", Port: 53}, "[2001:4860:4860::8888]:53"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.server.Addr(); got != tt.want {
				t.Errorf("Addr() = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestConfigClone verifies the clone is deep for the server list
func TestConfigClone(t *testing.T) {
	cfg := &Config{
		Servers:        []ServerConfig{{Address: "192.0.2.1", Enabled: true}},
		QueryTimeoutMs: 5000,
	}

	clone := cfg.Clone()
	clone.Servers[0].Address = "192.0.2.9"
	clone.QueryTimeoutMs = 100

	if cfg.Servers[0].Address != "192.0.2.1" {
		t.Error("Clone() shares the server slice with the original")
	}
	if cfg.QueryTimeoutMs != 5000 {
		t.Error("Clone() shares scalar fields with the original")
	}
}

// TestRecordExpired tests expiry boundary behavior
func TestRecordExpired(t *testing.T) {
	now := time.Now()
	rec := Record{ExpireAt: now}

	if !rec.Expired(now) {
		t.Error("record expiring exactly now should be expired")
	}
	if rec.Expired(now.Add(-time.Second)) {
		t.Error("record should not be expired before its expiry time")
	}
	if !rec.Expired(now.Add(time.Second)) {
		t.Error("record should be expired after its expiry time")
	}
}
