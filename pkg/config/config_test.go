package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cuemby/resolvd/pkg/types"
)

func validConfig() *types.Config {
	cfg := Default()
	cfg.Servers = []types.ServerConfig{
		{Address: "8.8.8.8", Port: 53, Weight: 10, Timeout: 2000, Enabled: true},
		{Address: "1.1.1.1", Port: 53, Weight: 5, Timeout: 2000, Enabled: true},
	}
	return cfg
}

// TestValidateAcceptsDefaults checks the documented defaults pass with servers
func TestValidateAcceptsDefaults(t *testing.T) {
	if err := Validate(validConfig()); err != nil {
		t.Errorf("Validate() rejected a valid snapshot: %v", err)
	}
}

// TestValidateRejections exercises each rule
func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*types.Config)
	}{
		{"no servers", func(c *types.Config) { c.Servers = nil }},
		{"all disabled", func(c *types.Config) {
			for i := range c.Servers {
				c.Servers[i].Enabled = false
			}
		}},
		{"bad address", func(c *types.Config) { c.Servers[0].Address = "not-an-ip" }},
		{"zero port", func(c *types.Config) { c.Servers[0].Port = 0 }},
		{"timeout too small", func(c *types.Config) { c.Servers[0].Timeout = 50 }},
		{"timeout too large", func(c *types.Config) { c.Servers[0].Timeout = 20000 }},
		{"zero weight", func(c *types.Config) { c.Servers[0].Weight = 0 }},
		{"weight too large", func(c *types.Config) { c.Servers[0].Weight = 500 }},
		{"duplicate address", func(c *types.Config) { c.Servers[1].Address = c.Servers[0].Address }},
		{"cache ttl zero", func(c *types.Config) { c.Cache.TTLSeconds = 0 }},
		{"cache ttl too large", func(c *types.Config) { c.Cache.TTLSeconds = 100000 }},
		{"cache size zero", func(c *types.Config) { c.Cache.MaxSize = 0 }},
		{"persistent without file", func(c *types.Config) { c.Cache.Persistent = true; c.Cache.CacheFile = "" }},
		{"zero attempts", func(c *types.Config) { c.Retry.MaxAttempts = 0 }},
		{"too many attempts", func(c *types.Config) { c.Retry.MaxAttempts = 20 }},
		{"base delay too small", func(c *types.Config) { c.Retry.BaseDelayMs = 10 }},
		{"max delay below base", func(c *types.Config) { c.Retry.BaseDelayMs = 500; c.Retry.MaxDelayMs = 100 }},
		{"query timeout too small", func(c *types.Config) { c.QueryTimeoutMs = 50 }},
		{"query timeout too large", func(c *types.Config) { c.QueryTimeoutMs = 60000 }},
		{"zero concurrency", func(c *types.Config) { c.MaxConcurrentQueries = 0 }},
		{"excessive concurrency", func(c *types.Config) { c.MaxConcurrentQueries = 20000 }},
		{"metrics bad interval", func(c *types.Config) { c.Metrics.Enabled = true; c.Metrics.ReportIntervalSec = 0 }},
		{"metrics bad prometheus address", func(c *types.Config) {
			c.Metrics.Enabled = true
			c.Metrics.PrometheusAddress = "no-port"
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			if err := Validate(cfg); err == nil {
				t.Error("Validate() accepted an invalid snapshot")
			}
		})
	}
}

// TestLoadFileYAML parses a YAML snapshot on top of the defaults
func TestLoadFileYAML(t *testing.T) {
	content := `
servers:
  - address: 192.0.2.1
    port: 53
    weight: 10
    timeout_ms: 2000
    enabled: true
cache:
  enabled: true
  ttl_s: 600
  max_size: 5000
query_timeout_ms: 3000
max_concurrent_queries: 200
ipv6_enabled: false
`
	file := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(file, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(file)
	if err != nil {
		t.Fatalf("LoadFile() error: %v", err)
	}
	if len(cfg.Servers) != 1 || cfg.Servers[0].Address != "192.0.2.1" {
		t.Errorf("servers = %v", cfg.Servers)
	}
	if cfg.Cache.TTLSeconds != 600 || cfg.Cache.MaxSize != 5000 {
		t.Errorf("cache = %+v", cfg.Cache)
	}
	if cfg.QueryTimeoutMs != 3000 || cfg.MaxConcurrentQueries != 200 {
		t.Errorf("globals = %d/%d", cfg.QueryTimeoutMs, cfg.MaxConcurrentQueries)
	}
	if cfg.IPv6Enabled {
		t.Error("ipv6_enabled not parsed")
	}
	// Defaults survive for unspecified sections.
	if cfg.Retry.MaxAttempts != 3 {
		t.Errorf("retry defaults lost: %+v", cfg.Retry)
	}
}

// TestLoadFileInvalidRejected verifies a parseable but invalid snapshot fails
func TestLoadFileInvalidRejected(t *testing.T) {
	content := "servers: []\n"
	file := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(file, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadFile(file); err == nil {
		t.Error("LoadFile() accepted an empty server list")
	}
}

// TestSaveLoadJSONRoundTrip round-trips through JSON
func TestSaveLoadJSONRoundTrip(t *testing.T) {
	file := filepath.Join(t.TempDir(), "config.json")
	cfg := validConfig()

	if err := SaveFile(cfg, file); err != nil {
		t.Fatalf("SaveFile() error: %v", err)
	}
	loaded, err := LoadFile(file)
	if err != nil {
		t.Fatalf("LoadFile() error: %v", err)
	}
	if len(loaded.Servers) != 2 || loaded.Servers[1].Weight != 5 {
		t.Errorf("servers after round trip = %v", loaded.Servers)
	}
}

// TestUnsupportedExtension rejects unknown formats
func TestUnsupportedExtension(t *testing.T) {
	file := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(file, []byte(""), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFile(file); err == nil {
		t.Error("LoadFile() accepted an unsupported extension")
	}
	if err := SaveFile(validConfig(), file); err == nil {
		t.Error("SaveFile() accepted an unsupported extension")
	}
}

// TestVersionStore archives, lists and rolls back snapshots
func TestVersionStore(t *testing.T) {
	vs, err := NewVersionStore(filepath.Join(t.TempDir(), "versions"))
	if err != nil {
		t.Fatal(err)
	}

	first := validConfig()
	firstID, err := vs.Save(first, "tester", "initial")
	if err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	if vs.Current() != firstID {
		t.Errorf("Current() = %s, want %s", vs.Current(), firstID)
	}

	second := validConfig()
	second.QueryTimeoutMs = 10000
	if _, err := vs.Save(second, "tester", "bump timeout"); err != nil {
		t.Fatal(err)
	}

	history, err := vs.History()
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 2 {
		t.Fatalf("history = %d versions, want 2", len(history))
	}
	if history[0].ID != firstID {
		t.Errorf("history not oldest-first: %s", history[0].ID)
	}

	rolled, err := vs.Rollback(firstID, "tester")
	if err != nil {
		t.Fatalf("Rollback() error: %v", err)
	}
	if rolled.QueryTimeoutMs != first.QueryTimeoutMs {
		t.Errorf("rollback snapshot timeout = %d, want %d", rolled.QueryTimeoutMs, first.QueryTimeoutMs)
	}

	history, _ = vs.History()
	if len(history) != 3 {
		t.Errorf("rollback did not archive a new version: %d", len(history))
	}
}

// TestVersionStoreRejectsInvalid refuses to archive invalid snapshots
func TestVersionStoreRejectsInvalid(t *testing.T) {
	vs, err := NewVersionStore(filepath.Join(t.TempDir(), "versions"))
	if err != nil {
		t.Fatal(err)
	}

	bad := validConfig()
	bad.Servers = nil
	if _, err := vs.Save(bad, "tester", "broken"); err == nil {
		t.Error("Save() archived an invalid snapshot")
	}
}
