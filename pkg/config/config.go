package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cuemby/resolvd/pkg/types"
)

// Default returns a snapshot with the documented defaults. It carries no
// servers, so it does not validate until servers are added.
func Default() *types.Config {
	return &types.Config{
		Cache: types.CacheConfig{
			Enabled:    true,
			TTLSeconds: 300,
			MaxSize:    10000,
		},
		Retry: types.RetryConfig{
			MaxAttempts: 3,
			BaseDelayMs: 100,
			MaxDelayMs:  5000,
		},
		Metrics: types.MetricsConfig{
			Enabled:           false,
			ReportIntervalSec: 60,
		},
		QueryTimeoutMs:       5000,
		MaxConcurrentQueries: 100,
		IPv6Enabled:          true,
	}
}

// LoadFile reads a configuration snapshot from a YAML or JSON file,
// chosen by extension, and validates it.
func LoadFile(filename string) (*types.Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format: %s", filepath.Ext(filename))
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SaveFile writes the snapshot to a YAML or JSON file by extension.
func SaveFile(cfg *types.Config, filename string) error {
	var data []byte
	var err error
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(cfg)
	case ".json":
		data, err = json.MarshalIndent(cfg, "", "    ")
	default:
		return fmt.Errorf("unsupported config format: %s", filepath.Ext(filename))
	}
	if err != nil {
		return err
	}
	return os.WriteFile(filename, data, 0o644)
}
