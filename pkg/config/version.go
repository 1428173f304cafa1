package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cuemby/resolvd/pkg/types"
)

// maxVersionHistory bounds how many versions are kept on disk.
const maxVersionHistory = 50

// Version is one archived configuration snapshot.
type Version struct {
	ID        string        `json:"version"`
	Timestamp time.Time     `json:"timestamp"`
	Author    string        `json:"author"`
	Comment   string        `json:"comment"`
	Config    *types.Config `json:"config"`
}

// VersionStore archives applied snapshots as JSON files in a directory
// and supports rolling back to any archived version.
type VersionStore struct {
	dir     string
	current string
}

// NewVersionStore opens (creating if needed) a version directory.
func NewVersionStore(dir string) (*VersionStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create version directory: %w", err)
	}
	vs := &VersionStore{dir: dir}
	if history, err := vs.History(); err == nil && len(history) > 0 {
		vs.current = history[len(history)-1].ID
	}
	return vs, nil
}

// Save archives a snapshot and makes it the current version.
func (vs *VersionStore) Save(cfg *types.Config, author, comment string) (string, error) {
	if err := Validate(cfg); err != nil {
		return "", err
	}

	version := Version{
		ID:        newVersionID(),
		Timestamp: time.Now(),
		Author:    author,
		Comment:   comment,
		Config:    cfg.Clone(),
	}

	data, err := json.MarshalIndent(version, "", "    ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(vs.path(version.ID), data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write version file: %w", err)
	}

	vs.current = version.ID
	vs.prune()
	return version.ID, nil
}

// Load returns one archived version by ID.
func (vs *VersionStore) Load(id string) (*Version, error) {
	data, err := os.ReadFile(vs.path(id))
	if err != nil {
		return nil, fmt.Errorf("failed to read version %s: %w", id, err)
	}
	var version Version
	if err := json.Unmarshal(data, &version); err != nil {
		return nil, fmt.Errorf("failed to parse version %s: %w", id, err)
	}
	return &version, nil
}

// Rollback archives a copy of the target version as a new current
// version and returns its snapshot.
func (vs *VersionStore) Rollback(id string, author string) (*types.Config, error) {
	target, err := vs.Load(id)
	if err != nil {
		return nil, err
	}
	if _, err := vs.Save(target.Config, author, "Rollback to version "+id); err != nil {
		return nil, err
	}
	return target.Config.Clone(), nil
}

// History returns the archived versions ordered oldest first.
func (vs *VersionStore) History() ([]Version, error) {
	entries, err := os.ReadDir(vs.dir)
	if err != nil {
		return nil, err
	}

	var versions []Version
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		v, err := vs.Load(strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			continue
		}
		versions = append(versions, *v)
	}
	sort.Slice(versions, func(i, j int) bool {
		return versions[i].Timestamp.Before(versions[j].Timestamp)
	})
	return versions, nil
}

// Current returns the ID of the most recently saved version.
func (vs *VersionStore) Current() string {
	return vs.current
}

func (vs *VersionStore) path(id string) string {
	return filepath.Join(vs.dir, id+".json")
}

// prune drops the oldest versions beyond the history bound.
func (vs *VersionStore) prune() {
	history, err := vs.History()
	if err != nil || len(history) <= maxVersionHistory {
		return
	}
	for _, v := range history[:len(history)-maxVersionHistory] {
		_ = os.Remove(vs.path(v.ID))
	}
}

func newVersionID() string {
	return time.Now().UTC().Format("20060102T150405") + "-" + uuid.New().String()[:8]
}
