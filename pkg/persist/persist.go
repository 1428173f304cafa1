package persist

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/cuemby/resolvd/pkg/log"
	"github.com/cuemby/resolvd/pkg/types"
)

const (
	// FormatVersion identifies the on-disk cache layout
	FormatVersion = "1.0"

	// MaxCacheAge is how old a persisted cache may be before it is
	// ignored on load
	MaxCacheAge = 24 * time.Hour
)

var (
	bucketMeta    = []byte("meta")
	bucketRecords = []byte("records")

	keyVersion = []byte("version")
	keySavedAt = []byte("saved_at")
)

// storedRecord is the JSON shape of one persisted cache entry.
type storedRecord struct {
	Hostname  string   `json:"hostname"`
	Addresses []string `json:"ip_addresses"`
	ExpireAt  int64    `json:"expire_time"` // unix seconds
	Valid     bool     `json:"is_valid"`
}

// Save writes the records to a bolt database at filename, replacing any
// previous contents. Only valid records are persisted.
func Save(records []types.Record, filename string) error {
	db, err := bolt.Open(filename, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return fmt.Errorf("failed to open cache file: %w", err)
	}
	defer db.Close()

	return db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketMeta, bucketRecords} {
			if tx.Bucket(name) != nil {
				if err := tx.DeleteBucket(name); err != nil {
					return err
				}
			}
			if _, err := tx.CreateBucket(name); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", name, err)
			}
		}

		meta := tx.Bucket(bucketMeta)
		if err := meta.Put(keyVersion, []byte(FormatVersion)); err != nil {
			return err
		}
		savedAt, _ := json.Marshal(time.Now().UnixMilli())
		if err := meta.Put(keySavedAt, savedAt); err != nil {
			return err
		}

		b := tx.Bucket(bucketRecords)
		for _, rec := range records {
			if !rec.Valid {
				continue
			}
			data, err := json.Marshal(storedRecord{
				Hostname:  rec.Hostname,
				Addresses: rec.Addresses,
				ExpireAt:  rec.ExpireAt.Unix(),
				Valid:     rec.Valid,
			})
			if err != nil {
				return err
			}
			if err := b.Put([]byte(rec.Hostname), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// Load re-materializes the records persisted at filename. The format
// version must match, the file must be younger than MaxCacheAge, and
// records already expired at load time are skipped.
func Load(filename string) ([]types.Record, error) {
	db, err := bolt.Open(filename, 0o600, &bolt.Options{Timeout: time.Second, ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("failed to open cache file: %w", err)
	}
	defer db.Close()

	var records []types.Record
	err = db.View(func(tx *bolt.Tx) error {
		meta := tx.Bucket(bucketMeta)
		if meta == nil {
			return fmt.Errorf("cache file has no metadata")
		}
		if version := string(meta.Get(keyVersion)); version != FormatVersion {
			return fmt.Errorf("invalid cache format version %q", version)
		}

		var savedAt int64
		if raw := meta.Get(keySavedAt); raw != nil {
			if err := json.Unmarshal(raw, &savedAt); err != nil {
				return fmt.Errorf("invalid cache timestamp: %w", err)
			}
		}
		if age := time.Since(time.UnixMilli(savedAt)); age > MaxCacheAge {
			return fmt.Errorf("cache file is too old (%s)", age.Round(time.Second))
		}

		b := tx.Bucket(bucketRecords)
		if b == nil {
			return nil
		}

		now := time.Now()
		return b.ForEach(func(k, v []byte) error {
			var stored storedRecord
			if err := json.Unmarshal(v, &stored); err != nil {
				log.Logger.Warn().
					Err(err).
					Str("component", "persist").
					Str("hostname", string(k)).
					Msg("skipping unreadable cache record")
				return nil
			}
			rec := types.Record{
				Hostname:  stored.Hostname,
				Addresses: stored.Addresses,
				ExpireAt:  time.Unix(stored.ExpireAt, 0),
				Valid:     stored.Valid,
			}
			if rec.Expired(now) {
				return nil
			}
			records = append(records, rec)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}
