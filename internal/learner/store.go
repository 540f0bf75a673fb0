package learner

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/stewardlabs/steward/internal/models"
)

const (
	patternsBucket       = "patterns"
	consolidationsBucket = "consolidations"
)

// PatternStore persists PatternStats in bbolt: one bucket of JSON-encoded
// stats keyed by the pattern key, plus a consolidations bucket holding the
// per-pattern last-consolidated-at marker.
type PatternStore struct {
	db *bolt.DB
}

// OpenPatternStore opens (creating if needed) the pattern database at path.
func OpenPatternStore(path string) (*PatternStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create pattern store directory: %w", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open pattern store: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(patternsBucket)); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists([]byte(consolidationsBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init pattern store buckets: %w", err)
	}

	return &PatternStore{db: db}, nil
}

// Close closes the underlying database.
func (s *PatternStore) Close() error {
	return s.db.Close()
}

// Get returns the stats for a pattern key, or (nil, nil) when the pattern
// has never received feedback.
func (s *PatternStore) Get(key models.PatternKey) (*models.PatternStats, error) {
	var stats *models.PatternStats
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket([]byte(patternsBucket)).Get([]byte(key.String()))
		if data == nil {
			return nil
		}
		stats = &models.PatternStats{}
		return json.Unmarshal(data, stats)
	})
	if err != nil {
		return nil, fmt.Errorf("get pattern %s: %w", key.String(), err)
	}
	return stats, nil
}

// Update applies fn to the stats for key inside a single write transaction,
// creating zeroed stats on first feedback for the key.
func (s *PatternStore) Update(key models.PatternKey, fn func(*models.PatternStats)) (*models.PatternStats, error) {
	var updated models.PatternStats
	err := s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(patternsBucket))

		stats := models.PatternStats{Key: key}
		if data := bucket.Get([]byte(key.String())); data != nil {
			if err := json.Unmarshal(data, &stats); err != nil {
				return fmt.Errorf("decode stats: %w", err)
			}
		}

		fn(&stats)
		updated = stats

		data, err := json.Marshal(stats)
		if err != nil {
			return fmt.Errorf("encode stats: %w", err)
		}
		return bucket.Put([]byte(key.String()), data)
	})
	if err != nil {
		return nil, fmt.Errorf("update pattern %s: %w", key.String(), err)
	}
	return &updated, nil
}

// All returns every tracked pattern's stats.
func (s *PatternStore) All() ([]models.PatternStats, error) {
	var all []models.PatternStats
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(patternsBucket)).ForEach(func(_, v []byte) error {
			var stats models.PatternStats
			if err := json.Unmarshal(v, &stats); err != nil {
				return err
			}
			all = append(all, stats)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("scan patterns: %w", err)
	}
	return all, nil
}

// consolidationMarker records when a pattern was last promoted to memory.
type consolidationMarker struct {
	ConsolidatedAt time.Time `json:"consolidated_at"`
}

// LastConsolidated returns when the pattern was last consolidated, or a zero
// time if never.
func (s *PatternStore) LastConsolidated(key models.PatternKey) (time.Time, error) {
	var at time.Time
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket([]byte(consolidationsBucket)).Get([]byte(key.String()))
		if data == nil {
			return nil
		}
		var marker consolidationMarker
		if err := json.Unmarshal(data, &marker); err != nil {
			return err
		}
		at = marker.ConsolidatedAt
		return nil
	})
	if err != nil {
		return time.Time{}, fmt.Errorf("get consolidation marker: %w", err)
	}
	return at, nil
}

// MarkConsolidated stamps the pattern's consolidation marker so the next run
// skips it until new feedback arrives.
func (s *PatternStore) MarkConsolidated(key models.PatternKey, at time.Time) error {
	data, err := json.Marshal(consolidationMarker{ConsolidatedAt: at})
	if err != nil {
		return fmt.Errorf("encode consolidation marker: %w", err)
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(consolidationsBucket)).Put([]byte(key.String()), data)
	})
	if err != nil {
		return fmt.Errorf("mark consolidated: %w", err)
	}
	return nil
}
