// Package store keeps a history of discovery reports in BoltDB.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/PentesterFlow/crmprobe/internal/report"
)

var bucketReports = []byte("reports")

// ErrNotFound is returned when no report has the requested run id.
var ErrNotFound = errors.New("report not found")

// Summary is the listing view of a stored report.
type Summary struct {
	RunID          string          `json:"runId"`
	Timestamp      time.Time       `json:"timestamp"`
	ServiceVersion string          `json:"serviceVersion"`
	DurationMs     int64           `json:"durationMs"`
	FasterAPI      report.Protocol `json:"fasterAPI"`
	LimitsDetected bool            `json:"limitsDetected"`
}

// SummaryOf builds the listing view of r.
func SummaryOf(r *report.DiscoveryReport) Summary {
	return Summary{
		RunID:          r.RunID,
		Timestamp:      r.Timestamp,
		ServiceVersion: r.ServiceVersion,
		DurationMs:     r.DurationMs,
		FasterAPI:      r.PerformanceMetrics.Comparison.FasterAPI,
		LimitsDetected: r.RateLimiting.LimitsDetected,
	}
}

// BoltStore persists reports keyed by run id.
type BoltStore struct {
	db   *bolt.DB
	path string
}

// Open opens or creates the history database at path.
func Open(path string) (*BoltStore, error) {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{
		Timeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketReports)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}

	return &BoltStore{db: db, path: path}, nil
}

// Path returns the database file path.
func (s *BoltStore) Path() string {
	return s.path
}

// Save stores r under its run id, replacing any earlier entry.
func (s *BoltStore) Save(r *report.DiscoveryReport) error {
	if r.RunID == "" {
		return fmt.Errorf("report has no run id")
	}

	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketReports)
		if b == nil {
			return fmt.Errorf("bucket not found")
		}
		return b.Put([]byte(r.RunID), data)
	})
}

// Get loads the report with the given run id.
func (s *BoltStore) Get(runID string) (*report.DiscoveryReport, error) {
	var r report.DiscoveryReport
	var found bool

	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketReports)
		if b == nil {
			return fmt.Errorf("bucket not found")
		}

		data := b.Get([]byte(runID))
		if data == nil {
			return nil
		}

		found = true
		return json.Unmarshal(data, &r)
	})
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, runID)
	}

	return &r, nil
}

// List returns summaries of every stored report, newest first.
func (s *BoltStore) List() ([]Summary, error) {
	summaries := []Summary{}

	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketReports)
		if b == nil {
			return fmt.Errorf("bucket not found")
		}
		return b.ForEach(func(k, v []byte) error {
			var r report.DiscoveryReport
			if err := json.Unmarshal(v, &r); err != nil {
				return fmt.Errorf("failed to unmarshal report %s: %w", k, err)
			}
			summaries = append(summaries, SummaryOf(&r))
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].Timestamp.After(summaries[j].Timestamp)
	})
	return summaries, nil
}

// Delete removes the report with the given run id. Missing ids are ignored.
func (s *BoltStore) Delete(runID string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketReports)
		if b == nil {
			return fmt.Errorf("bucket not found")
		}
		return b.Delete([]byte(runID))
	})
}

// Close closes the database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}
