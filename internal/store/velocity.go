// Package store holds the two embedded pebble-backed KV stores the
// enrichment stage joins against: velocity windows and materialized
// customer profiles.
package store

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/cockroachdb/pebble"
)

// windowRecord is the persisted tumbling-window bookkeeping for one customer.
type windowRecord struct {
	WindowStart time.Time `json:"windowStart"`
	Count       int       `json:"count"`
}

// VelocityStore backs the velocity-windows and current-velocity stores
// named in spec §6. Each customer has one active tumbling window; Observe
// rolls the window forward when an event lands outside it.
type VelocityStore struct {
	windows *pebble.DB
	current *pebble.DB
	window  time.Duration
}

// NewVelocityStore opens the velocity-windows and current-velocity pebble
// databases under dataDir.
func NewVelocityStore(dataDir string, window time.Duration) (*VelocityStore, error) {
	windows, err := pebble.Open(filepath.Join(dataDir, "velocity-windows"), &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open velocity-windows store: %w", err)
	}

	current, err := pebble.Open(filepath.Join(dataDir, "current-velocity"), &pebble.Options{})
	if err != nil {
		windows.Close()
		return nil, fmt.Errorf("failed to open current-velocity store: %w", err)
	}

	return &VelocityStore{windows: windows, current: current, window: window}, nil
}

// Observe records one event for customerID at time at and returns the count
// the velocity join should see for THIS event, self-inclusive: a customer's
// k-th event in a window observes exactly k.
func (s *VelocityStore) Observe(customerID string, at time.Time) (int, error) {
	rec, found, err := s.readWindow(customerID)
	if err != nil {
		return 0, err
	}

	count := 0
	if found && at.Sub(rec.WindowStart) < s.window && !at.Before(rec.WindowStart) {
		count = rec.Count
	} else {
		rec = windowRecord{WindowStart: at, Count: 0}
	}

	rec.Count = count + 1

	data, err := json.Marshal(rec)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal window record: %w", err)
	}
	if err := s.windows.Set([]byte(customerID), data, pebble.Sync); err != nil {
		return 0, fmt.Errorf("failed to persist window record: %w", err)
	}
	if err := s.current.Set([]byte(customerID), []byte(fmt.Sprintf("%d", rec.Count)), pebble.Sync); err != nil {
		return 0, fmt.Errorf("failed to persist current velocity: %w", err)
	}

	return rec.Count, nil
}

func (s *VelocityStore) readWindow(customerID string) (windowRecord, bool, error) {
	val, closer, err := s.windows.Get([]byte(customerID))
	if err == pebble.ErrNotFound {
		return windowRecord{}, false, nil
	}
	if err != nil {
		return windowRecord{}, false, fmt.Errorf("failed to read window record: %w", err)
	}
	defer closer.Close()

	var rec windowRecord
	if err := json.Unmarshal(val, &rec); err != nil {
		return windowRecord{}, false, fmt.Errorf("failed to decode window record: %w", err)
	}
	return rec, true, nil
}

// CurrentVelocity returns the last-observed count for customerID, for
// read-only inspection; neither the decision path nor the HTTP boundary
// calls it.
func (s *VelocityStore) CurrentVelocity(customerID string) (int, bool, error) {
	val, closer, err := s.current.Get([]byte(customerID))
	if err == pebble.ErrNotFound {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to read current velocity: %w", err)
	}
	defer closer.Close()

	var count int
	if _, err := fmt.Sscanf(string(val), "%d", &count); err != nil {
		return 0, false, fmt.Errorf("failed to parse current velocity: %w", err)
	}
	return count, true, nil
}

// HealthCheck confirms both underlying pebble databases are still responsive.
func (s *VelocityStore) HealthCheck() error {
	if _, closer, err := s.windows.Get([]byte("__healthcheck__")); err != nil && err != pebble.ErrNotFound {
		return fmt.Errorf("velocity-windows store unresponsive: %w", err)
	} else if closer != nil {
		closer.Close()
	}
	if _, closer, err := s.current.Get([]byte("__healthcheck__")); err != nil && err != pebble.ErrNotFound {
		return fmt.Errorf("current-velocity store unresponsive: %w", err)
	} else if closer != nil {
		closer.Close()
	}
	return nil
}

// Close closes both underlying pebble databases.
func (s *VelocityStore) Close() error {
	err1 := s.windows.Close()
	err2 := s.current.Close()
	if err1 != nil {
		return err1
	}
	return err2
}
