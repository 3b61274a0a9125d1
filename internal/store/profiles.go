package store

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/cockroachdb/pebble"

	"github.com/enterprise/fraud-pipeline/internal/models"
)

// ProfileStore is the compacted materialization of the customerProfiles
// topic, keyed by customer ID, joined against incoming events by the
// enrichment stage.
type ProfileStore struct {
	db *pebble.DB
}

// NewProfileStore opens the profiles pebble database under dataDir.
func NewProfileStore(dataDir string) (*ProfileStore, error) {
	db, err := pebble.Open(filepath.Join(dataDir, "profiles"), &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open profiles store: %w", err)
	}
	return &ProfileStore{db: db}, nil
}

// Put materializes the latest profile for its customer, overwriting any
// earlier version — profiles are a compacted table, last-write-wins.
func (s *ProfileStore) Put(p models.Profile) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}
	if err := s.db.Set([]byte(p.CustomerID), data, pebble.Sync); err != nil {
		return fmt.Errorf("failed to persist profile: %w", err)
	}
	return nil
}

// Get returns the materialized profile for customerID, if the profile
// join has one. A missing profile is not an error — spec §4.4 treats it
// as a valid, unenriched event.
func (s *ProfileStore) Get(customerID string) (*models.Profile, bool, error) {
	val, closer, err := s.db.Get([]byte(customerID))
	if err == pebble.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read profile: %w", err)
	}
	defer closer.Close()

	var p models.Profile
	if err := json.Unmarshal(val, &p); err != nil {
		return nil, false, fmt.Errorf("failed to decode profile: %w", err)
	}
	return &p, true, nil
}

// HealthCheck confirms the underlying pebble database is still responsive.
func (s *ProfileStore) HealthCheck() error {
	_, closer, err := s.db.Get([]byte("__healthcheck__"))
	if err != nil && err != pebble.ErrNotFound {
		return fmt.Errorf("profiles store unresponsive: %w", err)
	}
	if closer != nil {
		closer.Close()
	}
	return nil
}

// Close closes the underlying pebble database.
func (s *ProfileStore) Close() error {
	return s.db.Close()
}
