// Package enrichment implements the two left-joins that turn an incoming
// Event into an EnrichedEvent: a profile join against the materialized
// customerProfiles table, and a velocity join against the tumbling
// 5-minute window store.
package enrichment

import (
	"fmt"

	"github.com/enterprise/fraud-pipeline/internal/models"
	"github.com/enterprise/fraud-pipeline/internal/store"
)

// Topology joins incoming events against the profile and velocity stores.
// Both joins are left joins: a missing right side never drops the event.
type Topology struct {
	profiles *store.ProfileStore
	velocity *store.VelocityStore
}

// New builds a Topology over the given stores.
func New(profiles *store.ProfileStore, velocity *store.VelocityStore) *Topology {
	return &Topology{profiles: profiles, velocity: velocity}
}

// OnProfile materializes a profile update from the customerProfiles topic.
// Invalid profiles (failing the data-model invariant) are rejected rather
// than materialized.
func (t *Topology) OnProfile(p models.Profile) error {
	if !p.Valid() {
		return errInvalidProfile(p.CustomerID)
	}
	return t.profiles.Put(p)
}

// Enrich joins event against both stores and returns the resulting
// EnrichedEvent. Per spec §4.4, events for a given payer id are expected
// to be processed in arrival order by the caller (single-partition,
// single-goroutine per customer key); Enrich itself performs no ordering.
func (t *Topology) Enrich(event models.Event) (models.EnrichedEvent, error) {
	enriched := models.EnrichedEvent{Event: event}

	profile, found, err := t.profiles.Get(event.CustomerID)
	if err != nil {
		return models.EnrichedEvent{}, err
	}
	if found {
		enriched.Profile = profile
	}

	observed, err := t.velocity.Observe(event.CustomerID, event.Timestamp)
	if err != nil {
		return models.EnrichedEvent{}, err
	}
	enriched.VelocityCnt = &observed

	return enriched, nil
}

// HealthCheck confirms both the profile and velocity stores are responsive.
func (t *Topology) HealthCheck() error {
	if err := t.profiles.HealthCheck(); err != nil {
		return fmt.Errorf("profile store: %w", err)
	}
	if err := t.velocity.HealthCheck(); err != nil {
		return fmt.Errorf("velocity store: %w", err)
	}
	return nil
}

type errInvalidProfile string

func (e errInvalidProfile) Error() string {
	return "invalid profile for customer " + string(e)
}
