// Package decision drives the per-record decision stage: one Coordinator
// call per EnrichedEvent, bounded so a slow call delays only its own
// partition's progress.
package decision

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/enterprise/fraud-pipeline/configs"
	"github.com/enterprise/fraud-pipeline/internal/coordinator"
	"github.com/enterprise/fraud-pipeline/internal/enrichment"
	"github.com/enterprise/fraud-pipeline/internal/models"
)

// Stage applies the Coordinator to a stream of events, one enrichment pass
// and one Decide call per event. Adapted from the teacher's worker-pool
// shape (internal/scoring/worker.go): metrics guarded by sync.RWMutex and a
// stopCh/WaitGroup pair — generalized from a Redis-stream batch consumer
// into an in-process decision stage fed directly by the bus consumer.
// Process runs on the caller's goroutine; the stage starts no worker
// goroutines of its own, and the WorkerConfig it is given does not size
// any pool.
type Stage struct {
	id          string
	topology    *enrichment.Topology
	coordinator *coordinator.Coordinator
	sink        func(context.Context, models.Decision) error
	config      configs.WorkerConfig
	wg          sync.WaitGroup
	stopCh      chan struct{}
	metrics     *Metrics
}

// Metrics tracks decision-stage throughput.
type Metrics struct {
	mu             sync.RWMutex
	Processed      int64
	Failed         int64
	LastProcessed  time.Time
}

// New builds a decision stage. sink receives each Decision once produced.
func New(id string, topology *enrichment.Topology, coord *coordinator.Coordinator, sink func(context.Context, models.Decision) error, cfg configs.WorkerConfig) *Stage {
	return &Stage{
		id:          id,
		topology:    topology,
		coordinator: coord,
		sink:        sink,
		config:      cfg,
		stopCh:      make(chan struct{}),
		metrics:     &Metrics{},
	}
}

// Snapshot returns a copy of the current metrics.
func (s *Stage) Snapshot() Metrics {
	s.metrics.mu.RLock()
	defer s.metrics.mu.RUnlock()
	return Metrics{Processed: s.metrics.Processed, Failed: s.metrics.Failed, LastProcessed: s.metrics.LastProcessed}
}

// Process runs one event through enrichment, the coordinator, and the sink.
// A malformed enrichment (e.g. a store read failure) is logged and
// skipped rather than blocking the caller's partition.
func (s *Stage) Process(ctx context.Context, event models.Event) {
	enriched, err := s.topology.Enrich(event)
	if err != nil {
		log.Error().Err(err).Str("transactionId", event.TransactionID).Msg("enrichment failed, skipping event")
		s.recordFailure()
		return
	}

	d := s.coordinator.Decide(ctx, enriched)

	if err := s.sink(ctx, d); err != nil {
		log.Error().Err(err).Str("transactionId", event.TransactionID).Msg("failed to publish decision")
		s.recordFailure()
		return
	}

	s.recordSuccess()
}

func (s *Stage) recordSuccess() {
	s.metrics.mu.Lock()
	defer s.metrics.mu.Unlock()
	s.metrics.Processed++
	s.metrics.LastProcessed = time.Now()
}

func (s *Stage) recordFailure() {
	s.metrics.mu.Lock()
	defer s.metrics.mu.Unlock()
	s.metrics.Failed++
}

// Stop signals any background goroutines driven by this stage to wind down
// and waits for them. The Stage itself is synchronous (Process is called
// directly by the bus consumer's ConsumeClaim loop, one goroutine per
// partition already provided by sarama); Stop exists for symmetry with
// components that do own background goroutines.
func (s *Stage) Stop() {
	close(s.stopCh)
	s.wg.Wait()
}
