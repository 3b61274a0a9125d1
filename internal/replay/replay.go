// Package replay re-runs previously-observed events through the
// Coordinator without publishing, to verify the decision path's
// idempotence guarantee (spec §8: replaying the same event twice produces
// equal decisions modulo the Scorer's own determinism). Adapted from the
// teacher's internal/scoring/backtest.go BacktestService, generalized from
// comparing historical rule-engine scores against a new rule set into
// comparing decision-pass outputs against themselves across replays.
package replay

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/enterprise/fraud-pipeline/configs"
	"github.com/enterprise/fraud-pipeline/internal/coordinator"
	"github.com/enterprise/fraud-pipeline/internal/enrichment"
	"github.com/enterprise/fraud-pipeline/internal/models"
	"github.com/enterprise/fraud-pipeline/internal/router"
)

// Runner drives events through enrichment and the coordinator without
// publishing decisions anywhere.
type Runner struct {
	topology    *enrichment.Topology
	coordinator *coordinator.Coordinator
	router      *router.Router
}

// New builds a replay Runner.
func New(topology *enrichment.Topology, coord *coordinator.Coordinator, risk configs.RiskConfig) *Runner {
	return &Runner{topology: topology, coordinator: coord, router: router.New(risk)}
}

// Result is one replayed event's outcome.
type Result struct {
	TransactionID string
	Decision      models.Decision
	ProcessingMs  int64
}

// Summary aggregates a replay run's outcomes.
type Summary struct {
	TotalEvents      int
	FraudCount       int
	ReviewCount      int
	ApprovedCount    int
	AverageConfidence float64
	ProcessingTimeMs int64
	Results          []Result
}

// Run replays events in order, returning a Summary. It does not publish
// decisions to the bus; callers that need idempotence verification should
// run the same events through twice and compare resulting Decisions.
func (r *Runner) Run(ctx context.Context, events []models.Event) (Summary, error) {
	start := time.Now()
	summary := Summary{TotalEvents: len(events)}

	var confidenceTotal float64
	for _, event := range events {
		enriched, err := r.topology.Enrich(event)
		if err != nil {
			log.Error().Err(err).Str("transactionId", event.TransactionID).Msg("replay enrichment failed, skipping")
			continue
		}

		passStart := time.Now()
		decision := r.coordinator.Decide(ctx, enriched)
		elapsed := time.Since(passStart).Milliseconds()

		summary.Results = append(summary.Results, Result{
			TransactionID: event.TransactionID,
			Decision:      decision,
			ProcessingMs:  elapsed,
		})

		confidenceTotal += decision.Confidence
		switch r.router.Route(decision).EnvelopeType() {
		case "AI_FRAUD_ALERT":
			summary.FraudCount++
		case "AI_REVIEW_CASE":
			summary.ReviewCount++
		default:
			summary.ApprovedCount++
		}
	}

	if len(summary.Results) > 0 {
		summary.AverageConfidence = confidenceTotal / float64(len(summary.Results))
	}
	summary.ProcessingTimeMs = time.Since(start).Milliseconds()

	log.Info().
		Int("totalEvents", summary.TotalEvents).
		Int("fraudCount", summary.FraudCount).
		Int("reviewCount", summary.ReviewCount).
		Int("approvedCount", summary.ApprovedCount).
		Int64("processingTimeMs", summary.ProcessingTimeMs).
		Msg("replay run complete")

	return summary, nil
}

// VerifyIdempotence replays events twice and reports any transaction id
// whose fraud flag or confidence diverged between the two passes.
func (r *Runner) VerifyIdempotence(ctx context.Context, events []models.Event) ([]string, error) {
	first, err := r.Run(ctx, events)
	if err != nil {
		return nil, err
	}
	second, err := r.Run(ctx, events)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]models.Decision, len(first.Results))
	for _, res := range first.Results {
		byID[res.TransactionID] = res.Decision
	}

	var diverged []string
	for _, res := range second.Results {
		prior, ok := byID[res.TransactionID]
		if !ok {
			continue
		}
		if prior.Fraud != res.Decision.Fraud || prior.Confidence != res.Decision.Confidence {
			diverged = append(diverged, res.TransactionID)
		}
	}

	return diverged, nil
}
