// Package analyzer implements the five specialist analyzers that fan out
// over each EnrichedEvent, each wrapping the Scorer capability with its own
// prompt construction and failure policy.
package analyzer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/enterprise/fraud-pipeline/internal/models"
	"github.com/enterprise/fraud-pipeline/internal/scorer"
)

// Specialization is one of the five fixed analyzer identities from spec §4.2.
type Specialization struct {
	ID     string
	Label  string
	Weight float64
	Focus  string
}

var (
	SpecBehavior = Specialization{ID: "behavior", Label: "customer-behavior", Weight: 1.2, Focus: "velocity vs. baseline spending, timing anomalies"}
	SpecPattern  = Specialization{ID: "pattern", Label: "attack-patterns", Weight: 1.3, Focus: "card-testing, bot, credential-stuffing signatures"}
	SpecRisk     = Specialization{ID: "risk", Label: "financial-risk", Weight: 1.1, Focus: "amount deviation vs. profile, merchant risk tier"}
	SpecGeo      = Specialization{ID: "geographic", Label: "location-risk", Weight: 1.0, Focus: "baseline location vs. event, geographic impossibility under high velocity"}
	SpecTemporal = Specialization{ID: "temporal", Label: "timing-patterns", Weight: 1.0, Focus: "off-hours, sub-second intervals, regularity indicative of scripting"}
)

// All lists the five specializations in the fixed order the coordinator
// fans out over.
var All = []Specialization{SpecBehavior, SpecPattern, SpecRisk, SpecGeo, SpecTemporal}

// FeedbackEntry is one analyst-feedback record attributed to this
// analyzer's knowledge-base log.
type FeedbackEntry struct {
	TransactionID string
	ActualFraud   bool
	Feedback      string
	RecordedAt    time.Time
}

// Analyzer builds specialist prompts against an EnrichedEvent, invokes the
// Scorer, and returns the parsed Opinion.
type Analyzer struct {
	spec   Specialization
	scorer scorer.Scorer

	mu          sync.Mutex
	feedbackLog []FeedbackEntry
}

// New builds an Analyzer for one specialization.
func New(spec Specialization, s scorer.Scorer) *Analyzer {
	return &Analyzer{spec: spec, scorer: s}
}

// Spec returns this analyzer's specialization.
func (a *Analyzer) Spec() Specialization { return a.spec }

// RecordFeedback appends entry to this analyzer's append-only knowledge-base
// log. Per spec §5 the log is write-only: the decision path never reads it
// back, and there is no retraining consumer in this repo yet.
func (a *Analyzer) RecordFeedback(entry FeedbackEntry) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.feedbackLog = append(a.feedbackLog, entry)
}

// FeedbackLogLen reports the current length of the feedback log, for
// operational inspection only.
func (a *Analyzer) FeedbackLogLen() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.feedbackLog)
}

// Analyze builds the specialist prompt from enriched, calls the Scorer, and
// returns the resulting Opinion. On Scorer failure it returns a neutral
// Opinion per spec §4.2 rather than propagating the error.
func (a *Analyzer) Analyze(ctx context.Context, enriched models.EnrichedEvent) models.Opinion {
	prompt := BuildPrompt(a.spec, enriched)
	return a.score(ctx, a.spec.ID, prompt, "manual review required")
}

// Collaborate builds a collaboration prompt embedding question alongside
// the event and this analyzer's specialization, and returns an Opinion
// whose id is suffixed "-collab".
func (a *Analyzer) Collaborate(ctx context.Context, enriched models.EnrichedEvent, question string) models.Opinion {
	prompt := BuildCollaborationPrompt(a.spec, enriched, question)
	return a.score(ctx, a.spec.ID+"-collab", prompt, "manual review required")
}

func (a *Analyzer) score(ctx context.Context, analyzerID, prompt, failureRecommendation string) models.Opinion {
	resp, err := a.scorer.Score(ctx, prompt)
	now := time.Now()

	if err != nil {
		log.Warn().Err(err).Str("analyzer", analyzerID).Msg("scorer call failed, returning neutral opinion")
		return models.Opinion{
			AnalyzerID:     analyzerID,
			Specialization: a.spec.Label,
			RawAnalysis:    "",
			RiskScore:      0.5,
			Reasoning:      fmt.Sprintf("scorer unavailable: %v", err),
			Recommendation: failureRecommendation,
			ProducedAt:     now,
		}
	}

	return models.Opinion{
		AnalyzerID:     analyzerID,
		Specialization: a.spec.Label,
		RawAnalysis:    resp.Raw,
		RiskScore:      resp.RiskScore,
		Reasoning:      resp.Reasoning,
		Recommendation: resp.Recommendation,
		ProducedAt:     now,
	}
}
