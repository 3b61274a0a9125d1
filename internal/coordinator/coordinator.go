// Package coordinator implements the three-phase fan-out, collaboration,
// and consensus-synthesis protocol that turns one EnrichedEvent into a
// single Decision.
package coordinator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/enterprise/fraud-pipeline/configs"
	"github.com/enterprise/fraud-pipeline/internal/analyzer"
	"github.com/enterprise/fraud-pipeline/internal/models"
	"github.com/enterprise/fraud-pipeline/internal/scorer"
)

const (
	disagreementThreshold   = 0.4
	collaborationWeight     = 0.8
	velocityBonus           = 0.25
	unusualAmountBonus      = 0.20
	highRiskTierBonus       = 0.10
	unusualAmountMultiplier = 3.0
)

// Coordinator orchestrates the five analyzers plus a consensus Scorer call
// into one Decision per EnrichedEvent.
type Coordinator struct {
	analyzers      []*analyzer.Analyzer
	byID           map[string]*analyzer.Analyzer
	consensusScore scorer.Scorer
	risk           configs.RiskConfig
	velocity       configs.VelocityConfig
}

// New builds a Coordinator from one Analyzer per specialization, sharing
// consensusScorer for the phase-3 summary call. risk and velocity carry the
// system's configured thresholds (spec §6).
func New(analyzers []*analyzer.Analyzer, consensusScorer scorer.Scorer, risk configs.RiskConfig, velocity configs.VelocityConfig) *Coordinator {
	byID := make(map[string]*analyzer.Analyzer, len(analyzers))
	for _, a := range analyzers {
		byID[a.Spec().ID] = a
	}
	return &Coordinator{analyzers: analyzers, byID: byID, consensusScore: consensusScorer, risk: risk, velocity: velocity}
}

// Decide runs the full three-phase protocol for one enriched event.
func (c *Coordinator) Decide(ctx context.Context, enriched models.EnrichedEvent) (decision models.Decision) {
	defer func() {
		if r := recover(); r != nil {
			decision = technicalErrorDecision(enriched.Event.TransactionID, enriched.Event.CustomerID)
		}
	}()

	phase1 := c.runPhase1(ctx, enriched)

	highVelocity := enriched.HasVelocity() && enriched.Velocity() > c.velocity.HighThreshold
	hasProfile := enriched.HasProfile()
	disagreement := spread(phase1) > disagreementThreshold
	collaborate := disagreement || highVelocity || hasProfile

	var collab []models.Opinion
	if collaborate {
		collab = c.runPhase2(ctx, enriched, highVelocity, hasProfile)
	}

	streamingContext := streamingContextSummary(highVelocity, hasProfile, enriched)
	// Consensus summarizes only the phase-1 panel opinions, per spec §4.3 —
	// collaboration refinements are not folded back into it.
	consensus := c.consensusOpinion(ctx, phase1, streamingContext)

	all := append(append(append([]models.Opinion{}, phase1...), collab...), consensus)

	return c.synthesize(enriched, all, highVelocity, hasProfile)
}

func (c *Coordinator) runPhase1(ctx context.Context, enriched models.EnrichedEvent) []models.Opinion {
	opinions := make([]models.Opinion, len(c.analyzers))
	g, gctx := errgroup.WithContext(ctx)
	for i, a := range c.analyzers {
		i, a := i, a
		g.Go(func() error {
			opinions[i] = a.Analyze(gctx, enriched)
			return nil
		})
	}
	_ = g.Wait() // analyzers never return an error; failures become neutral opinions
	return opinions
}

func (c *Coordinator) runPhase2(ctx context.Context, enriched models.EnrichedEvent, highVelocity, hasProfile bool) []models.Opinion {
	var results []models.Opinion
	g, gctx := errgroup.WithContext(ctx)
	resultsCh := make(chan models.Opinion, 4)

	if highVelocity {
		question := fmt.Sprintf("%d events in 5 minutes — does this align with automated attack patterns?", enriched.Velocity())
		for _, id := range []string{"pattern", "temporal"} {
			a := c.byID[id]
			g.Go(func() error {
				resultsCh <- a.Collaborate(gctx, enriched, question)
				return nil
			})
		}
	}

	if hasProfile {
		question := fmt.Sprintf("Customer's average spend is %.2f with a %s risk tier — does this transaction align with their baseline?",
			enriched.Profile.AverageAmount, enriched.Profile.RiskTier)
		for _, id := range []string{"behavior", "risk"} {
			a := c.byID[id]
			g.Go(func() error {
				resultsCh <- a.Collaborate(gctx, enriched, question)
				return nil
			})
		}
	}

	go func() {
		_ = g.Wait()
		close(resultsCh)
	}()

	for op := range resultsCh {
		results = append(results, op)
	}

	return results
}

func (c *Coordinator) consensusOpinion(ctx context.Context, priorOpinions []models.Opinion, streamingContext string) models.Opinion {
	prompt := analyzer.BuildConsensusPrompt(priorOpinions, streamingContext)
	resp, err := c.consensusScore.Score(ctx, prompt)
	now := time.Now()

	if err != nil {
		return models.Opinion{
			AnalyzerID:     "consensus",
			Specialization: "consensus",
			RiskScore:      0.5,
			Reasoning:      fmt.Sprintf("scorer unavailable: %v", err),
			Recommendation: "manual review required",
			ProducedAt:     now,
		}
	}

	return models.Opinion{
		AnalyzerID:     "consensus",
		Specialization: "consensus",
		RawAnalysis:    resp.Raw,
		RiskScore:      resp.RiskScore,
		Reasoning:      resp.Reasoning,
		Recommendation: resp.Recommendation,
		ProducedAt:     now,
	}
}

func spread(opinions []models.Opinion) float64 {
	if len(opinions) == 0 {
		return 0
	}
	min, max := opinions[0].RiskScore, opinions[0].RiskScore
	for _, o := range opinions[1:] {
		if o.RiskScore < min {
			min = o.RiskScore
		}
		if o.RiskScore > max {
			max = o.RiskScore
		}
	}
	return max - min
}

func streamingContextSummary(highVelocity, hasProfile bool, enriched models.EnrichedEvent) string {
	var parts []string
	if highVelocity {
		parts = append(parts, fmt.Sprintf("%d transactions observed in the current 5-minute window", enriched.Velocity()))
	}
	if hasProfile {
		parts = append(parts, fmt.Sprintf("customer profile on file with %s risk tier", enriched.Profile.RiskTier))
	}
	if len(parts) == 0 {
		return "no streaming enrichment available"
	}
	return strings.Join(parts, "; ")
}

func weightFor(id string) float64 {
	for _, spec := range analyzer.All {
		if spec.ID == id {
			return spec.Weight
		}
	}
	return collaborationWeight
}

func (c *Coordinator) synthesize(enriched models.EnrichedEvent, opinions []models.Opinion, highVelocity, hasProfile bool) models.Decision {
	base := weightedMean(opinions)

	bonus := 0.0
	if highVelocity {
		bonus += velocityBonus
	}
	if hasProfile && enriched.Event.Amount > unusualAmountMultiplier*enriched.Profile.AverageAmount {
		bonus += unusualAmountBonus
	}
	if hasProfile && enriched.Profile.RiskTier == models.RiskTierHigh {
		bonus += highRiskTierBonus
	}

	finalRisk := base + bonus
	if finalRisk > 1.0 {
		finalRisk = 1.0
	}

	fraud := finalRisk >= c.risk.FraudThreshold

	confidence := confidenceFor(opinions, fraud, highVelocity, hasProfile, c.risk.FraudThreshold)

	explanation := buildExplanation(streamingContextSummary(highVelocity, hasProfile, enriched), opinions, finalRisk, fraud)
	reason := primaryReason(fraud, finalRisk)

	return models.Decision{
		EventID:             enriched.Event.TransactionID,
		CustomerID:          enriched.Event.CustomerID,
		Fraud:               fraud,
		Confidence:          confidence,
		PrimaryReason:       reason,
		DetailedExplanation: explanation,
		Opinions:            opinions,
		AnalyzedAt:          time.Now(),
	}
}

func weightedMean(opinions []models.Opinion) float64 {
	if len(opinions) == 0 {
		return 0
	}
	var sumWeighted, sumWeights float64
	for _, o := range opinions {
		w := collaborationWeight
		if !strings.HasSuffix(o.AnalyzerID, "-collab") && o.AnalyzerID != "consensus" {
			w = weightFor(o.AnalyzerID)
		}
		sumWeighted += o.RiskScore * w
		sumWeights += w
	}
	if sumWeights == 0 {
		return 0
	}
	return sumWeighted / sumWeights
}

func confidenceFor(opinions []models.Opinion, fraud, highVelocity, hasProfile bool, fraudThreshold float64) float64 {
	if len(opinions) == 0 {
		return 0.3
	}
	matching := 0
	for _, o := range opinions {
		indicatesFraud := o.RiskScore > fraudThreshold
		if indicatesFraud == fraud {
			matching++
		}
	}
	agreementRatio := float64(matching) / float64(len(opinions))

	var confidence float64
	switch {
	case agreementRatio >= 0.8:
		confidence = 0.9
	case agreementRatio >= 0.6:
		confidence = 0.7
	case agreementRatio >= 0.4:
		confidence = 0.5
	default:
		confidence = 0.3
	}

	if highVelocity {
		confidence += 0.1
	}
	if hasProfile {
		confidence += 0.1
	}
	if confidence > 1.0 {
		confidence = 1.0
	}
	return confidence
}

func primaryReason(fraud bool, finalRisk float64) string {
	if fraud {
		return fmt.Sprintf("Aggregated risk score %.0f%% exceeded the fraud threshold", finalRisk*100)
	}
	return fmt.Sprintf("Aggregated risk score %.0f%% remained below the fraud threshold", finalRisk*100)
}

func buildExplanation(streamingContext string, opinions []models.Opinion, finalRisk float64, fraud bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Streaming context: %s.\n", streamingContext)
	for _, o := range opinions {
		fmt.Fprintf(&b, "- %s (%.0f%% risk): %s\n", o.AnalyzerID, o.RiskScore*100, o.Reasoning)
	}
	fmt.Fprintf(&b, "Final risk: %.0f%%. Decision: %s.\n", finalRisk*100, decisionLabel(fraud))
	b.WriteString("Intelligence Sources: Real-time velocity, customer profiles, temporal patterns")
	return b.String()
}

func decisionLabel(fraud bool) string {
	if fraud {
		return "FRAUD"
	}
	return "APPROVED"
}

func technicalErrorDecision(eventID, customerID string) models.Decision {
	return models.Decision{
		EventID:             eventID,
		CustomerID:          customerID,
		Fraud:               true,
		Confidence:          0.5,
		PrimaryReason:       "Technical error during analysis",
		DetailedExplanation: "An unrecoverable error occurred while analyzing this transaction; it has been routed for human review.",
		Opinions:            nil,
		AnalyzedAt:          time.Now(),
	}
}
