package coordinator

import (
	"context"
	"strings"
	"testing"

	"github.com/enterprise/fraud-pipeline/configs"
	"github.com/enterprise/fraud-pipeline/internal/analyzer"
	"github.com/enterprise/fraud-pipeline/internal/models"
	"github.com/enterprise/fraud-pipeline/internal/scorer"
)

func testRiskConfig() configs.RiskConfig {
	return configs.RiskConfig{
		FraudThreshold:          0.6,
		ConfidenceFraudAlert:    0.8,
		ConfidenceNeedsHumanLow: 0.3,
		ConfidenceNeedsHumanHi:  0.7,
	}
}

func testVelocityConfig() configs.VelocityConfig {
	return configs.VelocityConfig{HighThreshold: 3}
}

// fixedScorer always returns the same Response regardless of prompt,
// letting tests assert deterministic aggregation behavior.
type fixedScorer struct {
	resp scorer.Response
}

func (f fixedScorer) Score(ctx context.Context, prompt string) (scorer.Response, error) {
	return f.resp, nil
}

func newFixedCoordinator(riskScore float64) *Coordinator {
	s := fixedScorer{resp: scorer.Response{RiskScore: riskScore, Reasoning: "fixed"}}
	var analyzers []*analyzer.Analyzer
	for _, spec := range analyzer.All {
		analyzers = append(analyzers, analyzer.New(spec, s))
	}
	return New(analyzers, s, testRiskConfig(), testVelocityConfig())
}

func plainEvent() models.EnrichedEvent {
	return models.EnrichedEvent{
		Event: models.Event{TransactionID: "TX-1", CustomerID: "CUST-1", Amount: 50, Currency: "USD"},
	}
}

func TestDecideOpinionCountWithoutCollaboration(t *testing.T) {
	// All five analyzers agree (no disagreement), no velocity, no profile:
	// collaboration is not triggered, so only phase-1 + consensus opinions exist.
	c := newFixedCoordinator(0.5)
	d := c.Decide(context.Background(), plainEvent())

	if len(d.Opinions) != 6 {
		t.Fatalf("expected 5 phase-1 opinions + 1 consensus, got %d: %+v", len(d.Opinions), d.Opinions)
	}
}

func TestDecideConfidenceAndRiskInRange(t *testing.T) {
	c := newFixedCoordinator(0.9)
	d := c.Decide(context.Background(), plainEvent())

	if d.Confidence < 0 || d.Confidence > 1 {
		t.Fatalf("confidence out of range: %v", d.Confidence)
	}
	// Final risk is reported in the explanation: six opinions at 0.9 with no
	// bonus give 90%, inside [0, 1].
	if !strings.Contains(d.DetailedExplanation, "Final risk: 90%") {
		t.Fatalf("expected final risk 90%% in explanation, got %q", d.DetailedExplanation)
	}
}

func TestDecideIsIdempotentUnderIdenticalScorerResponses(t *testing.T) {
	c := newFixedCoordinator(0.5)
	d1 := c.Decide(context.Background(), plainEvent())
	d2 := c.Decide(context.Background(), plainEvent())

	if d1.Fraud != d2.Fraud || d1.Confidence != d2.Confidence {
		t.Fatalf("expected identical decisions for identical inputs, got %+v vs %+v", d1, d2)
	}
}

func TestDecideHighVelocityTriggersCollaborationAndBonus(t *testing.T) {
	c := newFixedCoordinator(0.5)
	enriched := plainEvent()
	velocity := 10
	enriched.VelocityCnt = &velocity

	d := c.Decide(context.Background(), enriched)

	// high-velocity triggers pattern+temporal collaboration (2 extra opinions)
	// plus the always-present consensus opinion: 5 + 2 + 1 = 8.
	if len(d.Opinions) != 8 {
		t.Fatalf("expected 8 opinions with high-velocity collaboration, got %d", len(d.Opinions))
	}
	// base 0.5 is under the 0.6 fraud threshold; only the 0.25 velocity
	// bonus (final risk 0.75) makes this fraud.
	if !d.Fraud {
		t.Fatalf("expected the velocity bonus to push a 0.5 base over the fraud threshold")
	}
}

func TestDecideProfileTriggersCollaboration(t *testing.T) {
	c := newFixedCoordinator(0.5)
	enriched := plainEvent()
	enriched.Profile = &models.Profile{CustomerID: "CUST-1", AverageAmount: 40, DailyLimit: 200, TypicalCategories: []string{"GROCERY"}, RiskTier: models.RiskTierLow}

	d := c.Decide(context.Background(), enriched)

	// profile-present triggers behavior+risk collaboration: 5 + 2 + 1 = 8.
	if len(d.Opinions) != 8 {
		t.Fatalf("expected 8 opinions with profile collaboration, got %d", len(d.Opinions))
	}
}

func TestDecideUnusualAmountAddsBonus(t *testing.T) {
	low := newFixedCoordinator(0.3)
	enriched := plainEvent()
	enriched.Event.Amount = 1000
	enriched.Profile = &models.Profile{CustomerID: "CUST-1", AverageAmount: 100, DailyLimit: 2000, TypicalCategories: []string{"GROCERY"}, RiskTier: models.RiskTierLow}

	d := low.Decide(context.Background(), enriched)

	if d.Confidence <= 0 {
		t.Fatalf("expected nonzero confidence, got %v", d.Confidence)
	}
	// base weighted mean is 0.3, well under 0.6; the unusual-amount bonus
	// (0.20) alone should not push it to fraud, confirming it's additive
	// rather than dominant.
	if d.Fraud {
		t.Fatalf("a 0.20 bonus on a 0.3 base should not alone cross the 0.6 fraud threshold")
	}
	// 1000 > 3 x 100, so the 0.20 bonus applies: final risk 0.3 + 0.2 = 50%.
	if !strings.Contains(d.DetailedExplanation, "Final risk: 50%") {
		t.Fatalf("expected final risk 50%% with the unusual-amount bonus, got %q", d.DetailedExplanation)
	}
}
