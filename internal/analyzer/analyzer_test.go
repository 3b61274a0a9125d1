package analyzer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/enterprise/fraud-pipeline/internal/models"
	"github.com/enterprise/fraud-pipeline/internal/scorer"
)

type fakeScorer struct {
	resp scorer.Response
	err  error
	last string
}

func (f *fakeScorer) Score(ctx context.Context, prompt string) (scorer.Response, error) {
	f.last = prompt
	return f.resp, f.err
}

func enrichedFixture() models.EnrichedEvent {
	return models.EnrichedEvent{
		Event: models.Event{
			TransactionID: "TX-1",
			CustomerID:    "CUST-1",
			Amount:        250.00,
			Currency:      "USD",
			MerchantID:    "MERCH-1",
		},
	}
}

func TestAnalyzeReturnsParsedOpinion(t *testing.T) {
	fs := &fakeScorer{resp: scorer.Response{RiskScore: 0.7, Reasoning: "elevated amount", Recommendation: "review"}}
	a := New(SpecRisk, fs)

	op := a.Analyze(context.Background(), enrichedFixture())

	if op.AnalyzerID != "risk" {
		t.Fatalf("unexpected analyzer id: %q", op.AnalyzerID)
	}
	if op.RiskScore != 0.7 {
		t.Fatalf("unexpected risk score: %v", op.RiskScore)
	}
	if op.Confidence() != 0.7 {
		t.Fatalf("unexpected confidence: %v", op.Confidence())
	}
}

func TestAnalyzeReturnsNeutralOnScorerFailure(t *testing.T) {
	fs := &fakeScorer{err: errors.New("scorer unavailable")}
	a := New(SpecBehavior, fs)

	op := a.Analyze(context.Background(), enrichedFixture())

	if op.RiskScore != 0.5 {
		t.Fatalf("expected neutral risk score 0.5, got %v", op.RiskScore)
	}
	if op.Recommendation != "manual review required" {
		t.Fatalf("unexpected recommendation: %q", op.Recommendation)
	}
}

func TestCollaborateSuffixesAnalyzerID(t *testing.T) {
	fs := &fakeScorer{resp: scorer.Response{RiskScore: 0.3}}
	a := New(SpecPattern, fs)

	op := a.Collaborate(context.Background(), enrichedFixture(), "does this look automated?")

	if op.AnalyzerID != "pattern-collab" {
		t.Fatalf("expected -collab suffix, got %q", op.AnalyzerID)
	}
	if fs.last == "" {
		t.Fatalf("expected a prompt to have been sent")
	}
}

func TestPromptIncludesEnrichment(t *testing.T) {
	enriched := enrichedFixture()
	profile := models.Profile{AverageAmount: 50, DailyLimit: 200, TypicalCategories: []string{"GROCERY"}, RiskTier: models.RiskTierLow}
	enriched.Profile = &profile
	velocity := 5
	enriched.VelocityCnt = &velocity

	prompt := BuildPrompt(SpecGeo, enriched)

	if !strings.Contains(prompt, "5 transactions observed") {
		t.Fatalf("expected velocity context in prompt: %s", prompt)
	}
	if !strings.Contains(prompt, "average spend 50.00") {
		t.Fatalf("expected profile context in prompt: %s", prompt)
	}
}
