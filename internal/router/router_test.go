package router

import (
	"testing"

	"github.com/enterprise/fraud-pipeline/configs"
	"github.com/enterprise/fraud-pipeline/internal/models"
)

func testRiskConfig() configs.RiskConfig {
	return configs.RiskConfig{
		FraudThreshold:          0.6,
		ConfidenceFraudAlert:    0.8,
		ConfidenceNeedsHumanLow: 0.3,
		ConfidenceNeedsHumanHi:  0.7,
	}
}

func TestRouteFraudAboveThresholdGoesToFraudAlert(t *testing.T) {
	r := New(testRiskConfig())
	d := models.Decision{EventID: "TX-1", Fraud: true, Confidence: 0.81}
	env := r.Route(d)

	alert, ok := env.(models.FraudAlertEnvelope)
	if !ok {
		t.Fatalf("expected FraudAlertEnvelope, got %T", env)
	}
	if alert.Priority != models.PriorityHigh {
		t.Fatalf("expected HIGH priority, got %v", alert.Priority)
	}
}

func TestRouteFraudAtExactlyConfidenceBoundaryGoesToReview(t *testing.T) {
	// spec §4.6 rule 1 requires confidence strictly > 0.8.
	r := New(testRiskConfig())
	d := models.Decision{EventID: "TX-1", Fraud: true, Confidence: 0.8}
	env := r.Route(d)

	if _, ok := env.(models.ReviewCaseEnvelope); !ok {
		t.Fatalf("expected ReviewCaseEnvelope at the 0.8 boundary, got %T", env)
	}
}

func TestRouteNeedsHumanGoesToReview(t *testing.T) {
	r := New(testRiskConfig())
	d := models.Decision{EventID: "TX-1", Fraud: false, Confidence: 0.5}
	env := r.Route(d)

	if _, ok := env.(models.ReviewCaseEnvelope); !ok {
		t.Fatalf("expected ReviewCaseEnvelope, got %T", env)
	}
}

func TestRouteAtExactly0_7ConfidenceIsApproved(t *testing.T) {
	// NeedsHuman is strictly < 0.7, so confidence == 0.7 and fraud == false
	// should fall through to approval.
	r := New(testRiskConfig())
	d := models.Decision{EventID: "TX-1", Fraud: false, Confidence: 0.7}
	env := r.Route(d)

	if _, ok := env.(models.ApprovalEnvelope); !ok {
		t.Fatalf("expected ApprovalEnvelope at the 0.7 boundary, got %T", env)
	}
}

func TestRouteNonFraudLowConfidenceIsApproved(t *testing.T) {
	r := New(testRiskConfig())
	d := models.Decision{EventID: "TX-1", Fraud: false, Confidence: 0.2}
	env := r.Route(d)

	if _, ok := env.(models.ApprovalEnvelope); !ok {
		t.Fatalf("expected ApprovalEnvelope, got %T", env)
	}
}

func TestRouteConfidenceOverlapFallsThroughToReview(t *testing.T) {
	// fraud && 0.7 <= confidence <= 0.8 is the confirmed-intentional overlap:
	// it misses rule 1 (needs > 0.8) and lands on rule 2 via the fraud clause.
	r := New(testRiskConfig())
	d := models.Decision{EventID: "TX-1", Fraud: true, Confidence: 0.75}
	env := r.Route(d)

	if _, ok := env.(models.ReviewCaseEnvelope); !ok {
		t.Fatalf("expected ReviewCaseEnvelope, got %T", env)
	}
}

func TestRouteIsTotalAndExclusive(t *testing.T) {
	r := New(testRiskConfig())
	cases := []models.Decision{
		{Fraud: true, Confidence: 0.95},
		{Fraud: true, Confidence: 0.5},
		{Fraud: false, Confidence: 0.5},
		{Fraud: false, Confidence: 0.1},
		{Fraud: false, Confidence: 1.0},
	}
	for _, d := range cases {
		env := r.Route(d)
		if env == nil {
			t.Fatalf("Route must always return exactly one envelope, got nil for %+v", d)
		}
	}
}
