// Package router branches each Decision to exactly one of the three output
// envelopes, by the ordered predicates in spec §4.6.
package router

import (
	"time"

	"github.com/enterprise/fraud-pipeline/configs"
	"github.com/enterprise/fraud-pipeline/internal/models"
)

// Router evaluates the ordered routing predicates against the configured
// risk thresholds (spec §6).
type Router struct {
	risk configs.RiskConfig
}

// New builds a Router over the given risk thresholds.
func New(risk configs.RiskConfig) *Router {
	return &Router{risk: risk}
}

// Route evaluates the three ordered, mutually exclusive, totally covering
// predicates and returns the single Envelope the decision routes to.
func (r *Router) Route(d models.Decision) models.Envelope {
	needsHuman := d.Confidence > r.risk.ConfidenceNeedsHumanLow && d.Confidence < r.risk.ConfidenceNeedsHumanHi
	switch {
	case d.Fraud && d.Confidence > r.risk.ConfidenceFraudAlert:
		return r.fraudAlert(d)
	case d.Fraud || needsHuman:
		return reviewCase(d)
	default:
		return approval(d)
	}
}

func (r *Router) fraudAlert(d models.Decision) models.FraudAlertEnvelope {
	priority := models.PriorityMedium
	if d.Confidence >= r.risk.ConfidenceFraudAlert {
		priority = models.PriorityHigh
	}

	return models.FraudAlertEnvelope{
		Type:                "AI_FRAUD_ALERT",
		EventID:             d.EventID,
		ConfidencePercent:   int(d.Confidence*100 + 0.5),
		PrimaryReason:       d.PrimaryReason,
		OpinionCount:        len(d.Opinions),
		DetailedExplanation: d.DetailedExplanation,
		Priority:            priority,
		Timestamp:           time.Now(),
	}
}

func reviewCase(d models.Decision) models.ReviewCaseEnvelope {
	return models.ReviewCaseEnvelope{
		Type:      "AI_REVIEW_CASE",
		EventID:   d.EventID,
		Status:    models.ReviewStatusPending,
		Opinions:  d.Opinions,
		Timestamp: time.Now(),
	}
}

func approval(d models.Decision) models.ApprovalEnvelope {
	return models.ApprovalEnvelope{
		Type:         "AI_APPROVAL",
		EventID:      d.EventID,
		Status:       models.ApprovalStatusApproved,
		OpinionCount: len(d.Opinions),
		Timestamp:    time.Now(),
	}
}
