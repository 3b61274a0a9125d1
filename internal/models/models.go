package models

import (
	"encoding/json"
	"time"
)

// Event is an immutable card-authorization event arriving on the transactions topic.
type Event struct {
	TransactionID    string            `json:"transactionId"`
	CustomerID       string            `json:"customerId"`
	Amount           float64           `json:"amount"`
	Currency         string            `json:"currency"`
	MerchantID       string            `json:"merchantId"`
	MerchantCategory string            `json:"merchantCategory"`
	Location         string            `json:"location"`
	Timestamp        time.Time         `json:"timestamp"`
	Metadata         map[string]string `json:"metadata,omitempty"`
}

// eventWire is the exact wire shape (ISO-8601 second-precision timestamp,
// no timezone offset) used by spec §6's event format.
type eventWire struct {
	TransactionID    string            `json:"transactionId"`
	CustomerID       string            `json:"customerId"`
	Amount           float64           `json:"amount"`
	Currency         string            `json:"currency"`
	MerchantID       string            `json:"merchantId"`
	MerchantCategory string            `json:"merchantCategory"`
	Location         string            `json:"location"`
	Timestamp        string            `json:"timestamp"`
	Metadata         map[string]string `json:"metadata,omitempty"`
}

const eventTimestampLayout = "2006-01-02T15:04:05"

// MarshalJSON renders Timestamp in the fixed "yyyy-MM-dd'T'HH:mm:ss" layout
// spec §6 requires, so round-tripping an Event never drifts on timezone or
// sub-second precision.
func (e Event) MarshalJSON() ([]byte, error) {
	w := eventWire{
		TransactionID:    e.TransactionID,
		CustomerID:       e.CustomerID,
		Amount:           e.Amount,
		Currency:         e.Currency,
		MerchantID:       e.MerchantID,
		MerchantCategory: e.MerchantCategory,
		Location:         e.Location,
		Timestamp:        e.Timestamp.UTC().Format(eventTimestampLayout),
		Metadata:         e.Metadata,
	}
	return json.Marshal(w)
}

func (e *Event) UnmarshalJSON(data []byte) error {
	var w eventWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	ts, err := time.Parse(eventTimestampLayout, w.Timestamp)
	if err != nil {
		// tolerate RFC3339 producers without breaking the canonical layout above
		ts, err = time.Parse(time.RFC3339, w.Timestamp)
		if err != nil {
			return err
		}
	}
	e.TransactionID = w.TransactionID
	e.CustomerID = w.CustomerID
	e.Amount = w.Amount
	e.Currency = w.Currency
	e.MerchantID = w.MerchantID
	e.MerchantCategory = w.MerchantCategory
	e.Location = w.Location
	e.Timestamp = ts
	e.Metadata = w.Metadata
	return nil
}

// RiskTier is the payer's assessed baseline risk.
type RiskTier string

const (
	RiskTierLow    RiskTier = "low"
	RiskTierMedium RiskTier = "medium"
	RiskTierHigh   RiskTier = "high"
)

// Profile is the mutable historical baseline kept per payer, fed by the
// compacted customerProfiles topic. Invariant: Average <= DailyLimit.
type Profile struct {
	CustomerID        string   `json:"customerId"`
	AverageAmount     float64  `json:"averageAmount"`
	DailyLimit        float64  `json:"dailyLimit"`
	TypicalCategories []string `json:"typicalCategories"`
	PrimaryLocation   string   `json:"primaryLocation"`
	RiskTier          RiskTier `json:"riskTier"`
}

// Valid reports whether the profile satisfies its data-model invariant.
func (p Profile) Valid() bool {
	return p.AverageAmount > 0 && p.DailyLimit > 0 && p.AverageAmount <= p.DailyLimit && len(p.TypicalCategories) > 0
}

// EnrichedEvent is an Event paired with whatever Profile and Velocity were
// known at processing time. It exists only in-flight within one decision pass.
type EnrichedEvent struct {
	Event       Event
	Profile     *Profile
	VelocityCnt *int
}

// HasProfile reports whether a profile join succeeded for this event.
func (e EnrichedEvent) HasProfile() bool { return e.Profile != nil }

// HasVelocity reports whether a velocity join succeeded for this event.
func (e EnrichedEvent) HasVelocity() bool { return e.VelocityCnt != nil }

// Velocity returns the joined count, or 0 when absent.
func (e EnrichedEvent) Velocity() int {
	if e.VelocityCnt == nil {
		return 0
	}
	return *e.VelocityCnt
}

// Opinion is one analyzer's scored response to an EnrichedEvent.
type Opinion struct {
	AnalyzerID     string    `json:"analyzerId"`
	Specialization string    `json:"specialization"`
	RawAnalysis    string    `json:"rawAnalysis"`
	RiskScore      float64   `json:"riskScore"`
	Reasoning      string    `json:"reasoning"`
	Recommendation string    `json:"recommendation"`
	ProducedAt     time.Time `json:"producedAt"`
}

// Confidence is min(risk, 1) per spec §3 — the emitting analyzer has no
// separate confidence axis.
func (o Opinion) Confidence() float64 {
	if o.RiskScore > 1 {
		return 1
	}
	return o.RiskScore
}

// Decision is the system's single per-event outcome.
type Decision struct {
	EventID             string    `json:"eventId"`
	CustomerID          string    `json:"customerId"`
	Fraud               bool      `json:"fraud"`
	Confidence          float64   `json:"confidence"`
	PrimaryReason       string    `json:"primaryReason"`
	DetailedExplanation string    `json:"detailedExplanation"`
	Opinions            []Opinion `json:"opinions"`
	AnalyzedAt          time.Time `json:"analyzedAt"`
}

// HighConfidence reports confidence >= 0.8 per spec §3.
func (d Decision) HighConfidence() bool { return d.Confidence >= 0.8 }

// NeedsHuman reports 0.3 < confidence < 0.7 per spec §3.
func (d Decision) NeedsHuman() bool { return d.Confidence > 0.3 && d.Confidence < 0.7 }

// FeedbackRecord is the wire shape of the analyst-feedback topic value.
type FeedbackRecord struct {
	TransactionID string    `json:"transactionId"`
	ActualFraud   bool      `json:"actualFraud"`
	Feedback      string    `json:"feedback"`
	Timestamp     time.Time `json:"timestamp"`
}

// Envelope is implemented by the three router output payloads so the
// router can be written against one branching function.
type Envelope interface {
	EnvelopeType() string
}

// AlertPriority mirrors the priority field of the fraud-alert envelope.
type AlertPriority string

const (
	PriorityHigh   AlertPriority = "HIGH"
	PriorityMedium AlertPriority = "MEDIUM"
)

// FraudAlertEnvelope is published to fraud-alerts per spec §4.6 rule 1.
type FraudAlertEnvelope struct {
	Type                string        `json:"type"`
	EventID             string        `json:"transactionId"`
	ConfidencePercent   int           `json:"confidencePercent"`
	PrimaryReason       string        `json:"primaryReason"`
	OpinionCount        int           `json:"opinionCount"`
	DetailedExplanation string        `json:"detailedExplanation"`
	Priority            AlertPriority `json:"priority"`
	Timestamp           time.Time     `json:"timestamp"`
}

func (FraudAlertEnvelope) EnvelopeType() string { return "AI_FRAUD_ALERT" }

// ReviewCaseEnvelope is published to human-review per spec §4.6 rule 2.
type ReviewCaseEnvelope struct {
	Type      string    `json:"type"`
	EventID   string    `json:"transactionId"`
	Status    string    `json:"status"`
	Opinions  []Opinion `json:"opinions"`
	Timestamp time.Time `json:"timestamp"`
}

func (ReviewCaseEnvelope) EnvelopeType() string { return "AI_REVIEW_CASE" }

const ReviewStatusPending = "PENDING_HUMAN_REVIEW"

// ApprovalEnvelope is published to approved-transactions per spec §4.6 rule 3.
type ApprovalEnvelope struct {
	Type         string    `json:"type"`
	EventID      string    `json:"transactionId"`
	Status       string    `json:"status"`
	OpinionCount int       `json:"opinionCount"`
	Timestamp    time.Time `json:"timestamp"`
}

func (ApprovalEnvelope) EnvelopeType() string { return "AI_APPROVAL" }

const ApprovalStatusApproved = "APPROVED_BY_AI"
