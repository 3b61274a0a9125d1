package models

import (
	"encoding/json"
	"testing"
	"time"
)

func TestEventJSONRoundTrip(t *testing.T) {
	original := Event{
		TransactionID:    "TX-1",
		CustomerID:       "CUST-001",
		Amount:           54.00,
		Currency:         "USD",
		MerchantID:       "MERCH-9",
		MerchantCategory: "ONLINE",
		Location:         "Unknown Location",
		Timestamp:        time.Date(2026, 7, 31, 10, 0, 0, 0, time.UTC),
		Metadata:         map[string]string{"channel": "web"},
	}

	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded Event
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	reEncoded, err := json.Marshal(decoded)
	if err != nil {
		t.Fatalf("re-marshal: %v", err)
	}

	if string(data) != string(reEncoded) {
		t.Fatalf("round trip not byte-equal:\n first: %s\nsecond: %s", data, reEncoded)
	}
}

func TestEventTimestampLayout(t *testing.T) {
	e := Event{Timestamp: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
	data, err := json.Marshal(e)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var asMap map[string]interface{}
	if err := json.Unmarshal(data, &asMap); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if asMap["timestamp"] != "2026-01-02T03:04:05" {
		t.Fatalf("unexpected timestamp encoding: %v", asMap["timestamp"])
	}
}

func TestOpinionConfidenceIsClampedRisk(t *testing.T) {
	o := Opinion{RiskScore: 0.42}
	if o.Confidence() != 0.42 {
		t.Fatalf("expected confidence 0.42, got %v", o.Confidence())
	}
	o2 := Opinion{RiskScore: 1.5}
	if o2.Confidence() != 1 {
		t.Fatalf("expected confidence clamped to 1, got %v", o2.Confidence())
	}
}

func TestDecisionPredicates(t *testing.T) {
	cases := []struct {
		confidence   float64
		wantHighConf bool
		wantNeedsHum bool
	}{
		{confidence: 0.8, wantHighConf: true, wantNeedsHum: false},
		{confidence: 0.79, wantHighConf: false, wantNeedsHum: false},
		{confidence: 0.7, wantHighConf: false, wantNeedsHum: false},
		{confidence: 0.69, wantHighConf: false, wantNeedsHum: true},
		{confidence: 0.3, wantHighConf: false, wantNeedsHum: false},
		{confidence: 0.31, wantHighConf: false, wantNeedsHum: true},
	}
	for _, c := range cases {
		d := Decision{Confidence: c.confidence}
		if d.HighConfidence() != c.wantHighConf {
			t.Errorf("confidence=%v: HighConfidence()=%v, want %v", c.confidence, d.HighConfidence(), c.wantHighConf)
		}
		if d.NeedsHuman() != c.wantNeedsHum {
			t.Errorf("confidence=%v: NeedsHuman()=%v, want %v", c.confidence, d.NeedsHuman(), c.wantNeedsHum)
		}
	}
}

func TestProfileInvariant(t *testing.T) {
	valid := Profile{AverageAmount: 100, DailyLimit: 500, TypicalCategories: []string{"GROCERY"}}
	if !valid.Valid() {
		t.Fatalf("expected profile to be valid")
	}
	invalid := Profile{AverageAmount: 600, DailyLimit: 500, TypicalCategories: []string{"GROCERY"}}
	if invalid.Valid() {
		t.Fatalf("expected profile with average > dailyLimit to be invalid")
	}
}
