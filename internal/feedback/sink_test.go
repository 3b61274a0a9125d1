package feedback

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/enterprise/fraud-pipeline/internal/analyzer"
	"github.com/enterprise/fraud-pipeline/internal/bus"
	"github.com/enterprise/fraud-pipeline/internal/models"
	"github.com/enterprise/fraud-pipeline/internal/scorer"
)

type fakeRepository struct {
	mu      sync.Mutex
	created []models.FeedbackRecord
}

func (r *fakeRepository) Create(ctx context.Context, fb models.FeedbackRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created = append(r.created, fb)
	return nil
}

type noopScorer struct{}

func (noopScorer) Score(ctx context.Context, prompt string) (scorer.Response, error) {
	return scorer.Response{RiskScore: 0.2}, nil
}

func TestHandleMessageAppendsToEveryAnalyzerLog(t *testing.T) {
	repo := &fakeRepository{}
	var analyzers []*analyzer.Analyzer
	for _, spec := range analyzer.All {
		analyzers = append(analyzers, analyzer.New(spec, noopScorer{}))
	}
	sink := New(repo, analyzers)

	fb := models.FeedbackRecord{
		TransactionID: "TX-1",
		ActualFraud:   true,
		Feedback:      "confirmed fraud by analyst",
		Timestamp:     time.Now(),
	}
	payload, err := json.Marshal(fb)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	if err := sink.HandleMessage(context.Background(), bus.Message{Key: "CUST-1", Value: payload}); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}

	for _, a := range analyzers {
		if got := a.FeedbackLogLen(); got != 1 {
			t.Fatalf("analyzer %s: expected feedback log len 1, got %d", a.Spec().ID, got)
		}
	}

	if len(repo.created) != 1 {
		t.Fatalf("expected 1 persisted record, got %d", len(repo.created))
	}
	if repo.created[0].TransactionID != "TX-1" {
		t.Fatalf("expected persisted record for TX-1, got %s", repo.created[0].TransactionID)
	}
}

func TestHandleMessageRejectsMalformedPayload(t *testing.T) {
	repo := &fakeRepository{}
	sink := New(repo, nil)

	if err := sink.HandleMessage(context.Background(), bus.Message{Value: []byte("not json")}); err == nil {
		t.Fatal("expected error for malformed feedback payload")
	}
}

func TestHandleMessageSurvivesNoAnalyzers(t *testing.T) {
	repo := &fakeRepository{}
	sink := New(repo, nil)

	fb := models.FeedbackRecord{TransactionID: "TX-2", ActualFraud: false, Feedback: "false positive", Timestamp: time.Now()}
	payload, _ := json.Marshal(fb)

	if err := sink.HandleMessage(context.Background(), bus.Message{Value: payload}); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if len(repo.created) != 1 {
		t.Fatalf("expected repo write even with no analyzers wired, got %d", len(repo.created))
	}
}
