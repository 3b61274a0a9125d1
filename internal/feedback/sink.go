// Package feedback consumes the analyst-feedback topic, appends each record
// to every analyzer's write-only knowledge-base log, and persists it for
// future offline retraining. No closed-loop effect on scoring is specified
// (spec §9 Open Question 1); this sink is a capture point only.
package feedback

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/enterprise/fraud-pipeline/internal/analyzer"
	"github.com/enterprise/fraud-pipeline/internal/bus"
	"github.com/enterprise/fraud-pipeline/internal/models"
)

// feedbackRepository is satisfied by *repositories.FeedbackRepository;
// narrowed here so tests can substitute a fake without a live Postgres.
type feedbackRepository interface {
	Create(ctx context.Context, fb models.FeedbackRecord) error
}

// Sink persists analyst feedback records and fans them out to each
// analyzer's append-only feedback log.
type Sink struct {
	repo      feedbackRepository
	analyzers []*analyzer.Analyzer
}

// New builds a feedback Sink. analyzers receive every feedback record in
// their write-only log (spec §5); the decision path never reads it back.
func New(repo feedbackRepository, analyzers []*analyzer.Analyzer) *Sink {
	return &Sink{repo: repo, analyzers: analyzers}
}

// HandleMessage decodes one analyst-feedback bus message, appends it to
// every analyzer's knowledge-base log, and records it durably. It
// implements bus.RecordHandler.
func (s *Sink) HandleMessage(ctx context.Context, msg bus.Message) error {
	var fb models.FeedbackRecord
	if err := json.Unmarshal(msg.Value, &fb); err != nil {
		return fmt.Errorf("malformed feedback record: %w", err)
	}

	entry := analyzer.FeedbackEntry{
		TransactionID: fb.TransactionID,
		ActualFraud:   fb.ActualFraud,
		Feedback:      fb.Feedback,
		RecordedAt:    time.Now(),
	}
	for _, a := range s.analyzers {
		a.RecordFeedback(entry)
	}

	if err := s.repo.Create(ctx, fb); err != nil {
		return fmt.Errorf("failed to record feedback: %w", err)
	}

	log.Info().Str("transactionId", fb.TransactionID).Bool("actualFraud", fb.ActualFraud).Msg("analyst feedback recorded")
	return nil
}
