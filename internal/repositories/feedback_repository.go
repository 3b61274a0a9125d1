package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/enterprise/fraud-pipeline/internal/models"
)

// FeedbackRepository persists analyst-feedback records for future offline
// retraining (spec §9 Open Question 1). No reader currently consumes this
// table; it exists purely to capture ground truth as it arrives.
type FeedbackRepository struct {
	db *Database
}

// NewFeedbackRepository creates a new feedback repository.
func NewFeedbackRepository(db *Database) *FeedbackRepository {
	return &FeedbackRepository{db: db}
}

// Create persists one feedback record.
func (r *FeedbackRepository) Create(ctx context.Context, fb models.FeedbackRecord) error {
	query := `
		INSERT INTO analyst_feedback (id, transaction_id, actual_fraud, feedback, received_at, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.Pool.Exec(ctx, query,
		uuid.New(),
		fb.TransactionID,
		fb.ActualFraud,
		fb.Feedback,
		fb.Timestamp,
		time.Now(),
	)

	return err
}

// CreateBatch persists multiple feedback records in one round trip,
// mirroring the teacher's audit-log batch-insert pattern
// (internal/repositories/audit_repository.go's pgx.Batch usage).
func (r *FeedbackRepository) CreateBatch(ctx context.Context, records []models.FeedbackRecord) error {
	if len(records) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, fb := range records {
		batch.Queue(
			`INSERT INTO analyst_feedback (id, transaction_id, actual_fraud, feedback, received_at, recorded_at)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			uuid.New(), fb.TransactionID, fb.ActualFraud, fb.Feedback, fb.Timestamp, time.Now(),
		)
	}

	results := r.db.Pool.SendBatch(ctx, batch)
	defer results.Close()

	for range records {
		if _, err := results.Exec(); err != nil {
			return err
		}
	}

	return nil
}
