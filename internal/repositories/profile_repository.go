package repositories

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/enterprise/fraud-pipeline/internal/models"
)

var ErrProfileNotFound = errors.New("profile not found")

// ProfileRepository is the durable mirror of the customerProfiles
// compacted topic: a queryable backing for operational tooling. No command
// in this repository constructs it, and neither the HTTP boundary nor the
// hot decision path reads through here — the decision path reads the
// pebble-backed internal/store table the enrichment topology owns.
type ProfileRepository struct {
	db *Database
}

// NewProfileRepository creates a new profile repository.
func NewProfileRepository(db *Database) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// Upsert inserts or updates the durable row for one customer's profile.
func (r *ProfileRepository) Upsert(ctx context.Context, p models.Profile) error {
	query := `
		INSERT INTO customer_profiles (customer_id, average_amount, daily_limit, typical_categories, primary_location, risk_tier, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (customer_id) DO UPDATE SET
			average_amount = EXCLUDED.average_amount,
			daily_limit = EXCLUDED.daily_limit,
			typical_categories = EXCLUDED.typical_categories,
			primary_location = EXCLUDED.primary_location,
			risk_tier = EXCLUDED.risk_tier,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.Pool.Exec(ctx, query,
		p.CustomerID,
		p.AverageAmount,
		p.DailyLimit,
		strings.Join(p.TypicalCategories, ","),
		p.PrimaryLocation,
		string(p.RiskTier),
		time.Now(),
	)

	return err
}

// GetByCustomerID retrieves the durable profile row for one customer.
func (r *ProfileRepository) GetByCustomerID(ctx context.Context, customerID string) (*models.Profile, error) {
	query := `
		SELECT customer_id, average_amount, daily_limit, typical_categories, primary_location, risk_tier
		FROM customer_profiles
		WHERE customer_id = $1
	`

	var p models.Profile
	var categories string
	err := r.db.Pool.QueryRow(ctx, query, customerID).Scan(
		&p.CustomerID,
		&p.AverageAmount,
		&p.DailyLimit,
		&categories,
		&p.PrimaryLocation,
		&p.RiskTier,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}

	p.TypicalCategories = strings.Split(categories, ",")
	return &p, nil
}
