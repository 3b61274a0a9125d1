package store

import (
	"testing"

	"github.com/enterprise/fraud-pipeline/internal/models"
)

func TestProfileStorePutGet(t *testing.T) {
	s, err := NewProfileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewProfileStore: %v", err)
	}
	defer s.Close()

	p := models.Profile{
		CustomerID:        "CUST-1",
		AverageAmount:     100,
		DailyLimit:        500,
		TypicalCategories: []string{"GROCERY"},
		PrimaryLocation:   "Austin, TX",
		RiskTier:          models.RiskTierLow,
	}

	if err := s.Put(p); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, found, err := s.Get("CUST-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !found {
		t.Fatalf("expected profile to be found")
	}
	if got.AverageAmount != p.AverageAmount || got.PrimaryLocation != p.PrimaryLocation {
		t.Fatalf("profile mismatch: got %+v, want %+v", got, p)
	}
}

func TestProfileStoreMissingIsNotError(t *testing.T) {
	s, err := NewProfileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewProfileStore: %v", err)
	}
	defer s.Close()

	got, found, err := s.Get("UNKNOWN")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if found || got != nil {
		t.Fatalf("expected no profile for unknown customer")
	}
}

func TestProfileStoreOverwritesOnRepeat(t *testing.T) {
	s, err := NewProfileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewProfileStore: %v", err)
	}
	defer s.Close()

	if err := s.Put(models.Profile{CustomerID: "CUST-1", AverageAmount: 100, DailyLimit: 500, TypicalCategories: []string{"GROCERY"}}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Put(models.Profile{CustomerID: "CUST-1", AverageAmount: 200, DailyLimit: 500, TypicalCategories: []string{"TRAVEL"}}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, found, err := s.Get("CUST-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !found || got.AverageAmount != 200 || got.TypicalCategories[0] != "TRAVEL" {
		t.Fatalf("expected latest write to win, got %+v", got)
	}
}
