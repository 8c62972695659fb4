package repositories

import (
	"context"

	"github.com/zatekoja/Clinicaltriagedesign/backend/internal/domain/entities"
)

// ClinicalSummaryRepository defines persistence for generated summaries.
// There is at most one summary per visit; Upsert replaces in place.
type ClinicalSummaryRepository interface {
	Upsert(ctx context.Context, summary *entities.ClinicalSummary) error
	// GetByVisit returns nil without error when no summary has been
	// generated yet.
	GetByVisit(ctx context.Context, visitID string) (*entities.ClinicalSummary, error)
}
