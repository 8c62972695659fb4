package repositories

import (
	"context"

	"github.com/zatekoja/Clinicaltriagedesign/backend/internal/domain/entities"
)

// DiagnosisResultRepository defines persistence for immutable diagnosis
// results.
type DiagnosisResultRepository interface {
	Create(ctx context.Context, result *entities.DiagnosisResult) error
	GetByID(ctx context.Context, id string) (*entities.DiagnosisResult, error)
	// LatestByFingerprint returns the newest result carrying the fingerprint,
	// or nil without error when none exists.
	LatestByFingerprint(ctx context.Context, fingerprint string) (*entities.DiagnosisResult, error)
	ListByVisit(ctx context.Context, visitID string) ([]*entities.DiagnosisResult, error)
	ListByPatient(ctx context.Context, patientID string) ([]*entities.DiagnosisResult, error)
	// DeleteByVisit removes every result for the visit and returns how many
	// rows were deleted. Used by force-regenerate.
	DeleteByVisit(ctx context.Context, visitID string) (int, error)
	// CountSince counts results created at or after the given day boundary;
	// CountByTriage aggregates results per triage level.
	CountSince(ctx context.Context, sinceDay string) (int, error)
	CountByTriage(ctx context.Context) (map[entities.TriageLevel]int, error)
}
