package repositories

import (
	"context"

	"github.com/zatekoja/Clinicaltriagedesign/backend/internal/domain/entities"
)

// VisitRepository defines the interface for visit, vitals, and labs
// persistence. Vitals and labs hang off a visit one-to-one.
type VisitRepository interface {
	Create(ctx context.Context, visit *entities.Visit) error
	GetByID(ctx context.Context, id string) (*entities.Visit, error)
	GetByPatientAndNumber(ctx context.Context, patientID string, visitNumber int) (*entities.Visit, error)
	// ListByPatient returns the patient's visits ordered by visit number.
	ListByPatient(ctx context.Context, patientID string) ([]*entities.Visit, error)
	CountByPatient(ctx context.Context, patientID string) (int, error)

	SaveVitals(ctx context.Context, vitals *entities.Vitals) error
	// GetVitals returns nil without error when no vitals were recorded.
	GetVitals(ctx context.Context, visitID string) (*entities.Vitals, error)
	SaveLabs(ctx context.Context, labs *entities.Labs) error
	// GetLabs returns nil without error when no labs were recorded.
	GetLabs(ctx context.Context, visitID string) (*entities.Labs, error)
}
