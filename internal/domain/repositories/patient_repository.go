package repositories

import (
	"context"

	"github.com/zatekoja/Clinicaltriagedesign/backend/internal/domain/entities"
)

// PatientRepository defines the interface for patient persistence.
type PatientRepository interface {
	Create(ctx context.Context, patient *entities.Patient) error
	GetByID(ctx context.Context, id string) (*entities.Patient, error)
	List(ctx context.Context, includeDeleted bool) ([]*entities.Patient, error)
	SoftDelete(ctx context.Context, id string) error
}
