package repositories

import (
	"context"

	"github.com/zatekoja/Clinicaltriagedesign/backend/internal/domain/entities"
)

// DiagnosisJobRepository defines persistence for diagnosis jobs.
type DiagnosisJobRepository interface {
	Create(ctx context.Context, job *entities.DiagnosisJob) error
	GetByID(ctx context.Context, id string) (*entities.DiagnosisJob, error)
	// Update persists status, fingerprint, result references, and error
	// message for an existing job.
	Update(ctx context.Context, job *entities.DiagnosisJob) error
	ListByVisit(ctx context.Context, visitID string) ([]*entities.DiagnosisJob, error)
	// ListActive returns jobs still in PENDING or PROCESSING, newest first.
	ListActive(ctx context.Context, limit int) ([]*entities.DiagnosisJob, error)
}
