package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/zatekoja/Clinicaltriagedesign/backend/internal/domain/entities"
	"github.com/zatekoja/Clinicaltriagedesign/backend/internal/domain/repositories"
	"github.com/zatekoja/Clinicaltriagedesign/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/Clinicaltriagedesign/backend/pkg/errors"
)

var diagnosisJobColumns = []interface{}{
	"id", "visit_id", "requested_by", "fingerprint", "status",
	"reuse_source_id", "result_id", "error_message", "created_at", "updated_at",
}

// DiagnosisJobAdapter implements the DiagnosisJobRepository interface
type DiagnosisJobAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewDiagnosisJobAdapter creates a new diagnosis job adapter
func NewDiagnosisJobAdapter(client *postgres.Client) repositories.DiagnosisJobRepository {
	return &DiagnosisJobAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// Create creates a new diagnosis job
func (a *DiagnosisJobAdapter) Create(ctx context.Context, job *entities.DiagnosisJob) error {
	record := goqu.Record{
		"id":              job.ID,
		"visit_id":        job.VisitID,
		"requested_by":    job.RequestedBy,
		"fingerprint":     job.Fingerprint,
		"status":          job.Status,
		"reuse_source_id": job.ReuseSourceID,
		"result_id":       job.ResultID,
		"error_message":   job.ErrorMessage,
		"created_at":      job.CreatedAt,
		"updated_at":      job.UpdatedAt,
	}

	query, args, err := a.db.Insert("diagnosis_jobs").Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	_, err = a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to create diagnosis job", err)
	}

	return nil
}

// GetByID retrieves a diagnosis job by ID
func (a *DiagnosisJobAdapter) GetByID(ctx context.Context, id string) (*entities.DiagnosisJob, error) {
	query, args, err := a.db.Select(diagnosisJobColumns...).
		From("diagnosis_jobs").
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	job, err := scanDiagnosisJob(a.client.DB().QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("diagnosis job %s not found", id))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get diagnosis job", err)
	}

	return job, nil
}

// Update persists status, fingerprint, result references, and error message
func (a *DiagnosisJobAdapter) Update(ctx context.Context, job *entities.DiagnosisJob) error {
	job.UpdatedAt = time.Now()

	query, args, err := a.db.Update("diagnosis_jobs").
		Set(goqu.Record{
			"fingerprint":     job.Fingerprint,
			"status":          job.Status,
			"reuse_source_id": job.ReuseSourceID,
			"result_id":       job.ResultID,
			"error_message":   job.ErrorMessage,
			"updated_at":      job.UpdatedAt,
		}).
		Where(goqu.Ex{"id": job.ID}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to update diagnosis job", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("diagnosis job %s not found", job.ID))
	}

	return nil
}

// ListByVisit retrieves the visit's jobs, newest first
func (a *DiagnosisJobAdapter) ListByVisit(ctx context.Context, visitID string) ([]*entities.DiagnosisJob, error) {
	query, args, err := a.db.Select(diagnosisJobColumns...).
		From("diagnosis_jobs").
		Where(goqu.Ex{"visit_id": visitID}).
		Order(goqu.I("created_at").Desc()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	return a.queryJobs(ctx, query, args)
}

// ListActive retrieves jobs still pending or processing, newest first
func (a *DiagnosisJobAdapter) ListActive(ctx context.Context, limit int) ([]*entities.DiagnosisJob, error) {
	builder := a.db.Select(diagnosisJobColumns...).
		From("diagnosis_jobs").
		Where(goqu.Ex{"status": []entities.JobStatus{
			entities.JobStatusPending, entities.JobStatusProcessing,
		}}).
		Order(goqu.I("created_at").Desc())
	if limit > 0 {
		builder = builder.Limit(uint(limit))
	}
	query, args, err := builder.ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	return a.queryJobs(ctx, query, args)
}

func (a *DiagnosisJobAdapter) queryJobs(ctx context.Context, query string, args []interface{}) ([]*entities.DiagnosisJob, error) {
	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list diagnosis jobs", err)
	}
	defer rows.Close()

	jobs := []*entities.DiagnosisJob{}
	for rows.Next() {
		job, err := scanDiagnosisJob(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan diagnosis job", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("error iterating diagnosis jobs", err)
	}

	return jobs, nil
}

func scanDiagnosisJob(row rowScanner) (*entities.DiagnosisJob, error) {
	job := &entities.DiagnosisJob{}
	err := row.Scan(
		&job.ID,
		&job.VisitID,
		&job.RequestedBy,
		&job.Fingerprint,
		&job.Status,
		&job.ReuseSourceID,
		&job.ResultID,
		&job.ErrorMessage,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return job, nil
}
