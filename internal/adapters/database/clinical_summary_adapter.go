package database

import (
	"context"
	"database/sql"
	"errors"

	"github.com/doug-martin/goqu/v9"
	"github.com/lib/pq"
	"github.com/zatekoja/Clinicaltriagedesign/backend/internal/domain/entities"
	"github.com/zatekoja/Clinicaltriagedesign/backend/internal/domain/repositories"
	"github.com/zatekoja/Clinicaltriagedesign/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/Clinicaltriagedesign/backend/pkg/errors"
)

// ClinicalSummaryAdapter implements the ClinicalSummaryRepository interface
type ClinicalSummaryAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewClinicalSummaryAdapter creates a new clinical summary adapter
func NewClinicalSummaryAdapter(client *postgres.Client) repositories.ClinicalSummaryRepository {
	return &ClinicalSummaryAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// Upsert inserts the visit's summary or replaces it in place
func (a *ClinicalSummaryAdapter) Upsert(ctx context.Context, summary *entities.ClinicalSummary) error {
	record := goqu.Record{
		"visit_id":   summary.VisitID,
		"text":       summary.Text,
		"embedding":  embeddingToArray(summary.Embedding),
		"created_at": summary.CreatedAt,
		"updated_at": summary.UpdatedAt,
	}

	update := goqu.Record{
		"text":       summary.Text,
		"embedding":  embeddingToArray(summary.Embedding),
		"updated_at": summary.UpdatedAt,
	}

	query, args, err := a.db.Insert("clinical_summaries").Rows(record).
		OnConflict(goqu.DoUpdate("visit_id", update)).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build upsert query", err)
	}

	_, err = a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		if isContentionError(err) {
			return apperrors.NewUnavailableError("clinical summary row busy", err)
		}
		return apperrors.NewInternalError("failed to upsert clinical summary", err)
	}

	return nil
}

// Lock and serialization failures are transient; callers retry them with
// linear backoff instead of failing the job.
func isContentionError(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	switch pqErr.Code {
	case "55P03", "40001", "40P01": // lock_not_available, serialization_failure, deadlock_detected
		return true
	}
	return false
}

// GetByVisit retrieves the visit's summary, nil when none exists yet
func (a *ClinicalSummaryAdapter) GetByVisit(ctx context.Context, visitID string) (*entities.ClinicalSummary, error) {
	query, args, err := a.db.Select(
		"visit_id", "text", "embedding", "created_at", "updated_at",
	).From("clinical_summaries").
		Where(goqu.Ex{"visit_id": visitID}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	summary := &entities.ClinicalSummary{}
	var embedding pq.Float64Array
	err = a.client.DB().QueryRowContext(ctx, query, args...).Scan(
		&summary.VisitID,
		&summary.Text,
		&embedding,
		&summary.CreatedAt,
		&summary.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get clinical summary", err)
	}

	summary.Embedding = arrayToEmbedding(embedding)
	return summary, nil
}
