package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	"github.com/lib/pq"
	"github.com/zatekoja/Clinicaltriagedesign/backend/internal/domain/entities"
	"github.com/zatekoja/Clinicaltriagedesign/backend/internal/domain/repositories"
	"github.com/zatekoja/Clinicaltriagedesign/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/Clinicaltriagedesign/backend/pkg/errors"
)

// KnowledgeCaseAdapter implements the KnowledgeCaseRepository interface
type KnowledgeCaseAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewKnowledgeCaseAdapter creates a new knowledge case adapter
func NewKnowledgeCaseAdapter(client *postgres.Client) repositories.KnowledgeCaseRepository {
	return &KnowledgeCaseAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// Upsert inserts or replaces a knowledge case
func (a *KnowledgeCaseAdapter) Upsert(ctx context.Context, kc *entities.KnowledgeCase) error {
	record := goqu.Record{
		"case_id":    kc.CaseID,
		"summary":    kc.Summary,
		"diagnosis":  kc.Diagnosis,
		"outcome":    kc.Outcome,
		"embedding":  embeddingToArray(kc.Embedding),
		"created_at": kc.CreatedAt,
	}

	query, args, err := a.db.Insert("knowledge_cases").Rows(record).
		OnConflict(goqu.DoUpdate("case_id", record)).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build upsert query", err)
	}

	_, err = a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to upsert knowledge case", err)
	}

	return nil
}

// GetByID retrieves a knowledge case by case ID
func (a *KnowledgeCaseAdapter) GetByID(ctx context.Context, caseID string) (*entities.KnowledgeCase, error) {
	query, args, err := a.db.Select(
		"case_id", "summary", "diagnosis", "outcome", "embedding", "created_at",
	).From("knowledge_cases").
		Where(goqu.Ex{"case_id": caseID}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	kc, err := scanKnowledgeCase(a.client.DB().QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("knowledge case %s not found", caseID))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get knowledge case", err)
	}

	return kc, nil
}

// GetByIDs retrieves knowledge cases preserving the requested id order.
// Ids with no matching row are dropped silently.
func (a *KnowledgeCaseAdapter) GetByIDs(ctx context.Context, caseIDs []string) ([]*entities.KnowledgeCase, error) {
	if len(caseIDs) == 0 {
		return []*entities.KnowledgeCase{}, nil
	}

	query, args, err := a.db.Select(
		"case_id", "summary", "diagnosis", "outcome", "embedding", "created_at",
	).From("knowledge_cases").
		Where(goqu.Ex{"case_id": caseIDs}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get knowledge cases", err)
	}
	defer rows.Close()

	byID := make(map[string]*entities.KnowledgeCase, len(caseIDs))
	for rows.Next() {
		kc, err := scanKnowledgeCase(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan knowledge case", err)
		}
		byID[kc.CaseID] = kc
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("error iterating knowledge cases", err)
	}

	ordered := make([]*entities.KnowledgeCase, 0, len(caseIDs))
	for _, id := range caseIDs {
		if kc, ok := byID[id]; ok {
			ordered = append(ordered, kc)
		}
	}
	return ordered, nil
}

// ListAll retrieves every knowledge case, for index builds
func (a *KnowledgeCaseAdapter) ListAll(ctx context.Context) ([]*entities.KnowledgeCase, error) {
	query, args, err := a.db.Select(
		"case_id", "summary", "diagnosis", "outcome", "embedding", "created_at",
	).From("knowledge_cases").
		Order(goqu.I("case_id").Asc()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list knowledge cases", err)
	}
	defer rows.Close()

	cases := []*entities.KnowledgeCase{}
	for rows.Next() {
		kc, err := scanKnowledgeCase(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan knowledge case", err)
		}
		cases = append(cases, kc)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("error iterating knowledge cases", err)
	}

	return cases, nil
}

// Count counts knowledge cases
func (a *KnowledgeCaseAdapter) Count(ctx context.Context) (int, error) {
	query, args, err := a.db.Select(goqu.COUNT("*")).From("knowledge_cases").ToSQL()
	if err != nil {
		return 0, apperrors.NewInternalError("failed to build query", err)
	}

	var count int
	if err := a.client.DB().QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, apperrors.NewInternalError("failed to count knowledge cases", err)
	}

	return count, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanKnowledgeCase(row rowScanner) (*entities.KnowledgeCase, error) {
	kc := &entities.KnowledgeCase{}
	var embedding pq.Float64Array
	err := row.Scan(
		&kc.CaseID,
		&kc.Summary,
		&kc.Diagnosis,
		&kc.Outcome,
		&embedding,
		&kc.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	kc.Embedding = arrayToEmbedding(embedding)
	return kc, nil
}
