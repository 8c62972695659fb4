package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/zatekoja/Clinicaltriagedesign/backend/internal/domain/repositories"
	"github.com/zatekoja/Clinicaltriagedesign/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/Clinicaltriagedesign/backend/pkg/errors"
)

// LLMUsageAdapter implements the LLMUsageRepository interface
type LLMUsageAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewLLMUsageAdapter creates a new LLM usage adapter
func NewLLMUsageAdapter(client *postgres.Client) repositories.LLMUsageRepository {
	return &LLMUsageAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// TryIncrement claims one request slot for the (model, key, day) triple.
// The whole claim is a single upsert so concurrent callers serialize on the
// row and can never both slip past the ceiling. An unsatisfied conflict
// WHERE clause affects zero rows, which reads back as a denied claim.
func (a *LLMUsageAdapter) TryIncrement(ctx context.Context, model, keyFingerprint, day string, ceiling int) (bool, error) {
	now := time.Now()
	record := goqu.Record{
		"model":           model,
		"key_fingerprint": keyFingerprint,
		"day":             day,
		"count":           1,
		"created_at":      now,
		"updated_at":      now,
	}

	update := goqu.DoUpdate("model, key_fingerprint, day", goqu.Record{
		"count":      goqu.L("llm_usage.count + 1"),
		"updated_at": now,
	})
	if ceiling > 0 {
		update = update.Where(goqu.L("llm_usage.count < ?", ceiling))
	}

	query, args, err := a.db.Insert("llm_usage").Rows(record).
		OnConflict(update).
		ToSQL()
	if err != nil {
		return false, apperrors.NewInternalError("failed to build usage upsert", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return false, apperrors.NewInternalError("failed to increment usage", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, apperrors.NewInternalError("failed to get rows affected", err)
	}

	return rowsAffected > 0, nil
}

// Count returns the current count for the triple, 0 when no row exists
func (a *LLMUsageAdapter) Count(ctx context.Context, model, keyFingerprint, day string) (int, error) {
	query, args, err := a.db.Select("count").From("llm_usage").
		Where(goqu.Ex{
			"model":           model,
			"key_fingerprint": keyFingerprint,
			"day":             day,
		}).
		ToSQL()
	if err != nil {
		return 0, apperrors.NewInternalError("failed to build query", err)
	}

	var count int
	err = a.client.DB().QueryRowContext(ctx, query, args...).Scan(&count)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, apperrors.NewInternalError("failed to get usage count", err)
	}

	return count, nil
}
