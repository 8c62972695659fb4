package database

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/Clinicaltriagedesign/backend/internal/domain/entities"
	"github.com/zatekoja/Clinicaltriagedesign/backend/internal/domain/repositories"
	"github.com/zatekoja/Clinicaltriagedesign/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/Clinicaltriagedesign/backend/pkg/errors"
)

func setupSummaryAdapter(t *testing.T) (repositories.ClinicalSummaryRepository, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewClinicalSummaryAdapter(postgres.NewClientFromDB(db)), mock
}

func summaryFixture() *entities.ClinicalSummary {
	return &entities.ClinicalSummary{
		VisitID:   "v-1",
		Text:      "Patient: 47-year-old F. Chief Complaint: chest pain.",
		Embedding: []float32{0.1, 0.2, 0.3},
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
}

func TestClinicalSummaryAdapter_Upsert(t *testing.T) {
	adapter, mock := setupSummaryAdapter(t)

	mock.ExpectExec(`INSERT INTO "clinical_summaries"`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := adapter.Upsert(context.Background(), summaryFixture())
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClinicalSummaryAdapter_UpsertRowBusyIsUnavailable(t *testing.T) {
	tests := []struct {
		name string
		code pq.ErrorCode
	}{
		{"lock not available", "55P03"},
		{"serialization failure", "40001"},
		{"deadlock detected", "40P01"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adapter, mock := setupSummaryAdapter(t)

			mock.ExpectExec(`INSERT INTO "clinical_summaries"`).
				WillReturnError(&pq.Error{Code: tt.code})

			err := adapter.Upsert(context.Background(), summaryFixture())
			require.Error(t, err)
			assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeUnavailable),
				"contention errors must be retryable")
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestClinicalSummaryAdapter_UpsertOtherSQLErrorIsInternal(t *testing.T) {
	adapter, mock := setupSummaryAdapter(t)

	mock.ExpectExec(`INSERT INTO "clinical_summaries"`).
		WillReturnError(&pq.Error{Code: "23505"})

	err := adapter.Upsert(context.Background(), summaryFixture())
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeInternal))
	assert.NoError(t, mock.ExpectationsWereMet())
}
