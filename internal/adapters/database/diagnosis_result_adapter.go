package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	"github.com/lib/pq"
	"github.com/zatekoja/Clinicaltriagedesign/backend/internal/domain/entities"
	"github.com/zatekoja/Clinicaltriagedesign/backend/internal/domain/repositories"
	"github.com/zatekoja/Clinicaltriagedesign/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/Clinicaltriagedesign/backend/pkg/errors"
)

var diagnosisResultColumns = []interface{}{
	"id", "visit_id", "source_result_id", "fingerprint",
	"differential_diagnoses", "triage_level", "explanation",
	"confidence_score", "retrieved_case_ids", "created_at",
}

// DiagnosisResultAdapter implements the DiagnosisResultRepository interface
type DiagnosisResultAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewDiagnosisResultAdapter creates a new diagnosis result adapter
func NewDiagnosisResultAdapter(client *postgres.Client) repositories.DiagnosisResultRepository {
	return &DiagnosisResultAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// Create persists an immutable diagnosis result
func (a *DiagnosisResultAdapter) Create(ctx context.Context, result *entities.DiagnosisResult) error {
	differentials, err := json.Marshal(result.DifferentialDiagnoses)
	if err != nil {
		return apperrors.NewInternalError("failed to encode differential diagnoses", err)
	}

	record := goqu.Record{
		"id":                     result.ID,
		"visit_id":               result.VisitID,
		"source_result_id":       result.SourceResultID,
		"fingerprint":            result.Fingerprint,
		"differential_diagnoses": differentials,
		"triage_level":           result.TriageLevel,
		"explanation":            result.Explanation,
		"confidence_score":       result.ConfidenceScore,
		"retrieved_case_ids":     pq.Array(result.RetrievedCaseIDs),
		"created_at":             result.CreatedAt,
	}

	query, args, err := a.db.Insert("diagnosis_results").Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	_, err = a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to create diagnosis result", err)
	}

	return nil
}

// GetByID retrieves a diagnosis result by ID
func (a *DiagnosisResultAdapter) GetByID(ctx context.Context, id string) (*entities.DiagnosisResult, error) {
	query, args, err := a.db.Select(diagnosisResultColumns...).
		From("diagnosis_results").
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	result, err := scanDiagnosisResult(a.client.DB().QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("diagnosis result %s not found", id))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get diagnosis result", err)
	}

	return result, nil
}

// LatestByFingerprint retrieves the newest result carrying the fingerprint,
// nil when no identical presentation was ever diagnosed
func (a *DiagnosisResultAdapter) LatestByFingerprint(ctx context.Context, fingerprint string) (*entities.DiagnosisResult, error) {
	query, args, err := a.db.Select(diagnosisResultColumns...).
		From("diagnosis_results").
		Where(goqu.Ex{"fingerprint": fingerprint}).
		Order(goqu.I("created_at").Desc()).
		Limit(1).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	result, err := scanDiagnosisResult(a.client.DB().QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get diagnosis result by fingerprint", err)
	}

	return result, nil
}

// ListByVisit retrieves the visit's results, newest first
func (a *DiagnosisResultAdapter) ListByVisit(ctx context.Context, visitID string) ([]*entities.DiagnosisResult, error) {
	return a.list(ctx, goqu.Ex{"visit_id": visitID})
}

// ListByPatient retrieves every result across the patient's visits, newest first
func (a *DiagnosisResultAdapter) ListByPatient(ctx context.Context, patientID string) ([]*entities.DiagnosisResult, error) {
	subquery := a.db.Select("id").From("visits").Where(goqu.Ex{"patient_id": patientID})
	return a.list(ctx, goqu.Ex{"visit_id": goqu.Op{"in": subquery}})
}

func (a *DiagnosisResultAdapter) list(ctx context.Context, where goqu.Ex) ([]*entities.DiagnosisResult, error) {
	query, args, err := a.db.Select(diagnosisResultColumns...).
		From("diagnosis_results").
		Where(where).
		Order(goqu.I("created_at").Desc()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list diagnosis results", err)
	}
	defer rows.Close()

	results := []*entities.DiagnosisResult{}
	for rows.Next() {
		result, err := scanDiagnosisResult(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan diagnosis result", err)
		}
		results = append(results, result)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("error iterating diagnosis results", err)
	}

	return results, nil
}

// DeleteByVisit removes every result for the visit and returns the number
// of rows deleted
func (a *DiagnosisResultAdapter) DeleteByVisit(ctx context.Context, visitID string) (int, error) {
	query, args, err := a.db.Delete("diagnosis_results").
		Where(goqu.Ex{"visit_id": visitID}).
		ToSQL()
	if err != nil {
		return 0, apperrors.NewInternalError("failed to build delete query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return 0, apperrors.NewInternalError("failed to delete diagnosis results", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, apperrors.NewInternalError("failed to get rows affected", err)
	}

	return int(rowsAffected), nil
}

// CountSince counts results created at or after the given day boundary
func (a *DiagnosisResultAdapter) CountSince(ctx context.Context, sinceDay string) (int, error) {
	query, args, err := a.db.Select(goqu.COUNT("*")).
		From("diagnosis_results").
		Where(goqu.C("created_at").Gte(sinceDay)).
		ToSQL()
	if err != nil {
		return 0, apperrors.NewInternalError("failed to build query", err)
	}

	var count int
	if err := a.client.DB().QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, apperrors.NewInternalError("failed to count diagnosis results", err)
	}

	return count, nil
}

// CountByTriage aggregates results per triage level
func (a *DiagnosisResultAdapter) CountByTriage(ctx context.Context) (map[entities.TriageLevel]int, error) {
	query, args, err := a.db.Select("triage_level", goqu.COUNT("*")).
		From("diagnosis_results").
		GroupBy("triage_level").
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to count by triage level", err)
	}
	defer rows.Close()

	counts := map[entities.TriageLevel]int{}
	for rows.Next() {
		var level entities.TriageLevel
		var count int
		if err := rows.Scan(&level, &count); err != nil {
			return nil, apperrors.NewInternalError("failed to scan triage count", err)
		}
		counts[level] = count
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("error iterating triage counts", err)
	}

	return counts, nil
}

func scanDiagnosisResult(row rowScanner) (*entities.DiagnosisResult, error) {
	result := &entities.DiagnosisResult{}
	var differentials []byte
	var caseIDs pq.StringArray
	err := row.Scan(
		&result.ID,
		&result.VisitID,
		&result.SourceResultID,
		&result.Fingerprint,
		&differentials,
		&result.TriageLevel,
		&result.Explanation,
		&result.ConfidenceScore,
		&caseIDs,
		&result.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(differentials) > 0 {
		if err := json.Unmarshal(differentials, &result.DifferentialDiagnoses); err != nil {
			return nil, err
		}
	}
	result.RetrievedCaseIDs = []string(caseIDs)
	return result, nil
}
