package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	"github.com/zatekoja/Clinicaltriagedesign/backend/internal/domain/entities"
	"github.com/zatekoja/Clinicaltriagedesign/backend/internal/domain/repositories"
	"github.com/zatekoja/Clinicaltriagedesign/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/Clinicaltriagedesign/backend/pkg/errors"
)

var visitColumns = []interface{}{
	"id", "patient_id", "visit_number", "visit_type", "chief_complaint",
	"symptoms", "medical_history", "medications", "clinical_notes",
	"created_at", "updated_at",
}

// VisitAdapter implements the VisitRepository interface
type VisitAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewVisitAdapter creates a new visit adapter
func NewVisitAdapter(client *postgres.Client) repositories.VisitRepository {
	return &VisitAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// Create creates a new visit
func (a *VisitAdapter) Create(ctx context.Context, visit *entities.Visit) error {
	record := goqu.Record{
		"id":              visit.ID,
		"patient_id":      visit.PatientID,
		"visit_number":    visit.VisitNumber,
		"visit_type":      visit.VisitType,
		"chief_complaint": visit.ChiefComplaint,
		"symptoms":        visit.Symptoms,
		"medical_history": visit.MedicalHistory,
		"medications":     visit.Medications,
		"clinical_notes":  visit.ClinicalNotes,
		"created_at":      visit.CreatedAt,
		"updated_at":      visit.UpdatedAt,
	}

	query, args, err := a.db.Insert("visits").Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	_, err = a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to create visit", err)
	}

	return nil
}

// GetByID retrieves a visit by ID
func (a *VisitAdapter) GetByID(ctx context.Context, id string) (*entities.Visit, error) {
	return a.getOne(ctx, goqu.Ex{"id": id}, fmt.Sprintf("visit with id %s not found", id))
}

// GetByPatientAndNumber retrieves a specific visit in a patient's sequence
func (a *VisitAdapter) GetByPatientAndNumber(ctx context.Context, patientID string, visitNumber int) (*entities.Visit, error) {
	return a.getOne(ctx,
		goqu.Ex{"patient_id": patientID, "visit_number": visitNumber},
		fmt.Sprintf("visit %d for patient %s not found", visitNumber, patientID))
}

func (a *VisitAdapter) getOne(ctx context.Context, where goqu.Ex, notFoundMsg string) (*entities.Visit, error) {
	query, args, err := a.db.Select(visitColumns...).From("visits").Where(where).ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	visit := &entities.Visit{}
	err = a.client.DB().QueryRowContext(ctx, query, args...).Scan(
		&visit.ID,
		&visit.PatientID,
		&visit.VisitNumber,
		&visit.VisitType,
		&visit.ChiefComplaint,
		&visit.Symptoms,
		&visit.MedicalHistory,
		&visit.Medications,
		&visit.ClinicalNotes,
		&visit.CreatedAt,
		&visit.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(notFoundMsg)
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get visit", err)
	}

	return visit, nil
}

// ListByPatient retrieves a patient's visits ordered by visit number
func (a *VisitAdapter) ListByPatient(ctx context.Context, patientID string) ([]*entities.Visit, error) {
	query, args, err := a.db.Select(visitColumns...).From("visits").
		Where(goqu.Ex{"patient_id": patientID}).
		Order(goqu.I("visit_number").Asc()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list visits", err)
	}
	defer rows.Close()

	visits := []*entities.Visit{}
	for rows.Next() {
		visit := &entities.Visit{}
		err := rows.Scan(
			&visit.ID,
			&visit.PatientID,
			&visit.VisitNumber,
			&visit.VisitType,
			&visit.ChiefComplaint,
			&visit.Symptoms,
			&visit.MedicalHistory,
			&visit.Medications,
			&visit.ClinicalNotes,
			&visit.CreatedAt,
			&visit.UpdatedAt,
		)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan visit", err)
		}
		visits = append(visits, visit)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("error iterating visits", err)
	}

	return visits, nil
}

// CountByPatient counts a patient's visits
func (a *VisitAdapter) CountByPatient(ctx context.Context, patientID string) (int, error) {
	query, args, err := a.db.Select(goqu.COUNT("*")).From("visits").
		Where(goqu.Ex{"patient_id": patientID}).
		ToSQL()
	if err != nil {
		return 0, apperrors.NewInternalError("failed to build query", err)
	}

	var count int
	if err := a.client.DB().QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, apperrors.NewInternalError("failed to count visits", err)
	}

	return count, nil
}

// SaveVitals inserts or replaces the vitals recorded for a visit
func (a *VisitAdapter) SaveVitals(ctx context.Context, vitals *entities.Vitals) error {
	record := goqu.Record{
		"visit_id":          vitals.VisitID,
		"systolic_bp":       vitals.SystolicBP,
		"diastolic_bp":      vitals.DiastolicBP,
		"heart_rate":        vitals.HeartRate,
		"respiratory_rate":  vitals.RespiratoryRate,
		"oxygen_saturation": vitals.OxygenSaturation,
		"temperature":       vitals.Temperature,
		"recorded_at":       vitals.RecordedAt,
	}

	query, args, err := a.db.Insert("vitals").Rows(record).
		OnConflict(goqu.DoUpdate("visit_id", record)).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build upsert query", err)
	}

	_, err = a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to save vitals", err)
	}

	return nil
}

// GetVitals retrieves the vitals for a visit, nil when none were recorded
func (a *VisitAdapter) GetVitals(ctx context.Context, visitID string) (*entities.Vitals, error) {
	query, args, err := a.db.Select(
		"visit_id", "systolic_bp", "diastolic_bp", "heart_rate",
		"respiratory_rate", "oxygen_saturation", "temperature", "recorded_at",
	).From("vitals").
		Where(goqu.Ex{"visit_id": visitID}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	vitals := &entities.Vitals{}
	err = a.client.DB().QueryRowContext(ctx, query, args...).Scan(
		&vitals.VisitID,
		&vitals.SystolicBP,
		&vitals.DiastolicBP,
		&vitals.HeartRate,
		&vitals.RespiratoryRate,
		&vitals.OxygenSaturation,
		&vitals.Temperature,
		&vitals.RecordedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get vitals", err)
	}

	return vitals, nil
}

// SaveLabs inserts or replaces the lab findings recorded for a visit
func (a *VisitAdapter) SaveLabs(ctx context.Context, labs *entities.Labs) error {
	record := goqu.Record{
		"visit_id":    labs.VisitID,
		"results":     labs.Results,
		"recorded_at": labs.RecordedAt,
	}

	query, args, err := a.db.Insert("labs").Rows(record).
		OnConflict(goqu.DoUpdate("visit_id", record)).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build upsert query", err)
	}

	_, err = a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to save labs", err)
	}

	return nil
}

// GetLabs retrieves the labs for a visit, nil when none were recorded
func (a *VisitAdapter) GetLabs(ctx context.Context, visitID string) (*entities.Labs, error) {
	query, args, err := a.db.Select("visit_id", "results", "recorded_at").
		From("labs").
		Where(goqu.Ex{"visit_id": visitID}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	labs := &entities.Labs{}
	err = a.client.DB().QueryRowContext(ctx, query, args...).Scan(
		&labs.VisitID,
		&labs.Results,
		&labs.RecordedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get labs", err)
	}

	return labs, nil
}
