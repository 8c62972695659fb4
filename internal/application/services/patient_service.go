package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/zatekoja/Clinicaltriagedesign/backend/internal/domain/entities"
	"github.com/zatekoja/Clinicaltriagedesign/backend/internal/domain/repositories"
	apperrors "github.com/zatekoja/Clinicaltriagedesign/backend/pkg/errors"
)

// PatientService manages patients and their visit chain. Visit numbers are
// assigned sequentially per patient; visit 1 is always the initial
// presentation and every later visit is a follow-up.
type PatientService struct {
	patientRepo repositories.PatientRepository
	visitRepo   repositories.VisitRepository
	resultRepo  repositories.DiagnosisResultRepository
	jobRepo     repositories.DiagnosisJobRepository
}

// NewPatientService creates a new patient service
func NewPatientService(
	patientRepo repositories.PatientRepository,
	visitRepo repositories.VisitRepository,
	resultRepo repositories.DiagnosisResultRepository,
	jobRepo repositories.DiagnosisJobRepository,
) *PatientService {
	return &PatientService{
		patientRepo: patientRepo,
		visitRepo:   visitRepo,
		resultRepo:  resultRepo,
		jobRepo:     jobRepo,
	}
}

// VitalsInput carries the optional vital sign measurements of a visit.
type VitalsInput struct {
	SystolicBP       *float64 `json:"systolic_bp"`
	DiastolicBP      *float64 `json:"diastolic_bp"`
	HeartRate        *float64 `json:"heart_rate"`
	RespiratoryRate  *float64 `json:"respiratory_rate"`
	OxygenSaturation *float64 `json:"oxygen_saturation"`
	Temperature      *float64 `json:"temperature"`
}

// HasMeasurement reports whether at least one measurement was provided.
func (v *VitalsInput) HasMeasurement() bool {
	return v.SystolicBP != nil || v.DiastolicBP != nil || v.HeartRate != nil ||
		v.RespiratoryRate != nil || v.OxygenSaturation != nil || v.Temperature != nil
}

// VisitInput carries the clinical content of a new visit.
type VisitInput struct {
	ChiefComplaint string       `json:"chief_complaint"`
	Symptoms       string       `json:"symptoms"`
	MedicalHistory string       `json:"medical_history"`
	Medications    string       `json:"medications"`
	ClinicalNotes  string       `json:"clinical_notes"`
	Vitals         *VitalsInput `json:"vitals"`
	LabResults     string       `json:"lab_results"`
}

// CreatePatientInput registers a patient together with their initial visit.
type CreatePatientInput struct {
	Age   int        `json:"age"`
	Sex   string     `json:"sex"`
	Visit VisitInput `json:"visit"`
}

func (in *VisitInput) validate() error {
	if in.ChiefComplaint == "" {
		return apperrors.NewValidationError("chief_complaint is required")
	}
	if in.Symptoms == "" {
		return apperrors.NewValidationError("symptoms is required")
	}
	return nil
}

// CreatePatient registers a patient and records their initial visit,
// including any vitals and labs supplied inline.
func (s *PatientService) CreatePatient(ctx context.Context, input CreatePatientInput) (*entities.Patient, *entities.Visit, error) {
	if input.Age < 0 || input.Age > 150 {
		return nil, nil, apperrors.NewValidationError("age must be between 0 and 150")
	}
	switch input.Sex {
	case entities.SexMale, entities.SexFemale, entities.SexOther:
	default:
		return nil, nil, apperrors.NewValidationError("sex must be one of M, F, O")
	}
	if err := input.Visit.validate(); err != nil {
		return nil, nil, err
	}

	now := time.Now()
	patient := &entities.Patient{
		ID:        uuid.New().String(),
		Age:       input.Age,
		Sex:       input.Sex,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.patientRepo.Create(ctx, patient); err != nil {
		return nil, nil, err
	}

	visit, err := s.recordVisit(ctx, patient.ID, 1, entities.VisitTypeInitial, input.Visit)
	if err != nil {
		return nil, nil, err
	}

	log.Info().Str("patient_id", patient.ID).Msg("registered patient with initial visit")
	return patient, visit, nil
}

// AddFollowUpVisit appends the next visit in the patient's chain.
func (s *PatientService) AddFollowUpVisit(ctx context.Context, patientID string, input VisitInput) (*entities.Visit, error) {
	if _, err := s.patientRepo.GetByID(ctx, patientID); err != nil {
		return nil, err
	}
	if err := input.validate(); err != nil {
		return nil, err
	}

	count, err := s.visitRepo.CountByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, apperrors.NewConflictError(
			fmt.Sprintf("patient %s has no initial visit to follow up on", patientID))
	}

	return s.recordVisit(ctx, patientID, count+1, entities.VisitTypeFollowUp, input)
}

func (s *PatientService) recordVisit(ctx context.Context, patientID string, visitNumber int, visitType entities.VisitType, input VisitInput) (*entities.Visit, error) {
	now := time.Now()
	visit := &entities.Visit{
		ID:             uuid.New().String(),
		PatientID:      patientID,
		VisitNumber:    visitNumber,
		VisitType:      visitType,
		ChiefComplaint: input.ChiefComplaint,
		Symptoms:       input.Symptoms,
		MedicalHistory: input.MedicalHistory,
		Medications:    input.Medications,
		ClinicalNotes:  input.ClinicalNotes,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.visitRepo.Create(ctx, visit); err != nil {
		return nil, err
	}

	if input.Vitals != nil && input.Vitals.HasMeasurement() {
		vitals := &entities.Vitals{
			VisitID:          visit.ID,
			SystolicBP:       input.Vitals.SystolicBP,
			DiastolicBP:      input.Vitals.DiastolicBP,
			HeartRate:        input.Vitals.HeartRate,
			RespiratoryRate:  input.Vitals.RespiratoryRate,
			OxygenSaturation: input.Vitals.OxygenSaturation,
			Temperature:      input.Vitals.Temperature,
			RecordedAt:       now,
		}
		if err := s.visitRepo.SaveVitals(ctx, vitals); err != nil {
			return nil, err
		}
	}

	if input.LabResults != "" {
		labs := &entities.Labs{
			VisitID:    visit.ID,
			Results:    input.LabResults,
			RecordedAt: now,
		}
		if err := s.visitRepo.SaveLabs(ctx, labs); err != nil {
			return nil, err
		}
	}

	return visit, nil
}

// VisitDetail bundles a visit with its recorded measurements and results.
type VisitDetail struct {
	Visit   *entities.Visit             `json:"visit"`
	Vitals  *entities.Vitals            `json:"vitals,omitempty"`
	Labs    *entities.Labs              `json:"labs,omitempty"`
	Results []*entities.DiagnosisResult `json:"results"`
}

// PatientDetail is the full clinical record of a patient.
type PatientDetail struct {
	Patient *entities.Patient `json:"patient"`
	Visits  []*VisitDetail    `json:"visits"`
}

// GetPatientDetail loads a patient with their visit chain, measurements,
// and diagnosis history.
func (s *PatientService) GetPatientDetail(ctx context.Context, patientID string) (*PatientDetail, error) {
	patient, err := s.patientRepo.GetByID(ctx, patientID)
	if err != nil {
		return nil, err
	}
	visits, err := s.visitRepo.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}

	details := make([]*VisitDetail, 0, len(visits))
	for _, visit := range visits {
		vitals, err := s.visitRepo.GetVitals(ctx, visit.ID)
		if err != nil {
			return nil, err
		}
		labs, err := s.visitRepo.GetLabs(ctx, visit.ID)
		if err != nil {
			return nil, err
		}
		results, err := s.resultRepo.ListByVisit(ctx, visit.ID)
		if err != nil {
			return nil, err
		}
		details = append(details, &VisitDetail{
			Visit:   visit,
			Vitals:  vitals,
			Labs:    labs,
			Results: results,
		})
	}

	return &PatientDetail{Patient: patient, Visits: details}, nil
}

// GetVisit loads one visit of a patient by its number.
func (s *PatientService) GetVisit(ctx context.Context, patientID string, visitNumber int) (*entities.Visit, error) {
	return s.visitRepo.GetByPatientAndNumber(ctx, patientID, visitNumber)
}

// ListPatients lists all registered patients.
func (s *PatientService) ListPatients(ctx context.Context) ([]*entities.Patient, error) {
	return s.patientRepo.List(ctx, false)
}

// DeletePatient soft-deletes a patient. Their visits and results remain for
// audit but the patient no longer appears in listings.
func (s *PatientService) DeletePatient(ctx context.Context, patientID string) error {
	return s.patientRepo.SoftDelete(ctx, patientID)
}
