package services

import (
	"context"
	"time"

	"github.com/zatekoja/Clinicaltriagedesign/backend/internal/domain/entities"
	"github.com/zatekoja/Clinicaltriagedesign/backend/internal/domain/repositories"
)

// StatsService aggregates the dashboard counters.
type StatsService struct {
	patientRepo repositories.PatientRepository
	resultRepo  repositories.DiagnosisResultRepository
	jobRepo     repositories.DiagnosisJobRepository
	caseRepo    repositories.KnowledgeCaseRepository

	now func() time.Time
}

// NewStatsService creates a new stats service
func NewStatsService(
	patientRepo repositories.PatientRepository,
	resultRepo repositories.DiagnosisResultRepository,
	jobRepo repositories.DiagnosisJobRepository,
	caseRepo repositories.KnowledgeCaseRepository,
) *StatsService {
	return &StatsService{
		patientRepo: patientRepo,
		resultRepo:  resultRepo,
		jobRepo:     jobRepo,
		caseRepo:    caseRepo,
		now:         time.Now,
	}
}

// DashboardStats is the operational snapshot shown on the dashboard.
type DashboardStats struct {
	TotalPatients      int                          `json:"total_patients"`
	DiagnosesToday     int                          `json:"diagnoses_today"`
	TriageDistribution map[entities.TriageLevel]int `json:"triage_distribution"`
	ActiveJobs         int                          `json:"active_jobs"`
	KnowledgeBaseSize  int                          `json:"knowledge_base_size"`
}

// GetDashboardStats collects the dashboard counters.
func (s *StatsService) GetDashboardStats(ctx context.Context) (*DashboardStats, error) {
	patients, err := s.patientRepo.List(ctx, false)
	if err != nil {
		return nil, err
	}

	diagnosesToday, err := s.resultRepo.CountSince(ctx, entities.UsageDay(s.now()))
	if err != nil {
		return nil, err
	}

	triage, err := s.resultRepo.CountByTriage(ctx)
	if err != nil {
		return nil, err
	}

	activeJobs, err := s.jobRepo.ListActive(ctx, 0)
	if err != nil {
		return nil, err
	}

	caseCount, err := s.caseRepo.Count(ctx)
	if err != nil {
		return nil, err
	}

	return &DashboardStats{
		TotalPatients:      len(patients),
		DiagnosesToday:     diagnosesToday,
		TriageDistribution: triage,
		ActiveJobs:         len(activeJobs),
		KnowledgeBaseSize:  caseCount,
	}, nil
}
