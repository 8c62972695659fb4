package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/zatekoja/Clinicaltriagedesign/backend/internal/domain/entities"
	"github.com/zatekoja/Clinicaltriagedesign/backend/internal/domain/providers"
	"github.com/zatekoja/Clinicaltriagedesign/backend/internal/domain/repositories"
	apperrors "github.com/zatekoja/Clinicaltriagedesign/backend/pkg/errors"
	"github.com/zatekoja/Clinicaltriagedesign/backend/pkg/retry"
)

// DiagnosisService orchestrates the diagnosis pipeline: fingerprinting,
// result reuse, job lifecycle, retrieval, and the LLM gateway call.
type DiagnosisService struct {
	patientRepo repositories.PatientRepository
	visitRepo   repositories.VisitRepository
	summaryRepo repositories.ClinicalSummaryRepository
	resultRepo  repositories.DiagnosisResultRepository
	jobRepo     repositories.DiagnosisJobRepository

	fingerprints *FingerprintService
	summaries    *SummaryService
	retrieval    *RetrievalService
	gateway      *LLMGateway
	events       providers.EventBus

	enqueue func(jobID string)
}

// NewDiagnosisService creates a new diagnosis service
func NewDiagnosisService(
	patientRepo repositories.PatientRepository,
	visitRepo repositories.VisitRepository,
	summaryRepo repositories.ClinicalSummaryRepository,
	resultRepo repositories.DiagnosisResultRepository,
	jobRepo repositories.DiagnosisJobRepository,
	fingerprints *FingerprintService,
	summaries *SummaryService,
	retrieval *RetrievalService,
	gateway *LLMGateway,
	events providers.EventBus,
) *DiagnosisService {
	return &DiagnosisService{
		patientRepo:  patientRepo,
		visitRepo:    visitRepo,
		summaryRepo:  summaryRepo,
		resultRepo:   resultRepo,
		jobRepo:      jobRepo,
		fingerprints: fingerprints,
		summaries:    summaries,
		retrieval:    retrieval,
		gateway:      gateway,
		events:       events,
	}
}

// SetEnqueuer wires the worker pool's enqueue function. Called once during
// startup; the pool depends on Execute, so the reference cannot be passed
// through the constructor.
func (s *DiagnosisService) SetEnqueuer(enqueue func(jobID string)) {
	s.enqueue = enqueue
}

// RequestDiagnosis handles a diagnosis request for a visit. An identical
// prior presentation is answered synchronously by cloning its result;
// anything else becomes a PENDING job picked up by the worker pool.
func (s *DiagnosisService) RequestDiagnosis(ctx context.Context, patientID string, visitNumber int, requestedBy string, forceRegenerate bool) (*entities.DiagnosisJob, error) {
	patient, err := s.patientRepo.GetByID(ctx, patientID)
	if err != nil {
		return nil, err
	}
	visit, err := s.visitRepo.GetByPatientAndNumber(ctx, patientID, visitNumber)
	if err != nil {
		return nil, err
	}
	vitals, err := s.visitRepo.GetVitals(ctx, visit.ID)
	if err != nil {
		return nil, err
	}
	labs, err := s.visitRepo.GetLabs(ctx, visit.ID)
	if err != nil {
		return nil, err
	}

	fingerprint, err := s.fingerprints.Generate(patient, visit, vitals, labs)
	if err != nil {
		return nil, err
	}

	if forceRegenerate {
		deleted, err := s.resultRepo.DeleteByVisit(ctx, visit.ID)
		if err != nil {
			return nil, err
		}
		if deleted > 0 {
			log.Info().
				Str("visit_id", visit.ID).
				Int("deleted", deleted).
				Msg("regenerating, deleted previous diagnosis results for visit")
		}
	}

	if !forceRegenerate {
		existing, err := s.resultRepo.LatestByFingerprint(ctx, fingerprint)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return s.reuseExisting(ctx, patient, visit, vitals, labs, fingerprint, requestedBy, existing)
		}
	}

	now := time.Now()
	job := &entities.DiagnosisJob{
		ID:          uuid.New().String(),
		VisitID:     visit.ID,
		RequestedBy: requestedBy,
		Fingerprint: fingerprint,
		Status:      entities.JobStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.jobRepo.Create(ctx, job); err != nil {
		return nil, err
	}
	s.publishEvent(ctx, job, entities.JobEventTypeQueued)

	if s.enqueue != nil {
		s.enqueue(job.ID)
	}
	return job, nil
}

// reuseExisting answers a request from an identical prior presentation: the
// summary is still refreshed for this visit, the prior result is cloned, and
// the job is recorded already COMPLETED.
func (s *DiagnosisService) reuseExisting(ctx context.Context, patient *entities.Patient, visit *entities.Visit, vitals *entities.Vitals, labs *entities.Labs, fingerprint, requestedBy string, existing *entities.DiagnosisResult) (*entities.DiagnosisJob, error) {
	if err := s.refreshSummary(ctx, patient, visit, vitals, labs); err != nil {
		return nil, err
	}

	clone := cloneResult(existing, visit.ID, fingerprint)
	if err := s.resultRepo.Create(ctx, clone); err != nil {
		return nil, err
	}

	now := time.Now()
	job := &entities.DiagnosisJob{
		ID:            uuid.New().String(),
		VisitID:       visit.ID,
		RequestedBy:   requestedBy,
		Fingerprint:   fingerprint,
		Status:        entities.JobStatusCompleted,
		ReuseSourceID: &existing.ID,
		ResultID:      &clone.ID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.jobRepo.Create(ctx, job); err != nil {
		return nil, err
	}

	log.Info().
		Str("job_id", job.ID).
		Str("source_result_id", existing.ID).
		Msg("reused an identical prior assessment")
	s.publishEvent(ctx, job, entities.JobEventTypeCompleted)
	return job, nil
}

// Execute processes one queued job. It never returns an error for job-level
// failures; those are recorded on the job so it can never be left stuck in
// a non-terminal state.
func (s *DiagnosisService) Execute(ctx context.Context, jobID string) {
	job, err := s.jobRepo.GetByID(ctx, jobID)
	if err != nil {
		log.Warn().Err(err).Str("job_id", jobID).Msg("diagnosis job disappeared before processing")
		return
	}
	if job.Status.IsTerminal() {
		return
	}

	visit, err := s.visitRepo.GetByID(ctx, job.VisitID)
	if err != nil {
		s.markFailed(ctx, job, err)
		return
	}
	patient, err := s.patientRepo.GetByID(ctx, visit.PatientID)
	if err != nil {
		s.markFailed(ctx, job, err)
		return
	}
	vitals, err := s.visitRepo.GetVitals(ctx, visit.ID)
	if err != nil {
		s.markFailed(ctx, job, err)
		return
	}
	labs, err := s.visitRepo.GetLabs(ctx, visit.ID)
	if err != nil {
		s.markFailed(ctx, job, err)
		return
	}

	fingerprint, err := s.fingerprints.Generate(patient, visit, vitals, labs)
	if err != nil {
		s.markFailed(ctx, job, err)
		return
	}
	if job.Fingerprint != fingerprint {
		job.Fingerprint = fingerprint
		if err := s.jobRepo.Update(ctx, job); err != nil {
			s.markFailed(ctx, job, err)
			return
		}
	}

	summaryText, embedding, err := s.buildSummary(ctx, patient, visit, vitals, labs)
	if err != nil {
		s.markFailed(ctx, job, err)
		return
	}

	// Another request for the same presentation may have completed while
	// this job waited in the queue.
	existing, err := s.resultRepo.LatestByFingerprint(ctx, fingerprint)
	if err != nil {
		s.markFailed(ctx, job, err)
		return
	}
	if existing != nil {
		clone := cloneResult(existing, visit.ID, fingerprint)
		if err := s.resultRepo.Create(ctx, clone); err != nil {
			s.markFailed(ctx, job, err)
			return
		}
		job.ReuseSourceID = &existing.ID
		job.ResultID = &clone.ID
		if err := s.transition(ctx, job, entities.JobStatusCompleted); err != nil {
			log.Error().Err(err).Str("job_id", job.ID).Msg("failed to record reused result on job")
			return
		}
		s.publishEvent(ctx, job, entities.JobEventTypeCompleted)
		return
	}

	if err := s.transition(ctx, job, entities.JobStatusProcessing); err != nil {
		s.markFailed(ctx, job, err)
		return
	}
	s.publishEvent(ctx, job, entities.JobEventTypeStarted)

	cases, err := s.retrieval.Retrieve(ctx, embedding)
	if err != nil {
		s.markFailed(ctx, job, err)
		return
	}
	caseIDs := make([]string, len(cases))
	for i, kc := range cases {
		caseIDs[i] = kc.CaseID
	}

	payload := s.gateway.GenerateDiagnosis(ctx, summaryText, cases)

	result := &entities.DiagnosisResult{
		ID:                    uuid.New().String(),
		VisitID:               visit.ID,
		Fingerprint:           fingerprint,
		DifferentialDiagnoses: payload.DifferentialDiagnoses,
		TriageLevel:           payload.TriageLevel,
		Explanation:           payload.Explanation,
		ConfidenceScore:       payload.ConfidenceScore,
		RetrievedCaseIDs:      caseIDs,
		CreatedAt:             time.Now(),
	}
	if err := s.resultRepo.Create(ctx, result); err != nil {
		s.markFailed(ctx, job, err)
		return
	}

	job.ResultID = &result.ID
	if err := s.transition(ctx, job, entities.JobStatusCompleted); err != nil {
		log.Error().Err(err).Str("job_id", job.ID).Msg("failed to mark job completed")
		return
	}
	s.publishEvent(ctx, job, entities.JobEventTypeCompleted)
}

// buildSummary renders and embeds the visit summary and upserts it, with
// linear backoff when storage reports transient contention.
func (s *DiagnosisService) buildSummary(ctx context.Context, patient *entities.Patient, visit *entities.Visit, vitals *entities.Vitals, labs *entities.Labs) (string, []float32, error) {
	summaryText, err := s.summaries.Generate(ctx, patient, visit, vitals, labs)
	if err != nil {
		return "", nil, err
	}
	embedding, err := s.retrieval.Embed(ctx, summaryText)
	if err != nil {
		return "", nil, err
	}

	now := time.Now()
	summary := &entities.ClinicalSummary{
		VisitID:   visit.ID,
		Text:      summaryText,
		Embedding: embedding,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err = retry.DoLinear(ctx, 3, 500*time.Millisecond,
		func(err error) bool { return apperrors.IsType(err, apperrors.ErrorTypeUnavailable) },
		func() error { return s.summaryRepo.Upsert(ctx, summary) },
	)
	if err != nil {
		return "", nil, err
	}

	return summaryText, embedding, nil
}

func (s *DiagnosisService) refreshSummary(ctx context.Context, patient *entities.Patient, visit *entities.Visit, vitals *entities.Vitals, labs *entities.Labs) error {
	_, _, err := s.buildSummary(ctx, patient, visit, vitals, labs)
	return err
}

// transition validates the job state machine before persisting a status
// change, so a terminal job can never be overwritten.
func (s *DiagnosisService) transition(ctx context.Context, job *entities.DiagnosisJob, next entities.JobStatus) error {
	if !job.Status.CanTransitionTo(next) {
		return apperrors.NewConflictError(fmt.Sprintf("job %s cannot move from %s to %s", job.ID, job.Status, next))
	}
	job.Status = next
	return s.jobRepo.Update(ctx, job)
}

func (s *DiagnosisService) markFailed(ctx context.Context, job *entities.DiagnosisJob, cause error) {
	log.Error().Err(cause).Str("job_id", job.ID).Msg("diagnosis job failed")
	job.ErrorMessage = cause.Error()
	if err := s.transition(ctx, job, entities.JobStatusFailed); err != nil {
		log.Error().Err(err).Str("job_id", job.ID).Msg("failed to mark job failed")
		return
	}
	s.publishEvent(ctx, job, entities.JobEventTypeFailed)
}

// publishEvent emits a job status event on both the firehose channel and the
// job's own channel. Event delivery is best effort.
func (s *DiagnosisService) publishEvent(ctx context.Context, job *entities.DiagnosisJob, eventType entities.JobEventType) {
	if s.events == nil {
		return
	}
	event := entities.NewJobEvent(job, eventType)
	for _, channel := range []string{providers.EventChannelJobUpdates, providers.GetJobChannel(job.ID)} {
		if err := s.events.Publish(ctx, channel, event); err != nil {
			log.Warn().Err(err).Str("channel", channel).Msg("failed to publish job event")
		}
	}
}

// GetJob retrieves a job by id
func (s *DiagnosisService) GetJob(ctx context.Context, jobID string) (*entities.DiagnosisJob, error) {
	return s.jobRepo.GetByID(ctx, jobID)
}

// GetResult retrieves a diagnosis result by id
func (s *DiagnosisService) GetResult(ctx context.Context, resultID string) (*entities.DiagnosisResult, error) {
	return s.resultRepo.GetByID(ctx, resultID)
}

// ListJobsByVisit retrieves a visit's jobs, newest first
func (s *DiagnosisService) ListJobsByVisit(ctx context.Context, visitID string) ([]*entities.DiagnosisJob, error) {
	return s.jobRepo.ListByVisit(ctx, visitID)
}

// ListResultsByVisit retrieves a visit's results, newest first
func (s *DiagnosisService) ListResultsByVisit(ctx context.Context, visitID string) ([]*entities.DiagnosisResult, error) {
	return s.resultRepo.ListByVisit(ctx, visitID)
}

func cloneResult(source *entities.DiagnosisResult, visitID, fingerprint string) *entities.DiagnosisResult {
	return &entities.DiagnosisResult{
		ID:                    uuid.New().String(),
		VisitID:               visitID,
		SourceResultID:        &source.ID,
		Fingerprint:           fingerprint,
		DifferentialDiagnoses: source.DifferentialDiagnoses,
		TriageLevel:           source.TriageLevel,
		Explanation:           source.Explanation,
		ConfidenceScore:       source.ConfidenceScore,
		RetrievedCaseIDs:      source.RetrievedCaseIDs,
		CreatedAt:             time.Now(),
	}
}
