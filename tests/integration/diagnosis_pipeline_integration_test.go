//go:build integration

package integration

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/Clinicaltriagedesign/backend/internal/adapters/database"
	"github.com/zatekoja/Clinicaltriagedesign/backend/internal/adapters/events"
	"github.com/zatekoja/Clinicaltriagedesign/backend/internal/domain/entities"
	"github.com/zatekoja/Clinicaltriagedesign/backend/internal/domain/providers"
)

func TestPatientVisitJobRoundTrip(t *testing.T) {
	if os.Getenv("TEST_DB_HOST") == "" {
		t.Skip("Skipping integration test: TEST_DB_HOST not set")
	}

	pgClient := newTestPostgresClient(t)
	defer pgClient.Close()

	patientRepo := database.NewPatientAdapter(pgClient)
	visitRepo := database.NewVisitAdapter(pgClient)
	jobRepo := database.NewDiagnosisJobAdapter(pgClient)

	ctx := context.Background()

	patient := &entities.Patient{
		ID:        uuid.New().String(),
		Age:       47,
		Sex:       entities.SexFemale,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	require.NoError(t, patientRepo.Create(ctx, patient))

	visit := &entities.Visit{
		ID:             uuid.New().String(),
		PatientID:      patient.ID,
		VisitNumber:    1,
		VisitType:      entities.VisitTypeInitial,
		ChiefComplaint: "chest pain",
		Symptoms:       "pain radiating to left arm, diaphoresis",
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
	require.NoError(t, visitRepo.Create(ctx, visit))

	systolic := 152.0
	diastolic := 88.0
	require.NoError(t, visitRepo.SaveVitals(ctx, &entities.Vitals{
		VisitID:     visit.ID,
		SystolicBP:  &systolic,
		DiastolicBP: &diastolic,
	}))

	got, err := visitRepo.GetByPatientAndNumber(ctx, patient.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, visit.ID, got.ID)
	assert.Equal(t, entities.VisitTypeInitial, got.VisitType)

	vitals, err := visitRepo.GetVitals(ctx, visit.ID)
	require.NoError(t, err)
	require.NotNil(t, vitals.SystolicBP)
	assert.Equal(t, 152.0, *vitals.SystolicBP)

	job := &entities.DiagnosisJob{
		ID:          uuid.New().String(),
		VisitID:     visit.ID,
		RequestedBy: "integration-test",
		Fingerprint: "fp-roundtrip",
		Status:      entities.JobStatusPending,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	require.NoError(t, jobRepo.Create(ctx, job))

	active, err := jobRepo.ListActive(ctx, 0)
	require.NoError(t, err)
	found := false
	for _, j := range active {
		if j.ID == job.ID {
			found = true
		}
	}
	assert.True(t, found, "pending job should be listed as active")

	job.Status = entities.JobStatusCompleted
	require.NoError(t, jobRepo.Update(ctx, job))

	updated, err := jobRepo.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.JobStatusCompleted, updated.Status)

	require.NoError(t, patientRepo.SoftDelete(ctx, patient.ID))
	deleted, err := patientRepo.GetByID(ctx, patient.ID)
	require.NoError(t, err)
	assert.True(t, deleted.IsDeleted)
}

func TestRedisEventBusJobFanout(t *testing.T) {
	if os.Getenv("TEST_REDIS_HOST") == "" {
		t.Skip("Skipping integration test: TEST_REDIS_HOST not set")
	}

	redisClient := newTestRedisClient(t)
	defer redisClient.Close()

	eventBus := events.NewRedisEventBus(redisClient)
	defer eventBus.Close()

	channel := providers.EventChannelJobUpdates
	ctx1, cancel1 := context.WithCancel(context.Background())
	ctx2, cancel2 := context.WithCancel(context.Background())
	defer cancel1()
	defer cancel2()

	sub1, err := eventBus.Subscribe(ctx1, channel)
	require.NoError(t, err)
	sub2, err := eventBus.Subscribe(ctx2, channel)
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)

	job := &entities.DiagnosisJob{
		ID:      uuid.New().String(),
		VisitID: uuid.New().String(),
		Status:  entities.JobStatusProcessing,
	}
	event := entities.NewJobEvent(job, entities.JobEventTypeStarted)

	require.NoError(t, eventBus.Publish(context.Background(), channel, event))

	received1 := waitForJobEvent(t, sub1)
	received2 := waitForJobEvent(t, sub2)

	assert.Equal(t, event.JobID, received1.JobID)
	assert.Equal(t, event.JobID, received2.JobID)
	assert.Equal(t, entities.JobEventTypeStarted, received1.EventType)
}

func waitForJobEvent(t *testing.T, ch <-chan *entities.JobEvent) *entities.JobEvent {
	t.Helper()
	select {
	case event := <-ch:
		require.NotNil(t, event)
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for job event")
		return nil
	}
}
