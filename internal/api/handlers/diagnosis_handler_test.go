package handlers_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/Clinicaltriagedesign/backend/internal/api/handlers"
	"github.com/zatekoja/Clinicaltriagedesign/backend/internal/application/services"
	"github.com/zatekoja/Clinicaltriagedesign/backend/internal/domain/entities"
)

func newDiagnosisHandler() (*handlers.DiagnosisHandler, *memJobRepo, *memResultRepo, *memVisitRepo) {
	patientRepo := newMemPatientRepo()
	visitRepo := newMemVisitRepo()
	resultRepo := newMemResultRepo()
	jobRepo := newMemJobRepo()

	// The lookup endpoints only touch the repositories; the pipeline
	// collaborators are exercised in the service tests.
	diagnosisService := services.NewDiagnosisService(
		patientRepo, visitRepo, nil, resultRepo, jobRepo,
		services.NewFingerprintService(),
		nil, nil, nil, nil,
	)
	patientService := services.NewPatientService(patientRepo, visitRepo, resultRepo, jobRepo)
	return handlers.NewDiagnosisHandler(diagnosisService, patientService), jobRepo, resultRepo, visitRepo
}

func TestDiagnosisHandler_GetJob(t *testing.T) {
	handler, jobRepo, _, _ := newDiagnosisHandler()

	job := &entities.DiagnosisJob{
		ID:        "job-1",
		VisitID:   "v-1",
		Status:    entities.JobStatusProcessing,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	jobRepo.jobs[job.ID] = job

	req := httptest.NewRequest("GET", "/api/jobs/job-1", nil)
	req.SetPathValue("id", "job-1")
	w := httptest.NewRecorder()

	handler.GetJob(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var got entities.DiagnosisJob
	require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
	assert.Equal(t, entities.JobStatusProcessing, got.Status)
}

func TestDiagnosisHandler_GetJob_NotFound(t *testing.T) {
	handler, _, _, _ := newDiagnosisHandler()

	req := httptest.NewRequest("GET", "/api/jobs/missing", nil)
	req.SetPathValue("id", "missing")
	w := httptest.NewRecorder()

	handler.GetJob(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDiagnosisHandler_GetResult(t *testing.T) {
	handler, _, resultRepo, _ := newDiagnosisHandler()

	result := &entities.DiagnosisResult{
		ID:          "r-1",
		VisitID:     "v-1",
		TriageLevel: entities.TriageHigh,
		DifferentialDiagnoses: []entities.DifferentialDiagnosis{
			{Diagnosis: "Angina", Likelihood: 80},
		},
	}
	resultRepo.results[result.ID] = result

	req := httptest.NewRequest("GET", "/api/results/r-1", nil)
	req.SetPathValue("id", "r-1")
	w := httptest.NewRecorder()

	handler.GetResult(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var got entities.DiagnosisResult
	require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
	assert.Equal(t, entities.TriageHigh, got.TriageLevel)
	require.Len(t, got.DifferentialDiagnoses, 1)
}

func TestDiagnosisHandler_RequestDiagnosis_InvalidVisitNumber(t *testing.T) {
	handler, _, _, _ := newDiagnosisHandler()

	req := httptest.NewRequest("POST", "/api/patients/p-1/visits/zero/diagnosis", nil)
	req.SetPathValue("id", "p-1")
	req.SetPathValue("visitNumber", "zero")
	w := httptest.NewRecorder()

	handler.RequestDiagnosis(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "visit number")
}

func TestDiagnosisHandler_ListVisitResults(t *testing.T) {
	handler, _, resultRepo, visitRepo := newDiagnosisHandler()

	visit := &entities.Visit{ID: "v-1", PatientID: "p-1", VisitNumber: 1}
	visitRepo.visits[visit.ID] = visit
	resultRepo.results["r-1"] = &entities.DiagnosisResult{ID: "r-1", VisitID: "v-1", TriageLevel: entities.TriageLow}

	req := httptest.NewRequest("GET", "/api/patients/p-1/visits/1/results", nil)
	req.SetPathValue("id", "p-1")
	req.SetPathValue("visitNumber", "1")
	w := httptest.NewRecorder()

	handler.ListVisitResults(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var response struct {
		Results []entities.DiagnosisResult `json:"results"`
		Count   int                        `json:"count"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, 1, response.Count)
}

func TestDiagnosisHandler_ListVisitResults_UnknownVisit(t *testing.T) {
	handler, _, _, _ := newDiagnosisHandler()

	req := httptest.NewRequest("GET", "/api/patients/p-1/visits/9/results", nil)
	req.SetPathValue("id", "p-1")
	req.SetPathValue("visitNumber", "9")
	w := httptest.NewRecorder()

	handler.ListVisitResults(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
