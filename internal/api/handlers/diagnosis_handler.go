package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/zatekoja/Clinicaltriagedesign/backend/internal/application/services"
)

// DiagnosisHandler handles diagnosis job and result HTTP requests
type DiagnosisHandler struct {
	diagnosisService *services.DiagnosisService
	patientService   *services.PatientService
}

// NewDiagnosisHandler creates a new diagnosis handler
func NewDiagnosisHandler(diagnosisService *services.DiagnosisService, patientService *services.PatientService) *DiagnosisHandler {
	return &DiagnosisHandler{
		diagnosisService: diagnosisService,
		patientService:   patientService,
	}
}

type requestDiagnosisBody struct {
	RequestedBy string `json:"requested_by"`
}

// RequestDiagnosis handles POST /api/patients/{id}/visits/{visitNumber}/diagnosis
//
// With ?force_regenerate=true the visit's previous results are discarded and
// a fresh job is queued even when an identical presentation was already
// assessed.
func (h *DiagnosisHandler) RequestDiagnosis(w http.ResponseWriter, r *http.Request) {
	patientID := r.PathValue("id")
	if patientID == "" {
		respondWithError(w, http.StatusBadRequest, "patient ID is required")
		return
	}
	visitNumber, err := strconv.Atoi(r.PathValue("visitNumber"))
	if err != nil || visitNumber < 1 {
		respondWithError(w, http.StatusBadRequest, "visit number must be a positive integer")
		return
	}

	var body requestDiagnosisBody
	if r.Body != nil {
		// The body is optional; requested_by defaults to empty.
		_ = json.NewDecoder(r.Body).Decode(&body)
	}

	forceRegenerate := r.URL.Query().Get("force_regenerate") == "true"

	job, err := h.diagnosisService.RequestDiagnosis(r.Context(), patientID, visitNumber, body.RequestedBy, forceRegenerate)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	// A reused result completes synchronously; everything else is queued.
	status := http.StatusAccepted
	if job.Status.IsTerminal() {
		status = http.StatusOK
	}
	respondWithJSON(w, status, job)
}

// GetJob handles GET /api/jobs/{id}
func (h *DiagnosisHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	if jobID == "" {
		respondWithError(w, http.StatusBadRequest, "job ID is required")
		return
	}

	job, err := h.diagnosisService.GetJob(r.Context(), jobID)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, job)
}

// GetResult handles GET /api/results/{id}
func (h *DiagnosisHandler) GetResult(w http.ResponseWriter, r *http.Request) {
	resultID := r.PathValue("id")
	if resultID == "" {
		respondWithError(w, http.StatusBadRequest, "result ID is required")
		return
	}

	result, err := h.diagnosisService.GetResult(r.Context(), resultID)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}

// ListVisitResults handles GET /api/patients/{id}/visits/{visitNumber}/results
func (h *DiagnosisHandler) ListVisitResults(w http.ResponseWriter, r *http.Request) {
	patientID := r.PathValue("id")
	if patientID == "" {
		respondWithError(w, http.StatusBadRequest, "patient ID is required")
		return
	}
	visitNumber, err := strconv.Atoi(r.PathValue("visitNumber"))
	if err != nil || visitNumber < 1 {
		respondWithError(w, http.StatusBadRequest, "visit number must be a positive integer")
		return
	}

	visit, err := h.patientService.GetVisit(r.Context(), patientID, visitNumber)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	results, err := h.diagnosisService.ListResultsByVisit(r.Context(), visit.ID)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"results": results,
		"count":   len(results),
	})
}

// ListVisitJobs handles GET /api/patients/{id}/visits/{visitNumber}/jobs
func (h *DiagnosisHandler) ListVisitJobs(w http.ResponseWriter, r *http.Request) {
	patientID := r.PathValue("id")
	if patientID == "" {
		respondWithError(w, http.StatusBadRequest, "patient ID is required")
		return
	}
	visitNumber, err := strconv.Atoi(r.PathValue("visitNumber"))
	if err != nil || visitNumber < 1 {
		respondWithError(w, http.StatusBadRequest, "visit number must be a positive integer")
		return
	}

	visit, err := h.patientService.GetVisit(r.Context(), patientID, visitNumber)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	jobs, err := h.diagnosisService.ListJobsByVisit(r.Context(), visit.ID)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobs,
		"count": len(jobs),
	})
}
