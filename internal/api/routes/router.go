package routes

import (
	"net/http"

	"github.com/zatekoja/Clinicaltriagedesign/backend/internal/api/handlers"
	"github.com/zatekoja/Clinicaltriagedesign/backend/internal/api/middleware"
	"github.com/zatekoja/Clinicaltriagedesign/backend/internal/infrastructure/observability"
)

// Router holds all route handlers
type Router struct {
	mux *http.ServeMux

	patientHandler   *handlers.PatientHandler
	diagnosisHandler *handlers.DiagnosisHandler
	dashboardHandler *handlers.DashboardHandler
	sseHandler       *handlers.SSEHandler

	cacheMiddleware *middleware.CacheMiddleware
	metrics         *observability.Metrics
}

// NewRouter creates a new router
func NewRouter(
	patientHandler *handlers.PatientHandler,
	diagnosisHandler *handlers.DiagnosisHandler,
	dashboardHandler *handlers.DashboardHandler,
	sseHandler *handlers.SSEHandler,
	cacheMiddleware *middleware.CacheMiddleware,
	metrics *observability.Metrics,
) *Router {
	return &Router{
		mux: http.NewServeMux(),

		patientHandler:   patientHandler,
		diagnosisHandler: diagnosisHandler,
		dashboardHandler: dashboardHandler,
		sseHandler:       sseHandler,

		cacheMiddleware: cacheMiddleware,
		metrics:         metrics,
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes() http.Handler {
	// Health check endpoint
	r.mux.HandleFunc("GET /health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			return
		}
	})

	// Patient and visit endpoints
	r.mux.HandleFunc("POST /api/patients", r.patientHandler.CreatePatient)
	r.mux.HandleFunc("GET /api/patients", r.patientHandler.ListPatients)
	r.mux.HandleFunc("GET /api/patients/{id}", r.patientHandler.GetPatient)
	r.mux.HandleFunc("DELETE /api/patients/{id}", r.patientHandler.DeletePatient)
	r.mux.HandleFunc("POST /api/patients/{id}/visits", r.patientHandler.CreateFollowUpVisit)

	// Diagnosis endpoints
	r.mux.HandleFunc("POST /api/patients/{id}/visits/{visitNumber}/diagnosis", r.diagnosisHandler.RequestDiagnosis)
	r.mux.HandleFunc("GET /api/patients/{id}/visits/{visitNumber}/results", r.diagnosisHandler.ListVisitResults)
	r.mux.HandleFunc("GET /api/patients/{id}/visits/{visitNumber}/jobs", r.diagnosisHandler.ListVisitJobs)
	r.mux.HandleFunc("GET /api/jobs/{id}", r.diagnosisHandler.GetJob)
	r.mux.HandleFunc("GET /api/results/{id}", r.diagnosisHandler.GetResult)

	// Dashboard endpoints
	r.mux.HandleFunc("GET /api/dashboard/stats", r.dashboardHandler.GetStats)

	// Job event streams
	r.mux.HandleFunc("GET /api/stream/jobs", r.sseHandler.StreamAllJobUpdates)
	r.mux.HandleFunc("GET /api/stream/jobs/{id}", r.sseHandler.StreamJobUpdates)

	// Apply middleware in reverse order (last middleware wraps first)
	// CORS must be outermost so cached responses also get CORS headers.

	var handler http.Handler = r.mux
	handler = middleware.LoggingMiddleware(handler)

	// Apply cache middleware if available
	if r.cacheMiddleware != nil {
		handler = r.cacheMiddleware.Middleware(handler)
	}

	handler = middleware.ObservabilityMiddleware(r.metrics)(handler)

	// Apply HTTP performance optimizations (compression, ETag, cache headers)
	handler = middleware.ResponseOptimization(handler)

	// CORS wraps everything so headers are set even on cache HITs
	handler = middleware.CORSMiddleware(handler)

	return handler
}
