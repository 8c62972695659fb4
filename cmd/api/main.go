package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/Clinicaltriagedesign/backend/internal/adapters/cache"
	"github.com/zatekoja/Clinicaltriagedesign/backend/internal/adapters/database"
	"github.com/zatekoja/Clinicaltriagedesign/backend/internal/adapters/events"
	"github.com/zatekoja/Clinicaltriagedesign/backend/internal/adapters/vectorindex"
	"github.com/zatekoja/Clinicaltriagedesign/backend/internal/api/handlers"
	"github.com/zatekoja/Clinicaltriagedesign/backend/internal/api/middleware"
	"github.com/zatekoja/Clinicaltriagedesign/backend/internal/api/routes"
	"github.com/zatekoja/Clinicaltriagedesign/backend/internal/application/services"
	"github.com/zatekoja/Clinicaltriagedesign/backend/internal/application/workers"
	"github.com/zatekoja/Clinicaltriagedesign/backend/internal/domain/entities"
	"github.com/zatekoja/Clinicaltriagedesign/backend/internal/domain/providers"
	"github.com/zatekoja/Clinicaltriagedesign/backend/internal/domain/repositories"
	"github.com/zatekoja/Clinicaltriagedesign/backend/internal/infrastructure/clients/embedding"
	"github.com/zatekoja/Clinicaltriagedesign/backend/internal/infrastructure/clients/groq"
	"github.com/zatekoja/Clinicaltriagedesign/backend/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/Clinicaltriagedesign/backend/internal/infrastructure/clients/redis"
	"github.com/zatekoja/Clinicaltriagedesign/backend/internal/infrastructure/observability"
	"github.com/zatekoja/Clinicaltriagedesign/backend/pkg/config"
	"github.com/zatekoja/Clinicaltriagedesign/backend/pkg/secrets"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Pull secrets (LLM keys, DB credentials) into the environment before
	// configuration is read.
	vaultCfg := secrets.LoadVaultConfigFromEnv()
	if result, err := secrets.ApplyVaultSecrets(ctx, vaultCfg); err != nil {
		log.Warn().Err(err).Msg("failed to load secrets from vault, continuing with environment")
	} else if result.Enabled {
		log.Info().Int("loaded", result.Loaded).Str("path", result.Path).Msg("vault secrets applied")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	observability.InitLogger(cfg.OTEL.ServiceName, os.Getenv("APP_ENV"))

	// OpenTelemetry
	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(ctx, cfg.OTEL.ServiceName, cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
		if err != nil {
			log.Warn().Err(err).Msg("failed to set up OpenTelemetry")
		} else {
			defer func() {
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer shutdownCancel()
				if err := shutdown(shutdownCtx); err != nil {
					log.Warn().Err(err).Msg("error shutting down OpenTelemetry")
				}
			}()
			log.Info().Msg("OpenTelemetry initialized")
		}
	}

	metrics, err := observability.InitMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize metrics")
	}

	// PostgreSQL
	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize PostgreSQL client")
	}
	defer pgClient.Close()

	// Redis is optional; without it caching and job event streaming degrade.
	redisClient, err := redis.NewClient(&cfg.Redis)
	if err != nil {
		log.Warn().Err(err).Msg("failed to initialize Redis client, running without cache and events")
		redisClient = nil
	} else {
		defer redisClient.Close()
	}

	var cacheProvider providers.CacheProvider
	var eventBus providers.EventBus
	if redisClient != nil {
		cacheProvider = cache.NewRedisAdapter(redisClient)
		eventBus = events.NewRedisEventBus(redisClient)
	}

	// Repositories
	patientRepo := database.NewPatientAdapter(pgClient)
	visitRepo := database.NewVisitAdapter(pgClient)
	summaryRepo := database.NewClinicalSummaryAdapter(pgClient)
	resultRepo := database.NewDiagnosisResultAdapter(pgClient)
	jobRepo := database.NewDiagnosisJobAdapter(pgClient)
	usageRepo := database.NewLLMUsageAdapter(pgClient)

	var caseRepo repositories.KnowledgeCaseRepository = database.NewKnowledgeCaseAdapter(pgClient)
	if cacheProvider != nil {
		caseRepo = database.NewCachedKnowledgeCaseAdapter(caseRepo, cacheProvider)
	}

	// Embedding service and vector index
	embedder, err := embedding.NewClient(&cfg.Embedding)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize embedding client")
	}
	caseIndex := vectorindex.NewFlatIndex(cfg.Index.Dir, cfg.Embedding.Dimension)

	// One completer per configured credential, walked in cascade order.
	completers := make([]providers.ChatCompleter, 0, len(cfg.Groq.APIKeys))
	for _, apiKey := range cfg.Groq.APIKeys {
		completer, err := groq.NewClient(apiKey)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize LLM client")
		}
		completers = append(completers, completer)
	}
	if len(completers) == 0 {
		log.Fatal().Msg("GROQ_API_KEYS must configure at least one credential")
	}

	// Services
	fingerprintService := services.NewFingerprintService()
	summaryService := services.NewSummaryService(visitRepo, resultRepo)
	retrievalService := services.NewRetrievalService(embedder, caseIndex, caseRepo, cfg.Index.TopK)
	gateway := services.NewLLMGateway(completers, &cfg.Groq, usageRepo)
	diagnosisService := services.NewDiagnosisService(
		patientRepo, visitRepo, summaryRepo, resultRepo, jobRepo,
		fingerprintService, summaryService, retrievalService, gateway, eventBus,
	)
	patientService := services.NewPatientService(patientRepo, visitRepo, resultRepo, jobRepo)
	statsService := services.NewStatsService(patientRepo, resultRepo, jobRepo, caseRepo)

	if err := retrievalService.EnsureIndex(ctx); err != nil {
		log.Warn().Err(err).Msg("case index unavailable at startup, retrieval will retry on demand")
	}

	// Worker pool
	pool := workers.NewPool(cfg.Worker.Concurrency, cfg.Worker.QueueSize, diagnosisService.Execute)
	diagnosisService.SetEnqueuer(func(jobID string) {
		if !pool.Enqueue(jobID) {
			log.Warn().Str("job_id", jobID).Msg("job queue full, job stays pending until requeue")
		}
	})
	pool.Start()

	// Requeue jobs that were in flight when the previous process stopped.
	if active, err := jobRepo.ListActive(ctx, 0); err != nil {
		log.Warn().Err(err).Msg("failed to list active jobs for requeue")
	} else {
		requeued := 0
		for _, job := range active {
			if job.Status == entities.JobStatusPending && pool.Enqueue(job.ID) {
				requeued++
			}
		}
		if requeued > 0 {
			log.Info().Int("count", requeued).Msg("requeued pending diagnosis jobs")
		}
	}

	// Handlers and router
	patientHandler := handlers.NewPatientHandler(patientService)
	diagnosisHandler := handlers.NewDiagnosisHandler(diagnosisService, patientService)
	dashboardHandler := handlers.NewDashboardHandler(statsService)
	sseHandler := handlers.NewSSEHandler(eventBus)

	var cacheMiddleware *middleware.CacheMiddleware
	if cacheProvider != nil {
		cacheMiddleware = middleware.NewCacheMiddleware(cacheProvider)
	}

	router := routes.NewRouter(
		patientHandler,
		diagnosisHandler,
		dashboardHandler,
		sseHandler,
		cacheMiddleware,
		metrics,
	)
	handler := router.SetupRoutes()

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:        serverAddr,
		Handler:     handler,
		ReadTimeout: 15 * time.Second,
		// Write timeout must cover long-lived SSE connections.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", serverAddr).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("server shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("error during server shutdown")
	}

	// Let in-flight jobs finish before closing shared infrastructure.
	pool.Stop()

	if eventBus != nil {
		if err := eventBus.Close(); err != nil {
			log.Warn().Err(err).Msg("error closing event bus")
		}
	}

	log.Info().Msg("server stopped")
}
