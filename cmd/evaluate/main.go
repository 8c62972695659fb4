package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/zatekoja/Clinicaltriagedesign/backend/internal/adapters/database"
	"github.com/zatekoja/Clinicaltriagedesign/backend/internal/adapters/vectorindex"
	"github.com/zatekoja/Clinicaltriagedesign/backend/internal/application/services"
	"github.com/zatekoja/Clinicaltriagedesign/backend/internal/evaluation"
	"github.com/zatekoja/Clinicaltriagedesign/backend/internal/infrastructure/clients/embedding"
	"github.com/zatekoja/Clinicaltriagedesign/backend/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/Clinicaltriagedesign/backend/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pgClient.Close()

	embedder, err := embedding.NewClient(&cfg.Embedding)
	if err != nil {
		log.Fatalf("Failed to create embedding client: %v", err)
	}

	caseRepo := database.NewKnowledgeCaseAdapter(pgClient)
	index := vectorindex.NewFlatIndex(cfg.Index.Dir, cfg.Embedding.Dimension)
	retrievalService := services.NewRetrievalService(embedder, index, caseRepo, cfg.Index.TopK)

	ctx := context.Background()
	if err := retrievalService.EnsureIndex(ctx); err != nil {
		log.Fatalf("Failed to prepare case index: %v", err)
	}

	goldenPath := "config/golden_cases.json"
	if _, err := os.Stat("backend/" + goldenPath); err == nil {
		goldenPath = "backend/" + goldenPath
	}

	cases, err := evaluation.LoadGoldenCases(goldenPath)
	if err != nil {
		log.Fatalf("Failed to load golden cases: %v", err)
	}
	if err := evaluation.ValidateGoldenCases(cases); err != nil {
		log.Fatalf("Invalid golden case set: %v", err)
	}

	runner := evaluation.NewRunner(retrievalService, cfg.Index.TopK)
	summary, err := runner.Run(ctx, cases)
	if err != nil {
		log.Fatalf("Evaluation failed: %v", err)
	}

	out, _ := json.MarshalIndent(summary, "", "  ")
	fmt.Println(string(out))
}
