package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/zatekoja/Clinicaltriagedesign/backend/internal/adapters/database"
	"github.com/zatekoja/Clinicaltriagedesign/backend/internal/adapters/vectorindex"
	"github.com/zatekoja/Clinicaltriagedesign/backend/internal/application/services"
	"github.com/zatekoja/Clinicaltriagedesign/backend/internal/infrastructure/clients/embedding"
	"github.com/zatekoja/Clinicaltriagedesign/backend/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/Clinicaltriagedesign/backend/pkg/config"
)

func main() {
	var embedMissing bool
	var intervalFlag string
	flag.BoolVar(&embedMissing, "embed-missing", true, "embed knowledge cases that have no stored vector before rebuilding")
	flag.StringVar(&intervalFlag, "interval", "", "repeat interval for reindexing (e.g. 6h, 30m)")
	flag.Parse()

	intervalValue := strings.TrimSpace(intervalFlag)
	if intervalValue == "" {
		intervalValue = strings.TrimSpace(os.Getenv("REINDEX_INTERVAL"))
	}

	var interval time.Duration
	var err error
	if intervalValue != "" {
		interval, err = time.ParseDuration(intervalValue)
		if err != nil {
			log.Fatalf("Invalid interval %q: %v", intervalValue, err)
		}
		if interval <= 0 {
			log.Fatalf("Interval must be greater than zero")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	for {
		if err := indexOnce(ctx, embedMissing); err != nil {
			log.Printf("Reindex failed: %v", err)
		}

		if interval <= 0 {
			break
		}

		log.Printf("Reindex complete. Next run in %s.", interval)

		select {
		case <-ctx.Done():
			log.Println("Indexer shutting down")
			return
		case <-time.After(interval):
		}
	}
}

func indexOnce(ctx context.Context, embedMissing bool) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		return err
	}
	defer pgClient.Close()

	embedder, err := embedding.NewClient(&cfg.Embedding)
	if err != nil {
		return err
	}

	caseRepo := database.NewKnowledgeCaseAdapter(pgClient)

	if embedMissing {
		cases, err := caseRepo.ListAll(ctx)
		if err != nil {
			return err
		}

		embedded := 0
		for _, kc := range cases {
			if kc.HasEmbedding() {
				continue
			}
			vector, err := embedder.Embed(ctx, kc.Summary)
			if err != nil {
				log.Printf("Warning: failed to embed case %s: %v", kc.CaseID, err)
				continue
			}
			kc.Embedding = vector
			if err := caseRepo.Upsert(ctx, kc); err != nil {
				log.Printf("Warning: failed to store embedding for case %s: %v", kc.CaseID, err)
				continue
			}
			embedded++
		}
		if embedded > 0 {
			log.Printf("Embedded %d cases without stored vectors", embedded)
		}
	}

	index := vectorindex.NewFlatIndex(cfg.Index.Dir, cfg.Embedding.Dimension)
	retrievalService := services.NewRetrievalService(embedder, index, caseRepo, cfg.Index.TopK)

	if err := retrievalService.Rebuild(ctx); err != nil {
		return err
	}

	log.Printf("Rebuilt similarity index with %d cases", index.Size())
	return nil
}
