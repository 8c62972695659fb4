package database

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/zatekoja/Clinicaltriagedesign/backend/internal/domain/entities"
	"github.com/zatekoja/Clinicaltriagedesign/backend/internal/domain/providers"
	"github.com/zatekoja/Clinicaltriagedesign/backend/internal/domain/repositories"
)

// CachedKnowledgeCaseAdapter wraps KnowledgeCaseAdapter with caching.
// Knowledge cases are immutable after load, so the TTL is generous.
type CachedKnowledgeCaseAdapter struct {
	adapter repositories.KnowledgeCaseRepository
	cache   providers.CacheProvider
}

// NewCachedKnowledgeCaseAdapter creates a new cached knowledge case adapter
func NewCachedKnowledgeCaseAdapter(adapter repositories.KnowledgeCaseRepository, cache providers.CacheProvider) repositories.KnowledgeCaseRepository {
	return &CachedKnowledgeCaseAdapter{
		adapter: adapter,
		cache:   cache,
	}
}

// Cache TTL (in seconds)
const knowledgeCaseTTL = 3600

func knowledgeCaseCacheKey(caseID string) string {
	return fmt.Sprintf("knowledge_case:%s", caseID)
}

// cachedCase carries the embedding explicitly; the entity hides it from
// API JSON.
type cachedCase struct {
	CaseID    string    `json:"case_id"`
	Summary   string    `json:"summary"`
	Diagnosis string    `json:"diagnosis"`
	Outcome   string    `json:"outcome"`
	Embedding []float32 `json:"embedding"`
	CreatedAt time.Time `json:"created_at"`
}

func toCachedCase(kc *entities.KnowledgeCase) cachedCase {
	return cachedCase{
		CaseID:    kc.CaseID,
		Summary:   kc.Summary,
		Diagnosis: kc.Diagnosis,
		Outcome:   kc.Outcome,
		Embedding: kc.Embedding,
		CreatedAt: kc.CreatedAt,
	}
}

func (c cachedCase) toEntity() *entities.KnowledgeCase {
	return &entities.KnowledgeCase{
		CaseID:    c.CaseID,
		Summary:   c.Summary,
		Diagnosis: c.Diagnosis,
		Outcome:   c.Outcome,
		Embedding: c.Embedding,
		CreatedAt: c.CreatedAt,
	}
}

// GetByID retrieves a knowledge case with caching
func (a *CachedKnowledgeCaseAdapter) GetByID(ctx context.Context, caseID string) (*entities.KnowledgeCase, error) {
	cacheKey := knowledgeCaseCacheKey(caseID)

	if cached, err := a.cache.Get(ctx, cacheKey); err == nil {
		var cc cachedCase
		if err := json.Unmarshal(cached, &cc); err == nil {
			return cc.toEntity(), nil
		}
		log.Printf("Failed to unmarshal cached knowledge case %s: %v", caseID, err)
	}

	kc, err := a.adapter.GetByID(ctx, caseID)
	if err != nil {
		return nil, err
	}

	go func() {
		bgCtx := context.Background()
		if data, err := json.Marshal(toCachedCase(kc)); err == nil {
			if err := a.cache.Set(bgCtx, cacheKey, data, knowledgeCaseTTL); err != nil {
				log.Printf("Failed to cache knowledge case %s: %v", caseID, err)
			}
		}
	}()

	return kc, nil
}

// GetByIDs retrieves knowledge cases with batch caching, preserving the
// requested id order
func (a *CachedKnowledgeCaseAdapter) GetByIDs(ctx context.Context, caseIDs []string) ([]*entities.KnowledgeCase, error) {
	if len(caseIDs) == 0 {
		return []*entities.KnowledgeCase{}, nil
	}

	cacheKeys := make([]string, len(caseIDs))
	for i, id := range caseIDs {
		cacheKeys[i] = knowledgeCaseCacheKey(id)
	}
	cached, _ := a.cache.GetMulti(ctx, cacheKeys)

	hits := make(map[string]*entities.KnowledgeCase, len(caseIDs))
	missingIDs := make([]string, 0)
	for i, id := range caseIDs {
		if data, ok := cached[cacheKeys[i]]; ok {
			var cc cachedCase
			if err := json.Unmarshal(data, &cc); err == nil {
				hits[id] = cc.toEntity()
				continue
			}
		}
		missingIDs = append(missingIDs, id)
	}

	if len(missingIDs) > 0 {
		dbCases, err := a.adapter.GetByIDs(ctx, missingIDs)
		if err != nil {
			return nil, err
		}
		for _, kc := range dbCases {
			hits[kc.CaseID] = kc
		}

		go func() {
			bgCtx := context.Background()
			items := make(map[string][]byte)
			for _, kc := range dbCases {
				if data, err := json.Marshal(toCachedCase(kc)); err == nil {
					items[knowledgeCaseCacheKey(kc.CaseID)] = data
				}
			}
			if len(items) > 0 {
				if err := a.cache.SetMulti(bgCtx, items, knowledgeCaseTTL); err != nil {
					log.Printf("Failed to batch cache knowledge cases: %v", err)
				}
			}
		}()
	}

	// Rebuild in requested order, dropping ids that exist nowhere
	ordered := make([]*entities.KnowledgeCase, 0, len(caseIDs))
	for _, id := range caseIDs {
		if kc, ok := hits[id]; ok {
			ordered = append(ordered, kc)
		}
	}
	return ordered, nil
}

// Upsert writes through and invalidates the case's cache entry
func (a *CachedKnowledgeCaseAdapter) Upsert(ctx context.Context, kc *entities.KnowledgeCase) error {
	if err := a.adapter.Upsert(ctx, kc); err != nil {
		return err
	}

	go func() {
		bgCtx := context.Background()
		if err := a.cache.Delete(bgCtx, knowledgeCaseCacheKey(kc.CaseID)); err != nil {
			log.Printf("Failed to invalidate knowledge case cache %s: %v", kc.CaseID, err)
		}
	}()

	return nil
}

// ListAll bypasses the cache; index builds want fresh rows with embeddings
func (a *CachedKnowledgeCaseAdapter) ListAll(ctx context.Context) ([]*entities.KnowledgeCase, error) {
	return a.adapter.ListAll(ctx)
}

// Count bypasses the cache
func (a *CachedKnowledgeCaseAdapter) Count(ctx context.Context) (int, error) {
	return a.adapter.Count(ctx)
}
