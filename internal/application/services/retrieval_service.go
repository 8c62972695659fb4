package services

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/zatekoja/Clinicaltriagedesign/backend/internal/domain/entities"
	"github.com/zatekoja/Clinicaltriagedesign/backend/internal/domain/providers"
	"github.com/zatekoja/Clinicaltriagedesign/backend/internal/domain/repositories"
)

// RetrievalService embeds summaries and finds the most similar knowledge
// cases through the persisted index.
type RetrievalService struct {
	embedder providers.Embedder
	index    providers.CaseIndex
	caseRepo repositories.KnowledgeCaseRepository
	topK     int

	ensureOnce sync.Mutex
}

// NewRetrievalService creates a new retrieval service
func NewRetrievalService(embedder providers.Embedder, index providers.CaseIndex, caseRepo repositories.KnowledgeCaseRepository, topK int) *RetrievalService {
	return &RetrievalService{
		embedder: embedder,
		index:    index,
		caseRepo: caseRepo,
		topK:     topK,
	}
}

// Embed turns summary text into its vector
func (s *RetrievalService) Embed(ctx context.Context, text string) ([]float32, error) {
	return s.embedder.Embed(ctx, text)
}

// EnsureIndex loads the persisted index, rebuilding it from the knowledge
// base when no artifacts exist yet. Safe to call on every request.
func (s *RetrievalService) EnsureIndex(ctx context.Context) error {
	if s.index.Size() > 0 {
		return nil
	}

	s.ensureOnce.Lock()
	defer s.ensureOnce.Unlock()
	if s.index.Size() > 0 {
		return nil
	}

	found, err := s.index.Load(ctx)
	if err != nil {
		return err
	}
	if found {
		return nil
	}

	log.Info().Msg("no persisted similarity index found, rebuilding from knowledge base")
	return s.Rebuild(ctx)
}

// Rebuild reconstructs and persists the index from every stored case
func (s *RetrievalService) Rebuild(ctx context.Context) error {
	cases, err := s.caseRepo.ListAll(ctx)
	if err != nil {
		return err
	}
	return s.index.Build(ctx, cases)
}

// Retrieve returns the top-k most similar knowledge cases for a summary
// embedding, in similarity order. An empty knowledge base yields an empty
// slice, not an error.
func (s *RetrievalService) Retrieve(ctx context.Context, embedding []float32) ([]*entities.KnowledgeCase, error) {
	if err := s.EnsureIndex(ctx); err != nil {
		return nil, err
	}

	ids, err := s.index.Search(ctx, embedding, s.topK)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []*entities.KnowledgeCase{}, nil
	}

	return s.caseRepo.GetByIDs(ctx, ids)
}
