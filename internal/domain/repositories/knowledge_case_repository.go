package repositories

import (
	"context"

	"github.com/zatekoja/Clinicaltriagedesign/backend/internal/domain/entities"
)

// KnowledgeCaseRepository defines read and bulk-load access to the knowledge
// base. The pipeline only reads; Upsert exists for the bulk loader.
type KnowledgeCaseRepository interface {
	Upsert(ctx context.Context, kc *entities.KnowledgeCase) error
	GetByID(ctx context.Context, caseID string) (*entities.KnowledgeCase, error)
	// GetByIDs preserves the order of the requested ids in its result and
	// silently drops ids that no longer exist.
	GetByIDs(ctx context.Context, caseIDs []string) ([]*entities.KnowledgeCase, error)
	ListAll(ctx context.Context) ([]*entities.KnowledgeCase, error)
	Count(ctx context.Context) (int, error)
}
