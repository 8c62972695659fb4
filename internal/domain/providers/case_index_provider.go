package providers

import (
	"context"

	"github.com/zatekoja/Clinicaltriagedesign/backend/internal/domain/entities"
)

// CaseIndex is the persisted similarity index over knowledge-case
// embeddings. Rebuilds replace the index wholesale; concurrent readers see
// either the old or the new complete index, never a partial one.
type CaseIndex interface {
	// Build rebuilds the index from the given cases, skipping (with a log
	// line, not an error) cases that carry no embedding, and persists the
	// vector blob and the parallel case-id list together.
	Build(ctx context.Context, cases []*entities.KnowledgeCase) error

	// Load restores the persisted index. It returns false without error when
	// either on-disk artifact is missing.
	Load(ctx context.Context) (bool, error)

	// Search returns up to min(k, size) case ids ordered by ascending L2
	// distance. An empty or unloaded index yields an empty result.
	Search(ctx context.Context, query []float32, k int) ([]string, error)

	// Size returns the number of indexed cases, 0 when not loaded.
	Size() int
}
