package repositories

import "context"

// LLMUsageRepository tracks daily request counts per (model, key
// fingerprint, UTC day).
type LLMUsageRepository interface {
	// TryIncrement atomically increments the counter for the triple if and
	// only if the current count is below ceiling, returning whether the slot
	// was claimed. Concurrent callers must never both succeed past the
	// ceiling. A ceiling of 0 or less means unlimited and always claims.
	TryIncrement(ctx context.Context, model, keyFingerprint, day string, ceiling int) (bool, error)

	// Count returns the current count for the triple, 0 when no row exists.
	Count(ctx context.Context, model, keyFingerprint, day string) (int, error)
}
