package providers

import (
	"context"
	"time"
)

// ChatRequest is a single completion request to an LLM provider.
type ChatRequest struct {
	Model       string
	Prompt      string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// ChatCompleter executes completion requests against one provider account.
// The gateway holds one completer per configured API credential and walks
// them in cascade order.
type ChatCompleter interface {
	// Complete returns the raw response text. Quota-related failures are
	// reported as pkg/errors AppError with type QUOTA_EXHAUSTED so the
	// gateway can cascade instead of retrying.
	Complete(ctx context.Context, req ChatRequest) (string, error)

	// KeyFingerprint identifies the credential for quota bookkeeping without
	// exposing the key itself.
	KeyFingerprint() string
}
