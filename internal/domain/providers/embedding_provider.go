package providers

import "context"

// Embedder turns text into a fixed-dimension vector. Same text and same
// model version always produce the same vector; stability across model
// upgrades is not guaranteed.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}
