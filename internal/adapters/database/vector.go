package database

import "github.com/lib/pq"

// Embeddings live in real[] columns; lib/pq only speaks float64 arrays.

func embeddingToArray(v []float32) pq.Float64Array {
	out := make(pq.Float64Array, len(v))
	for i, f := range v {
		out[i] = float64(f)
	}
	return out
}

func arrayToEmbedding(a pq.Float64Array) []float32 {
	if len(a) == 0 {
		return nil
	}
	out := make([]float32, len(a))
	for i, f := range a {
		out[i] = float32(f)
	}
	return out
}
