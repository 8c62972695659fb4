package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/zatekoja/Clinicaltriagedesign/backend/pkg/config"
	apperrors "github.com/zatekoja/Clinicaltriagedesign/backend/pkg/errors"
)

// Client talks to a sentence-embedding inference service exposing the
// text-embeddings-inference API (POST /embed). The hosted model
// (all-MiniLM-L6-v2 by default) produces 384-dimensional vectors and is
// deterministic for a given model version.
type Client struct {
	baseURL    string
	model      string
	dimension  int
	httpClient *http.Client
}

// NewClient creates a new embedding client.
func NewClient(cfg *config.EmbeddingConfig) (*Client, error) {
	if cfg == nil || cfg.BaseURL == "" {
		return nil, errors.New("embedding service url is required")
	}
	dimension := cfg.Dimension
	if dimension <= 0 {
		dimension = 384
	}

	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		model:     cfg.Model,
		dimension: dimension,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}, nil
}

// Dimension returns the configured vector dimension.
func (c *Client) Dimension() int {
	return c.dimension
}

type embedRequest struct {
	Inputs string `json:"inputs"`
	Model  string `json:"model,omitempty"`
}

// Embed returns the embedding vector for the given text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(embedRequest{Inputs: text, Model: c.model})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embed", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.NewExternalError("embedding request failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.NewExternalError("failed to read embedding response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apperrors.NewExternalError(
			fmt.Sprintf("embedding request failed with status %d", resp.StatusCode),
			errors.New(strings.TrimSpace(string(raw))),
		)
	}

	// The service returns a batch: one vector per input.
	var vectors [][]float32
	if err := json.Unmarshal(raw, &vectors); err != nil {
		return nil, apperrors.NewExternalError("failed to decode embedding response", err)
	}
	if len(vectors) == 0 {
		return nil, apperrors.NewExternalError("embedding response is empty", nil)
	}

	vector := vectors[0]
	if len(vector) != c.dimension {
		return nil, apperrors.NewExternalError(
			fmt.Sprintf("embedding dimension mismatch: got %d, want %d", len(vector), c.dimension),
			nil,
		)
	}

	return vector, nil
}
