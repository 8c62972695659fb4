package groq

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/zatekoja/Clinicaltriagedesign/backend/internal/domain/providers"
	apperrors "github.com/zatekoja/Clinicaltriagedesign/backend/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const defaultBaseURL = "https://api.groq.com/openai/v1"

// quotaMarkers identify quota/rate-limit failures that must cascade to the
// next credential instead of being retried on the same one.
var quotaMarkers = []string{"RESOURCE_EXHAUSTED", "QUOTA", "429", "RATE_LIMIT"}

// Client executes chat completions against the Groq API with a single API
// key. The gateway holds one Client per configured credential.
type Client struct {
	apiKey         string
	keyFingerprint string
	baseURL        string
	httpClient     *http.Client
}

// NewClient creates a new Groq client for one API credential.
func NewClient(apiKey string) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("groq api key is required")
	}

	return &Client{
		apiKey:         apiKey,
		keyFingerprint: FingerprintKey(apiKey),
		baseURL:        defaultBaseURL,
		httpClient:     &http.Client{},
	}, nil
}

// FingerprintKey derives the short credential fingerprint used for quota
// bookkeeping. The raw key never reaches storage or logs.
func FingerprintKey(apiKey string) string {
	sum := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(sum[:])[:12]
}

// KeyFingerprint implements providers.ChatCompleter.
func (c *Client) KeyFingerprint() string {
	return c.keyFingerprint
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Complete sends one chat completion request and returns the raw response
// text. Quota-related failures come back as QUOTA_EXHAUSTED AppErrors so the
// gateway can move to the next credential immediately.
func (c *Client) Complete(ctx context.Context, req providers.ChatRequest) (string, error) {
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	payload := chatRequest{
		Model: req.Model,
		Messages: []chatMessage{
			{Role: "user", Content: req.Prompt},
		},
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		recordGroqMetric(ctx, req.Model, 0, time.Since(start), err)
		return "", apperrors.NewExternalError("groq request failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		recordGroqMetric(ctx, req.Model, resp.StatusCode, time.Since(start), err)
		return "", apperrors.NewExternalError("failed to read groq response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		failure := fmt.Errorf("groq request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
		recordGroqMetric(ctx, req.Model, resp.StatusCode, time.Since(start), failure)
		if resp.StatusCode == http.StatusTooManyRequests || IsQuotaMessage(failure.Error()) {
			return "", apperrors.NewQuotaError(failure.Error())
		}
		return "", apperrors.NewExternalError("groq request failed", failure)
	}

	var envelope chatResponse
	if err := json.Unmarshal(raw, &envelope); err != nil {
		recordGroqMetric(ctx, req.Model, resp.StatusCode, time.Since(start), err)
		return "", apperrors.NewExternalError("failed to decode groq response", err)
	}

	if envelope.Error != nil {
		failure := fmt.Errorf("groq error: %s", envelope.Error.Message)
		recordGroqMetric(ctx, req.Model, resp.StatusCode, time.Since(start), failure)
		if IsQuotaMessage(envelope.Error.Message) {
			return "", apperrors.NewQuotaError(failure.Error())
		}
		return "", apperrors.NewExternalError("groq request failed", failure)
	}

	if len(envelope.Choices) == 0 {
		missing := errors.New("groq response missing choices")
		recordGroqMetric(ctx, req.Model, resp.StatusCode, time.Since(start), missing)
		return "", apperrors.NewExternalError("groq response missing choices", missing)
	}

	recordGroqMetric(ctx, req.Model, resp.StatusCode, time.Since(start), nil)
	return envelope.Choices[0].Message.Content, nil
}

// IsQuotaMessage reports whether an error message carries any of the known
// quota/rate-limit markers.
func IsQuotaMessage(message string) bool {
	upper := strings.ToUpper(message)
	for _, marker := range quotaMarkers {
		if strings.Contains(upper, marker) {
			return true
		}
	}
	return false
}

type groqMetrics struct {
	requestCount    metric.Int64Counter
	requestDuration metric.Float64Histogram
	requestErrors   metric.Int64Counter
}

var groqMetricsInit = false
var groqMetricsSet groqMetrics

func ensureGroqMetrics() {
	if groqMetricsInit {
		return
	}
	meter := otel.Meter("github.com/zatekoja/Clinicaltriagedesign/backend/groq")

	requestCount, err := meter.Int64Counter(
		"ai.groq.request.count",
		metric.WithDescription("Number of Groq requests"),
	)
	if err != nil {
		return
	}
	requestDuration, err := meter.Float64Histogram(
		"ai.groq.request.duration",
		metric.WithDescription("Groq request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return
	}
	requestErrors, err := meter.Int64Counter(
		"ai.groq.request.errors",
		metric.WithDescription("Number of Groq request errors"),
	)
	if err != nil {
		return
	}

	groqMetricsSet = groqMetrics{
		requestCount:    requestCount,
		requestDuration: requestDuration,
		requestErrors:   requestErrors,
	}
	groqMetricsInit = true
}

func recordGroqMetric(ctx context.Context, model string, statusCode int, duration time.Duration, err error) {
	ensureGroqMetrics()
	if !groqMetricsInit {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("ai.provider", "groq"),
		attribute.String("ai.model", model),
	}
	if statusCode > 0 {
		attrs = append(attrs, attribute.Int("http.status_code", statusCode))
	}

	groqMetricsSet.requestCount.Add(ctx, 1, metric.WithAttributes(attrs...))
	groqMetricsSet.requestDuration.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
	if err != nil {
		groqMetricsSet.requestErrors.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}
