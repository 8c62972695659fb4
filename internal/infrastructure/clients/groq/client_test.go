package groq

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/Clinicaltriagedesign/backend/internal/domain/entities"
	"github.com/zatekoja/Clinicaltriagedesign/backend/internal/domain/providers"
	apperrors "github.com/zatekoja/Clinicaltriagedesign/backend/pkg/errors"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient("gsk_test_key")
	require.NoError(t, err)
	client.baseURL = server.URL
	return client, server
}

func TestNewClient_RequiresKey(t *testing.T) {
	_, err := NewClient("")
	assert.Error(t, err)
}

func TestFingerprintKey(t *testing.T) {
	fp := FingerprintKey("gsk_test_key")
	assert.Len(t, fp, 12)
	// Deterministic and key-dependent
	assert.Equal(t, fp, FingerprintKey("gsk_test_key"))
	assert.NotEqual(t, fp, FingerprintKey("gsk_other_key"))
}

func TestComplete_Success(t *testing.T) {
	var gotAuth string
	var gotBody chatRequest

	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"content": "hello"}},
			},
		})
	})

	text, err := client.Complete(context.Background(), providers.ChatRequest{
		Model:       "llama-3.3-70b-versatile",
		Prompt:      "ping",
		Temperature: 0.7,
		MaxTokens:   4096,
	})

	require.NoError(t, err)
	assert.Equal(t, "hello", text)
	assert.Equal(t, "Bearer gsk_test_key", gotAuth)
	assert.Equal(t, "llama-3.3-70b-versatile", gotBody.Model)
	require.Len(t, gotBody.Messages, 1)
	assert.Equal(t, "user", gotBody.Messages[0].Role)
	assert.Equal(t, "ping", gotBody.Messages[0].Content)
}

func TestComplete_RateLimitStatusIsQuotaError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"rate limit reached"}}`))
	})

	_, err := client.Complete(context.Background(), providers.ChatRequest{Model: "m", Prompt: "p"})
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeQuota))
}

func TestComplete_QuotaMarkerInBodyIsQuotaError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": map[string]string{"message": "RESOURCE_EXHAUSTED: daily tokens consumed"},
		})
	})

	_, err := client.Complete(context.Background(), providers.ChatRequest{Model: "m", Prompt: "p"})
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeQuota))
}

func TestComplete_ServerErrorIsExternal(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := client.Complete(context.Background(), providers.ChatRequest{Model: "m", Prompt: "p"})
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeExternal))
	assert.False(t, apperrors.IsType(err, apperrors.ErrorTypeQuota))
}

func TestIsQuotaMessage(t *testing.T) {
	tests := []struct {
		message string
		want    bool
	}{
		{"RESOURCE_EXHAUSTED", true},
		{"daily quota exceeded", true},
		{"HTTP 429 from upstream", true},
		{"rate_limit_exceeded", true},
		{"connection refused", false},
		{"internal server error", false},
	}

	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			assert.Equal(t, tt.want, IsQuotaMessage(tt.message))
		})
	}
}

func TestBuildDiagnosisPrompt(t *testing.T) {
	summary := "Chief Complaint: chest pain"
	cases := []*entities.KnowledgeCase{
		{CaseID: "KC-001", Summary: "older male with crushing chest pain", Diagnosis: "Acute MI", Outcome: "Admitted to cath lab"},
		{CaseID: "KC-002", Summary: "young female with pleuritic pain", Diagnosis: "Pulmonary embolism"},
	}

	prompt := BuildDiagnosisPrompt(summary, cases)

	assert.Contains(t, prompt, "PATIENT CLINICAL SUMMARY:\nChief Complaint: chest pain")
	assert.Contains(t, prompt, "CASE 1 (ID: KC-001)")
	assert.Contains(t, prompt, "Outcome: Admitted to cath lab")
	assert.Contains(t, prompt, "CASE 2 (ID: KC-002)")
	// No outcome line for the second case
	assert.Equal(t, 1, strings.Count(prompt, "Outcome:"))
	assert.Contains(t, prompt, "NEVER provide a single definitive diagnosis")
}

func TestBuildDiagnosisPrompt_NoCases(t *testing.T) {
	prompt := BuildDiagnosisPrompt("summary", nil)
	assert.Contains(t, prompt, "No similar cases found in the knowledge base.")
}
