package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/Clinicaltriagedesign/backend/internal/domain/entities"
	"github.com/zatekoja/Clinicaltriagedesign/backend/internal/domain/providers"
	"github.com/zatekoja/Clinicaltriagedesign/backend/pkg/config"
	apperrors "github.com/zatekoja/Clinicaltriagedesign/backend/pkg/errors"
)

const validDiagnosisJSON = `{
	"differential_diagnoses": [
		{"diagnosis": "Acute coronary syndrome", "likelihood": 60, "reasoning": "Chest pain with elevated troponin"},
		{"diagnosis": "Pulmonary embolism", "likelihood": 30, "reasoning": "Dyspnea and tachycardia"}
	],
	"triage_level": "HIGH",
	"explanation": "Presentation is consistent with an acute cardiac event.",
	"confidence_score": 0.8,
	"disclaimer": "Decision support only."
}`

func newTestGateway(completers []providers.ChatCompleter, cascade []config.ModelLimit, usageRepo *fakeUsageRepo) *LLMGateway {
	gw := NewLLMGateway(completers, &config.GroqConfig{
		Cascade:     cascade,
		MaxRetries:  3,
		Timeout:     time.Second,
		Temperature: 0.7,
		MaxTokens:   1024,
	}, usageRepo)
	gw.sleep = func(time.Duration) {}
	return gw
}

func singleModelCascade(dailyLimit int) []config.ModelLimit {
	return []config.ModelLimit{{Name: "model-a", DailyLimit: dailyLimit}}
}

func TestLLMGateway_ParsesCleanResponse(t *testing.T) {
	completer := &fakeCompleter{fingerprint: "key-1", responses: []string{validDiagnosisJSON}}
	gw := newTestGateway([]providers.ChatCompleter{completer}, singleModelCascade(0), newFakeUsageRepo())

	payload := gw.GenerateDiagnosis(context.Background(), "summary", nil)

	require.Len(t, payload.DifferentialDiagnoses, 2)
	assert.Equal(t, "Acute coronary syndrome", payload.DifferentialDiagnoses[0].Diagnosis)
	assert.Equal(t, entities.TriageHigh, payload.TriageLevel)
	assert.Equal(t, 0.8, payload.ConfidenceScore)
	assert.Equal(t, "Decision support only.", payload.Disclaimer)
	assert.Equal(t, 1, completer.calls)
}

func TestLLMGateway_StripsMarkdownFence(t *testing.T) {
	fenced := "Here is the assessment:\n```json\n" + validDiagnosisJSON + "\n```\nLet me know."
	completer := &fakeCompleter{fingerprint: "key-1", responses: []string{fenced}}
	gw := newTestGateway([]providers.ChatCompleter{completer}, singleModelCascade(0), newFakeUsageRepo())

	payload := gw.GenerateDiagnosis(context.Background(), "summary", nil)
	assert.Equal(t, entities.TriageHigh, payload.TriageLevel)
	assert.Len(t, payload.DifferentialDiagnoses, 2)
}

func TestLLMGateway_CoercesInvalidFields(t *testing.T) {
	response := `{
		"differential_diagnoses": [{"diagnosis": "Migraine", "likelihood": 90, "reasoning": "History"}],
		"triage_level": "URGENT",
		"explanation": "x",
		"confidence_score": 1.7
	}`
	completer := &fakeCompleter{fingerprint: "key-1", responses: []string{response}}
	gw := newTestGateway([]providers.ChatCompleter{completer}, singleModelCascade(0), newFakeUsageRepo())

	payload := gw.GenerateDiagnosis(context.Background(), "summary", nil)

	assert.Equal(t, entities.TriageMedium, payload.TriageLevel)
	assert.Equal(t, 0.5, payload.ConfidenceScore)
	assert.Equal(t, degradedDisclaimer, payload.Disclaimer)
}

func TestLLMGateway_UnparsableResponseDegrades(t *testing.T) {
	completer := &fakeCompleter{fingerprint: "key-1", responses: []string{"I cannot provide a diagnosis."}}
	gw := newTestGateway([]providers.ChatCompleter{completer}, singleModelCascade(0), newFakeUsageRepo())

	payload := gw.GenerateDiagnosis(context.Background(), "summary", nil)

	require.Len(t, payload.DifferentialDiagnoses, 1)
	assert.Equal(t, "Unable to generate diagnosis", payload.DifferentialDiagnoses[0].Diagnosis)
	assert.Equal(t, entities.TriageMedium, payload.TriageLevel)
	assert.Equal(t, 0.0, payload.ConfidenceScore)
	assert.Equal(t, degradedDisclaimer, payload.Disclaimer)
}

func TestLLMGateway_MissingRequiredFieldDegrades(t *testing.T) {
	response := `{"triage_level": "HIGH", "explanation": "x", "confidence_score": 0.9}`
	completer := &fakeCompleter{fingerprint: "key-1", responses: []string{response}}
	gw := newTestGateway([]providers.ChatCompleter{completer}, singleModelCascade(0), newFakeUsageRepo())

	payload := gw.GenerateDiagnosis(context.Background(), "summary", nil)
	assert.Equal(t, "Unable to generate diagnosis", payload.DifferentialDiagnoses[0].Diagnosis)
}

func TestLLMGateway_QuotaDenialCascadesToNextKey(t *testing.T) {
	usageRepo := newFakeUsageRepo()
	cascade := singleModelCascade(1)
	day := entities.UsageDay(time.Now())

	// Exhaust key-1's single daily slot up front.
	claimed, err := usageRepo.TryIncrement(context.Background(), "model-a", "key-1", day, 1)
	require.NoError(t, err)
	require.True(t, claimed)

	first := &fakeCompleter{fingerprint: "key-1", responses: []string{validDiagnosisJSON}}
	second := &fakeCompleter{fingerprint: "key-2", responses: []string{validDiagnosisJSON}}
	gw := newTestGateway([]providers.ChatCompleter{first, second}, cascade, usageRepo)

	payload := gw.GenerateDiagnosis(context.Background(), "summary", nil)

	assert.Equal(t, entities.TriageHigh, payload.TriageLevel)
	assert.Equal(t, 0, first.calls)
	assert.Equal(t, 1, second.calls)
}

func TestLLMGateway_QuotaErrorFromProviderCascades(t *testing.T) {
	first := &fakeCompleter{
		fingerprint: "key-1",
		responses:   []string{""},
		errs:        []error{apperrors.NewQuotaError("rate limit exceeded")},
	}
	second := &fakeCompleter{fingerprint: "key-2", responses: []string{validDiagnosisJSON}}
	gw := newTestGateway([]providers.ChatCompleter{first, second}, singleModelCascade(0), newFakeUsageRepo())

	payload := gw.GenerateDiagnosis(context.Background(), "summary", nil)

	assert.Equal(t, entities.TriageHigh, payload.TriageLevel)
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 1, second.calls)
}

func TestLLMGateway_TransientErrorRetriesSameKey(t *testing.T) {
	completer := &fakeCompleter{
		fingerprint: "key-1",
		responses:   []string{"", validDiagnosisJSON},
		errs:        []error{apperrors.NewUnavailableError("upstream timeout", nil), nil},
	}
	gw := newTestGateway([]providers.ChatCompleter{completer}, singleModelCascade(0), newFakeUsageRepo())

	payload := gw.GenerateDiagnosis(context.Background(), "summary", nil)

	assert.Equal(t, entities.TriageHigh, payload.TriageLevel)
	assert.Equal(t, 2, completer.calls)
}

func TestLLMGateway_TransientExhaustionDegrades(t *testing.T) {
	transient := apperrors.NewUnavailableError("upstream timeout", nil)
	completer := &fakeCompleter{
		fingerprint: "key-1",
		responses:   []string{"", "", ""},
		errs:        []error{transient, transient, transient},
	}
	gw := newTestGateway([]providers.ChatCompleter{completer}, singleModelCascade(0), newFakeUsageRepo())

	payload := gw.GenerateDiagnosis(context.Background(), "summary", nil)

	require.Len(t, payload.DifferentialDiagnoses, 1)
	assert.Equal(t, "Error generating diagnosis", payload.DifferentialDiagnoses[0].Diagnosis)
	assert.Equal(t, entities.TriageMedium, payload.TriageLevel)
	// Retries stay on the same credential and stop at the limit.
	assert.Equal(t, 3, completer.calls)
}

func TestLLMGateway_FallsThroughToNextModel(t *testing.T) {
	usageRepo := newFakeUsageRepo()
	cascade := []config.ModelLimit{
		{Name: "model-a", DailyLimit: 1},
		{Name: "model-b", DailyLimit: 0},
	}
	day := entities.UsageDay(time.Now())

	claimed, err := usageRepo.TryIncrement(context.Background(), "model-a", "key-1", day, 1)
	require.NoError(t, err)
	require.True(t, claimed)

	completer := &fakeCompleter{fingerprint: "key-1", responses: []string{validDiagnosisJSON}}
	gw := newTestGateway([]providers.ChatCompleter{completer}, cascade, usageRepo)

	payload := gw.GenerateDiagnosis(context.Background(), "summary", nil)

	assert.Equal(t, entities.TriageHigh, payload.TriageLevel)
	require.Equal(t, 1, completer.calls)
	assert.Equal(t, "model-b", completer.models[0])
}

func TestLLMGateway_AllQuotaLimitedDegrades(t *testing.T) {
	usageRepo := newFakeUsageRepo()
	cascade := singleModelCascade(1)
	day := entities.UsageDay(time.Now())

	claimed, err := usageRepo.TryIncrement(context.Background(), "model-a", "key-1", day, 1)
	require.NoError(t, err)
	require.True(t, claimed)

	completer := &fakeCompleter{fingerprint: "key-1", responses: []string{validDiagnosisJSON}}
	gw := newTestGateway([]providers.ChatCompleter{completer}, cascade, usageRepo)

	payload := gw.GenerateDiagnosis(context.Background(), "summary", nil)

	assert.Equal(t, "Error generating diagnosis", payload.DifferentialDiagnoses[0].Diagnosis)
	assert.Equal(t, 0, completer.calls)
}

func TestStripCodeFence(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"bare json", `{"a": 1}`, `{"a": 1}`},
		{"json fence", "```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"plain fence", "```\n{\"a\": 1}\n```", `{"a": 1}`},
		{"fence with prose", "Sure:\n```json\n{\"a\": 1}\n```\nDone.", `{"a": 1}`},
		{"whitespace", "  {\"a\": 1}  ", `{"a": 1}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, stripCodeFence(tc.in))
		})
	}
}
