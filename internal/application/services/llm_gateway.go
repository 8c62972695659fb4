package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/zatekoja/Clinicaltriagedesign/backend/internal/domain/entities"
	"github.com/zatekoja/Clinicaltriagedesign/backend/internal/domain/providers"
	"github.com/zatekoja/Clinicaltriagedesign/backend/internal/domain/repositories"
	"github.com/zatekoja/Clinicaltriagedesign/backend/internal/infrastructure/clients/groq"
	"github.com/zatekoja/Clinicaltriagedesign/backend/pkg/config"
	apperrors "github.com/zatekoja/Clinicaltriagedesign/backend/pkg/errors"
)

const degradedDisclaimer = "This is clinical decision support only. Final diagnosis and treatment decisions must be made by qualified healthcare professionals."

// LLMGateway walks the model cascade across every configured credential,
// enforcing per-day quota ceilings before each request. Whatever happens
// upstream, GenerateDiagnosis always hands back a structurally valid
// payload; total failure degrades to a MEDIUM-triage placeholder rather
// than an error.
type LLMGateway struct {
	completers []providers.ChatCompleter
	cascade    []config.ModelLimit
	usageRepo  repositories.LLMUsageRepository

	maxRetries  int
	temperature float64
	maxTokens   int
	timeout     time.Duration

	// Injectable for tests
	sleep func(time.Duration)
	now   func() time.Time
}

// NewLLMGateway creates a new LLM gateway
func NewLLMGateway(completers []providers.ChatCompleter, cfg *config.GroqConfig, usageRepo repositories.LLMUsageRepository) *LLMGateway {
	return &LLMGateway{
		completers:  completers,
		cascade:     cfg.Cascade,
		usageRepo:   usageRepo,
		maxRetries:  cfg.MaxRetries,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		timeout:     cfg.Timeout,
		sleep:       time.Sleep,
		now:         time.Now,
	}
}

// GenerateDiagnosis produces the diagnosis payload for a clinical summary
// and its retrieved evidence cases.
func (g *LLMGateway) GenerateDiagnosis(ctx context.Context, clinicalSummary string, retrievedCases []*entities.KnowledgeCase) *entities.DiagnosisPayload {
	prompt := groq.BuildDiagnosisPrompt(clinicalSummary, retrievedCases)

	responseText, err := g.complete(ctx, prompt)
	if err != nil {
		log.Error().Err(err).Msg("diagnosis generation failed, returning degraded payload")
		return degradedPayload("Error generating diagnosis", err.Error(), fmt.Sprintf("Error: %s", err.Error()))
	}

	payload, err := parseDiagnosisResponse(responseText)
	if err != nil {
		log.Error().Err(err).Str("response", responseText).Msg("failed to parse diagnosis response")
		return degradedPayload("Unable to generate diagnosis", "LLM response could not be parsed",
			fmt.Sprintf("Error parsing LLM response: %s", err.Error()))
	}

	return payload
}

// complete walks models in cascade order and, per model, every credential.
// A quota denial or quota-classified provider error moves to the next
// credential; transient errors retry with exponential backoff and abort the
// whole walk once retries are spent.
func (g *LLMGateway) complete(ctx context.Context, prompt string) (string, error) {
	if len(g.completers) == 0 {
		return "", apperrors.NewInternalError("no LLM credentials configured", nil)
	}

	var lastErr error

	for modelIndex, model := range g.cascade {
		for keyIndex, completer := range g.completers {
			attempt := 0
			for attempt < g.maxRetries {
				claimed, err := g.usageRepo.TryIncrement(ctx, model.Name, completer.KeyFingerprint(), entities.UsageDay(g.now()), model.DailyLimit)
				if err != nil {
					return "", err
				}
				if !claimed {
					lastErr = apperrors.NewQuotaError(
						fmt.Sprintf("daily quota reached for %s using API key #%d", model.Name, keyIndex+1))
					log.Info().
						Str("model", model.Name).
						Int("key", keyIndex+1).
						Msg("daily quota reached, skipping until reset")
					break
				}

				responseText, err := completer.Complete(ctx, providers.ChatRequest{
					Model:       model.Name,
					Prompt:      prompt,
					Temperature: g.temperature,
					MaxTokens:   g.maxTokens,
					Timeout:     g.timeout,
				})
				if err == nil {
					if keyIndex > 0 || modelIndex > 0 {
						log.Info().
							Str("model", model.Name).
							Int("key", keyIndex+1).
							Msg("llm request succeeded after cascade")
					}
					return responseText, nil
				}

				lastErr = err
				attempt++

				if apperrors.IsType(err, apperrors.ErrorTypeQuota) {
					log.Warn().
						Str("model", model.Name).
						Int("key", keyIndex+1).
						Msg("llm quota exhausted, moving to next API key")
					break
				}

				if attempt < g.maxRetries {
					wait := time.Duration(1<<(attempt-1)) * time.Second
					log.Warn().
						Err(err).
						Int("attempt", attempt).
						Int("max_retries", g.maxRetries).
						Dur("wait", wait).
						Msg("llm call failed, retrying")
					g.sleep(wait)
					continue
				}

				return "", apperrors.NewExternalError(
					fmt.Sprintf("llm call failed after %d attempts using %s (API key #%d)", g.maxRetries, model.Name, keyIndex+1), err)
			}
		}

		if modelIndex < len(g.cascade)-1 {
			log.Info().Str("model", model.Name).Msg("all API keys quota-limited, trying next model")
		}
	}

	return "", apperrors.NewExternalError("llm call failed after exhausting all configured models and API keys", lastErr)
}

// parseDiagnosisResponse strips markdown fences, parses the JSON payload,
// checks required fields, and coerces out-of-range values instead of
// rejecting the response outright.
func parseDiagnosisResponse(responseText string) (*entities.DiagnosisPayload, error) {
	text := stripCodeFence(responseText)

	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, err
	}

	for _, field := range []string{"differential_diagnoses", "triage_level", "explanation", "confidence_score"} {
		if _, ok := raw[field]; !ok {
			return nil, fmt.Errorf("missing required field: %s", field)
		}
	}

	payload := &entities.DiagnosisPayload{}
	if err := json.Unmarshal([]byte(text), payload); err != nil {
		return nil, err
	}

	if !payload.TriageLevel.IsValid() {
		payload.TriageLevel = entities.TriageMedium
	}
	if payload.ConfidenceScore < 0 || payload.ConfidenceScore > 1 {
		payload.ConfidenceScore = 0.5
	}
	if payload.Disclaimer == "" {
		payload.Disclaimer = degradedDisclaimer
	}

	return payload, nil
}

// stripCodeFence extracts the JSON body when the model wraps it in a
// markdown code block.
func stripCodeFence(text string) string {
	if idx := strings.Index(text, "```json"); idx >= 0 {
		start := idx + len("```json")
		if end := strings.Index(text[start:], "```"); end >= 0 {
			return strings.TrimSpace(text[start : start+end])
		}
	} else if idx := strings.Index(text, "```"); idx >= 0 {
		start := idx + len("```")
		if end := strings.Index(text[start:], "```"); end >= 0 {
			return strings.TrimSpace(text[start : start+end])
		}
	}
	return strings.TrimSpace(text)
}

func degradedPayload(diagnosis, reasoning, explanation string) *entities.DiagnosisPayload {
	return &entities.DiagnosisPayload{
		DifferentialDiagnoses: []entities.DifferentialDiagnosis{
			{
				Diagnosis:  diagnosis,
				Likelihood: 0,
				Reasoning:  reasoning,
			},
		},
		TriageLevel:     entities.TriageMedium,
		Explanation:     explanation,
		ConfidenceScore: 0.0,
		Disclaimer:      degradedDisclaimer,
	}
}
