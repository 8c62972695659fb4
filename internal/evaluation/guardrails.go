package evaluation

import (
	"fmt"

	"github.com/zatekoja/Clinicaltriagedesign/backend/internal/domain/entities"
)

// GuardrailConfig bounds what counts as a structurally acceptable
// diagnosis payload.
type GuardrailConfig struct {
	MinDifferentials int
	MaxDifferentials int
}

// Guardrails checks diagnosis payloads against structural safety rules.
// Violations are reported, not enforced; the pipeline already coerces
// payloads, so a violation here points at a gateway regression.
type Guardrails struct {
	config GuardrailConfig
}

func NewGuardrails(config GuardrailConfig) *Guardrails {
	if config.MinDifferentials <= 0 {
		config.MinDifferentials = 2
	}
	if config.MaxDifferentials <= 0 {
		config.MaxDifferentials = 10
	}
	return &Guardrails{config: config}
}

// Check returns the list of violations for a payload, empty when clean.
func (g *Guardrails) Check(payload *entities.DiagnosisPayload) []string {
	violations := []string{}

	if len(payload.DifferentialDiagnoses) < g.config.MinDifferentials {
		violations = append(violations, fmt.Sprintf(
			"differential has %d entries, expected at least %d",
			len(payload.DifferentialDiagnoses), g.config.MinDifferentials))
	}
	if len(payload.DifferentialDiagnoses) > g.config.MaxDifferentials {
		violations = append(violations, fmt.Sprintf(
			"differential has %d entries, expected at most %d",
			len(payload.DifferentialDiagnoses), g.config.MaxDifferentials))
	}

	for i, d := range payload.DifferentialDiagnoses {
		if d.Diagnosis == "" {
			violations = append(violations, fmt.Sprintf("differential entry %d has no diagnosis text", i))
		}
		// Likelihoods are percentages, matching the model output contract.
		if d.Likelihood < 0 || d.Likelihood > 100 {
			violations = append(violations, fmt.Sprintf(
				"differential entry %d likelihood %.2f outside [0,100]", i, d.Likelihood))
		}
	}

	if !payload.TriageLevel.IsValid() {
		violations = append(violations, fmt.Sprintf("invalid triage level %q", payload.TriageLevel))
	}
	if payload.ConfidenceScore < 0 || payload.ConfidenceScore > 1 {
		violations = append(violations, fmt.Sprintf(
			"confidence score %.2f outside [0,1]", payload.ConfidenceScore))
	}
	if payload.Explanation == "" {
		violations = append(violations, "missing explanation")
	}
	if payload.Disclaimer == "" {
		violations = append(violations, "missing disclaimer")
	}

	return violations
}
