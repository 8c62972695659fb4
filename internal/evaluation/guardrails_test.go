package evaluation

import (
	"strings"
	"testing"

	"github.com/zatekoja/Clinicaltriagedesign/backend/internal/domain/entities"
)

func cleanPayload() *entities.DiagnosisPayload {
	return &entities.DiagnosisPayload{
		DifferentialDiagnoses: []entities.DifferentialDiagnosis{
			{Diagnosis: "Community-acquired pneumonia", Likelihood: 70, Reasoning: "fever and productive cough"},
			{Diagnosis: "Acute bronchitis", Likelihood: 20, Reasoning: "cough without consolidation"},
		},
		TriageLevel:     entities.TriageHigh,
		Explanation:     "Presentation is consistent with a lower respiratory infection.",
		ConfidenceScore: 0.8,
		Disclaimer:      "Decision support only.",
	}
}

func TestGuardrails_CleanPayloadPasses(t *testing.T) {
	g := NewGuardrails(GuardrailConfig{})
	violations := g.Check(cleanPayload())
	if len(violations) != 0 {
		t.Errorf("expected no violations, got %v", violations)
	}
}

func TestGuardrails_TooFewDifferentials(t *testing.T) {
	g := NewGuardrails(GuardrailConfig{})
	p := cleanPayload()
	p.DifferentialDiagnoses = p.DifferentialDiagnoses[:1]
	violations := g.Check(p)
	if len(violations) != 1 || !strings.Contains(violations[0], "at least 2") {
		t.Errorf("expected one too-few-differentials violation, got %v", violations)
	}
}

func TestGuardrails_LikelihoodOutOfRange(t *testing.T) {
	g := NewGuardrails(GuardrailConfig{})
	p := cleanPayload()
	p.DifferentialDiagnoses[1].Likelihood = 150
	violations := g.Check(p)
	if len(violations) != 1 || !strings.Contains(violations[0], "outside [0,100]") {
		t.Errorf("expected one likelihood violation, got %v", violations)
	}
}

func TestGuardrails_InvalidTriageLevel(t *testing.T) {
	g := NewGuardrails(GuardrailConfig{})
	p := cleanPayload()
	p.TriageLevel = entities.TriageLevel("URGENT")
	violations := g.Check(p)
	if len(violations) != 1 || !strings.Contains(violations[0], "triage level") {
		t.Errorf("expected one triage violation, got %v", violations)
	}
}

func TestGuardrails_ConfidenceOutOfRange(t *testing.T) {
	g := NewGuardrails(GuardrailConfig{})
	p := cleanPayload()
	p.ConfidenceScore = -0.1
	violations := g.Check(p)
	if len(violations) != 1 || !strings.Contains(violations[0], "confidence score") {
		t.Errorf("expected one confidence violation, got %v", violations)
	}
}

func TestGuardrails_MissingTextFields(t *testing.T) {
	g := NewGuardrails(GuardrailConfig{})
	p := cleanPayload()
	p.Explanation = ""
	p.Disclaimer = ""
	violations := g.Check(p)
	if len(violations) != 2 {
		t.Errorf("expected two violations, got %v", violations)
	}
}

func TestGuardrails_ConfigOverridesBounds(t *testing.T) {
	g := NewGuardrails(GuardrailConfig{MinDifferentials: 1, MaxDifferentials: 1})
	p := cleanPayload()
	violations := g.Check(p)
	if len(violations) != 1 || !strings.Contains(violations[0], "at most 1") {
		t.Errorf("expected one too-many-differentials violation, got %v", violations)
	}
}
