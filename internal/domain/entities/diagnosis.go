package entities

import "time"

// TriageLevel is the ordinal urgency classification assigned to a diagnosis.
type TriageLevel string

const (
	TriageLow      TriageLevel = "LOW"
	TriageMedium   TriageLevel = "MEDIUM"
	TriageHigh     TriageLevel = "HIGH"
	TriageCritical TriageLevel = "CRITICAL"
)

// IsValid reports whether the triage level is one of the four known values.
func (t TriageLevel) IsValid() bool {
	switch t {
	case TriageLow, TriageMedium, TriageHigh, TriageCritical:
		return true
	}
	return false
}

// DifferentialDiagnosis is one ranked entry of a differential.
type DifferentialDiagnosis struct {
	Diagnosis  string  `json:"diagnosis"`
	Likelihood float64 `json:"likelihood"`
	Reasoning  string  `json:"reasoning"`
}

// DiagnosisPayload is the structurally valid LLM output the pipeline always
// receives, whether the model responded cleanly or the gateway degraded it.
type DiagnosisPayload struct {
	DifferentialDiagnoses []DifferentialDiagnosis `json:"differential_diagnoses"`
	TriageLevel           TriageLevel             `json:"triage_level"`
	Explanation           string                  `json:"explanation"`
	ConfidenceScore       float64                 `json:"confidence_score"`
	Disclaimer            string                  `json:"disclaimer"`
}

// TopDiagnosis returns the differential entry with the highest likelihood,
// or nil when the differential is empty.
func (p *DiagnosisPayload) TopDiagnosis() *DifferentialDiagnosis {
	var top *DifferentialDiagnosis
	for i := range p.DifferentialDiagnoses {
		if top == nil || p.DifferentialDiagnoses[i].Likelihood > top.Likelihood {
			top = &p.DifferentialDiagnoses[i]
		}
	}
	return top
}

// DiagnosisResult is an immutable persisted diagnosis for a visit. A result
// cloned from an earlier identical presentation carries SourceResultID as a
// weak back-reference to the original; the clone never owns or mutates it.
type DiagnosisResult struct {
	ID                    string                  `json:"id" db:"id"`
	VisitID               string                  `json:"visit_id" db:"visit_id"`
	SourceResultID        *string                 `json:"source_result_id,omitempty" db:"source_result_id"`
	Fingerprint           string                  `json:"fingerprint" db:"fingerprint"`
	DifferentialDiagnoses []DifferentialDiagnosis `json:"differential_diagnoses" db:"differential_diagnoses"`
	TriageLevel           TriageLevel             `json:"triage_level" db:"triage_level"`
	Explanation           string                  `json:"explanation" db:"explanation"`
	ConfidenceScore       float64                 `json:"confidence_score" db:"confidence_score"`
	RetrievedCaseIDs      []string                `json:"retrieved_case_ids" db:"retrieved_case_ids"`
	CreatedAt             time.Time               `json:"created_at" db:"created_at"`
}

// TopDiagnosis returns the most likely differential entry, or nil.
func (r *DiagnosisResult) TopDiagnosis() *DifferentialDiagnosis {
	payload := DiagnosisPayload{DifferentialDiagnoses: r.DifferentialDiagnoses}
	return payload.TopDiagnosis()
}
