package entities

import "time"

// ClinicalSummary is the structured text summary generated for a visit,
// together with the embedding computed from it. There is at most one summary
// per visit; regeneration replaces it.
type ClinicalSummary struct {
	VisitID   string    `json:"visit_id" db:"visit_id"`
	Text      string    `json:"text" db:"text"`
	Embedding []float32 `json:"-" db:"embedding"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
