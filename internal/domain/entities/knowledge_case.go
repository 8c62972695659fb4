package entities

import "time"

// KnowledgeCase is an immutable reference case in the knowledge base. Cases
// are created by the bulk loader and only ever read by the pipeline.
type KnowledgeCase struct {
	CaseID    string    `json:"case_id" db:"case_id"`
	Summary   string    `json:"summary" db:"summary"`
	Diagnosis string    `json:"diagnosis" db:"diagnosis"`
	Outcome   string    `json:"outcome" db:"outcome"`
	Embedding []float32 `json:"-" db:"embedding"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// HasEmbedding reports whether the case carries a stored embedding and can
// therefore participate in the similarity index.
func (k *KnowledgeCase) HasEmbedding() bool {
	return len(k.Embedding) > 0
}
