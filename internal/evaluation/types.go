package evaluation

import "time"

// GoldenCase is one labeled retrieval example: a clinical presentation text
// and the knowledge-base cases a correct retrieval should surface for it.
type GoldenCase struct {
	ID              string   `json:"id"`
	Summary         string   `json:"summary"`
	ExpectedCaseIDs []string `json:"expected_case_ids"`
	Difficulty      string   `json:"difficulty"` // easy, medium, hard
}

// EvalResult holds the evaluation outcome for a single golden case.
type EvalResult struct {
	CaseID           string
	RecallAtK        float64
	MRRAtK           float64
	ResultCount      int
	RetrievedCaseIDs []string
	Latency          time.Duration
}

// DifficultySummary aggregates metrics for one difficulty band.
type DifficultySummary struct {
	Count     int     `json:"count"`
	AvgRecall float64 `json:"avg_recall"`
	AvgMRR    float64 `json:"avg_mrr"`
}

// EvalSummary aggregates the run.
type EvalSummary struct {
	TotalCases    int                           `json:"total_cases"`
	K             int                           `json:"k"`
	AvgRecallAtK  float64                       `json:"avg_recall_at_k"`
	AvgMRRAtK     float64                       `json:"avg_mrr_at_k"`
	AvgLatency    time.Duration                 `json:"avg_latency_ns"`
	CasesWithHits int                           `json:"cases_with_hits"`
	ByDifficulty  map[string]*DifficultySummary `json:"by_difficulty"`
}
