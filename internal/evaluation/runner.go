package evaluation

import (
	"context"
	"time"

	"github.com/zatekoja/Clinicaltriagedesign/backend/internal/domain/entities"
)

// CaseRetriever is the slice of the retrieval service the runner exercises.
type CaseRetriever interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Retrieve(ctx context.Context, embedding []float32) ([]*entities.KnowledgeCase, error)
}

// Runner scores retrieval quality across a set of golden cases.
type Runner struct {
	retriever CaseRetriever
	k         int
}

func NewRunner(retriever CaseRetriever, k int) *Runner {
	if k <= 0 {
		k = 5
	}
	return &Runner{retriever: retriever, k: k}
}

func (r *Runner) Run(ctx context.Context, cases []GoldenCase) (*EvalSummary, error) {
	summary := &EvalSummary{
		TotalCases:   len(cases),
		K:            r.k,
		ByDifficulty: make(map[string]*DifficultySummary),
	}

	for _, gc := range cases {
		start := time.Now()

		embedding, err := r.retriever.Embed(ctx, gc.Summary)
		if err != nil {
			continue
		}
		retrieved, err := r.retriever.Retrieve(ctx, embedding)
		duration := time.Since(start)
		if err != nil {
			continue
		}

		retrievedIDs := make([]string, len(retrieved))
		for i, kc := range retrieved {
			retrievedIDs[i] = kc.CaseID
		}

		result := EvalResult{
			CaseID:           gc.ID,
			RecallAtK:        RecallAtK(gc.ExpectedCaseIDs, retrievedIDs, r.k),
			MRRAtK:           MRRAtK(gc.ExpectedCaseIDs, retrievedIDs, r.k),
			ResultCount:      len(retrieved),
			RetrievedCaseIDs: retrievedIDs,
			Latency:          duration,
		}

		r.updateSummary(summary, gc.Difficulty, result)
	}

	r.finalizeSummary(summary)
	return summary, nil
}

func (r *Runner) updateSummary(s *EvalSummary, difficulty string, res EvalResult) {
	s.AvgRecallAtK += res.RecallAtK
	s.AvgMRRAtK += res.MRRAtK
	s.AvgLatency += res.Latency
	if res.RecallAtK > 0 {
		s.CasesWithHits++
	}

	if _, ok := s.ByDifficulty[difficulty]; !ok {
		s.ByDifficulty[difficulty] = &DifficultySummary{}
	}
	ds := s.ByDifficulty[difficulty]
	ds.Count++
	ds.AvgRecall += res.RecallAtK
	ds.AvgMRR += res.MRRAtK
}

func (r *Runner) finalizeSummary(s *EvalSummary) {
	if s.TotalCases > 0 {
		n := float64(s.TotalCases)
		s.AvgRecallAtK /= n
		s.AvgMRRAtK /= n
		s.AvgLatency /= time.Duration(s.TotalCases)
	}

	for _, ds := range s.ByDifficulty {
		if ds.Count > 0 {
			n := float64(ds.Count)
			ds.AvgRecall /= n
			ds.AvgMRR /= n
		}
	}
}
