package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/zatekoja/Clinicaltriagedesign/backend/internal/domain/entities"
	"github.com/zatekoja/Clinicaltriagedesign/backend/internal/domain/providers"
	apperrors "github.com/zatekoja/Clinicaltriagedesign/backend/pkg/errors"
)

// In-memory fakes shared by the service tests.

type fakePatientRepo struct {
	patients map[string]*entities.Patient
}

func newFakePatientRepo() *fakePatientRepo {
	return &fakePatientRepo{patients: map[string]*entities.Patient{}}
}

func (f *fakePatientRepo) Create(ctx context.Context, p *entities.Patient) error {
	f.patients[p.ID] = p
	return nil
}

func (f *fakePatientRepo) GetByID(ctx context.Context, id string) (*entities.Patient, error) {
	if p, ok := f.patients[id]; ok && !p.IsDeleted {
		return p, nil
	}
	return nil, apperrors.NewNotFoundError(fmt.Sprintf("patient with id %s not found", id))
}

func (f *fakePatientRepo) List(ctx context.Context, includeDeleted bool) ([]*entities.Patient, error) {
	out := []*entities.Patient{}
	for _, p := range f.patients {
		if includeDeleted || !p.IsDeleted {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakePatientRepo) SoftDelete(ctx context.Context, id string) error {
	p, ok := f.patients[id]
	if !ok {
		return apperrors.NewNotFoundError(fmt.Sprintf("patient with id %s not found", id))
	}
	p.IsDeleted = true
	return nil
}

type fakeVisitRepo struct {
	visits map[string]*entities.Visit
	vitals map[string]*entities.Vitals
	labs   map[string]*entities.Labs
}

func newFakeVisitRepo() *fakeVisitRepo {
	return &fakeVisitRepo{
		visits: map[string]*entities.Visit{},
		vitals: map[string]*entities.Vitals{},
		labs:   map[string]*entities.Labs{},
	}
}

func (f *fakeVisitRepo) Create(ctx context.Context, v *entities.Visit) error {
	f.visits[v.ID] = v
	return nil
}

func (f *fakeVisitRepo) GetByID(ctx context.Context, id string) (*entities.Visit, error) {
	if v, ok := f.visits[id]; ok {
		return v, nil
	}
	return nil, apperrors.NewNotFoundError(fmt.Sprintf("visit with id %s not found", id))
}

func (f *fakeVisitRepo) GetByPatientAndNumber(ctx context.Context, patientID string, visitNumber int) (*entities.Visit, error) {
	for _, v := range f.visits {
		if v.PatientID == patientID && v.VisitNumber == visitNumber {
			return v, nil
		}
	}
	return nil, apperrors.NewNotFoundError(fmt.Sprintf("visit %d for patient %s not found", visitNumber, patientID))
}

func (f *fakeVisitRepo) ListByPatient(ctx context.Context, patientID string) ([]*entities.Visit, error) {
	out := []*entities.Visit{}
	for _, v := range f.visits {
		if v.PatientID == patientID {
			out = append(out, v)
		}
	}
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].VisitNumber < out[i].VisitNumber {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out, nil
}

func (f *fakeVisitRepo) CountByPatient(ctx context.Context, patientID string) (int, error) {
	visits, _ := f.ListByPatient(ctx, patientID)
	return len(visits), nil
}

func (f *fakeVisitRepo) SaveVitals(ctx context.Context, v *entities.Vitals) error {
	f.vitals[v.VisitID] = v
	return nil
}

func (f *fakeVisitRepo) GetVitals(ctx context.Context, visitID string) (*entities.Vitals, error) {
	return f.vitals[visitID], nil
}

func (f *fakeVisitRepo) SaveLabs(ctx context.Context, l *entities.Labs) error {
	f.labs[l.VisitID] = l
	return nil
}

func (f *fakeVisitRepo) GetLabs(ctx context.Context, visitID string) (*entities.Labs, error) {
	return f.labs[visitID], nil
}

type fakeCaseRepo struct {
	cases map[string]*entities.KnowledgeCase
	order []string
}

func newFakeCaseRepo() *fakeCaseRepo {
	return &fakeCaseRepo{cases: map[string]*entities.KnowledgeCase{}}
}

func (f *fakeCaseRepo) Upsert(ctx context.Context, kc *entities.KnowledgeCase) error {
	if _, ok := f.cases[kc.CaseID]; !ok {
		f.order = append(f.order, kc.CaseID)
	}
	f.cases[kc.CaseID] = kc
	return nil
}

func (f *fakeCaseRepo) GetByID(ctx context.Context, caseID string) (*entities.KnowledgeCase, error) {
	if kc, ok := f.cases[caseID]; ok {
		return kc, nil
	}
	return nil, apperrors.NewNotFoundError(fmt.Sprintf("knowledge case %s not found", caseID))
}

func (f *fakeCaseRepo) GetByIDs(ctx context.Context, caseIDs []string) ([]*entities.KnowledgeCase, error) {
	out := []*entities.KnowledgeCase{}
	for _, id := range caseIDs {
		if kc, ok := f.cases[id]; ok {
			out = append(out, kc)
		}
	}
	return out, nil
}

func (f *fakeCaseRepo) ListAll(ctx context.Context) ([]*entities.KnowledgeCase, error) {
	out := []*entities.KnowledgeCase{}
	for _, id := range f.order {
		out = append(out, f.cases[id])
	}
	return out, nil
}

func (f *fakeCaseRepo) Count(ctx context.Context) (int, error) {
	return len(f.cases), nil
}

type fakeResultRepo struct {
	results []*entities.DiagnosisResult
}

func newFakeResultRepo() *fakeResultRepo {
	return &fakeResultRepo{}
}

func (f *fakeResultRepo) Create(ctx context.Context, r *entities.DiagnosisResult) error {
	f.results = append(f.results, r)
	return nil
}

func (f *fakeResultRepo) GetByID(ctx context.Context, id string) (*entities.DiagnosisResult, error) {
	for _, r := range f.results {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, apperrors.NewNotFoundError(fmt.Sprintf("diagnosis result %s not found", id))
}

func (f *fakeResultRepo) LatestByFingerprint(ctx context.Context, fingerprint string) (*entities.DiagnosisResult, error) {
	for i := len(f.results) - 1; i >= 0; i-- {
		if f.results[i].Fingerprint == fingerprint {
			return f.results[i], nil
		}
	}
	return nil, nil
}

func (f *fakeResultRepo) ListByVisit(ctx context.Context, visitID string) ([]*entities.DiagnosisResult, error) {
	out := []*entities.DiagnosisResult{}
	for i := len(f.results) - 1; i >= 0; i-- {
		if f.results[i].VisitID == visitID {
			out = append(out, f.results[i])
		}
	}
	return out, nil
}

func (f *fakeResultRepo) ListByPatient(ctx context.Context, patientID string) ([]*entities.DiagnosisResult, error) {
	return nil, nil
}

func (f *fakeResultRepo) DeleteByVisit(ctx context.Context, visitID string) (int, error) {
	kept := f.results[:0]
	deleted := 0
	for _, r := range f.results {
		if r.VisitID == visitID {
			deleted++
			continue
		}
		kept = append(kept, r)
	}
	f.results = kept
	return deleted, nil
}

func (f *fakeResultRepo) CountSince(ctx context.Context, sinceDay string) (int, error) {
	return len(f.results), nil
}

func (f *fakeResultRepo) CountByTriage(ctx context.Context) (map[entities.TriageLevel]int, error) {
	counts := map[entities.TriageLevel]int{}
	for _, r := range f.results {
		counts[r.TriageLevel]++
	}
	return counts, nil
}

type fakeJobRepo struct {
	jobs map[string]*entities.DiagnosisJob
}

func newFakeJobRepo() *fakeJobRepo {
	return &fakeJobRepo{jobs: map[string]*entities.DiagnosisJob{}}
}

func (f *fakeJobRepo) Create(ctx context.Context, j *entities.DiagnosisJob) error {
	copied := *j
	f.jobs[j.ID] = &copied
	return nil
}

func (f *fakeJobRepo) GetByID(ctx context.Context, id string) (*entities.DiagnosisJob, error) {
	if j, ok := f.jobs[id]; ok {
		copied := *j
		return &copied, nil
	}
	return nil, apperrors.NewNotFoundError(fmt.Sprintf("diagnosis job %s not found", id))
}

func (f *fakeJobRepo) Update(ctx context.Context, j *entities.DiagnosisJob) error {
	if _, ok := f.jobs[j.ID]; !ok {
		return apperrors.NewNotFoundError(fmt.Sprintf("diagnosis job %s not found", j.ID))
	}
	copied := *j
	f.jobs[j.ID] = &copied
	return nil
}

func (f *fakeJobRepo) ListByVisit(ctx context.Context, visitID string) ([]*entities.DiagnosisJob, error) {
	out := []*entities.DiagnosisJob{}
	for _, j := range f.jobs {
		if j.VisitID == visitID {
			out = append(out, j)
		}
	}
	return out, nil
}

func (f *fakeJobRepo) ListActive(ctx context.Context, limit int) ([]*entities.DiagnosisJob, error) {
	out := []*entities.DiagnosisJob{}
	for _, j := range f.jobs {
		if !j.Status.IsTerminal() {
			out = append(out, j)
		}
	}
	return out, nil
}

type fakeSummaryRepo struct {
	summaries map[string]*entities.ClinicalSummary
	upserts   int
	failures  int
	failWith  error
}

func newFakeSummaryRepo() *fakeSummaryRepo {
	return &fakeSummaryRepo{summaries: map[string]*entities.ClinicalSummary{}}
}

func (f *fakeSummaryRepo) Upsert(ctx context.Context, s *entities.ClinicalSummary) error {
	f.upserts++
	if f.failures > 0 {
		f.failures--
		return f.failWith
	}
	f.summaries[s.VisitID] = s
	return nil
}

func (f *fakeSummaryRepo) GetByVisit(ctx context.Context, visitID string) (*entities.ClinicalSummary, error) {
	return f.summaries[visitID], nil
}

type fakeUsageRepo struct {
	mu     sync.Mutex
	counts map[string]int
}

func newFakeUsageRepo() *fakeUsageRepo {
	return &fakeUsageRepo{counts: map[string]int{}}
}

func usageKey(model, keyFingerprint, day string) string {
	return model + "|" + keyFingerprint + "|" + day
}

func (f *fakeUsageRepo) TryIncrement(ctx context.Context, model, keyFingerprint, day string, ceiling int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := usageKey(model, keyFingerprint, day)
	if ceiling > 0 && f.counts[key] >= ceiling {
		return false, nil
	}
	f.counts[key]++
	return true, nil
}

func (f *fakeUsageRepo) Count(ctx context.Context, model, keyFingerprint, day string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts[usageKey(model, keyFingerprint, day)], nil
}

type fakeEmbedder struct {
	vector []float32
	err    error
	calls  int
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.vector, nil
}

func (f *fakeEmbedder) Dimension() int {
	return len(f.vector)
}

type fakeIndex struct {
	searchIDs []string
	built     int
	loaded    bool
	size      int
}

func (f *fakeIndex) Build(ctx context.Context, cases []*entities.KnowledgeCase) error {
	f.built++
	f.size = len(cases)
	return nil
}

func (f *fakeIndex) Load(ctx context.Context) (bool, error) {
	return f.loaded, nil
}

func (f *fakeIndex) Search(ctx context.Context, query []float32, k int) ([]string, error) {
	if k < len(f.searchIDs) {
		return f.searchIDs[:k], nil
	}
	return f.searchIDs, nil
}

func (f *fakeIndex) Size() int {
	return f.size
}

// fakeCompleter replays queued (response, err) pairs in call order, then
// repeats the last pair. Models records the model requested on each call.
type fakeCompleter struct {
	fingerprint string
	responses   []string
	errs        []error
	calls       int
	models      []string
}

func (f *fakeCompleter) Complete(ctx context.Context, req providers.ChatRequest) (string, error) {
	i := f.calls
	f.calls++
	f.models = append(f.models, req.Model)
	if i >= len(f.responses) {
		i = len(f.responses) - 1
	}
	if i < 0 {
		return "", nil
	}
	if f.errs != nil && f.errs[i] != nil {
		return "", f.errs[i]
	}
	return f.responses[i], nil
}

func (f *fakeCompleter) KeyFingerprint() string {
	return f.fingerprint
}

type fakeEventBus struct {
	mu        sync.Mutex
	published []*entities.JobEvent
	channels  []string
}

func (f *fakeEventBus) Publish(ctx context.Context, channel string, event *entities.JobEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, event)
	f.channels = append(f.channels, channel)
	return nil
}

func (f *fakeEventBus) Subscribe(ctx context.Context, channel string) (<-chan *entities.JobEvent, error) {
	ch := make(chan *entities.JobEvent)
	close(ch)
	return ch, nil
}

func (f *fakeEventBus) Unsubscribe(ctx context.Context, channel string) error { return nil }

func (f *fakeEventBus) Close() error { return nil }

func (f *fakeEventBus) eventTypes() []entities.JobEventType {
	f.mu.Lock()
	defer f.mu.Unlock()
	types := make([]entities.JobEventType, len(f.published))
	for i, e := range f.published {
		types[i] = e.EventType
	}
	return types
}
