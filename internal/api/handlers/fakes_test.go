package handlers_test

import (
	"context"
	"fmt"

	"github.com/zatekoja/Clinicaltriagedesign/backend/internal/domain/entities"
	apperrors "github.com/zatekoja/Clinicaltriagedesign/backend/pkg/errors"
)

// Minimal in-memory repositories for handler tests.

type memPatientRepo struct {
	patients map[string]*entities.Patient
}

func newMemPatientRepo() *memPatientRepo {
	return &memPatientRepo{patients: map[string]*entities.Patient{}}
}

func (m *memPatientRepo) Create(ctx context.Context, p *entities.Patient) error {
	m.patients[p.ID] = p
	return nil
}

func (m *memPatientRepo) GetByID(ctx context.Context, id string) (*entities.Patient, error) {
	if p, ok := m.patients[id]; ok && !p.IsDeleted {
		return p, nil
	}
	return nil, apperrors.NewNotFoundError(fmt.Sprintf("patient with id %s not found", id))
}

func (m *memPatientRepo) List(ctx context.Context, includeDeleted bool) ([]*entities.Patient, error) {
	out := []*entities.Patient{}
	for _, p := range m.patients {
		if includeDeleted || !p.IsDeleted {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memPatientRepo) SoftDelete(ctx context.Context, id string) error {
	p, ok := m.patients[id]
	if !ok {
		return apperrors.NewNotFoundError(fmt.Sprintf("patient with id %s not found", id))
	}
	p.IsDeleted = true
	return nil
}

type memVisitRepo struct {
	visits map[string]*entities.Visit
	vitals map[string]*entities.Vitals
	labs   map[string]*entities.Labs
}

func newMemVisitRepo() *memVisitRepo {
	return &memVisitRepo{
		visits: map[string]*entities.Visit{},
		vitals: map[string]*entities.Vitals{},
		labs:   map[string]*entities.Labs{},
	}
}

func (m *memVisitRepo) Create(ctx context.Context, v *entities.Visit) error {
	m.visits[v.ID] = v
	return nil
}

func (m *memVisitRepo) GetByID(ctx context.Context, id string) (*entities.Visit, error) {
	if v, ok := m.visits[id]; ok {
		return v, nil
	}
	return nil, apperrors.NewNotFoundError(fmt.Sprintf("visit with id %s not found", id))
}

func (m *memVisitRepo) GetByPatientAndNumber(ctx context.Context, patientID string, visitNumber int) (*entities.Visit, error) {
	for _, v := range m.visits {
		if v.PatientID == patientID && v.VisitNumber == visitNumber {
			return v, nil
		}
	}
	return nil, apperrors.NewNotFoundError(fmt.Sprintf("visit %d for patient %s not found", visitNumber, patientID))
}

func (m *memVisitRepo) ListByPatient(ctx context.Context, patientID string) ([]*entities.Visit, error) {
	out := []*entities.Visit{}
	for _, v := range m.visits {
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

func (m *memVisitRepo) CountByPatient(ctx context.Context, patientID string) (int, error) {
	visits, _ := m.ListByPatient(ctx, patientID)
	return len(visits), nil
}

func (m *memVisitRepo) SaveVitals(ctx context.Context, v *entities.Vitals) error {
	m.vitals[v.VisitID] = v
	return nil
}

func (m *memVisitRepo) GetVitals(ctx context.Context, visitID string) (*entities.Vitals, error) {
	return m.vitals[visitID], nil
}

func (m *memVisitRepo) SaveLabs(ctx context.Context, l *entities.Labs) error {
	m.labs[l.VisitID] = l
	return nil
}

func (m *memVisitRepo) GetLabs(ctx context.Context, visitID string) (*entities.Labs, error) {
	return m.labs[visitID], nil
}

type memResultRepo struct {
	results map[string]*entities.DiagnosisResult
}

func newMemResultRepo() *memResultRepo {
	return &memResultRepo{results: map[string]*entities.DiagnosisResult{}}
}

func (m *memResultRepo) Create(ctx context.Context, r *entities.DiagnosisResult) error {
	m.results[r.ID] = r
	return nil
}

func (m *memResultRepo) GetByID(ctx context.Context, id string) (*entities.DiagnosisResult, error) {
	if r, ok := m.results[id]; ok {
		return r, nil
	}
	return nil, apperrors.NewNotFoundError(fmt.Sprintf("diagnosis result %s not found", id))
}

func (m *memResultRepo) LatestByFingerprint(ctx context.Context, fingerprint string) (*entities.DiagnosisResult, error) {
	for _, r := range m.results {
		if r.Fingerprint == fingerprint {
			return r, nil
		}
	}
	return nil, nil
}

func (m *memResultRepo) ListByVisit(ctx context.Context, visitID string) ([]*entities.DiagnosisResult, error) {
	out := []*entities.DiagnosisResult{}
	for _, r := range m.results {
		if r.VisitID == visitID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memResultRepo) ListByPatient(ctx context.Context, patientID string) ([]*entities.DiagnosisResult, error) {
	return nil, nil
}

func (m *memResultRepo) DeleteByVisit(ctx context.Context, visitID string) (int, error) {
	deleted := 0
	for id, r := range m.results {
		if r.VisitID == visitID {
			delete(m.results, id)
			deleted++
		}
	}
	return deleted, nil
}

func (m *memResultRepo) CountSince(ctx context.Context, sinceDay string) (int, error) {
	return len(m.results), nil
}

func (m *memResultRepo) CountByTriage(ctx context.Context) (map[entities.TriageLevel]int, error) {
	counts := map[entities.TriageLevel]int{}
	for _, r := range m.results {
		counts[r.TriageLevel]++
	}
	return counts, nil
}

type memJobRepo struct {
	jobs map[string]*entities.DiagnosisJob
}

func newMemJobRepo() *memJobRepo {
	return &memJobRepo{jobs: map[string]*entities.DiagnosisJob{}}
}

func (m *memJobRepo) Create(ctx context.Context, j *entities.DiagnosisJob) error {
	m.jobs[j.ID] = j
	return nil
}

func (m *memJobRepo) GetByID(ctx context.Context, id string) (*entities.DiagnosisJob, error) {
	if j, ok := m.jobs[id]; ok {
		return j, nil
	}
	return nil, apperrors.NewNotFoundError(fmt.Sprintf("diagnosis job %s not found", id))
}

func (m *memJobRepo) Update(ctx context.Context, j *entities.DiagnosisJob) error {
	if _, ok := m.jobs[j.ID]; !ok {
		return apperrors.NewNotFoundError(fmt.Sprintf("diagnosis job %s not found", j.ID))
	}
	m.jobs[j.ID] = j
	return nil
}

func (m *memJobRepo) ListByVisit(ctx context.Context, visitID string) ([]*entities.DiagnosisJob, error) {
	out := []*entities.DiagnosisJob{}
	for _, j := range m.jobs {
		if j.VisitID == visitID {
			out = append(out, j)
		}
	}
	return out, nil
}

func (m *memJobRepo) ListActive(ctx context.Context, limit int) ([]*entities.DiagnosisJob, error) {
	out := []*entities.DiagnosisJob{}
	for _, j := range m.jobs {
		if !j.Status.IsTerminal() {
			out = append(out, j)
		}
	}
	return out, nil
}
