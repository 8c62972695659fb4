package entities

import "time"

// VisitType distinguishes a patient's first presentation from follow-ups.
type VisitType string

const (
	VisitTypeInitial  VisitType = "INITIAL"
	VisitTypeFollowUp VisitType = "FOLLOW_UP"
)

// Visit captures one clinical presentation of a patient. Visits are numbered
// sequentially per patient starting at 1; visit 1 is always INITIAL.
type Visit struct {
	ID             string    `json:"id" db:"id"`
	PatientID      string    `json:"patient_id" db:"patient_id"`
	VisitNumber    int       `json:"visit_number" db:"visit_number"`
	VisitType      VisitType `json:"visit_type" db:"visit_type"`
	ChiefComplaint string    `json:"chief_complaint" db:"chief_complaint"`
	Symptoms       string    `json:"symptoms" db:"symptoms"`
	MedicalHistory string    `json:"medical_history" db:"medical_history"`
	Medications    string    `json:"medications" db:"medications"`
	ClinicalNotes  string    `json:"clinical_notes" db:"clinical_notes"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// IsFollowUp reports whether this visit is a follow-up presentation.
func (v *Visit) IsFollowUp() bool {
	return v.VisitType == VisitTypeFollowUp
}
