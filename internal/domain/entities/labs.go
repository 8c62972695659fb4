package entities

import "time"

// Labs holds the free-text laboratory findings recorded for a visit.
type Labs struct {
	VisitID    string    `json:"visit_id" db:"visit_id"`
	Results    string    `json:"results" db:"results"`
	RecordedAt time.Time `json:"recorded_at" db:"recorded_at"`
}
