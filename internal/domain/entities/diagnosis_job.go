package entities

import "time"

// JobStatus is the lifecycle state of a diagnosis job.
type JobStatus string

const (
	JobStatusPending    JobStatus = "PENDING"
	JobStatusProcessing JobStatus = "PROCESSING"
	JobStatusCompleted  JobStatus = "COMPLETED"
	JobStatusFailed     JobStatus = "FAILED"
)

// IsTerminal reports whether the status admits no further transitions.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// CanTransitionTo enforces the job state machine:
// PENDING -> PROCESSING -> COMPLETED | FAILED, with PENDING also allowed to
// jump straight to a terminal state (the reuse fast path creates jobs already
// COMPLETED, and enqueue-time failures go straight to FAILED).
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	if s.IsTerminal() {
		return false
	}
	switch s {
	case JobStatusPending:
		return next == JobStatusProcessing || next.IsTerminal()
	case JobStatusProcessing:
		return next.IsTerminal()
	}
	return false
}

// DiagnosisJob tracks one asynchronous diagnosis attempt for a visit.
type DiagnosisJob struct {
	ID            string    `json:"id" db:"id"`
	VisitID       string    `json:"visit_id" db:"visit_id"`
	RequestedBy   string    `json:"requested_by" db:"requested_by"`
	Fingerprint   string    `json:"fingerprint" db:"fingerprint"`
	Status        JobStatus `json:"status" db:"status"`
	ReuseSourceID *string   `json:"reuse_source_id,omitempty" db:"reuse_source_id"`
	ResultID      *string   `json:"result_id,omitempty" db:"result_id"`
	ErrorMessage  string    `json:"error_message,omitempty" db:"error_message"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}
