package entities

import (
	"crypto/rand"
	"encoding/hex"
	"time"
)

// JobEventType represents the type of diagnosis job event
type JobEventType string

const (
	JobEventTypeQueued    JobEventType = "job_queued"
	JobEventTypeStarted   JobEventType = "job_started"
	JobEventTypeCompleted JobEventType = "job_completed"
	JobEventTypeFailed    JobEventType = "job_failed"
)

// JobEvent represents a real-time status update for a diagnosis job
type JobEvent struct {
	ID           string       `json:"id"`
	JobID        string       `json:"job_id"`
	VisitID      string       `json:"visit_id"`
	EventType    JobEventType `json:"event_type"`
	Status       JobStatus    `json:"status"`
	ResultID     *string      `json:"result_id,omitempty"`
	ErrorMessage string       `json:"error_message,omitempty"`
	Timestamp    time.Time    `json:"timestamp"`
}

// NewJobEvent creates a new job event for a status transition
func NewJobEvent(job *DiagnosisJob, eventType JobEventType) *JobEvent {
	return &JobEvent{
		ID:           generateEventID(),
		JobID:        job.ID,
		VisitID:      job.VisitID,
		EventType:    eventType,
		Status:       job.Status,
		ResultID:     job.ResultID,
		ErrorMessage: job.ErrorMessage,
		Timestamp:    time.Now(),
	}
}

// generateEventID generates a unique event ID
func generateEventID() string {
	return time.Now().Format("20060102150405") + "-" + randomString(8)
}

// randomString generates a random string of specified length
func randomString(length int) string {
	bytes := make([]byte, length/2+1)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to timestamp-based if crypto/rand fails
		return time.Now().Format("150405.000")
	}
	return hex.EncodeToString(bytes)[:length]
}
