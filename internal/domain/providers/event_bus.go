package providers

import (
	"context"

	"github.com/zatekoja/Clinicaltriagedesign/backend/internal/domain/entities"
)

// EventBus defines the interface for publishing and subscribing to job
// status events.
type EventBus interface {
	// Publish publishes an event to all subscribers
	Publish(ctx context.Context, channel string, event *entities.JobEvent) error

	// Subscribe subscribes to events on a channel
	Subscribe(ctx context.Context, channel string) (<-chan *entities.JobEvent, error)

	// Unsubscribe unsubscribes from a channel
	Unsubscribe(ctx context.Context, channel string) error

	// Close closes the event bus and all subscriptions
	Close() error
}

// Event channel constants.
const (
	// EventChannelJobUpdates is the channel carrying all job updates
	EventChannelJobUpdates = "diagnosis:jobs"

	// EventChannelJobPrefix is the prefix for job-specific channels
	EventChannelJobPrefix = "diagnosis:job:"
)

// GetJobChannel returns the channel name for a specific job
func GetJobChannel(jobID string) string {
	return EventChannelJobPrefix + jobID
}
