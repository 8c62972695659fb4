package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/zatekoja/Clinicaltriagedesign/backend/internal/domain/entities"
	"github.com/zatekoja/Clinicaltriagedesign/backend/internal/domain/providers"
)

// SSEHandler streams diagnosis job status events over Server-Sent Events.
type SSEHandler struct {
	eventBus providers.EventBus
}

// NewSSEHandler creates a new SSE handler
func NewSSEHandler(eventBus providers.EventBus) *SSEHandler {
	return &SSEHandler{
		eventBus: eventBus,
	}
}

// StreamJobUpdates handles GET /api/stream/jobs/{id}, streaming status
// events for one diagnosis job.
func (h *SSEHandler) StreamJobUpdates(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	if jobID == "" {
		respondWithError(w, http.StatusBadRequest, "job ID is required")
		return
	}
	h.stream(w, r, providers.GetJobChannel(jobID), map[string]interface{}{
		"job_id":    jobID,
		"timestamp": time.Now(),
	})
}

// StreamAllJobUpdates handles GET /api/stream/jobs, streaming status events
// for every diagnosis job. Used by the dashboard.
func (h *SSEHandler) StreamAllJobUpdates(w http.ResponseWriter, r *http.Request) {
	h.stream(w, r, providers.EventChannelJobUpdates, map[string]interface{}{
		"timestamp": time.Now(),
	})
}

func (h *SSEHandler) stream(w http.ResponseWriter, r *http.Request, channel string, hello map[string]interface{}) {
	if h.eventBus == nil {
		respondWithError(w, http.StatusServiceUnavailable, "event stream unavailable")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondWithError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// Subscribe cleans up this subscriber when the request context ends.
	// Unsubscribe must not be called here: it tears down the whole channel,
	// including other clients on the shared firehose stream.
	eventChan, err := h.eventBus.Subscribe(r.Context(), channel)
	if err != nil {
		log.Error().Err(err).Str("channel", channel).Msg("failed to subscribe to job events")
		respondWithError(w, http.StatusServiceUnavailable, "event stream unavailable")
		return
	}

	sendEvent(w, "connected", hello)
	flusher.Flush()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			sendEvent(w, "heartbeat", map[string]interface{}{
				"timestamp": time.Now(),
			})
			flusher.Flush()
		case event, ok := <-eventChan:
			if !ok {
				return
			}
			if event == nil {
				continue
			}
			sendEvent(w, string(event.EventType), event)
			flusher.Flush()

			// Terminal states end the per-job stream; the firehose stays open.
			if channel != providers.EventChannelJobUpdates && isTerminalEvent(event) {
				return
			}
		}
	}
}

func isTerminalEvent(event *entities.JobEvent) bool {
	return event.EventType == entities.JobEventTypeCompleted || event.EventType == entities.JobEventTypeFailed
}

// sendEvent writes one SSE frame.
func sendEvent(w http.ResponseWriter, eventType string, data interface{}) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal SSE event")
		return
	}

	fmt.Fprintf(w, "event: %s\n", eventType)
	fmt.Fprintf(w, "data: %s\n\n", jsonData)
}
