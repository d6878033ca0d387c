package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/caskfs/caskfs/internal/logger"
	"github.com/caskfs/caskfs/pkg/notify"
)

// EventsHandler streams upload notifications to clients over Server-Sent
// Events. Delivery is best-effort: slow consumers miss events rather than
// slowing down uploads.
type EventsHandler struct {
	broadcaster *notify.Broadcaster
}

// NewEventsHandler creates a new EventsHandler.
func NewEventsHandler(broadcaster *notify.Broadcaster) *EventsHandler {
	return &EventsHandler{broadcaster: broadcaster}
}

// Stream handles GET /api/v1/events.
// Holds the connection open and emits one SSE "upload" event per committed
// version until the client disconnects.
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		InternalServerError(w, "Streaming is not supported")
		return
	}

	events, cancel := h.broadcaster.Subscribe()
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case event, open := <-events:
			if !open {
				return
			}
			payload, err := json.Marshal(event)
			if err != nil {
				logger.Warn("failed to encode upload event", logger.KeyError, err)
				continue
			}
			if _, err := fmt.Fprintf(w, "event: upload\ndata: %s\n\n", payload); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
