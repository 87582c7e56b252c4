package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/quernlabs/quern/internal/logger"
	"github.com/quernlabs/quern/pkg/events"
)

// heartbeatInterval paces SSE keepalive comments so proxies do not
// drop idle streams.
const heartbeatInterval = 30 * time.Second

// EventsHandler streams document lifecycle events over SSE.
type EventsHandler struct {
	bus *events.Bus
}

// NewEventsHandler creates a new EventsHandler.
func NewEventsHandler(bus *events.Bus) *EventsHandler {
	return &EventsHandler{bus: bus}
}

// Stream handles GET /api/events.
//
// Each connection gets its own subscription with a bounded buffer;
// slow consumers lose their oldest events rather than stalling the
// pipeline. The stream opens with an "event: ready" frame, then one
// frame per event named by its type. The subscription is released when
// the client disconnects or the server shuts down.
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	if h.bus == nil {
		ServiceUnavailable(w, "Event stream is not available", "")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		InternalServerError(w, "Streaming unsupported by this connection")
		return
	}

	sub := h.bus.Subscribe()
	defer sub.Unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	fmt.Fprint(w, "event: ready\ndata: {}\n\n")
	flusher.Flush()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case event, open := <-sub.Events():
			if !open {
				// Bus closed during shutdown.
				return
			}
			payload, err := json.Marshal(event)
			if err != nil {
				logger.WarnCtx(ctx, "failed to encode event", "event", event.Name(), "error", err)
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Name(), payload)
			flusher.Flush()
		case <-heartbeat.C:
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		}
	}
}
