package handlers

import (
	"net/http"

	"github.com/quernlabs/quern/pkg/events"
	"github.com/quernlabs/quern/pkg/ingest"
	"github.com/quernlabs/quern/pkg/models"
)

// SyncHandler is the entry point for the external drive scheduler. The
// scheduler itself lives outside this repo; it pushes mirrored files
// through /internal/sync/upload and reports run boundaries through
// /internal/sync/status.
type SyncHandler struct {
	coordinator *ingest.Coordinator
	bus         *events.Bus
	maxBytes    int64
}

// NewSyncHandler creates a new SyncHandler. maxBytes bounds the sync
// upload body; zero falls back to the external-source default.
func NewSyncHandler(coordinator *ingest.Coordinator, bus *events.Bus, maxBytes int64) *SyncHandler {
	if maxBytes <= 0 {
		maxBytes = 100 << 20
	}
	return &SyncHandler{coordinator: coordinator, bus: bus, maxBytes: maxBytes}
}

// Upload handles POST /internal/sync/upload.
// Ingests one mirrored file under the EXTERNAL source tag. A duplicate
// hash returns 409; the scheduler records it as a skip.
func (h *SyncHandler) Upload(w http.ResponseWriter, r *http.Request) {
	filename, content, declaredMIME, ok := readUploadedFile(w, r, h.maxBytes)
	if !ok {
		return
	}

	doc, err := h.coordinator.Upload(r.Context(), ingest.UploadInput{
		Filename:     filename,
		Content:      content,
		DeclaredMIME: declaredMIME,
		Source:       models.SourceExternal,
	})
	if err != nil {
		writeUploadProblem(w, err)
		return
	}

	WriteJSONCreated(w, doc)
}

// SyncStatusRequest is the request body for POST /internal/sync/status.
type SyncStatusRequest struct {
	Event   string `json:"event"`
	Source  string `json:"source"`
	Created int    `json:"created"`
	Skipped int    `json:"skipped"`
	Error   string `json:"error"`
}

// Status handles POST /internal/sync/status.
// Translates scheduler run boundaries into sync:* events so SSE
// clients can mirror external-sync progress.
func (h *SyncHandler) Status(w http.ResponseWriter, r *http.Request) {
	var req SyncStatusRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.Source == "" {
		BadRequest(w, "source is required")
		return
	}

	switch req.Event {
	case "start":
		h.bus.Publish(events.SyncStart{Source: req.Source})
	case "complete":
		h.bus.Publish(events.SyncComplete{Source: req.Source, Created: req.Created, Skipped: req.Skipped})
	case "error":
		if req.Error == "" {
			BadRequest(w, "error is required for error events")
			return
		}
		h.bus.Publish(events.SyncError{Source: req.Source, Error: req.Error})
	default:
		BadRequest(w, `event must be "start", "complete", or "error"`)
		return
	}

	WriteNoContent(w)
}
