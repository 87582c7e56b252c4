package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/quernlabs/quern/pkg/ingest"
	"github.com/quernlabs/quern/pkg/models"
)

// CallbackHandler receives completion reports from the worker pool.
// It is mounted under /internal and never exposed through the API key
// gate; deployment keeps the internal listener firewalled.
type CallbackHandler struct {
	coordinator *ingest.Coordinator
	maxBytes    int64
}

// NewCallbackHandler creates a new CallbackHandler. maxBytes caps the
// request body; callbacks carry full chunk sets with embeddings.
func NewCallbackHandler(coordinator *ingest.Coordinator, maxBytes int64) *CallbackHandler {
	return &CallbackHandler{coordinator: coordinator, maxBytes: maxBytes}
}

// Apply handles POST /internal/callback.
// Settles one document from a worker completion report. Replays are
// idempotent, so workers may retry on transport errors.
func (h *CallbackHandler) Apply(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)

	var req ingest.CallbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			PayloadTooLarge(w, "Callback body exceeds the size limit")
			return
		}
		BadRequest(w, "Request body must be valid JSON")
		return
	}
	if req.DocumentID == "" {
		BadRequest(w, "documentId is required")
		return
	}

	if err := h.coordinator.ApplyCallback(r.Context(), &req); err != nil {
		switch {
		case errors.Is(err, models.ErrDocumentNotFound):
			NotFound(w, "Document not found")
		case errors.Is(err, models.ErrEmptyChunkSet),
			errors.Is(err, models.ErrDuplicateChunkIndex),
			errors.Is(err, models.ErrDimensionMismatch):
			UnprocessableEntity(w, err.Error())
		default:
			InternalServerError(w, "Failed to apply callback")
		}
		return
	}

	WriteNoContent(w)
}
