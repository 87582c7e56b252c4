package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/quernlabs/quern/pkg/store"
)

// AnalyticsHandler serves corpus aggregations for the dashboard.
type AnalyticsHandler struct {
	store store.Store
}

// NewAnalyticsHandler creates a new AnalyticsHandler.
func NewAnalyticsHandler(st store.Store) *AnalyticsHandler {
	return &AnalyticsHandler{store: st}
}

// Overview handles GET /api/analytics/overview.
func (h *AnalyticsHandler) Overview(w http.ResponseWriter, r *http.Request) {
	overview, err := h.store.AnalyticsOverview(r.Context())
	if err != nil {
		InternalServerError(w, "Failed to compute overview")
		return
	}
	WriteJSONOK(w, overview)
}

// Processing handles GET /api/analytics/processing.
func (h *AnalyticsHandler) Processing(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.ProcessingStats(r.Context())
	if err != nil {
		InternalServerError(w, "Failed to compute processing stats")
		return
	}
	WriteJSONOK(w, stats)
}

// Quality handles GET /api/analytics/quality.
func (h *AnalyticsHandler) Quality(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.QualityStats(r.Context())
	if err != nil {
		InternalServerError(w, "Failed to compute quality stats")
		return
	}
	WriteJSONOK(w, stats)
}

// Documents handles GET /api/analytics/documents.
func (h *AnalyticsHandler) Documents(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.DocumentStats(r.Context())
	if err != nil {
		InternalServerError(w, "Failed to compute document stats")
		return
	}
	WriteJSONOK(w, stats)
}

// DocumentChunks handles GET /api/analytics/documents/{id}/chunks.
// Returns the chunk inventory of one document for quality inspection.
func (h *AnalyticsHandler) DocumentChunks(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if _, ok := getDocumentOrError(w, r, h.store, id); !ok {
		return
	}

	chunks, err := h.store.ListChunks(r.Context(), id)
	if err != nil {
		InternalServerError(w, "Failed to list chunks")
		return
	}

	responses := make([]ChunkResponse, len(chunks))
	for i, chunk := range chunks {
		responses[i] = chunkToResponse(chunk)
	}
	WriteJSONOK(w, map[string]any{"documentId": id, "chunks": responses})
}
