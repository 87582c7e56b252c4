package handlers

import (
	"errors"
	"net/http"

	"github.com/quernlabs/quern/pkg/models"
	"github.com/quernlabs/quern/pkg/search"
)

// QueryHandler handles the retrieval endpoint.
type QueryHandler struct {
	gateway *search.Gateway
}

// NewQueryHandler creates a new QueryHandler.
func NewQueryHandler(gateway *search.Gateway) *QueryHandler {
	return &QueryHandler{gateway: gateway}
}

// Query handles POST /api/query.
// Runs a semantic or hybrid search over active document chunks.
func (h *QueryHandler) Query(w http.ResponseWriter, r *http.Request) {
	var req search.Request
	if !decodeJSONBody(w, r, &req) {
		return
	}

	resp, err := h.gateway.Query(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, search.ErrInvalidRequest):
			BadRequest(w, err.Error())
		case errors.Is(err, models.ErrEmbeddingUnavailable), errors.Is(err, search.ErrUnavailable):
			ServiceUnavailable(w, "Search is temporarily unavailable", CodeSearchUnavailable)
		default:
			InternalServerError(w, "Query failed")
		}
		return
	}

	WriteJSONOK(w, resp)
}
