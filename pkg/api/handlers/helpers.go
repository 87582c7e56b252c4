package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/quernlabs/quern/pkg/models"
	"github.com/quernlabs/quern/pkg/store"
)

// decodeJSONBody decodes a JSON request body into the provided pointer.
// Returns true if successful, false if decoding fails (error response is written automatically).
func decodeJSONBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		BadRequest(w, "Invalid request body")
		return false
	}
	return true
}

// getDocumentOrError fetches a document by ID and handles common errors.
// Returns the document and true if successful.
// Returns nil and false if the document is missing (writes 404) or on error (writes 500).
func getDocumentOrError(w http.ResponseWriter, r *http.Request, st store.Store, id string) (*models.Document, bool) {
	doc, err := st.GetDocument(r.Context(), id)
	if err != nil {
		if errors.Is(err, models.ErrDocumentNotFound) {
			NotFound(w, "Document not found")
			return nil, false
		}
		InternalServerError(w, "Failed to get document")
		return nil, false
	}
	return doc, true
}

// ChunkResponse is the JSON shape of one chunk with its metadata blobs
// parsed. Embeddings never leave the store through this surface.
type ChunkResponse struct {
	ID           string                `json:"id"`
	DocumentID   string                `json:"documentId"`
	ChunkIndex   int                   `json:"chunkIndex"`
	Content      string                `json:"content"`
	CharStart    *int                  `json:"charStart,omitempty"`
	CharEnd      *int                  `json:"charEnd,omitempty"`
	Heading      *string               `json:"heading,omitempty"`
	Location     *models.ChunkLocation `json:"location,omitempty"`
	Breadcrumbs  []string              `json:"breadcrumbs,omitempty"`
	TokenCount   int                   `json:"tokenCount"`
	QualityScore float64               `json:"qualityScore"`
	QualityFlags []string              `json:"qualityFlags,omitempty"`
	ChunkType    string                `json:"chunkType"`
	Completeness string                `json:"completeness,omitempty"`
	HasTitle     bool                  `json:"hasTitle"`
}

// chunkToResponse converts a chunk row. Malformed metadata blobs are
// dropped rather than failing the whole listing.
func chunkToResponse(c *models.Chunk) ChunkResponse {
	location, _ := c.GetLocation()
	breadcrumbs, _ := c.GetBreadcrumbs()
	flags, _ := c.GetQualityFlags()

	return ChunkResponse{
		ID:           c.ID,
		DocumentID:   c.DocumentID,
		ChunkIndex:   c.ChunkIndex,
		Content:      c.Content,
		CharStart:    c.CharStart,
		CharEnd:      c.CharEnd,
		Heading:      c.Heading,
		Location:     location,
		Breadcrumbs:  breadcrumbs,
		TokenCount:   c.TokenCount,
		QualityScore: c.QualityScore,
		QualityFlags: flags,
		ChunkType:    c.ChunkType,
		Completeness: c.Completeness,
		HasTitle:     c.HasTitle,
	}
}
