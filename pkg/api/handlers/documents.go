package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/quernlabs/quern/pkg/ingest"
	"github.com/quernlabs/quern/pkg/models"
	"github.com/quernlabs/quern/pkg/store"
)

// multipartOverhead is slack added to the body cap for multipart
// boundaries and part headers around the file payload.
const multipartOverhead = 10 << 10

// Listing page bounds.
const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// DocumentHandler handles document management API endpoints.
type DocumentHandler struct {
	store       store.Store
	coordinator *ingest.Coordinator
	maxBytes    int64
}

// NewDocumentHandler creates a new DocumentHandler. maxBytes bounds the
// multipart upload body; zero falls back to the ingestion default.
func NewDocumentHandler(st store.Store, coordinator *ingest.Coordinator, maxBytes int64) *DocumentHandler {
	if maxBytes <= 0 {
		maxBytes = 50 << 20
	}
	return &DocumentHandler{store: st, coordinator: coordinator, maxBytes: maxBytes}
}

// readUploadedFile reads the "file" part of a multipart upload with the
// body capped at maxBytes. On failure the problem response has already
// been written and ok is false.
func readUploadedFile(w http.ResponseWriter, r *http.Request, maxBytes int64) (filename string, content []byte, declaredMIME string, ok bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+multipartOverhead)

	file, header, err := r.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			PayloadTooLarge(w, fmt.Sprintf("Upload exceeds the %d byte limit", maxBytes))
			return "", nil, "", false
		}
		BadRequest(w, `Multipart form with a "file" part is required`)
		return "", nil, "", false
	}
	defer func() { _ = file.Close() }()

	content, err = io.ReadAll(file)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			PayloadTooLarge(w, fmt.Sprintf("Upload exceeds the %d byte limit", maxBytes))
			return "", nil, "", false
		}
		InternalServerError(w, "Failed to read uploaded file")
		return "", nil, "", false
	}

	return header.Filename, content, header.Header.Get("Content-Type"), true
}

// writeUploadProblem maps coordinator upload errors to problem responses.
func writeUploadProblem(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrEmptyUpload):
		BadRequestCode(w, "Uploaded file is empty", CodeEmptyFile)
	case errors.Is(err, models.ErrInvalidFormat):
		BadRequestCode(w, "File format is not supported", CodeInvalidFormat)
	case errors.Is(err, models.ErrFileTooLarge):
		PayloadTooLarge(w, "File exceeds the maximum upload size")
	case errors.Is(err, models.ErrDuplicateDocument):
		Conflict(w, "A document with identical content already exists", CodeDuplicateFile)
	case errors.Is(err, models.ErrQueueUnavailable):
		ServiceUnavailable(w, "Job queue unavailable, try again later", CodeQueueUnavailable)
	default:
		InternalServerError(w, "Failed to ingest document")
	}
}

// Upload handles POST /api/documents.
// Accepts a multipart form with a "file" part and creates a document.
func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	filename, content, declaredMIME, ok := readUploadedFile(w, r, h.maxBytes)
	if !ok {
		return
	}

	doc, err := h.coordinator.Upload(r.Context(), ingest.UploadInput{
		Filename:     filename,
		Content:      content,
		DeclaredMIME: declaredMIME,
		Source:       models.SourceManual,
	})
	if err != nil {
		writeUploadProblem(w, err)
		return
	}

	WriteJSONCreated(w, doc)
}

// ListDocumentsResponse is the response body for GET /api/documents.
type ListDocumentsResponse struct {
	Documents []*models.Document `json:"documents"`
	Total     int64              `json:"total"`
	Counts    map[string]int64   `json:"counts"`
}

// parseListFilter builds a store filter from the list query parameters.
// Returns false after writing a 400 when an enum value is unknown.
func parseListFilter(w http.ResponseWriter, r *http.Request) (store.DocumentFilter, bool) {
	q := r.URL.Query()
	filter := store.DocumentFilter{
		Search:    q.Get("search"),
		SortBy:    q.Get("sortBy"),
		SortOrder: q.Get("sortOrder"),
		Limit:     defaultListLimit,
	}

	if v := q.Get("status"); v != "" {
		status := models.DocumentStatus(strings.ToUpper(v))
		if !status.IsValid() {
			BadRequest(w, fmt.Sprintf("Unknown status %q", v))
			return filter, false
		}
		filter.Status = &status
	}
	if v := q.Get("isActive"); v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil {
			BadRequest(w, "isActive must be a boolean")
			return filter, false
		}
		filter.IsActive = &active
	}
	if v := q.Get("connectionState"); v != "" {
		state := models.ConnectionState(strings.ToUpper(v))
		if !state.IsValid() {
			BadRequest(w, fmt.Sprintf("Unknown connection state %q", v))
			return filter, false
		}
		filter.ConnectionState = &state
	}
	if v := q.Get("sourceType"); v != "" {
		source := models.SourceType(strings.ToUpper(v))
		if !source.IsValid() {
			BadRequest(w, fmt.Sprintf("Unknown source type %q", v))
			return filter, false
		}
		filter.Source = &source
	}
	if v := q.Get("format"); v != "" {
		format := models.DocumentFormat(strings.ToUpper(v))
		if !format.IsValid() {
			BadRequest(w, fmt.Sprintf("Unknown format %q", v))
			return filter, false
		}
		filter.Format = &format
	}
	if v := q.Get("formatCategory"); v != "" {
		category := models.FormatCategory(strings.ToUpper(v))
		if !category.IsValid() {
			BadRequest(w, fmt.Sprintf("Unknown format category %q", v))
			return filter, false
		}
		filter.FormatCategory = &category
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 {
			BadRequest(w, "limit must be a positive integer")
			return filter, false
		}
		if limit > maxListLimit {
			limit = maxListLimit
		}
		filter.Limit = limit
	}
	if v := q.Get("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil || offset < 0 {
			BadRequest(w, "offset must be a non-negative integer")
			return filter, false
		}
		filter.Offset = offset
	}

	return filter, true
}

// List handles GET /api/documents.
// Lists documents with filters, sorting, and paging, plus status counts.
func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, ok := parseListFilter(w, r)
	if !ok {
		return
	}

	docs, total, err := h.store.ListDocuments(r.Context(), filter)
	if err != nil {
		InternalServerError(w, "Failed to list documents")
		return
	}

	statusCounts, err := h.store.CountDocumentsByStatus(r.Context())
	if err != nil {
		InternalServerError(w, "Failed to count documents")
		return
	}
	counts := make(map[string]int64, len(statusCounts))
	for status, count := range statusCounts {
		counts[string(status)] = count
	}

	WriteJSONOK(w, ListDocumentsResponse{Documents: docs, Total: total, Counts: counts})
}

// DocumentDetailResponse is one document plus its chunk count.
type DocumentDetailResponse struct {
	*models.Document
	ChunkCount int64 `json:"chunkCount"`
}

// Get handles GET /api/documents/{id}.
func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	doc, ok := getDocumentOrError(w, r, h.store, id)
	if !ok {
		return
	}

	chunkCount, err := h.store.CountChunks(r.Context(), id)
	if err != nil {
		InternalServerError(w, "Failed to count chunks")
		return
	}

	WriteJSONOK(w, DocumentDetailResponse{Document: doc, ChunkCount: chunkCount})
}

// ContentResponse is the JSON variant of the processed content.
type ContentResponse struct {
	DocumentID string          `json:"documentId"`
	Filename   string          `json:"filename"`
	Content    string          `json:"content"`
	Chunks     []ChunkResponse `json:"chunks"`
}

// Content handles GET /api/documents/{id}/content?format=markdown|json.
// Returns the processed markdown, or a JSON body with the chunk set.
func (h *DocumentHandler) Content(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	format := r.URL.Query().Get("format")
	if format == "" {
		format = "markdown"
	}
	if format != "markdown" && format != "json" {
		BadRequest(w, `format must be "markdown" or "json"`)
		return
	}

	doc, ok := getDocumentOrError(w, r, h.store, id)
	if !ok {
		return
	}

	if doc.GetStatus() != models.StatusCompleted {
		Conflict(w, "Document processing has not completed", CodeNotReady)
		return
	}
	if doc.ProcessedContent == nil || *doc.ProcessedContent == "" {
		Conflict(w, "Document has no processed content", CodeNoContent)
		return
	}

	if format == "markdown" {
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(*doc.ProcessedContent))
		return
	}

	chunks, err := h.store.ListChunks(r.Context(), id)
	if err != nil {
		InternalServerError(w, "Failed to list chunks")
		return
	}
	response := ContentResponse{
		DocumentID: doc.ID,
		Filename:   doc.Filename,
		Content:    *doc.ProcessedContent,
		Chunks:     make([]ChunkResponse, len(chunks)),
	}
	for i, chunk := range chunks {
		response.Chunks[i] = chunkToResponse(chunk)
	}

	WriteJSONOK(w, response)
}

// AvailabilityRequest is the request body for availability toggles.
type AvailabilityRequest struct {
	IsActive *bool `json:"isActive"`
}

// Availability handles PATCH /api/documents/{id}/availability.
// Toggles whether a completed document participates in retrieval.
func (h *DocumentHandler) Availability(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req AvailabilityRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.IsActive == nil {
		BadRequest(w, "isActive is required")
		return
	}

	doc, err := h.coordinator.SetAvailability(r.Context(), id, *req.IsActive)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrDocumentNotFound):
			NotFound(w, "Document not found")
		case errors.Is(err, models.ErrInvalidStatus):
			BadRequestCode(w, "Only completed documents can change availability", CodeInvalidStatus)
		default:
			InternalServerError(w, "Failed to update availability")
		}
		return
	}

	WriteJSONOK(w, doc)
}

// BulkAvailabilityRequest is the request body for bulk availability toggles.
type BulkAvailabilityRequest struct {
	DocumentIDs []string `json:"documentIds"`
	IsActive    *bool    `json:"isActive"`
}

// BulkAvailability handles PATCH /api/documents/bulk/availability.
func (h *DocumentHandler) BulkAvailability(w http.ResponseWriter, r *http.Request) {
	var req BulkAvailabilityRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.IsActive == nil {
		BadRequest(w, "isActive is required")
		return
	}

	result, err := h.coordinator.BulkSetAvailability(r.Context(), req.DocumentIDs, *req.IsActive)
	if err != nil {
		writeBulkProblem(w, err)
		return
	}

	WriteJSONOK(w, result)
}

// Delete handles DELETE /api/documents/{id}.
// Removes the document, its chunks, its metrics, and the raw blob.
func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.coordinator.Delete(r.Context(), id); err != nil {
		switch {
		case errors.Is(err, models.ErrDocumentNotFound):
			NotFound(w, "Document not found")
		case errors.Is(err, models.ErrInvalidStatus):
			Conflict(w, "Document is processing and cannot be deleted", CodeInvalidStatus)
		default:
			InternalServerError(w, "Failed to delete document")
		}
		return
	}

	WriteJSONOK(w, map[string]any{"id": id, "deleted": true})
}

// BulkDeleteRequest is the request body for POST /api/documents/bulk/delete.
type BulkDeleteRequest struct {
	DocumentIDs []string `json:"documentIds"`
}

// BulkDelete handles POST /api/documents/bulk/delete.
func (h *DocumentHandler) BulkDelete(w http.ResponseWriter, r *http.Request) {
	var req BulkDeleteRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	result, err := h.coordinator.BulkDelete(r.Context(), req.DocumentIDs)
	if err != nil {
		writeBulkProblem(w, err)
		return
	}

	WriteJSONOK(w, result)
}

// writeBulkProblem maps bulk mutation errors to problem responses.
func writeBulkProblem(w http.ResponseWriter, err error) {
	if errors.Is(err, models.ErrBulkLimitExceeded) {
		BadRequestCode(w, "Too many document IDs in one request", CodeBulkLimitExceeded)
		return
	}
	BadRequest(w, "documentIds must be a non-empty array")
}

// Retry handles POST /api/documents/{id}/retry.
// Re-enters a failed document into its processing lane.
func (h *DocumentHandler) Retry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	doc, err := h.coordinator.Retry(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrDocumentNotFound):
			NotFound(w, "Document not found")
		case errors.Is(err, models.ErrInvalidStatus):
			BadRequestCode(w, "Only failed documents can be retried", CodeInvalidStatus)
		case errors.Is(err, models.ErrContentUnavailable):
			Conflict(w, "Raw file content is no longer available", CodeNoContent)
		case errors.Is(err, models.ErrQueueUnavailable):
			ServiceUnavailable(w, "Job queue unavailable, try again later", CodeQueueUnavailable)
		default:
			InternalServerError(w, "Failed to retry document")
		}
		return
	}

	WriteJSONOK(w, doc)
}
