package models

import "errors"

// Common errors for document, chunk, and profile operations.
var (
	// Document errors
	ErrDocumentNotFound  = errors.New("document not found")
	ErrDuplicateDocument = errors.New("document with identical content already exists")
	ErrInvalidStatus     = errors.New("operation not valid for current document status")
	ErrStatusConflict    = errors.New("document status changed concurrently")

	// Chunk errors
	ErrChunkNotFound       = errors.New("chunk not found")
	ErrDimensionMismatch   = errors.New("embedding dimension does not match store dimension")
	ErrEmptyChunkSet       = errors.New("chunk set must not be empty")
	ErrDuplicateChunkIndex = errors.New("duplicate chunk index within document")

	// Profile errors
	ErrProfileNotFound    = errors.New("processing profile not found")
	ErrDuplicateProfile   = errors.New("processing profile name already in use")
	ErrProfileArchived    = errors.New("processing profile is archived")
	ErrProfileProtected   = errors.New("default or active profile cannot be archived or deleted")
	ErrProfileNotArchived = errors.New("processing profile must be archived before deletion")
	ErrNoProfileAvailable = errors.New("no active or default processing profile configured")

	// Upload errors
	ErrFileTooLarge       = errors.New("file exceeds the maximum upload size")
	ErrInvalidFormat      = errors.New("file format is not on the ingestion allow-list")
	ErrEmptyUpload        = errors.New("uploaded file is empty")
	ErrBulkLimitExceeded  = errors.New("bulk operation exceeds the maximum batch size")
	ErrContentUnavailable = errors.New("raw file content is no longer available")

	// Metrics errors
	ErrMetricsNotFound = errors.New("processing metrics not found")

	// Infrastructure errors
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")
	ErrQueueUnavailable     = errors.New("job queue unavailable")
)
