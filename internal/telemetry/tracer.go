package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Common attribute keys for ingestion and retrieval operations.
// These follow OpenTelemetry semantic conventions where applicable.
const (
	// Client attributes
	AttrClientIP   = "client.ip"
	AttrClientAddr = "client.address"

	// Document attributes
	AttrDocumentID     = "document.id"
	AttrDocumentFormat = "document.format"
	AttrDocumentSource = "document.source"
	AttrDocumentStatus = "document.status"
	AttrFilename       = "document.filename"
	AttrSize           = "document.size"
	AttrChunkCount     = "document.chunks"

	// Ingestion attributes
	AttrLane       = "ingest.lane"
	AttrProfileID  = "ingest.profile_id"
	AttrRetryCount = "ingest.retry_count"

	// Queue attributes
	AttrJobID   = "queue.job_id"
	AttrAttempt = "queue.attempt"
	AttrBackend = "queue.backend"

	// Search attributes
	AttrSearchMode  = "search.mode"
	AttrSearchTopK  = "search.top_k"
	AttrSearchAlpha = "search.alpha"
	AttrResultCount = "search.results"

	// Storage attributes
	AttrStorageKey    = "storage.key"
	AttrStorageBucket = "storage.bucket"
	AttrStoreType     = "store.type"
)

// Span names for operations.
// Format: <component>.<operation>
const (
	SpanUpload        = "ingest.upload"
	SpanFastLane      = "ingest.fast_lane"
	SpanCallback      = "ingest.callback"
	SpanRetry         = "ingest.retry"
	SpanDelete        = "ingest.delete"
	SpanDispatch      = "queue.dispatch"
	SpanSearch        = "search.query"
	SpanEmbed         = "embed.texts"
	SpanReplaceChunks = "store.replace_chunks"
	SpanVectorSearch  = "store.vector_search"
	SpanBlobWrite     = "blob.write"
	SpanBlobDelete    = "blob.delete"
)

// ClientIP returns an attribute for client IP address
func ClientIP(ip string) attribute.KeyValue {
	return attribute.String(AttrClientIP, ip)
}

// ClientAddr returns an attribute for client address (IP:port)
func ClientAddr(addr string) attribute.KeyValue {
	return attribute.String(AttrClientAddr, addr)
}

// DocumentID returns an attribute for a document UUID
func DocumentID(id string) attribute.KeyValue {
	return attribute.String(AttrDocumentID, id)
}

// DocumentFormat returns an attribute for the declared format
func DocumentFormat(format string) attribute.KeyValue {
	return attribute.String(AttrDocumentFormat, format)
}

// DocumentSource returns an attribute for the upload source
func DocumentSource(source string) attribute.KeyValue {
	return attribute.String(AttrDocumentSource, source)
}

// DocumentStatus returns an attribute for a lifecycle status
func DocumentStatus(status string) attribute.KeyValue {
	return attribute.String(AttrDocumentStatus, status)
}

// Filename returns an attribute for the original filename
func Filename(name string) attribute.KeyValue {
	return attribute.String(AttrFilename, name)
}

// Size returns an attribute for a byte size
func Size(size int64) attribute.KeyValue {
	return attribute.Int64(AttrSize, size)
}

// ChunkCount returns an attribute for a chunk count
func ChunkCount(n int) attribute.KeyValue {
	return attribute.Int(AttrChunkCount, n)
}

// Lane returns an attribute for the processing lane (fast or heavy)
func Lane(lane string) attribute.KeyValue {
	return attribute.String(AttrLane, lane)
}

// ProfileID returns an attribute for the snapshot profile
func ProfileID(id string) attribute.KeyValue {
	return attribute.String(AttrProfileID, id)
}

// JobID returns an attribute for a queue job
func JobID(id string) attribute.KeyValue {
	return attribute.String(AttrJobID, id)
}

// Attempt returns an attribute for a delivery attempt number
func Attempt(n int) attribute.KeyValue {
	return attribute.Int(AttrAttempt, n)
}

// SearchMode returns an attribute for the retrieval mode
func SearchMode(mode string) attribute.KeyValue {
	return attribute.String(AttrSearchMode, mode)
}

// SearchTopK returns an attribute for the requested result count
func SearchTopK(k int) attribute.KeyValue {
	return attribute.Int(AttrSearchTopK, k)
}

// ResultCount returns an attribute for the returned result count
func ResultCount(n int) attribute.KeyValue {
	return attribute.Int(AttrResultCount, n)
}

// StorageKey returns an attribute for a blob storage key
func StorageKey(key string) attribute.KeyValue {
	return attribute.String(AttrStorageKey, key)
}

// Bucket returns an attribute for an S3 bucket name
func Bucket(name string) attribute.KeyValue {
	return attribute.String(AttrStorageBucket, name)
}

// StoreType returns an attribute for the store backend type
func StoreType(t string) attribute.KeyValue {
	return attribute.String(AttrStoreType, t)
}

// StartUploadSpan starts a span for an upload request.
func StartUploadSpan(ctx context.Context, filename, source string, size int64) (context.Context, trace.Span) {
	return StartSpan(ctx, SpanUpload, trace.WithAttributes(
		Filename(filename),
		DocumentSource(source),
		Size(size),
	))
}

// StartCallbackSpan starts a span for worker callback application.
func StartCallbackSpan(ctx context.Context, documentID string, success bool) (context.Context, trace.Span) {
	return StartSpan(ctx, SpanCallback, trace.WithAttributes(
		DocumentID(documentID),
		attribute.Bool("callback.success", success),
	))
}

// StartDispatchSpan starts a span for a job dispatch attempt.
func StartDispatchSpan(ctx context.Context, jobID, documentID string, attempt int) (context.Context, trace.Span) {
	return StartSpan(ctx, SpanDispatch, trace.WithAttributes(
		JobID(jobID),
		DocumentID(documentID),
		Attempt(attempt),
	))
}

// StartSearchSpan starts a span for a search query.
func StartSearchSpan(ctx context.Context, mode string, topK int) (context.Context, trace.Span) {
	return StartSpan(ctx, SpanSearch, trace.WithAttributes(
		SearchMode(mode),
		SearchTopK(topK),
	))
}
