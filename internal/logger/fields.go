package logger

// Standard field keys for structured logging.
// Use these keys consistently across all log statements so logs aggregate
// cleanly in downstream tooling.
const (
	// Distributed tracing
	KeyTraceID = "trace_id" // OpenTelemetry trace ID for request correlation
	KeySpanID  = "span_id"  // OpenTelemetry span ID for operation tracking

	// HTTP surface
	KeyRequestID = "request_id" // chi request ID
	KeyMethod    = "method"     // HTTP method
	KeyPath      = "path"       // Request path
	KeyStatus    = "status"     // HTTP status code
	KeyClientIP  = "client_ip"  // Client IP address

	// Ingestion domain
	KeyDocumentID = "document_id" // Document UUID
	KeyProfileID  = "profile_id"  // Processing profile UUID
	KeyJobID      = "job_id"      // Queue job UUID
	KeyFilename   = "filename"    // Original upload filename
	KeyFormat     = "format"      // Declared document format
	KeyLane       = "lane"        // fast or heavy
	KeyChunks     = "chunks"      // Chunk count
	KeyAttempt    = "attempt"     // Queue delivery attempt

	// Generic
	KeyError      = "error"       // Error message
	KeySize       = "size"        // Byte size
	KeyDurationMs = "duration_ms" // Elapsed milliseconds
	KeyCount      = "count"       // Generic count
)
