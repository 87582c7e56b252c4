package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.False(t, cfg.Enabled)
	assert.Equal(t, "quernd", cfg.ServiceName)
	assert.Equal(t, "dev", cfg.ServiceVersion)
	assert.Equal(t, "localhost:4317", cfg.Endpoint)
	assert.True(t, cfg.Insecure)
	assert.Equal(t, 1.0, cfg.SampleRate)
}

func TestInitDisabled(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.Enabled = false

	shutdown, err := Init(ctx, cfg)
	require.NoError(t, err)
	require.NotNil(t, shutdown)

	// Should be able to call shutdown without error
	err = shutdown(ctx)
	assert.NoError(t, err)

	// Should not be enabled
	assert.False(t, IsEnabled())
}

func TestTracerReturnsNoOp(t *testing.T) {
	// Reset state
	tracer = nil
	enabled = false

	// Without initialization, should return no-op tracer
	tr := Tracer()
	require.NotNil(t, tr)
}

func TestStartSpan(t *testing.T) {
	ctx := context.Background()

	// Even without initialization, StartSpan should work (no-op)
	newCtx, span := StartSpan(ctx, "test.operation")
	require.NotNil(t, newCtx)
	require.NotNil(t, span)

	// Should be able to end the span
	span.End()
}

func TestSpanFromContext(t *testing.T) {
	ctx := context.Background()

	// Should return a span even without active span
	span := SpanFromContext(ctx)
	require.NotNil(t, span)
}

func TestAddEvent(t *testing.T) {
	ctx := context.Background()

	// Should not panic with no active span
	require.NotPanics(t, func() {
		AddEvent(ctx, "test.event")
	})
}

func TestRecordError(t *testing.T) {
	ctx := context.Background()

	// Should not panic with nil error
	require.NotPanics(t, func() {
		RecordError(ctx, nil)
	})

	// Should not panic with error
	require.NotPanics(t, func() {
		RecordError(ctx, errors.New("test error"))
	})
}

func TestSetStatus(t *testing.T) {
	ctx := context.Background()

	// Should not panic
	require.NotPanics(t, func() {
		SetStatus(ctx, codes.Ok, "success")
	})

	require.NotPanics(t, func() {
		SetStatus(ctx, codes.Error, "failed")
	})
}

func TestSetAttributes(t *testing.T) {
	ctx := context.Background()

	// Should not panic
	require.NotPanics(t, func() {
		SetAttributes(ctx, ClientIP("192.168.1.1"))
	})
}

func TestTraceID(t *testing.T) {
	ctx := context.Background()

	// Without active span, should return empty string
	traceID := TraceID(ctx)
	assert.Equal(t, "", traceID)
}

func TestSpanID(t *testing.T) {
	ctx := context.Background()

	// Without active span, should return empty string
	spanID := SpanID(ctx)
	assert.Equal(t, "", spanID)
}

func TestAttributeHelpers(t *testing.T) {
	t.Run("ClientIP", func(t *testing.T) {
		attr := ClientIP("192.168.1.100")
		assert.Equal(t, AttrClientIP, string(attr.Key))
		assert.Equal(t, "192.168.1.100", attr.Value.AsString())
	})

	t.Run("ClientAddr", func(t *testing.T) {
		attr := ClientAddr("192.168.1.100:12345")
		assert.Equal(t, AttrClientAddr, string(attr.Key))
		assert.Equal(t, "192.168.1.100:12345", attr.Value.AsString())
	})

	t.Run("DocumentID", func(t *testing.T) {
		attr := DocumentID("3f2a1b7c-0d4e-4c6f-9a1e-5b8d2c7e9f01")
		assert.Equal(t, AttrDocumentID, string(attr.Key))
		assert.Equal(t, "3f2a1b7c-0d4e-4c6f-9a1e-5b8d2c7e9f01", attr.Value.AsString())
	})

	t.Run("DocumentFormat", func(t *testing.T) {
		attr := DocumentFormat("pdf")
		assert.Equal(t, AttrDocumentFormat, string(attr.Key))
		assert.Equal(t, "pdf", attr.Value.AsString())
	})

	t.Run("DocumentSource", func(t *testing.T) {
		attr := DocumentSource("MANUAL")
		assert.Equal(t, AttrDocumentSource, string(attr.Key))
		assert.Equal(t, "MANUAL", attr.Value.AsString())
	})

	t.Run("DocumentStatus", func(t *testing.T) {
		attr := DocumentStatus("PROCESSING")
		assert.Equal(t, AttrDocumentStatus, string(attr.Key))
		assert.Equal(t, "PROCESSING", attr.Value.AsString())
	})

	t.Run("Filename", func(t *testing.T) {
		attr := Filename("report.pdf")
		assert.Equal(t, AttrFilename, string(attr.Key))
		assert.Equal(t, "report.pdf", attr.Value.AsString())
	})

	t.Run("Size", func(t *testing.T) {
		attr := Size(1048576)
		assert.Equal(t, AttrSize, string(attr.Key))
		assert.Equal(t, int64(1048576), attr.Value.AsInt64())
	})

	t.Run("ChunkCount", func(t *testing.T) {
		attr := ChunkCount(42)
		assert.Equal(t, AttrChunkCount, string(attr.Key))
		assert.Equal(t, int64(42), attr.Value.AsInt64())
	})

	t.Run("Lane", func(t *testing.T) {
		attr := Lane("heavy")
		assert.Equal(t, AttrLane, string(attr.Key))
		assert.Equal(t, "heavy", attr.Value.AsString())
	})

	t.Run("ProfileID", func(t *testing.T) {
		attr := ProfileID("profile-1")
		assert.Equal(t, AttrProfileID, string(attr.Key))
		assert.Equal(t, "profile-1", attr.Value.AsString())
	})

	t.Run("JobID", func(t *testing.T) {
		attr := JobID("job-9")
		assert.Equal(t, AttrJobID, string(attr.Key))
		assert.Equal(t, "job-9", attr.Value.AsString())
	})

	t.Run("Attempt", func(t *testing.T) {
		attr := Attempt(3)
		assert.Equal(t, AttrAttempt, string(attr.Key))
		assert.Equal(t, int64(3), attr.Value.AsInt64())
	})

	t.Run("SearchMode", func(t *testing.T) {
		attr := SearchMode("hybrid")
		assert.Equal(t, AttrSearchMode, string(attr.Key))
		assert.Equal(t, "hybrid", attr.Value.AsString())
	})

	t.Run("SearchTopK", func(t *testing.T) {
		attr := SearchTopK(5)
		assert.Equal(t, AttrSearchTopK, string(attr.Key))
		assert.Equal(t, int64(5), attr.Value.AsInt64())
	})

	t.Run("ResultCount", func(t *testing.T) {
		attr := ResultCount(4)
		assert.Equal(t, AttrResultCount, string(attr.Key))
		assert.Equal(t, int64(4), attr.Value.AsInt64())
	})

	t.Run("StorageKey", func(t *testing.T) {
		attr := StorageKey("d41d8cd98f00b204e9800998ecf8427e")
		assert.Equal(t, AttrStorageKey, string(attr.Key))
		assert.Equal(t, "d41d8cd98f00b204e9800998ecf8427e", attr.Value.AsString())
	})

	t.Run("Bucket", func(t *testing.T) {
		attr := Bucket("quern-blobs")
		assert.Equal(t, AttrStorageBucket, string(attr.Key))
		assert.Equal(t, "quern-blobs", attr.Value.AsString())
	})

	t.Run("StoreType", func(t *testing.T) {
		attr := StoreType("postgres")
		assert.Equal(t, AttrStoreType, string(attr.Key))
		assert.Equal(t, "postgres", attr.Value.AsString())
	})
}

func TestStartUploadSpan(t *testing.T) {
	ctx := context.Background()

	newCtx, span := StartUploadSpan(ctx, "notes.md", "MANUAL", 2048)
	require.NotNil(t, newCtx)
	require.NotNil(t, span)
	span.End()
}

func TestStartCallbackSpan(t *testing.T) {
	ctx := context.Background()

	newCtx, span := StartCallbackSpan(ctx, "doc-1", true)
	require.NotNil(t, newCtx)
	require.NotNil(t, span)
	span.End()

	newCtx2, span2 := StartCallbackSpan(ctx, "doc-2", false)
	require.NotNil(t, newCtx2)
	require.NotNil(t, span2)
	span2.End()
}

func TestStartDispatchSpan(t *testing.T) {
	ctx := context.Background()

	newCtx, span := StartDispatchSpan(ctx, "job-1", "doc-1", 1)
	require.NotNil(t, newCtx)
	require.NotNil(t, span)
	span.End()
}

func TestStartSearchSpan(t *testing.T) {
	ctx := context.Background()

	newCtx, span := StartSearchSpan(ctx, "semantic", 5)
	require.NotNil(t, newCtx)
	require.NotNil(t, span)
	span.End()
}
