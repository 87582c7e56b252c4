package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "INFO", "text", false)

	Debug("should not appear")
	Info("should appear")

	out := buf.String()
	assert.NotContains(t, out, "should not appear")
	assert.Contains(t, out, "should appear")
}

func TestSetLevel(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "ERROR", "text", false)

	Warn("hidden warn")
	assert.Empty(t, buf.String())

	SetLevel("DEBUG")
	Debug("visible debug")
	assert.Contains(t, buf.String(), "visible debug")

	// Restore default for other tests
	SetLevel("INFO")
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "INFO", "json", false)

	Info("json message", "document_id", "abc-123", "chunks", 4)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "json message", entry["msg"])
	assert.Equal(t, "abc-123", entry["document_id"])
	assert.Equal(t, float64(4), entry["chunks"])
}

func TestStructuredFields(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "INFO", "text", false)

	Info("upload accepted", KeyFilename, "report.pdf", KeySize, 1024)

	out := buf.String()
	assert.Contains(t, out, "filename=report.pdf")
	assert.Contains(t, out, "size=1024")
}

func TestContextFields(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "INFO", "text", false)

	lc := NewLogContext("10.0.0.1").WithDocument("doc-42").WithRequest("req-7")
	ctx := WithContext(context.Background(), lc)

	InfoCtx(ctx, "callback applied")

	out := buf.String()
	assert.Contains(t, out, "document_id=doc-42")
	assert.Contains(t, out, "request_id=req-7")
	assert.Contains(t, out, "client_ip=10.0.0.1")
}

func TestContextFieldsAbsent(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "INFO", "text", false)

	InfoCtx(context.Background(), "no log context")

	out := buf.String()
	assert.Contains(t, out, "no log context")
	assert.NotContains(t, out, "document_id")
}

func TestInvalidLevelIgnored(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "INFO", "text", false)

	SetLevel("NOT_A_LEVEL")
	assert.Equal(t, "INFO", CurrentLevel())
}

func TestColorDisabledForFiles(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "INFO", "text", false)

	Info("plain output")
	assert.False(t, strings.Contains(buf.String(), "\033["),
		"expected no ANSI escapes when color is disabled")
}
