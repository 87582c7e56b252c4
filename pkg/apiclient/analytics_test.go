package apiclient

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyticsOverview(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/analytics/overview", r.URL.Path)

		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(Overview{
			TotalDocuments:    42,
			DocumentsByStatus: map[string]int64{"COMPLETED": 40, "FAILED": 2},
			ActiveDocuments:   38,
			TotalChunks:       900,
			TotalSizeBytes:    5 << 20,
			AvgChunksPerDoc:   22.5,
		})
	}))
	defer server.Close()

	client := New(server.URL).WithAPIKey("test-key")
	overview, err := client.AnalyticsOverview()

	require.NoError(t, err)
	assert.Equal(t, int64(42), overview.TotalDocuments)
	assert.Equal(t, int64(40), overview.DocumentsByStatus["COMPLETED"])
	assert.Equal(t, 22.5, overview.AvgChunksPerDoc)
}

func TestProcessingAnalytics(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/analytics/processing", r.URL.Path)

		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(ProcessingStats{
			DocumentsMeasured: 40,
			AvgConversionMs:   120.5,
			AvgTotalMs:        480,
			OCRApplied:        3,
		})
	}))
	defer server.Close()

	client := New(server.URL)
	stats, err := client.ProcessingAnalytics()

	require.NoError(t, err)
	assert.Equal(t, int64(40), stats.DocumentsMeasured)
	assert.Equal(t, 120.5, stats.AvgConversionMs)
	assert.Equal(t, int64(3), stats.OCRApplied)
}

func TestQualityAnalytics(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/analytics/quality", r.URL.Path)

		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(QualityStats{
			AvgChunkQuality:   0.82,
			LowQualityChunks:  14,
			CompletedRate:     0.95,
			FailedRate:        0.05,
			FailReasonCounts:  map[string]int64{"TEXT_TOO_SHORT": 2},
			QualityFlagCounts: map[string]int64{"short": 14},
		})
	}))
	defer server.Close()

	client := New(server.URL)
	stats, err := client.QualityAnalytics()

	require.NoError(t, err)
	assert.Equal(t, 0.82, stats.AvgChunkQuality)
	assert.Equal(t, int64(2), stats.FailReasonCounts["TEXT_TOO_SHORT"])
}

func TestDocumentAnalytics(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/analytics/documents", r.URL.Path)

		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(DocumentStats{
			ByFormat:   []FormatCount{{Format: "PDF", Count: 30}, {Format: "MD", Count: 12}},
			ByCategory: map[string]int64{"DOCUMENT": 35},
			BySource:   map[string]int64{"MANUAL": 40, "EXTERNAL": 2},
		})
	}))
	defer server.Close()

	client := New(server.URL)
	stats, err := client.DocumentAnalytics()

	require.NoError(t, err)
	require.Len(t, stats.ByFormat, 2)
	assert.Equal(t, "PDF", stats.ByFormat[0].Format)
	assert.Equal(t, int64(2), stats.BySource["EXTERNAL"])
}

func TestDocumentChunks(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/analytics/documents/doc-123/chunks", r.URL.Path)

		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"documentId": "doc-123",
			"chunks": []Chunk{
				{ID: "ch-1", DocumentID: "doc-123", ChunkIndex: 0, Content: "first", ChunkType: "text"},
				{ID: "ch-2", DocumentID: "doc-123", ChunkIndex: 1, Content: "second", ChunkType: "table"},
			},
		})
	}))
	defer server.Close()

	client := New(server.URL)
	chunks, err := client.DocumentChunks("doc-123")

	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, 0, chunks[0].ChunkIndex)
	assert.Equal(t, "table", chunks[1].ChunkType)
}

func TestDocumentChunks_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/problem+json")
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"title":  "Not Found",
			"status": http.StatusNotFound,
			"detail": "Document not found",
			"code":   "NOT_FOUND",
		})
	}))
	defer server.Close()

	client := New(server.URL)
	chunks, err := client.DocumentChunks("missing")

	assert.Nil(t, chunks)
	require.Error(t, err)

	apiErr, ok := err.(*APIError)
	require.True(t, ok)
	assert.True(t, apiErr.IsNotFound())
}
