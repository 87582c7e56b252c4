package apiclient

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/query", r.URL.Path)

		var req QueryRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "ingestion pipeline", req.Query)
		assert.Equal(t, "hybrid", req.Mode)

		w.WriteHeader(http.StatusOK)
		alpha := 0.7
		vector := 0.9
		keyword := 0.4
		_ = json.NewEncoder(w).Encode(QueryResponse{
			Results: []SearchResult{
				{
					ChunkID:      "chunk-1",
					DocumentID:   "doc-1",
					Filename:     "notes.txt",
					Content:      "The pipeline converts uploads to markdown.",
					Score:        0.75,
					VectorScore:  &vector,
					KeywordScore: &keyword,
				},
			},
			Mode:  "hybrid",
			Alpha: &alpha,
		})
	}))
	defer server.Close()

	client := New(server.URL).WithAPIKey("test-key")
	resp, err := client.Query(&QueryRequest{Query: "ingestion pipeline", Mode: "hybrid"})

	require.NoError(t, err)
	assert.Equal(t, "hybrid", resp.Mode)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "chunk-1", resp.Results[0].ChunkID)
	require.NotNil(t, resp.Results[0].VectorScore)
	assert.InDelta(t, 0.9, *resp.Results[0].VectorScore, 1e-9)
}

func TestQuery_Unavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/problem+json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"title":  "Service Unavailable",
			"status": http.StatusServiceUnavailable,
			"detail": "Embedding service is unavailable",
			"code":   "SEARCH_UNAVAILABLE",
		})
	}))
	defer server.Close()

	client := New(server.URL).WithAPIKey("test-key")
	resp, err := client.Query(&QueryRequest{Query: "anything"})

	assert.Nil(t, resp)
	require.Error(t, err)

	apiErr, ok := err.(*APIError)
	require.True(t, ok)
	assert.Equal(t, "SEARCH_UNAVAILABLE", apiErr.Code)
}
