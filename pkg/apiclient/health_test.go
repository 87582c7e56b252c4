package apiclient

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)

		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": "healthy",
			"data":   map[string]any{"service": "quern", "version": "1.2.3"},
		})
	}))
	defer server.Close()

	client := New(server.URL)
	status, err := client.Health()

	require.NoError(t, err)
	assert.True(t, status.Healthy())
	assert.Equal(t, "quern", status.Data["service"])
}

func TestReady_Unhealthy(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health/ready", r.URL.Path)

		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": "unhealthy",
			"error":  "store: connection refused",
		})
	}))
	defer server.Close()

	client := New(server.URL)
	status, err := client.Ready()

	require.NoError(t, err)
	assert.False(t, status.Healthy())
	assert.Equal(t, "store: connection refused", status.Error)
}
