package apiclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HealthStatus is the envelope returned by the health endpoints.
type HealthStatus struct {
	Status    string         `json:"status"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// Healthy returns true if the probe reported a healthy service.
func (h *HealthStatus) Healthy() bool {
	return h.Status == "healthy"
}

// Health returns the liveness report with the server version.
func (c *Client) Health() (*HealthStatus, error) {
	return c.probe("/health")
}

// Ready returns the readiness report with store and queue probe results.
// A failing probe still returns a HealthStatus: the 503 body names the
// failing check in Error.
func (c *Client) Ready() (*HealthStatus, error) {
	return c.probe("/health/ready")
}

// probe fetches a health endpoint. Unlike the API endpoints these answer
// 503 with a health envelope rather than problem+json, so the body is
// decoded regardless of status.
func (c *Client) probe(path string) (*HealthStatus, error) {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var status HealthStatus
	if err := json.Unmarshal(body, &status); err != nil {
		if resp.StatusCode >= 400 {
			return nil, decodeAPIError(resp.StatusCode, body)
		}
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &status, nil
}
