package handlers

import "time"

// Response is the envelope used by the health endpoints.
//
//   - Status indicates the overall result ("healthy" or "unhealthy")
//   - Timestamp provides response time for debugging and caching
//   - Data contains the probe payload (optional)
//   - Error contains the failing check when Status is "unhealthy"
type Response struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// healthyResponse creates a successful health check response.
func healthyResponse(data any) Response {
	return Response{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// unhealthyResponse creates a failed health check response.
func unhealthyResponse(errMsg string) Response {
	return Response{
		Status:    "unhealthy",
		Timestamp: time.Now().UTC(),
		Error:     errMsg,
	}
}
