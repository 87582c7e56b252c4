package apiclient

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// APIError is a problem+json error response from the API. StatusCode and
// Code carry the machine-readable parts; Detail is the human explanation.
type APIError struct {
	StatusCode int    `json:"status"`
	Code       string `json:"code,omitempty"`
	Title      string `json:"title,omitempty"`
	Detail     string `json:"detail,omitempty"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	msg := e.Detail
	if msg == "" {
		msg = e.Title
	}
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	if e.Code != "" {
		return fmt.Sprintf("%s: %s", e.Code, msg)
	}
	return msg
}

// IsAuthError returns true if the request was rejected by the API-key gate.
func (e *APIError) IsAuthError() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// IsNotFound returns true if the target resource does not exist.
func (e *APIError) IsNotFound() bool {
	return e.Code == "NOT_FOUND"
}

// IsConflict returns true if the request collided with current state, such
// as a duplicate upload or a protected profile.
func (e *APIError) IsConflict() bool {
	return e.StatusCode == http.StatusConflict
}

// IsValidationError returns true if the request body or parameters were rejected.
func (e *APIError) IsValidationError() bool {
	return e.Code == "VALIDATION_ERROR"
}

// decodeAPIError builds an *APIError from an error response body. Bodies
// that are not problem+json fall back to the raw text.
func decodeAPIError(status int, body []byte) error {
	var apiErr APIError
	if json.Unmarshal(body, &apiErr) == nil && (apiErr.Title != "" || apiErr.Code != "" || apiErr.Detail != "") {
		if apiErr.StatusCode == 0 {
			apiErr.StatusCode = status
		}
		return &apiErr
	}
	return &APIError{
		StatusCode: status,
		Detail:     strings.TrimSpace(string(body)),
	}
}
