// Package handlers provides HTTP handlers for the REST API.
package handlers

import (
	"encoding/json"
	"net/http"
)

// Machine-readable problem codes. Clients branch on these instead of
// parsing detail strings.
const (
	CodeValidationError    = "VALIDATION_ERROR"
	CodeInvalidFormat      = "INVALID_FORMAT"
	CodeFileTooLarge       = "FILE_TOO_LARGE"
	CodeEmptyFile          = "EMPTY_FILE"
	CodeDuplicateFile      = "DUPLICATE_FILE"
	CodeInvalidStatus      = "INVALID_STATUS"
	CodeNotReady           = "NOT_READY"
	CodeNoContent          = "NO_CONTENT"
	CodeNotFound           = "NOT_FOUND"
	CodeNameInUse          = "NAME_IN_USE"
	CodeProfileProtected   = "PROFILE_PROTECTED"
	CodeProfileArchived    = "PROFILE_ARCHIVED"
	CodeProfileNotArchived = "PROFILE_NOT_ARCHIVED"
	CodeBulkLimitExceeded  = "BULK_LIMIT_EXCEEDED"
	CodeSearchUnavailable  = "SEARCH_UNAVAILABLE"
	CodeQueueUnavailable   = "QUEUE_UNAVAILABLE"
	CodeInternalError      = "INTERNAL_ERROR"
)

// Problem represents an RFC 7807 "problem details" response.
// https://tools.ietf.org/html/rfc7807
//
// Code is an extension member carrying the machine-readable error code.
type Problem struct {
	// Type is a URI reference that identifies the problem type.
	// If not set, defaults to "about:blank".
	Type string `json:"type,omitempty"`

	// Title is a short, human-readable summary of the problem type.
	Title string `json:"title"`

	// Status is the HTTP status code for this occurrence of the problem.
	Status int `json:"status"`

	// Detail is a human-readable explanation specific to this occurrence.
	Detail string `json:"detail,omitempty"`

	// Code is the machine-readable error code for this occurrence.
	Code string `json:"code,omitempty"`
}

// ContentTypeProblemJSON is the Content-Type for RFC 7807 problem responses.
const ContentTypeProblemJSON = "application/problem+json"

// WriteProblem writes an RFC 7807 problem response.
func WriteProblem(w http.ResponseWriter, status int, title, detail string) {
	WriteProblemCode(w, status, title, detail, "")
}

// WriteProblemCode writes an RFC 7807 problem response with a machine code.
func WriteProblemCode(w http.ResponseWriter, status int, title, detail, code string) {
	problem := &Problem{
		Type:   "about:blank",
		Title:  title,
		Status: status,
		Detail: detail,
		Code:   code,
	}

	w.Header().Set("Content-Type", ContentTypeProblemJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(problem)
}

// Common problem helper functions for standard HTTP errors.

// BadRequest writes a 400 Bad Request problem response.
func BadRequest(w http.ResponseWriter, detail string) {
	WriteProblemCode(w, http.StatusBadRequest, "Bad Request", detail, CodeValidationError)
}

// BadRequestCode writes a 400 Bad Request problem response with a custom code.
func BadRequestCode(w http.ResponseWriter, detail, code string) {
	WriteProblemCode(w, http.StatusBadRequest, "Bad Request", detail, code)
}

// Unauthorized writes a 401 Unauthorized problem response.
func Unauthorized(w http.ResponseWriter, detail string) {
	WriteProblem(w, http.StatusUnauthorized, "Unauthorized", detail)
}

// Forbidden writes a 403 Forbidden problem response.
func Forbidden(w http.ResponseWriter, detail string) {
	WriteProblem(w, http.StatusForbidden, "Forbidden", detail)
}

// NotFound writes a 404 Not Found problem response.
func NotFound(w http.ResponseWriter, detail string) {
	WriteProblemCode(w, http.StatusNotFound, "Not Found", detail, CodeNotFound)
}

// Conflict writes a 409 Conflict problem response with a machine code.
func Conflict(w http.ResponseWriter, detail, code string) {
	WriteProblemCode(w, http.StatusConflict, "Conflict", detail, code)
}

// PayloadTooLarge writes a 413 Content Too Large problem response.
func PayloadTooLarge(w http.ResponseWriter, detail string) {
	WriteProblemCode(w, http.StatusRequestEntityTooLarge, "Content Too Large", detail, CodeFileTooLarge)
}

// UnprocessableEntity writes a 422 Unprocessable Entity problem response.
func UnprocessableEntity(w http.ResponseWriter, detail string) {
	WriteProblemCode(w, http.StatusUnprocessableEntity, "Unprocessable Entity", detail, CodeValidationError)
}

// InternalServerError writes a 500 Internal Server Error problem response.
func InternalServerError(w http.ResponseWriter, detail string) {
	WriteProblemCode(w, http.StatusInternalServerError, "Internal Server Error", detail, CodeInternalError)
}

// ServiceUnavailable writes a 503 Service Unavailable problem response.
func ServiceUnavailable(w http.ResponseWriter, detail, code string) {
	WriteProblemCode(w, http.StatusServiceUnavailable, "Service Unavailable", detail, code)
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteJSONOK writes a 200 OK JSON response.
func WriteJSONOK(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusOK, data)
}

// WriteJSONCreated writes a 201 Created JSON response.
func WriteJSONCreated(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusCreated, data)
}

// WriteNoContent writes a 204 No Content response.
func WriteNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}
