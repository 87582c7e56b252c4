// Package middleware provides HTTP middleware for the REST API.
package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// extractAPIKey pulls the client key from the request: the X-API-Key
// header, or a Bearer Authorization header. Returns the key and true
// if one was present.
func extractAPIKey(r *http.Request) (string, bool) {
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key, true
	}

	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", false
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}

	return parts[1], true
}

// RequireAPIKey is a middleware that validates the API key on every
// request. The comparison is constant-time so response latency leaks
// nothing about key prefixes.
//
// When the configured key is empty, authentication is disabled and all
// requests pass; the server logs that condition once at startup.
func RequireAPIKey(configuredKey string) func(http.Handler) http.Handler {
	expected := []byte(configuredKey)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(expected) == 0 {
				next.ServeHTTP(w, r)
				return
			}

			key, ok := extractAPIKey(r)
			if !ok {
				unauthorized(w, "API key required")
				return
			}

			if subtle.ConstantTimeCompare([]byte(key), expected) != 1 {
				unauthorized(w, "Invalid API key")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// unauthorized writes a minimal problem+json 401. The detail strings
// are fixed literals, so no JSON escaping is needed.
func unauthorized(w http.ResponseWriter, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"type":"about:blank","title":"Unauthorized","status":401,"detail":"` + detail + `"}`))
}
