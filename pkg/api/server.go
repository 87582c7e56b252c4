package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/quernlabs/quern/internal/logger"
	"github.com/quernlabs/quern/pkg/events"
	"github.com/quernlabs/quern/pkg/ingest"
	"github.com/quernlabs/quern/pkg/ingest/registry"
	"github.com/quernlabs/quern/pkg/queue"
	"github.com/quernlabs/quern/pkg/search"
	"github.com/quernlabs/quern/pkg/store"
)

// Dependencies carries the collaborators the API serves. Store and
// Coordinator are required; the rest may be nil and the affected
// endpoints degrade (503 readiness, 503 search).
type Dependencies struct {
	Store       store.Store
	Coordinator *ingest.Coordinator
	Registry    *registry.Registry
	Gateway     *search.Gateway
	Bus         *events.Bus
	Queue       queue.Queue

	// Version is reported by /health.
	Version string

	// UploadMaxBytes bounds the multipart body read on /api/documents.
	// Zero falls back to the ingestion default.
	UploadMaxBytes int64

	// SyncUploadMaxBytes bounds the body on /internal/sync/upload.
	// Zero falls back to the external-source default.
	SyncUploadMaxBytes int64

	// CallbackMaxBytes bounds the body on /internal/callback. Zero
	// falls back to the built-in default.
	CallbackMaxBytes int64
}

// Server provides the HTTP server for the REST API: document upload
// and management, retrieval queries, profile administration,
// analytics, the SSE event stream, and the internal worker callback.
//
// The server supports graceful shutdown with configurable timeout.
type Server struct {
	server       *http.Server
	config       APIConfig
	shutdownOnce sync.Once
}

// NewServer creates a new API HTTP server.
//
// The server is created in a stopped state. Call Start() to begin serving requests.
//
// Defaults are applied here to ensure the server works correctly even when
// created directly (e.g., in tests). This is idempotent with the defaults
// applied during config loading.
func NewServer(config APIConfig, deps Dependencies) (*Server, error) {
	config.applyDefaults()

	if deps.Store == nil {
		return nil, fmt.Errorf("api server requires a store")
	}
	if deps.Coordinator == nil {
		return nil, fmt.Errorf("api server requires the ingestion coordinator")
	}
	if config.APIKey == "" {
		logger.Warn("API authentication disabled: no API key configured")
	}

	router := NewRouter(config, deps)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", config.Port),
		Handler:           router,
		ReadHeaderTimeout: config.ReadHeaderTimeout,
		IdleTimeout:       config.IdleTimeout,
	}

	return &Server{
		server: server,
		config: config,
	}, nil
}

// Start starts the API HTTP server and blocks until the context is cancelled
// or an error occurs.
//
// When the context is cancelled, Start initiates graceful shutdown and returns.
func (s *Server) Start(ctx context.Context) error {
	// Start server in goroutine
	errChan := make(chan error, 1)
	go func() {
		logger.Info("API server listening", "port", s.config.Port)
		logger.Debug("API endpoints available",
			"health", fmt.Sprintf("http://localhost:%d/health", s.config.Port),
			"documents", fmt.Sprintf("http://localhost:%d/api/documents", s.config.Port),
			"query", fmt.Sprintf("http://localhost:%d/api/query", s.config.Port),
			"events", fmt.Sprintf("http://localhost:%d/api/events", s.config.Port),
		)

		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			select {
			case errChan <- err:
			default:
				// Context was cancelled, error is not needed
			}
		}
	}()

	// Wait for context cancellation or server error
	select {
	case <-ctx.Done():
		logger.Info("API server shutdown signal received")
		// Create new context with timeout for graceful shutdown
		// Don't use the cancelled ctx as it would cause immediate shutdown
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("API server failed: %w", err)
	}
}

// Stop initiates graceful shutdown of the API server.
//
// Stop is safe to call multiple times and safe to call concurrently with Start().
func (s *Server) Stop(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		logger.Debug("API server shutdown initiated")

		if err := s.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("API server shutdown error: %w", err)
			logger.Error("API server shutdown error", "error", err)
		} else {
			logger.Info("API server stopped gracefully")
		}
	})
	return shutdownErr
}

// Port returns the TCP port the server is listening on.
func (s *Server) Port() int {
	return s.config.Port
}
