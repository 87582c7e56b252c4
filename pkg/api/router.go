package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/quernlabs/quern/internal/logger"
	"github.com/quernlabs/quern/pkg/api/handlers"
	apiMiddleware "github.com/quernlabs/quern/pkg/api/middleware"
)

// defaultCallbackMaxBytes caps the worker callback body when the
// dependency is left unset. Chunk sets with embeddings for a large
// document run to tens of megabytes.
const defaultCallbackMaxBytes = 100 << 20

// NewRouter creates and configures the chi router with all middleware and routes.
//
// The router is configured with:
//   - Request ID middleware for request tracking
//   - Real IP extraction for proper client identification
//   - Custom request logging using the internal logger
//   - Panic recovery to prevent server crashes
//   - CORS when origins are configured
//   - Request timeout on the JSON API group; the upload route and the
//     SSE stream live outside it
//
// Routes:
//   - GET /health, /health/ready - probes (unauthenticated)
//   - POST /api/documents - multipart upload
//   - GET /api/documents - list with filters
//   - GET/DELETE /api/documents/{id}, content, availability, retry
//   - PATCH/POST /api/documents/bulk/* - bulk mutations
//   - POST /api/query - retrieval
//   - /api/profiles* - processing profile management
//   - /api/analytics/* - aggregations
//   - GET /api/events - SSE stream
//   - POST /internal/callback - worker result ingest (unauthenticated)
//   - POST /internal/sync/* - external sync entry points (unauthenticated)
func NewRouter(config APIConfig, deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Middleware stack - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	if len(config.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   config.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}

	callbackMax := deps.CallbackMaxBytes
	if callbackMax <= 0 {
		callbackMax = defaultCallbackMaxBytes
	}

	healthHandler := handlers.NewHealthHandler(deps.Store, deps.Queue, deps.Version)
	documentHandler := handlers.NewDocumentHandler(deps.Store, deps.Coordinator, deps.UploadMaxBytes)
	queryHandler := handlers.NewQueryHandler(deps.Gateway)
	profileHandler := handlers.NewProfileHandler(deps.Registry)
	analyticsHandler := handlers.NewAnalyticsHandler(deps.Store)
	eventsHandler := handlers.NewEventsHandler(deps.Bus)
	callbackHandler := handlers.NewCallbackHandler(deps.Coordinator, callbackMax)
	syncHandler := handlers.NewSyncHandler(deps.Coordinator, deps.Bus, deps.SyncUploadMaxBytes)

	// Health routes - unauthenticated
	r.Route("/health", func(r chi.Router) {
		r.Get("/", healthHandler.Liveness)
		r.Get("/ready", healthHandler.Readiness)
	})

	// Root redirect to health for convenience
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/health", http.StatusTemporaryRedirect)
	})

	requireKey := apiMiddleware.RequireAPIKey(config.APIKey)

	r.Route("/api", func(r chi.Router) {
		// SSE stream - no request timeout, key enforcement configurable
		r.Group(func(r chi.Router) {
			if config.EventsRequireKey {
				r.Use(requireKey)
			}
			r.Get("/events", eventsHandler.Stream)
		})

		r.Group(func(r chi.Router) {
			r.Use(requireKey)

			// Upload - no request timeout, bounded by body size instead
			r.Post("/documents", documentHandler.Upload)

			r.Group(func(r chi.Router) {
				r.Use(middleware.Timeout(config.RequestTimeout))

				r.Route("/documents", func(r chi.Router) {
					r.Get("/", documentHandler.List)

					// Bulk routes come before /{id} so chi never
					// captures "bulk" as a document ID.
					r.Patch("/bulk/availability", documentHandler.BulkAvailability)
					r.Post("/bulk/delete", documentHandler.BulkDelete)

					r.Route("/{id}", func(r chi.Router) {
						r.Get("/", documentHandler.Get)
						r.Delete("/", documentHandler.Delete)
						r.Get("/content", documentHandler.Content)
						r.Patch("/availability", documentHandler.Availability)
						r.Post("/retry", documentHandler.Retry)
					})
				})

				r.Post("/query", queryHandler.Query)

				r.Route("/profiles", func(r chi.Router) {
					r.Get("/", profileHandler.List)
					r.Post("/", profileHandler.Create)

					r.Route("/{id}", func(r chi.Router) {
						r.Get("/", profileHandler.Get)
						r.Put("/", profileHandler.Update)
						r.Delete("/", profileHandler.Delete)
						r.Post("/duplicate", profileHandler.Duplicate)
						r.Post("/activate", profileHandler.Activate)
						r.Post("/archive", profileHandler.Archive)
						r.Post("/unarchive", profileHandler.Unarchive)
					})
				})

				r.Route("/analytics", func(r chi.Router) {
					r.Get("/overview", analyticsHandler.Overview)
					r.Get("/processing", analyticsHandler.Processing)
					r.Get("/quality", analyticsHandler.Quality)
					r.Get("/documents", analyticsHandler.Documents)
					r.Get("/documents/{id}/chunks", analyticsHandler.DocumentChunks)
				})
			})
		})
	})

	// Internal routes - reachable only from the private network, so no
	// API key. The callback body cap replaces the request timeout.
	r.Route("/internal", func(r chi.Router) {
		r.Post("/callback", callbackHandler.Apply)
		r.Route("/sync", func(r chi.Router) {
			r.Post("/upload", syncHandler.Upload)
			r.Post("/status", syncHandler.Status)
		})
	})

	return r
}

// isHealthPath returns true if the request path is a healthcheck endpoint.
func isHealthPath(path string) bool {
	return path == "/health" || strings.HasPrefix(path, "/health/")
}

// requestLogger is a custom middleware that logs requests using the internal logger.
//
// It logs:
//   - Request start (DEBUG level): method, path, remote addr
//   - Request completion (INFO level): method, path, status, duration
//   - Healthcheck requests are logged at DEBUG level to reduce noise
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := middleware.GetReqID(r.Context())

		logger.Debug("API request started",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
		)

		// Wrap response writer to capture status code
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		duration := time.Since(start)

		logArgs := []any{
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", duration.String(),
		}

		// Log healthcheck requests at DEBUG to avoid polluting logs in k8s
		if isHealthPath(r.URL.Path) {
			logger.Debug("API request completed", logArgs...)
		} else {
			logger.Info("API request completed", logArgs...)
		}
	})
}
