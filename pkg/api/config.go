package api

import "time"

// APIConfig configures the REST API HTTP server.
//
// When Enabled is false, no API server is started (zero overhead).
type APIConfig struct {
	// Enabled controls whether the API server is started.
	// Default: true (API is enabled by default)
	// Use a pointer to distinguish "not set" from "explicitly false"
	Enabled *bool `mapstructure:"enabled" yaml:"enabled"`

	// Port is the HTTP port for the API endpoints.
	// Default: 8080
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`

	// APIKey protects /api/* routes. Clients send it as X-API-Key or as
	// a bearer token. When empty, authentication is disabled; the server
	// logs a warning at startup.
	APIKey string `mapstructure:"api_key" yaml:"api_key,omitempty"`

	// EventsRequireKey controls whether the SSE stream at /api/events
	// requires the API key. Browsers cannot attach headers to
	// EventSource, so deployments fronted by a trusted proxy often
	// leave the stream open.
	// Default: false
	EventsRequireKey bool `mapstructure:"events_require_key" yaml:"events_require_key,omitempty"`

	// CORSOrigins lists the origins allowed to call the API from a
	// browser. Default: none (CORS disabled).
	CORSOrigins []string `mapstructure:"cors_origins" yaml:"cors_origins,omitempty"`

	// RequestTimeout bounds one JSON API request. Uploads and the SSE
	// stream are mounted outside the timeout group.
	// Default: 30s
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`

	// ReadHeaderTimeout is the maximum duration for reading request
	// headers. The request body has no server-side deadline: uploads can
	// be large and slow, and their size is bounded per-route instead.
	// Default: 10s
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`

	// IdleTimeout is the maximum amount of time to wait for the next
	// request when keep-alives are enabled.
	// Default: 120s
	IdleTimeout time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
}

// IsEnabled returns whether the API server is enabled.
// Defaults to true if not explicitly set.
func (c *APIConfig) IsEnabled() bool {
	if c.Enabled == nil {
		return true // Default: enabled
	}
	return *c.Enabled
}

// applyDefaults fills in zero values with sensible defaults.
//
// The http.Server read and write timeouts stay off: WriteTimeout would
// sever SSE streams mid-flight and ReadTimeout would abort slow
// uploads. Regular endpoints are bounded by the per-route timeout
// middleware instead.
func (c *APIConfig) applyDefaults() {
	if c.Port <= 0 {
		c.Port = 8080
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 30 * time.Second
	}
	if c.ReadHeaderTimeout <= 0 {
		c.ReadHeaderTimeout = 10 * time.Second
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 120 * time.Second
	}
}
