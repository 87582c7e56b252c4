package config

import (
	"strings"
	"time"

	"github.com/quernlabs/quern/internal/bytesize"
	"github.com/quernlabs/quern/pkg/blob"
	"github.com/quernlabs/quern/pkg/queue"
	"github.com/quernlabs/quern/pkg/store"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// This function is called after loading configuration from file and environment
// variables to fill in any missing values with sensible defaults.
//
// Default Strategy:
//   - Zero values (0, "", false, nil) are replaced with defaults
//   - Explicit values are preserved
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyShutdownTimeoutDefaults(cfg)
	applyServerDefaults(&cfg.Server)
	cfg.Database.ApplyDefaults()
	cfg.Storage.ApplyDefaults()
	cfg.Queue.ApplyDefaults()
	applyWorkerDefaults(&cfg.Worker)
	cfg.Ingest.ApplyDefaults()
	applyEmbeddingDefaults(cfg)
	cfg.Search.ApplyDefaults()
	cfg.Events.ApplyDefaults()
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	// Normalize log level to uppercase for consistent internal representation
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

// applyTelemetryDefaults sets OpenTelemetry defaults.
func applyTelemetryDefaults(cfg *TelemetryConfig) {
	// Enabled defaults to false (opt-in for telemetry)

	// Default endpoint is localhost:4317 (standard OTLP gRPC port)
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}

	// Default sample rate is 1.0 (sample all traces)
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}

	applyProfilingDefaults(&cfg.Profiling)
}

// applyProfilingDefaults sets Pyroscope profiling defaults.
func applyProfilingDefaults(cfg *ProfilingConfig) {
	// Default endpoint is localhost:4040 (standard Pyroscope port)
	if cfg.Endpoint == "" {
		cfg.Endpoint = "http://localhost:4040"
	}

	// Default profile types include CPU, memory allocation, and goroutines
	if len(cfg.ProfileTypes) == 0 {
		cfg.ProfileTypes = []string{
			"cpu",
			"alloc_objects",
			"alloc_space",
			"inuse_objects",
			"inuse_space",
			"goroutines",
		}
	}
}

// applyShutdownTimeoutDefaults sets shutdown timeout defaults.
func applyShutdownTimeoutDefaults(cfg *Config) {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
}

// applyServerDefaults sets API and metrics server defaults. The API
// values mirror what the server itself applies when constructed
// directly, so a saved config round-trips without drift.
func applyServerDefaults(cfg *ServerConfig) {
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if cfg.ReadHeaderTimeout == 0 {
		cfg.ReadHeaderTimeout = 10 * time.Second
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 120 * time.Second
	}

	// Metrics port defaults to 9090 if metrics are enabled
	if cfg.Metrics.Enabled && cfg.Metrics.Port == 0 {
		cfg.Metrics.Port = 9090
	}
}

// applyWorkerDefaults sets worker dispatch defaults.
func applyWorkerDefaults(cfg *WorkerConfig) {
	cfg.DispatcherConfig.ApplyDefaults()

	if cfg.CallbackMaxBytes == 0 {
		cfg.CallbackMaxBytes = 100 * bytesize.MiB
	}
}

// applyEmbeddingDefaults sets embedding client defaults. The vector
// width follows the database section unless set explicitly, so the
// two stay consistent from a single key.
func applyEmbeddingDefaults(cfg *Config) {
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = cfg.Database.VectorDimensions
	}
	cfg.Embedding.ApplyDefaults()
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// This is useful for:
//   - Generating sample configuration files
//   - Testing
//   - Documentation
func GetDefaultConfig() *Config {
	enabled := true
	cfg := &Config{
		Server: ServerConfig{},
		Database: store.Config{
			Type: store.DatabaseTypeSQLite, // Default to SQLite for single-node
		},
		Storage: blob.Config{
			Backend: blob.BackendFilesystem,
			Filesystem: blob.FilesystemConfig{
				Path: "/var/lib/quern/blobs",
			},
		},
		Queue: queue.Config{
			Backend: queue.BackendBadger,
		},
	}
	cfg.Server.Enabled = &enabled

	ApplyDefaults(cfg)
	return cfg
}
