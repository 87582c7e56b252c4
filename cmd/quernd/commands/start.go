package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/quernlabs/quern/internal/logger"
	"github.com/quernlabs/quern/internal/telemetry"
	"github.com/quernlabs/quern/pkg/api"
	"github.com/quernlabs/quern/pkg/blob"
	"github.com/quernlabs/quern/pkg/config"
	"github.com/quernlabs/quern/pkg/embed"
	"github.com/quernlabs/quern/pkg/events"
	"github.com/quernlabs/quern/pkg/ingest"
	"github.com/quernlabs/quern/pkg/ingest/registry"
	"github.com/quernlabs/quern/pkg/metrics"
	"github.com/quernlabs/quern/pkg/queue"
	"github.com/quernlabs/quern/pkg/search"
	"github.com/quernlabs/quern/pkg/store"
	"github.com/spf13/cobra"
)

var (
	foreground bool
	pidFile    string
	logFile    string
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the Quern server",
	Long: `Start the Quern server with the specified configuration.

By default, the server runs in the background (daemon mode). Use --foreground
to run in the foreground for debugging or when managed by a process supervisor.

Use --config to specify a custom configuration file, or it will use the
default location at $XDG_CONFIG_HOME/quern/config.yaml.

Examples:
  # Start in background (default)
  quernd start

  # Start in foreground
  quernd start --foreground

  # Start with custom config file
  quernd start --config /etc/quern/config.yaml

  # Start with environment variable overrides
  QUERN_LOGGING_LEVEL=DEBUG quernd start --foreground`,
	RunE: runStart,
}

func init() {
	startCmd.Flags().BoolVarP(&foreground, "foreground", "f", false, "Run in foreground (default: background/daemon mode)")
	startCmd.Flags().StringVar(&pidFile, "pid-file", "", "Path to PID file (default: $XDG_STATE_HOME/quern/quernd.pid)")
	startCmd.Flags().StringVar(&logFile, "log-file", "", "Path to log file for daemon mode (default: $XDG_STATE_HOME/quern/quernd.log)")
}

func runStart(cmd *cobra.Command, args []string) error {
	// Handle daemon mode (background)
	if !foreground {
		return startDaemon()
	}

	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	// Initialize the structured logger
	if err := InitLogger(cfg); err != nil {
		return err
	}

	// Create cancellable context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize OpenTelemetry (if enabled)
	telemetryCfg := telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "quernd",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	}
	telemetryShutdown, err := telemetry.Init(ctx, telemetryCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := telemetryShutdown(ctx); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}()

	// Initialize Pyroscope profiling (if enabled)
	profilingCfg := telemetry.ProfilingConfig{
		Enabled:        cfg.Telemetry.Profiling.Enabled,
		ServiceName:    "quernd",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Profiling.Endpoint,
		ProfileTypes:   cfg.Telemetry.Profiling.ProfileTypes,
	}
	profilingShutdown, err := telemetry.InitProfiling(profilingCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize profiling: %w", err)
	}
	defer func() {
		if err := profilingShutdown(); err != nil {
			logger.Error("profiling shutdown error", "error", err)
		}
	}()

	fmt.Println("Quern - Document ingestion and retrieval")
	logger.Info("Log level", "level", cfg.Logging.Level, "format", cfg.Logging.Format)
	logger.Info("Configuration loaded", "source", getConfigSource(GetConfigFile()))
	if telemetry.IsEnabled() {
		logger.Info("Telemetry enabled", "endpoint", cfg.Telemetry.Endpoint, "sample_rate", cfg.Telemetry.SampleRate)
	} else {
		logger.Info("Telemetry disabled")
	}
	if telemetry.IsProfilingEnabled() {
		logger.Info("Profiling enabled", "endpoint", cfg.Telemetry.Profiling.Endpoint, "profile_types", cfg.Telemetry.Profiling.ProfileTypes)
	} else {
		logger.Info("Profiling disabled")
	}

	// Initialize metrics (if enabled)
	var m *metrics.Metrics
	if cfg.Server.Metrics.Enabled {
		m = metrics.New()
	}

	// Open the document store (runs migrations)
	st, err := store.New(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer func() { _ = st.Close() }()
	logger.Info("Store opened", "type", cfg.Database.Type)

	// Ensure the built-in processing profile exists
	profile, err := st.EnsureDefaultProfile(ctx)
	if err != nil {
		return fmt.Errorf("failed to ensure default profile: %w", err)
	}
	logger.Info("Processing profile ready", "id", profile.ID, "name", profile.Name)

	// Open the blob store for raw uploads
	blobs, err := blob.New(ctx, &cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to open blob store: %w", err)
	}
	defer func() { _ = blobs.Close() }()
	logger.Info("Blob store opened", "backend", cfg.Storage.Backend)

	// Open the job queue
	q, err := queue.New(ctx, &cfg.Queue)
	if err != nil {
		return fmt.Errorf("failed to open job queue: %w", err)
	}
	defer func() { _ = q.Close() }()
	logger.Info("Job queue opened", "backend", cfg.Queue.Backend)

	// Event bus for SSE subscribers
	bus := events.NewBus(cfg.Events)
	defer bus.Close()

	// Embedding service client
	embedder, err := embed.NewClient(cfg.Embedding)
	if err != nil {
		return fmt.Errorf("embedding service: %w (set embedding.endpoint in the config)", err)
	}
	logger.Info("Embedding service configured",
		"endpoint", cfg.Embedding.Endpoint,
		"model", cfg.Embedding.Model,
		"dimensions", embedder.Dimensions())

	// Pipeline components
	reg := registry.New(st, blobs, bus)
	coordinator, err := ingest.NewCoordinator(cfg.Ingest, st, blobs, q, bus, embedder, reg, m)
	if err != nil {
		return fmt.Errorf("failed to build ingestion coordinator: %w", err)
	}
	gateway, err := search.NewGateway(cfg.Search, st, embedder, m)
	if err != nil {
		return fmt.Errorf("failed to build search gateway: %w", err)
	}

	// Metrics server on its own port
	var metricsServer *http.Server
	if m != nil {
		m.RegisterQueueDepth(q.Depth)
		m.RegisterDocumentCounts(st.CountDocumentsByStatus)
		m.RegisterBus(bus)
		metricsServer = metrics.NewServer(cfg.Server.Metrics.Port, m)
		go func() {
			logger.Info("Metrics server listening", "port", cfg.Server.Metrics.Port)
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("Metrics server error", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			_ = metricsServer.Shutdown(shutdownCtx)
		}()
	} else {
		logger.Info("Metrics collection disabled")
	}

	// Worker dispatcher. Without an endpoint, heavy documents stay
	// queued until a node with a configured worker drains them.
	var dispatcher *queue.Dispatcher
	if cfg.Worker.Endpoint != "" {
		dispatcher, err = queue.NewDispatcher(cfg.Worker.DispatcherConfig, q, coordinator, m)
		if err != nil {
			return fmt.Errorf("failed to build dispatcher: %w", err)
		}
		if err := dispatcher.Start(ctx); err != nil {
			return fmt.Errorf("failed to start dispatcher: %w", err)
		}
	} else {
		logger.Warn("Worker endpoint not configured; queued documents will wait until a worker is attached")
	}

	// API server
	serverDone := make(chan error, 1)
	if cfg.Server.IsEnabled() {
		apiServer, err := api.NewServer(cfg.Server.APIConfig, api.Dependencies{
			Store:              st,
			Coordinator:        coordinator,
			Registry:           reg,
			Gateway:            gateway,
			Bus:                bus,
			Queue:              q,
			Version:            Version,
			UploadMaxBytes:     cfg.Ingest.ManualMaxBytes.Int64(),
			SyncUploadMaxBytes: cfg.Ingest.ExternalMaxBytes.Int64(),
			CallbackMaxBytes:   cfg.Worker.CallbackMaxBytes.Int64(),
		})
		if err != nil {
			return fmt.Errorf("failed to create API server: %w", err)
		}
		go func() {
			serverDone <- apiServer.Start(ctx)
		}()
	} else {
		logger.Warn("API server disabled; running dispatch-only")
	}

	// Reload the log level when the config file changes
	go watchLogLevel(ctx, GetConfigFile())

	// Write PID file if specified
	if pidFile != "" {
		if err := os.WriteFile(pidFile, []byte(fmt.Sprintf("%d", os.Getpid())), 0644); err != nil {
			return fmt.Errorf("failed to write PID file: %w", err)
		}
		defer func() { _ = os.Remove(pidFile) }()
	}

	// Wait for interrupt signal or server error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("Server is running. Press Ctrl+C to stop.")

	var runErr error
	select {
	case <-sigChan:
		signal.Stop(sigChan)
		logger.Info("Shutdown signal received, initiating graceful shutdown")
		cancel()

		if cfg.Server.IsEnabled() {
			if err := <-serverDone; err != nil {
				logger.Error("Server shutdown error", "error", err)
				runErr = err
			}
		}

	case err := <-serverDone:
		signal.Stop(sigChan)
		cancel()
		if err != nil {
			logger.Error("Server error", "error", err)
			runErr = err
		}
	}

	// Drain the dispatcher within the shutdown timeout
	if dispatcher != nil {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer stopCancel()
		if err := dispatcher.Stop(stopCtx); err != nil {
			logger.Error("Dispatcher shutdown error", "error", err)
		}
	}

	if runErr != nil {
		return runErr
	}
	logger.Info("Server stopped gracefully")
	return nil
}

// getConfigSource returns a description of where the config was loaded from.
func getConfigSource(configFile string) string {
	if configFile != "" {
		return configFile
	}
	if config.DefaultConfigExists() {
		return config.GetDefaultConfigPath()
	}
	return "defaults"
}

// watchLogLevel applies logging.level changes from the config file
// without a restart. Watch errors are logged and the server keeps the
// level it booted with.
func watchLogLevel(ctx context.Context, configFile string) {
	err := config.Watch(ctx, configFile, func(cfg *config.Config) {
		if cfg.Logging.Level != logger.CurrentLevel() {
			logger.Info("Log level changed", "level", cfg.Logging.Level)
			logger.SetLevel(cfg.Logging.Level)
		}
	})
	if err != nil {
		logger.Debug("Config watch unavailable", "error", err)
	}
}
