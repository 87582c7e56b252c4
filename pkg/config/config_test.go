package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/quernlabs/quern/pkg/blob"
	"github.com/quernlabs/quern/pkg/queue"
	"github.com/quernlabs/quern/pkg/store"
)

func TestLoad_DefaultConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	// Minimal config; everything else comes from defaults
	configContent := `
logging:
  level: "INFO"

database:
  type: sqlite

server:
  port: 8080
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	// Verify defaults were applied
	if cfg.Logging.Format != "text" {
		t.Errorf("Expected default format 'text', got %q", cfg.Logging.Format)
	}
	if cfg.Logging.Output != "stdout" {
		t.Errorf("Expected default output 'stdout', got %q", cfg.Logging.Output)
	}
	if cfg.ShutdownTimeout != 30*time.Second {
		t.Errorf("Expected default shutdown_timeout 30s, got %v", cfg.ShutdownTimeout)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Expected server port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Server.RequestTimeout != 30*time.Second {
		t.Errorf("Expected default request timeout 30s, got %v", cfg.Server.RequestTimeout)
	}
	if cfg.Queue.Backend != queue.BackendBadger {
		t.Errorf("Expected default queue backend badger, got %q", cfg.Queue.Backend)
	}
	if cfg.Database.VectorDimensions != store.DefaultVectorDimensions {
		t.Errorf("Expected default vector dimensions %d, got %d",
			store.DefaultVectorDimensions, cfg.Database.VectorDimensions)
	}
}

func TestLoad_NoConfigFile(t *testing.T) {
	// Loading with no config file returns a valid default config.
	// This allows users to run the server without a config file for quick testing.
	tmpDir := t.TempDir()
	nonExistentPath := filepath.Join(tmpDir, "nonexistent.yaml")

	cfg, err := Load(nonExistentPath)
	if err != nil {
		t.Fatalf("Expected no error when loading default config, got: %v", err)
	}

	if cfg == nil {
		t.Fatal("Expected default config to be returned")
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Expected default API port 8080, got %d", cfg.Server.Port)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.yaml")

	configContent := `
logging:
  level: INFO
  invalid yaml here [[[
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("Expected error with invalid YAML, got nil")
	}
}

func TestLoad_TOML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.toml")

	configContent := `
[logging]
level = "WARN"
format = "json"

[database]
type = "sqlite"

[server]
port = 8080
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load TOML config: %v", err)
	}

	if cfg.Logging.Level != "WARN" {
		t.Errorf("Expected level 'WARN', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Expected format 'json', got %q", cfg.Logging.Format)
	}
}

func TestLoad_HumanReadableSizes(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
logging:
  level: INFO

ingest:
  manual_max_bytes: 10Mi
  external_max_bytes: 200Mi

worker:
  callback_max_bytes: 1Gi
  request_timeout: 45s
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if got := cfg.Ingest.ManualMaxBytes.Int64(); got != 10<<20 {
		t.Errorf("Expected manual_max_bytes 10Mi, got %d", got)
	}
	if got := cfg.Ingest.ExternalMaxBytes.Int64(); got != 200<<20 {
		t.Errorf("Expected external_max_bytes 200Mi, got %d", got)
	}
	if got := cfg.Worker.CallbackMaxBytes.Int64(); got != 1<<30 {
		t.Errorf("Expected callback_max_bytes 1Gi, got %d", got)
	}
	if cfg.Worker.RequestTimeout != 45*time.Second {
		t.Errorf("Expected request_timeout 45s, got %v", cfg.Worker.RequestTimeout)
	}
}

func TestLoad_NestedSections(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
logging:
  level: INFO

database:
  type: postgres
  postgres:
    host: db.internal
    port: 5433
    database: quern
    user: quern
    password: secret

storage:
  backend: s3
  s3:
    bucket: quern-blobs
    region: eu-west-1

queue:
  backend: redis
  redis:
    url: redis://cache.internal:6379/2

server:
  api_key: super-secret
  metrics:
    enabled: true
    port: 9199
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Database.Type != store.DatabaseTypePostgres {
		t.Errorf("Expected database type postgres, got %q", cfg.Database.Type)
	}
	if cfg.Database.Postgres.Host != "db.internal" {
		t.Errorf("Expected postgres host db.internal, got %q", cfg.Database.Postgres.Host)
	}
	if cfg.Database.Postgres.Port != 5433 {
		t.Errorf("Expected postgres port 5433, got %d", cfg.Database.Postgres.Port)
	}
	if cfg.Storage.Backend != blob.BackendS3 {
		t.Errorf("Expected storage backend s3, got %q", cfg.Storage.Backend)
	}
	if cfg.Storage.S3.Bucket != "quern-blobs" {
		t.Errorf("Expected s3 bucket quern-blobs, got %q", cfg.Storage.S3.Bucket)
	}
	if cfg.Queue.Backend != queue.BackendRedis {
		t.Errorf("Expected queue backend redis, got %q", cfg.Queue.Backend)
	}
	if cfg.Queue.Redis.URL != "redis://cache.internal:6379/2" {
		t.Errorf("Expected redis url to survive, got %q", cfg.Queue.Redis.URL)
	}
	if cfg.Server.APIKey != "super-secret" {
		t.Errorf("Expected api key to survive, got %q", cfg.Server.APIKey)
	}
	if !cfg.Server.Metrics.Enabled {
		t.Error("Expected metrics to be enabled")
	}
	if cfg.Server.Metrics.Port != 9199 {
		t.Errorf("Expected metrics port 9199, got %d", cfg.Server.Metrics.Port)
	}
}

func TestGetDefaultConfig(t *testing.T) {
	cfg := GetDefaultConfig()

	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected default log level 'INFO', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Expected default log format 'text', got %q", cfg.Logging.Format)
	}
	if cfg.Logging.Output != "stdout" {
		t.Errorf("Expected default log output 'stdout', got %q", cfg.Logging.Output)
	}
	if cfg.ShutdownTimeout != 30*time.Second {
		t.Errorf("Expected default shutdown timeout 30s, got %v", cfg.ShutdownTimeout)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Expected default API port 8080, got %d", cfg.Server.Port)
	}
	if !cfg.Server.IsEnabled() {
		t.Error("Expected API server enabled by default")
	}
	if cfg.Storage.Backend != blob.BackendFilesystem {
		t.Errorf("Expected default storage backend filesystem, got %q", cfg.Storage.Backend)
	}
	if cfg.Storage.Filesystem.Path == "" {
		t.Error("Expected default storage path to be set")
	}
	if cfg.Embedding.Dimensions != cfg.Database.VectorDimensions {
		t.Errorf("Expected embedding dimensions %d to match database, got %d",
			cfg.Database.VectorDimensions, cfg.Embedding.Dimensions)
	}
}

func TestGetDefaultConfigPath(t *testing.T) {
	path := GetDefaultConfigPath()

	if !filepath.IsAbs(path) {
		t.Errorf("Expected absolute path, got %q", path)
	}
	if filepath.Base(path) != "config.yaml" {
		t.Errorf("Expected filename 'config.yaml', got %q", filepath.Base(path))
	}
}

func TestGetConfigDir(t *testing.T) {
	dir := GetConfigDir()

	if filepath.Base(dir) != "quern" {
		t.Errorf("Expected directory name 'quern', got %q", filepath.Base(dir))
	}
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	_ = os.Setenv("QUERN_LOGGING_LEVEL", "ERROR")
	_ = os.Setenv("QUERN_SERVER_PORT", "9090")
	defer func() {
		_ = os.Unsetenv("QUERN_LOGGING_LEVEL")
		_ = os.Unsetenv("QUERN_SERVER_PORT")
	}()

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
logging:
  level: "INFO"

database:
  type: sqlite

server:
  port: 8080
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	// Verify environment variables override config file
	if cfg.Logging.Level != "ERROR" {
		t.Errorf("Expected level 'ERROR' from env var, got %q", cfg.Logging.Level)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Expected port 9090 from env var, got %d", cfg.Server.Port)
	}
}

func TestLoad_SecretsFromEnvironment(t *testing.T) {
	// Secrets are bound explicitly: they work even when the config file
	// never mentions them.
	_ = os.Setenv("QUERN_SERVER_API_KEY", "env-secret")
	defer func() { _ = os.Unsetenv("QUERN_SERVER_API_KEY") }()

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
logging:
  level: "INFO"
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Server.APIKey != "env-secret" {
		t.Errorf("Expected api key from env var, got %q", cfg.Server.APIKey)
	}
}
