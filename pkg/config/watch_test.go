package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfigLevel(t *testing.T, path, level string) {
	t.Helper()
	content := `
logging:
  level: "` + level + `"

database:
  type: sqlite
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
}

func TestWatch_ReloadsOnChange(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	writeConfigLevel(t, configPath, "INFO")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changed := make(chan *Config, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, configPath, func(cfg *Config) {
			changed <- cfg
		})
	}()

	// Give the watcher time to register
	time.Sleep(300 * time.Millisecond)

	writeConfigLevel(t, configPath, "DEBUG")

	select {
	case cfg := <-changed:
		if cfg.Logging.Level != "DEBUG" {
			t.Errorf("Expected reloaded level DEBUG, got %q", cfg.Logging.Level)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for config change")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Watch returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Watch did not return after context cancellation")
	}
}

func TestWatch_SkipsInvalidEdits(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	writeConfigLevel(t, configPath, "INFO")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changed := make(chan *Config, 4)
	go func() {
		_ = Watch(ctx, configPath, func(cfg *Config) {
			changed <- cfg
		})
	}()

	time.Sleep(300 * time.Millisecond)

	// An edit that fails validation never reaches the callback
	writeConfigLevel(t, configPath, "NOTALEVEL")
	time.Sleep(300 * time.Millisecond)
	writeConfigLevel(t, configPath, "ERROR")

	select {
	case cfg := <-changed:
		if cfg.Logging.Level != "ERROR" {
			t.Errorf("Expected first delivered config to carry ERROR, got %q", cfg.Logging.Level)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for config change")
	}
}
