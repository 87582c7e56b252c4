package config

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/quernlabs/quern/internal/logger"
)

// Watch monitors the configuration file and invokes onChange with each
// freshly loaded configuration. It blocks until the context is
// cancelled. Edits that fail to load or validate are logged and
// skipped, so a half-saved file never reaches the callback.
//
// The caller decides what to apply; quernd uses this to adjust the log
// level at runtime without a restart.
func Watch(ctx context.Context, configPath string, onChange func(*Config)) error {
	if configPath == "" {
		configPath = GetDefaultConfigPath()
	}
	configPath = filepath.Clean(configPath)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create config watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	// Watch the directory rather than the file: editors typically
	// replace the file on save, which would drop a watch held on the
	// file itself.
	if err := watcher.Add(filepath.Dir(configPath)); err != nil {
		return fmt.Errorf("failed to watch config directory: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != configPath {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}

			cfg, err := Load(configPath)
			if err != nil {
				logger.Warn("Ignoring config change: reload failed", "error", err)
				continue
			}
			onChange(cfg)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("Config watcher error", "error", err)
		}
	}
}
