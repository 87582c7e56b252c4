package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// sampleHeader is prepended to generated configuration files.
const sampleHeader = `# Quern Configuration File
#
# This file configures the quernd document ingestion server: the REST
# API, database, blob storage, job queue, worker dispatch, embeddings,
# and search.
#
# All values below are defaults. Environment variables with the QUERN_
# prefix override file values, e.g. QUERN_LOGGING_LEVEL=DEBUG or
# QUERN_SERVER_PORT=9000.
#
# Durations accept Go syntax ("30s", "5m"); sizes accept units
# ("50Mi", "1Gi").

`

// InitConfig writes a commented sample configuration to the default
// location and returns the path it wrote. It refuses to overwrite an
// existing file unless force is set.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	if err := InitConfigToPath(path, force); err != nil {
		return "", err
	}
	return path, nil
}

// InitConfigToPath writes a commented sample configuration to the given
// path, creating parent directories as needed. It refuses to overwrite
// an existing file unless force is set.
func InitConfigToPath(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("configuration file already exists at %s (use --force to overwrite)", path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := renderSampleConfig()
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// renderSampleConfig produces the sample file body: the header comment
// followed by the default configuration in YAML.
func renderSampleConfig() ([]byte, error) {
	body, err := yaml.Marshal(GetDefaultConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal default config: %w", err)
	}
	return append([]byte(sampleHeader), body...), nil
}
