package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// validate is shared across calls; validator caches struct metadata.
var validate = validator.New()

// Validate checks the configuration for correctness.
//
// Structural rules (ranges, enums, required fields) are enforced through
// validator struct tags; cross-field rules that tags cannot express are
// checked by hand. Backend-specific sections (database, storage, queue,
// worker, embedding) run their own Validate when the component is
// constructed, so a config file can be authored before the backing
// services exist.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return err
	}

	if err := validateTelemetry(&cfg.Telemetry); err != nil {
		return err
	}

	return validateDimensions(cfg)
}

// validateTelemetry checks cross-field telemetry rules.
func validateTelemetry(cfg *TelemetryConfig) error {
	if cfg.Enabled && cfg.Endpoint == "" {
		return fmt.Errorf("telemetry is enabled but no endpoint is configured")
	}
	if cfg.Profiling.Enabled && cfg.Profiling.Endpoint == "" {
		return fmt.Errorf("profiling is enabled but no endpoint is configured")
	}
	return nil
}

// validateDimensions rejects configs where the embedding client and the
// vector column disagree on the vector width. Writes would fail at
// runtime on every chunk otherwise.
func validateDimensions(cfg *Config) error {
	if cfg.Embedding.Dimensions != 0 && cfg.Database.VectorDimensions != 0 &&
		cfg.Embedding.Dimensions != cfg.Database.VectorDimensions {
		return fmt.Errorf("embedding dimensions (%d) do not match database vector_dimensions (%d)",
			cfg.Embedding.Dimensions, cfg.Database.VectorDimensions)
	}
	return nil
}
