package config

import (
	"fmt"

	"github.com/quernlabs/quern/pkg/config"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Validate the Quern configuration file.

Checks for syntax errors, missing required fields, and invalid values.

Examples:
  # Validate default config
  quernd config validate

  # Validate specific config file
  quernd config validate --config /etc/quern/config.yaml`,
	RunE: runConfigValidate,
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	// Get config path from parent's persistent flag
	configPath, _ := cmd.Flags().GetString("config")

	// Load and validate configuration
	cfg, err := config.MustLoad(configPath)
	if err != nil {
		return err
	}

	// Determine path for display
	displayPath := configPath
	if displayPath == "" {
		displayPath = config.GetDefaultConfigPath()
	}

	// Additional validation checks
	var warnings []string

	if cfg.Embedding.Endpoint == "" {
		warnings = append(warnings, "Embedding endpoint not configured - the server will not start without one")
	}
	if cfg.Worker.Endpoint == "" {
		warnings = append(warnings, "Worker endpoint not configured - heavy formats (PDF, DOCX) will queue without being processed")
	}
	if cfg.Server.APIKey == "" {
		warnings = append(warnings, "No API key configured - the API will accept unauthenticated requests")
	}

	// Print results
	fmt.Printf("Configuration file: %s\n", displayPath)
	fmt.Println("Validation: OK")

	if len(warnings) > 0 {
		fmt.Println("\nWarnings:")
		for _, w := range warnings {
			fmt.Printf("  - %s\n", w)
		}
	}

	fmt.Printf("\nConfiguration summary:\n")
	fmt.Printf("  Database type:   %s\n", cfg.Database.Type)
	fmt.Printf("  Queue backend:   %s\n", cfg.Queue.Backend)
	fmt.Printf("  Blob backend:    %s\n", cfg.Storage.Backend)
	fmt.Printf("  API port:        %d\n", cfg.Server.Port)
	fmt.Printf("  Log level:       %s\n", cfg.Logging.Level)

	return nil
}
