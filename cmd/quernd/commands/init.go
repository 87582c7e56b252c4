package commands

import (
	"fmt"

	"github.com/quernlabs/quern/pkg/config"
	"github.com/spf13/cobra"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a sample configuration file",
	Long: `Initialize a sample Quern configuration file.

By default, the configuration file is created at $XDG_CONFIG_HOME/quern/config.yaml.
Use --config to specify a custom path.

Examples:
  # Initialize with default location
  quernd init

  # Initialize with custom path
  quernd init --config /etc/quern/config.yaml

  # Force overwrite existing config
  quernd init --force`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Force overwrite existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	configFile := GetConfigFile()

	var configPath string
	var err error

	if configFile != "" {
		// Use custom path
		err = config.InitConfigToPath(configFile, initForce)
		configPath = configFile
	} else {
		// Use default path
		configPath, err = config.InitConfig(initForce)
	}

	if err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	fmt.Printf("Configuration file created at: %s\n", configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Set embedding.endpoint to your embedding service (e.g. an Ollama URL)")
	fmt.Println("  2. Set worker.endpoint if heavy formats (PDF, DOCX) should be processed")
	fmt.Println("  3. Start the server with: quernd start")
	fmt.Printf("  4. Or specify custom config: quernd start --config %s\n", configPath)
	fmt.Println("\nSecurity note:")
	fmt.Println("  The API starts without authentication until server.api_key is set.")
	fmt.Println("  For production, generate a key and keep it out of the config file:")
	fmt.Println("    # Generates a 64-character hex string (32 bytes of entropy)")
	fmt.Println("    export QUERN_SERVER_API_KEY=$(openssl rand -hex 32)")

	return nil
}
