// Package commands implements the CLI commands for the quernctl client.
package commands

import (
	"os"

	"github.com/quernlabs/quern/cmd/quernctl/cmdutil"
	ctxcmd "github.com/quernlabs/quern/cmd/quernctl/commands/context"
	documentscmd "github.com/quernlabs/quern/cmd/quernctl/commands/documents"
	profilescmd "github.com/quernlabs/quern/cmd/quernctl/commands/profiles"
	"github.com/quernlabs/quern/internal/cli/credentials"
	"github.com/spf13/cobra"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "quernctl",
	Short: "Quern Control - Remote management client",
	Long: `quernctl is the command-line client for managing Quern servers remotely.

Use this tool to upload and inspect documents, manage processing profiles,
and search the chunk corpus through the Quern REST API.

Use "quernctl [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Sync flags to cmdutil.Flags for subcommands
		cmdutil.Flags.ServerURL, _ = cmd.Flags().GetString("server")
		cmdutil.Flags.APIKey, _ = cmd.Flags().GetString("api-key")
		cmdutil.Flags.Output, _ = cmd.Flags().GetString("output")
		cmdutil.Flags.NoColor, _ = cmd.Flags().GetBool("no-color")
		cmdutil.Flags.Verbose, _ = cmd.Flags().GetBool("verbose")

		// Stored preferences fill in whatever the flags leave at their
		// defaults.
		if store, err := credentials.NewStore(); err == nil {
			prefs := store.GetPreferences()
			if !cmd.Flags().Changed("output") && prefs.DefaultOutput != "" {
				cmdutil.Flags.Output = prefs.DefaultOutput
			}
			if !cmd.Flags().Changed("no-color") && prefs.Color == "never" {
				cmdutil.Flags.NoColor = true
			}
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

// GetRootCmd returns the root command for testing purposes.
func GetRootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	// Global persistent flags
	rootCmd.PersistentFlags().String("server", "", "Server URL (overrides stored context)")
	rootCmd.PersistentFlags().String("api-key", "", "API key (overrides stored context)")
	rootCmd.PersistentFlags().StringP("output", "o", "table", "Output format (table|json|yaml)")
	rootCmd.PersistentFlags().Bool("no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output")

	// Add subcommands
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(ctxcmd.Cmd)
	rootCmd.AddCommand(documentscmd.Cmd)
	rootCmd.AddCommand(profilescmd.Cmd)
	rootCmd.AddCommand(completionCmd)

	// Hide the default completion command (we provide our own)
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// PrintErr prints an error message to stderr.
func PrintErr(format string, args ...any) {
	rootCmd.PrintErrf(format+"\n", args...)
}

// Exit prints an error and exits with code 1.
func Exit(format string, args ...any) {
	PrintErr(format, args...)
	os.Exit(1)
}
