package context

import (
	"fmt"

	"github.com/quernlabs/quern/cmd/quernctl/cmdutil"
	"github.com/quernlabs/quern/internal/cli/credentials"
	"github.com/quernlabs/quern/internal/cli/prompt"
	"github.com/spf13/cobra"
)

var setKeyClear bool

var setKeyCmd = &cobra.Command{
	Use:   "set-key [key]",
	Short: "Update the API key of the current context",
	Long: `Update the API key stored in the current context.

Without an argument, the key is prompted for without echoing.

Examples:
  # Prompt for the key securely
  quernctl context set-key

  # Remove the stored key
  quernctl context set-key --clear`,
	Args: cobra.MaximumNArgs(1),
	RunE: runContextSetKey,
}

func init() {
	setKeyCmd.Flags().BoolVar(&setKeyClear, "clear", false, "Remove the stored API key")
}

func runContextSetKey(cmd *cobra.Command, args []string) error {
	store, err := credentials.NewStore()
	if err != nil {
		return fmt.Errorf("failed to initialize context store: %w", err)
	}

	if _, err := store.GetCurrentContext(); err != nil {
		return fmt.Errorf("no current context set\n\n" +
			"Create one first:\n" +
			"  quernctl context set --server http://localhost:8080")
	}

	if setKeyClear {
		if err := store.ClearCurrentContext(); err != nil {
			return fmt.Errorf("failed to clear API key: %w", err)
		}
		fmt.Println("API key removed from current context")
		return nil
	}

	var apiKey string
	if len(args) == 1 {
		apiKey = args[0]
	} else {
		apiKey, err = prompt.Secret("API key")
		if err != nil {
			return cmdutil.HandleAbort(err)
		}
	}

	if err := store.UpdateAPIKey(apiKey); err != nil {
		return fmt.Errorf("failed to save API key: %w", err)
	}

	fmt.Printf("API key updated for context: %s\n", store.GetCurrentContextName())
	return nil
}
