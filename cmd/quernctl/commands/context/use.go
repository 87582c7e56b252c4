package context

import (
	"errors"
	"fmt"
	"sort"

	"github.com/quernlabs/quern/cmd/quernctl/cmdutil"
	"github.com/quernlabs/quern/internal/cli/credentials"
	"github.com/quernlabs/quern/internal/cli/prompt"
	"github.com/spf13/cobra"
)

var useCmd = &cobra.Command{
	Use:   "use [name]",
	Short: "Switch to a different context",
	Long: `Switch to a different server context.

This changes the active context used for subsequent commands. Without
a name the command lists the stored contexts to pick from.

Examples:
  # Switch to context named "production"
  quernctl context use production

  # Pick interactively
  quernctl context use`,
	Args: cobra.MaximumNArgs(1),
	RunE: runContextUse,
}

func runContextUse(cmd *cobra.Command, args []string) error {
	store, err := credentials.NewStore()
	if err != nil {
		return fmt.Errorf("failed to initialize context store: %w", err)
	}

	var contextName string
	if len(args) == 1 {
		contextName = args[0]
	} else {
		names := store.ListContexts()
		if len(names) == 0 {
			return fmt.Errorf("no contexts configured\n\n" +
				"Create one first:\n" +
				"  quernctl context set --server http://localhost:8080")
		}
		sort.Strings(names)
		if contextName, err = prompt.SelectString("Context to use", names); err != nil {
			return cmdutil.HandleAbort(err)
		}
	}

	if err := store.UseContext(contextName); err != nil {
		if errors.Is(err, credentials.ErrContextNotFound) {
			return fmt.Errorf("context '%s' not found\n\n"+
				"List available contexts:\n"+
				"  quernctl context list", contextName)
		}
		return fmt.Errorf("failed to switch context: %w", err)
	}

	fmt.Printf("Switched to context: %s\n", contextName)
	return nil
}
