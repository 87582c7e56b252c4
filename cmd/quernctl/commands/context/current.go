package context

import (
	"fmt"
	"os"

	"github.com/quernlabs/quern/cmd/quernctl/cmdutil"
	"github.com/quernlabs/quern/internal/cli/credentials"
	"github.com/quernlabs/quern/internal/cli/output"
	"github.com/spf13/cobra"
)

var currentCmd = &cobra.Command{
	Use:   "current",
	Short: "Show current context",
	Long: `Display information about the current active context.

Examples:
  # Show current context
  quernctl context current

  # Show as JSON
  quernctl context current -o json`,
	RunE: runContextCurrent,
}

func runContextCurrent(cmd *cobra.Command, args []string) error {
	store, err := credentials.NewStore()
	if err != nil {
		return fmt.Errorf("failed to initialize context store: %w", err)
	}

	contextName := store.GetCurrentContextName()
	if contextName == "" {
		return fmt.Errorf("no current context set\n\n" +
			"Create one first:\n" +
			"  quernctl context set --server http://localhost:8080")
	}

	ctx, err := store.GetContext(contextName)
	if err != nil {
		return fmt.Errorf("failed to get context: %w", err)
	}

	info := ContextInfo{
		Name:      contextName,
		Current:   true,
		ServerURL: ctx.ServerURL,
		HasAPIKey: ctx.HasAPIKey(),
	}

	format, err := cmdutil.GetOutputFormatParsed()
	if err != nil {
		return err
	}

	switch format {
	case output.FormatJSON:
		return output.PrintJSON(os.Stdout, info)
	case output.FormatYAML:
		return output.PrintYAML(os.Stdout, info)
	default:
		fmt.Printf("Current context: %s\n", contextName)
		fmt.Printf("  Server:   %s\n", ctx.ServerURL)
		fmt.Printf("  API key:  %s\n", cmdutil.BoolToYesNo(ctx.HasAPIKey()))
	}

	return nil
}
