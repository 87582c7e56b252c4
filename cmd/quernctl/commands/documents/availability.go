package documents

import (
	"fmt"

	"github.com/quernlabs/quern/cmd/quernctl/cmdutil"
	"github.com/spf13/cobra"
)

var (
	availabilityOn  bool
	availabilityOff bool
)

var availabilityCmd = &cobra.Command{
	Use:   "availability <id>... (--on | --off)",
	Short: "Toggle whether documents are served by search",
	Long: `Toggle whether documents are served by search.

Deactivated documents keep their chunks but stop appearing in query
results. Multiple IDs are updated in one bulk operation.

Examples:
  # Hide a document from search
  quernctl documents availability 4f7a1c2e-9b11-4f8a-a3a1-0c5d2f8b9e10 --off

  # Restore several documents
  quernctl documents availability 4f7a1c2e-... 8c2b9d1f-... --on`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAvailability,
}

func init() {
	availabilityCmd.Flags().BoolVar(&availabilityOn, "on", false, "Serve the documents in search results")
	availabilityCmd.Flags().BoolVar(&availabilityOff, "off", false, "Hide the documents from search results")
}

func runAvailability(cmd *cobra.Command, args []string) error {
	if availabilityOn == availabilityOff {
		return fmt.Errorf("specify exactly one of --on or --off")
	}

	client, err := cmdutil.GetClient()
	if err != nil {
		return err
	}

	state := "hidden from search"
	if availabilityOn {
		state = "served by search"
	}

	if len(args) == 1 {
		doc, err := client.SetDocumentAvailability(args[0], availabilityOn)
		if err != nil {
			return fmt.Errorf("failed to update availability: %w", err)
		}
		cmdutil.PrintSuccess(fmt.Sprintf("%s is now %s", doc.Filename, state))
		return nil
	}

	result, err := client.BulkSetAvailability(args, availabilityOn)
	if err != nil {
		return fmt.Errorf("failed to update availability: %w", err)
	}
	for _, f := range result.Failed {
		fmt.Printf("Skipped %s: %s\n", f.ID, f.Reason)
	}
	cmdutil.PrintSuccess(fmt.Sprintf("%d documents now %s", result.Updated, state))
	return nil
}
