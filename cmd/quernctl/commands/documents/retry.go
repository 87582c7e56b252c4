package documents

import (
	"fmt"
	"os"

	"github.com/quernlabs/quern/cmd/quernctl/cmdutil"
	"github.com/spf13/cobra"
)

var retryCmd = &cobra.Command{
	Use:   "retry <id>...",
	Short: "Re-enqueue failed documents",
	Long: `Re-enqueue failed documents for processing.

Only documents in failed status can be retried. The retry counter is
preserved so repeated failures remain visible.

Examples:
  # Retry one document
  quernctl documents retry 4f7a1c2e-9b11-4f8a-a3a1-0c5d2f8b9e10

  # Retry everything that failed
  quernctl documents list --status failed -o json | jq -r '.documents[].id' | xargs quernctl documents retry`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRetry,
}

func runRetry(cmd *cobra.Command, args []string) error {
	client, err := cmdutil.GetClient()
	if err != nil {
		return err
	}

	var failed int
	for _, id := range args {
		doc, err := client.RetryDocument(id)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %s: %v\n", id, err)
			failed++
			continue
		}
		fmt.Printf("Requeued %s (%s, attempt %d)\n", doc.Filename, doc.ID, doc.RetryCount+1)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d retries failed", failed, len(args))
	}
	return nil
}
