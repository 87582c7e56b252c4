package documents

import (
	"fmt"

	"github.com/quernlabs/quern/cmd/quernctl/cmdutil"
	"github.com/quernlabs/quern/internal/cli/prompt"
	"github.com/spf13/cobra"
)

var deleteForce bool

var deleteCmd = &cobra.Command{
	Use:   "delete <id>...",
	Short: "Delete documents",
	Long: `Delete documents, their stored files, and their chunks.

This action is irreversible. You will be prompted for confirmation
unless --force is specified. Multiple IDs are deleted in one bulk
operation.

Examples:
  # Delete one document with confirmation
  quernctl documents delete 4f7a1c2e-9b11-4f8a-a3a1-0c5d2f8b9e10

  # Delete several without confirmation
  quernctl documents delete 4f7a1c2e-... 8c2b9d1f-... --force`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDelete,
}

func init() {
	deleteCmd.Flags().BoolVarP(&deleteForce, "force", "f", false, "Skip confirmation prompt")
}

func runDelete(cmd *cobra.Command, args []string) error {
	client, err := cmdutil.GetClient()
	if err != nil {
		return err
	}

	if len(args) == 1 {
		return cmdutil.RunDeleteWithConfirmation("Document", args[0], deleteForce, func() error {
			if err := client.DeleteDocument(args[0]); err != nil {
				return fmt.Errorf("failed to delete document: %w", err)
			}
			return nil
		})
	}

	confirmed, err := prompt.ConfirmWithForce(fmt.Sprintf("Delete %d documents and their chunks?", len(args)), deleteForce)
	if err != nil {
		return cmdutil.HandleAbort(err)
	}
	if !confirmed {
		fmt.Println("Aborted.")
		return nil
	}

	result, err := client.BulkDeleteDocuments(args)
	if err != nil {
		return fmt.Errorf("failed to delete documents: %w", err)
	}
	for _, f := range result.Failed {
		fmt.Printf("Skipped %s: %s\n", f.ID, f.Reason)
	}
	cmdutil.PrintSuccess(fmt.Sprintf("%d documents deleted", result.Updated))
	return nil
}
