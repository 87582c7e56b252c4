package profiles

import (
	"fmt"

	"github.com/quernlabs/quern/cmd/quernctl/cmdutil"
	"github.com/spf13/cobra"
)

var unarchiveCmd = &cobra.Command{
	Use:   "unarchive <id>",
	Short: "Restore an archived profile",
	Long: `Restore an archived profile to the default listing.

Examples:
  # Restore a profile
  quernctl profiles unarchive 9d2e4b7a-1c3f-4e5d-8a6b-0f1e2d3c4b5a`,
	Args: cobra.ExactArgs(1),
	RunE: runUnarchive,
}

func runUnarchive(cmd *cobra.Command, args []string) error {
	client, err := cmdutil.GetClient()
	if err != nil {
		return err
	}

	if err := client.UnarchiveProfile(args[0]); err != nil {
		return fmt.Errorf("failed to unarchive profile: %w", err)
	}

	cmdutil.PrintSuccess("Profile restored")
	return nil
}
