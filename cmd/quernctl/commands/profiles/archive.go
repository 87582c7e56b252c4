package profiles

import (
	"fmt"

	"github.com/quernlabs/quern/cmd/quernctl/cmdutil"
	"github.com/spf13/cobra"
)

var archiveCmd = &cobra.Command{
	Use:   "archive <id>",
	Short: "Hide a profile from the default listing",
	Long: `Archive a profile.

Archived profiles disappear from the default listing and cannot be
activated, but documents referencing them are untouched. The active
profile cannot be archived.

Examples:
  # Archive a retired profile
  quernctl profiles archive 9d2e4b7a-1c3f-4e5d-8a6b-0f1e2d3c4b5a`,
	Args: cobra.ExactArgs(1),
	RunE: runArchive,
}

func runArchive(cmd *cobra.Command, args []string) error {
	client, err := cmdutil.GetClient()
	if err != nil {
		return err
	}

	if err := client.ArchiveProfile(args[0]); err != nil {
		return fmt.Errorf("failed to archive profile: %w", err)
	}

	cmdutil.PrintSuccess("Profile archived")
	return nil
}
