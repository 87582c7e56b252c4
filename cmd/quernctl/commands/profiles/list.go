package profiles

import (
	"fmt"
	"os"

	"github.com/quernlabs/quern/cmd/quernctl/cmdutil"
	"github.com/quernlabs/quern/internal/cli/timeutil"
	"github.com/quernlabs/quern/pkg/apiclient"
	"github.com/spf13/cobra"
)

var listArchived bool

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List profiles",
	Long: `List processing profiles.

The active profile is marked with an asterisk (*). Archived profiles
are hidden unless --archived is given.

Examples:
  # List profiles as table
  quernctl profiles list

  # Include archived profiles
  quernctl profiles list --archived

  # List as JSON
  quernctl profiles list -o json`,
	RunE: runList,
}

func init() {
	listCmd.Flags().BoolVar(&listArchived, "archived", false, "Include archived profiles")
}

// ProfileList is a list of profiles for table rendering.
type ProfileList []apiclient.Profile

// Headers implements TableRenderer.
func (pl ProfileList) Headers() []string {
	return []string{"", "ID", "NAME", "DESCRIPTION", "DEFAULT", "ARCHIVED", "AGE"}
}

// Rows implements TableRenderer.
func (pl ProfileList) Rows() [][]string {
	rows := make([][]string, 0, len(pl))
	for _, p := range pl {
		active := ""
		if p.IsActive {
			active = "*"
		}
		rows = append(rows, []string{
			active,
			p.ID,
			p.Name,
			cmdutil.Truncate(cmdutil.EmptyOr(p.Description, "-"), 40),
			cmdutil.BoolToYesNo(p.IsDefault),
			cmdutil.BoolToYesNo(p.IsArchived),
			timeutil.FormatAge(p.CreatedAt),
		})
	}
	return rows
}

func runList(cmd *cobra.Command, args []string) error {
	client, err := cmdutil.GetClient()
	if err != nil {
		return err
	}

	profiles, err := client.ListProfiles(listArchived)
	if err != nil {
		return fmt.Errorf("failed to list profiles: %w", err)
	}

	return cmdutil.PrintOutput(os.Stdout, profiles, len(profiles) == 0, "No profiles found.", ProfileList(profiles))
}
