// Package profiles implements processing profile subcommands for quernctl.
package profiles

import (
	"github.com/spf13/cobra"
)

// Cmd is the profiles subcommand.
var Cmd = &cobra.Command{
	Use:     "profiles",
	Aliases: []string{"profile"},
	Short:   "Manage processing profiles",
	Long: `Manage processing profiles.

A profile bundles the chunking, quality, and embedding parameters
applied to documents at upload time. Exactly one profile is active;
new uploads snapshot its config, so changing profiles never alters
already-processed documents.

Subcommands:
  list       List profiles
  get        Get profile details
  create     Create a new profile
  edit       Rename a profile or change its description
  activate   Make a profile the active one
  archive    Hide a profile from the default listing
  unarchive  Restore an archived profile
  duplicate  Clone a profile under a versioned name
  delete     Delete a profile`,
}

func init() {
	Cmd.AddCommand(listCmd)
	Cmd.AddCommand(getCmd)
	Cmd.AddCommand(createCmd)
	Cmd.AddCommand(editCmd)
	Cmd.AddCommand(activateCmd)
	Cmd.AddCommand(archiveCmd)
	Cmd.AddCommand(unarchiveCmd)
	Cmd.AddCommand(duplicateCmd)
	Cmd.AddCommand(deleteCmd)
}
