package profiles

import (
	"fmt"
	"os"

	"github.com/quernlabs/quern/cmd/quernctl/cmdutil"
	"github.com/quernlabs/quern/pkg/apiclient"
	"github.com/spf13/cobra"
)

var (
	editName        string
	editDescription string
)

var editCmd = &cobra.Command{
	Use:   "edit <id>",
	Short: "Rename a profile or change its description",
	Long: `Rename a profile or change its description.

Processing parameters are immutable once documents reference a
profile; to change them, duplicate the profile with overrides and
activate the clone.

Examples:
  # Rename a profile
  quernctl profiles edit 9d2e4b7a-... --name "contracts-v2"

  # Update the description
  quernctl profiles edit 9d2e4b7a-... --description "Tuned for scanned contracts"`,
	Args: cobra.ExactArgs(1),
	RunE: runEdit,
}

func init() {
	editCmd.Flags().StringVar(&editName, "name", "", "New profile name")
	editCmd.Flags().StringVar(&editDescription, "description", "", "New profile description")
}

func runEdit(cmd *cobra.Command, args []string) error {
	if editName == "" && !cmd.Flags().Changed("description") {
		return fmt.Errorf("nothing to change: specify --name or --description")
	}

	client, err := cmdutil.GetClient()
	if err != nil {
		return err
	}

	// The update endpoint replaces both fields, so fill gaps from the
	// current profile.
	current, err := client.GetProfile(args[0])
	if err != nil {
		return fmt.Errorf("failed to get profile: %w", err)
	}

	req := &apiclient.UpdateProfileRequest{
		Name:        current.Name,
		Description: current.Description,
	}
	if editName != "" {
		req.Name = editName
	}
	if cmd.Flags().Changed("description") {
		req.Description = editDescription
	}

	profile, err := client.UpdateProfile(args[0], req)
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}

	return cmdutil.PrintResourceWithSuccess(os.Stdout, profile, fmt.Sprintf("Profile '%s' updated successfully", profile.Name))
}
