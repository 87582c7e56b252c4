package profiles

import (
	"fmt"
	"os"

	"github.com/quernlabs/quern/cmd/quernctl/cmdutil"
	"github.com/quernlabs/quern/internal/cli/prompt"
	"github.com/quernlabs/quern/pkg/apiclient"
	"github.com/spf13/cobra"
)

var activateCmd = &cobra.Command{
	Use:   "activate [id]",
	Short: "Make a profile the active one",
	Long: `Make a profile the one applied to new uploads.

The previously active profile is deactivated. Documents already
processed keep the config snapshot they were uploaded with. Without an
ID the command lists the inactive profiles to pick from.

Examples:
  # Activate a profile
  quernctl profiles activate 9d2e4b7a-1c3f-4e5d-8a6b-0f1e2d3c4b5a

  # Pick interactively
  quernctl profiles activate`,
	Args: cobra.MaximumNArgs(1),
	RunE: runActivate,
}

func runActivate(cmd *cobra.Command, args []string) error {
	client, err := cmdutil.GetClient()
	if err != nil {
		return err
	}

	var id string
	if len(args) == 1 {
		id = args[0]
	} else {
		if id, err = selectInactiveProfile(client); err != nil {
			return cmdutil.HandleAbort(err)
		}
		if id == "" {
			return nil
		}
	}

	profile, err := client.ActivateProfile(id)
	if err != nil {
		return fmt.Errorf("failed to activate profile: %w", err)
	}

	return cmdutil.PrintResourceWithSuccess(os.Stdout, profile, fmt.Sprintf("Profile '%s' is now active", profile.Name))
}

// selectInactiveProfile prompts over the profiles that could become
// active. An empty return with nil error means there was nothing to
// pick.
func selectInactiveProfile(client *apiclient.Client) (string, error) {
	profiles, err := client.ListProfiles(false)
	if err != nil {
		return "", fmt.Errorf("failed to list profiles: %w", err)
	}

	options := make([]prompt.SelectOption, 0, len(profiles))
	for _, p := range profiles {
		if p.IsActive {
			continue
		}
		options = append(options, prompt.SelectOption{
			Label:       p.Name,
			Value:       p.ID,
			Description: cmdutil.EmptyOr(p.Description, "no description"),
		})
	}
	if len(options) == 0 {
		fmt.Println("No inactive profiles to activate.")
		return "", nil
	}

	return prompt.Select("Profile to activate", options)
}
