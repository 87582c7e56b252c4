package profiles

import (
	"fmt"

	"github.com/quernlabs/quern/cmd/quernctl/cmdutil"
	"github.com/quernlabs/quern/internal/cli/prompt"
	"github.com/spf13/cobra"
)

var deleteForce bool

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a profile",
	Long: `Delete a profile.

When documents still reference the profile, the server requires an
explicit cascade confirmation: deleting the profile deletes those
documents and their chunks too. The active profile cannot be deleted.

Examples:
  # Delete an unused profile
  quernctl profiles delete 9d2e4b7a-1c3f-4e5d-8a6b-0f1e2d3c4b5a

  # Delete without confirmation prompts
  quernctl profiles delete 9d2e4b7a-1c3f-4e5d-8a6b-0f1e2d3c4b5a --force`,
	Args: cobra.ExactArgs(1),
	RunE: runDelete,
}

func init() {
	deleteCmd.Flags().BoolVarP(&deleteForce, "force", "f", false, "Skip confirmation prompts")
}

func runDelete(cmd *cobra.Command, args []string) error {
	id := args[0]

	client, err := cmdutil.GetClient()
	if err != nil {
		return err
	}

	profile, err := client.GetProfile(id)
	if err != nil {
		return fmt.Errorf("failed to get profile: %w", err)
	}

	confirmed, err := prompt.ConfirmWithForce(fmt.Sprintf("Delete profile '%s'?", profile.Name), deleteForce)
	if err != nil {
		return cmdutil.HandleAbort(err)
	}
	if !confirmed {
		fmt.Println("Aborted.")
		return nil
	}

	check, result, err := client.DeleteProfile(id, false)
	if err != nil {
		return fmt.Errorf("failed to delete profile: %w", err)
	}

	// The server answers with a cascade check instead of deleting when
	// documents still reference the profile.
	if check != nil && check.RequireConfirmation {
		fmt.Printf("Profile '%s' is referenced by %d documents.\n", profile.Name, check.DocumentCount)
		fmt.Println("Deleting it deletes those documents and their chunks too.")

		if !deleteForce {
			confirmed, err := prompt.ConfirmDanger(fmt.Sprintf("Delete profile and %d documents", check.DocumentCount), "delete")
			if err != nil {
				return cmdutil.HandleAbort(err)
			}
			if !confirmed {
				fmt.Println("Aborted.")
				return nil
			}
		}

		if _, result, err = client.DeleteProfile(id, true); err != nil {
			return fmt.Errorf("failed to delete profile: %w", err)
		}
	}

	msg := fmt.Sprintf("Profile '%s' deleted successfully", profile.Name)
	if result != nil && result.DocumentsDeleted > 0 {
		msg = fmt.Sprintf("Profile '%s' and %d documents deleted", profile.Name, result.DocumentsDeleted)
	}
	cmdutil.PrintSuccess(msg)
	return nil
}
