package profiles

import (
	"fmt"
	"os"

	"github.com/quernlabs/quern/cmd/quernctl/cmdutil"
	"github.com/quernlabs/quern/internal/cli/prompt"
	"github.com/quernlabs/quern/pkg/apiclient"
	"github.com/spf13/cobra"
)

var (
	createName           string
	createDescription    string
	createChunkSize      int
	createChunkOverlap   int
	createMinChunkSize   int
	createMinTextLength  int
	createMaxNoiseRatio  float64
	createOCR            bool
	createEmbeddingModel string
	createActivate       bool
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new profile",
	Long: `Create a new processing profile.

Config flags left unset inherit from the active profile. Without
--name the command runs interactively. The new profile is not applied
to uploads until activated.

Examples:
  # Create interactively
  quernctl profiles create

  # Create with the active profile's config
  quernctl profiles create --name "contracts"

  # Create with larger chunks and activate immediately
  quernctl profiles create --name "books" --chunk-size 1500 --chunk-overlap 300 --activate`,
	RunE: runCreate,
}

func init() {
	createCmd.Flags().StringVar(&createName, "name", "", "Profile name (required, prompts when omitted)")
	createCmd.Flags().StringVar(&createDescription, "description", "", "Profile description")
	createCmd.Flags().IntVar(&createChunkSize, "chunk-size", 0, "Target chunk size in tokens")
	createCmd.Flags().IntVar(&createChunkOverlap, "chunk-overlap", 0, "Token overlap between adjacent chunks")
	createCmd.Flags().IntVar(&createMinChunkSize, "min-chunk-size", 0, "Minimum tokens for a standalone chunk")
	createCmd.Flags().IntVar(&createMinTextLength, "min-text-length", 0, "Minimum extracted characters before a document fails")
	createCmd.Flags().Float64Var(&createMaxNoiseRatio, "max-noise-ratio", -1, "Maximum noise ratio before a chunk is flagged")
	createCmd.Flags().BoolVar(&createOCR, "ocr", false, "Enable OCR for scanned pages")
	createCmd.Flags().StringVar(&createEmbeddingModel, "embedding-model", "", "Embedding model name")
	createCmd.Flags().BoolVar(&createActivate, "activate", false, "Activate the profile after creating it")
}

func runCreate(cmd *cobra.Command, args []string) error {
	client, err := cmdutil.GetClient()
	if err != nil {
		return err
	}

	name := createName
	description := createDescription
	interactive := name == ""

	if interactive {
		name, err = prompt.InputRequired("Profile name")
		if err != nil {
			return cmdutil.HandleAbort(err)
		}
		description, err = prompt.InputOptional("Description")
		if err != nil {
			return cmdutil.HandleAbort(err)
		}
	}

	config, err := buildConfig(cmd, client, interactive)
	if err != nil {
		return cmdutil.HandleAbort(err)
	}

	req := &apiclient.CreateProfileRequest{
		Name:        name,
		Description: description,
		Config:      config,
	}

	profile, err := client.CreateProfile(req)
	if err != nil {
		return fmt.Errorf("failed to create profile: %w", err)
	}

	if createActivate {
		if profile, err = client.ActivateProfile(profile.ID); err != nil {
			return fmt.Errorf("profile created but activation failed: %w", err)
		}
		return cmdutil.PrintResourceWithSuccess(os.Stdout, profile, fmt.Sprintf("Profile '%s' created and activated", profile.Name))
	}

	return cmdutil.PrintResourceWithSuccess(os.Stdout, profile, fmt.Sprintf("Profile '%s' created successfully", profile.Name))
}

// buildConfig assembles the config override from flags, or from prompts
// in interactive mode. A nil return keeps the server defaults.
func buildConfig(cmd *cobra.Command, client *apiclient.Client, interactive bool) (*apiclient.ProfileConfig, error) {
	flagged := cmd.Flags().Changed("chunk-size") || cmd.Flags().Changed("chunk-overlap") ||
		cmd.Flags().Changed("min-chunk-size") || cmd.Flags().Changed("min-text-length") ||
		cmd.Flags().Changed("max-noise-ratio") || cmd.Flags().Changed("ocr") ||
		cmd.Flags().Changed("embedding-model")

	if !flagged {
		if !interactive {
			return nil, nil
		}
		customize, err := prompt.Confirm("Customize processing parameters", false)
		if err != nil {
			return nil, err
		}
		if !customize {
			return nil, nil
		}
		return promptConfig()
	}

	// Unset flags inherit from the active profile so a single override
	// does not zero out the rest of the config.
	base, err := activeConfig(client)
	if err != nil {
		return nil, err
	}

	config := *base
	if cmd.Flags().Changed("chunk-size") {
		config.ChunkSize = createChunkSize
	}
	if cmd.Flags().Changed("chunk-overlap") {
		config.ChunkOverlap = createChunkOverlap
	}
	if cmd.Flags().Changed("min-chunk-size") {
		config.MinChunkSize = createMinChunkSize
	}
	if cmd.Flags().Changed("min-text-length") {
		config.MinTextLength = createMinTextLength
	}
	if cmd.Flags().Changed("max-noise-ratio") {
		config.MaxNoiseRatio = createMaxNoiseRatio
	}
	if cmd.Flags().Changed("ocr") {
		config.OCREnabled = createOCR
	}
	if cmd.Flags().Changed("embedding-model") {
		config.EmbeddingModel = createEmbeddingModel
	}
	return &config, nil
}

// activeConfig returns the config of the currently active profile.
func activeConfig(client *apiclient.Client) (*apiclient.ProfileConfig, error) {
	profiles, err := client.ListProfiles(false)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch active profile: %w", err)
	}
	for _, p := range profiles {
		if p.IsActive && p.Config != nil {
			return p.Config, nil
		}
	}
	return nil, fmt.Errorf("no active profile with a config found")
}

// promptConfig asks for each processing parameter interactively.
func promptConfig() (*apiclient.ProfileConfig, error) {
	config := &apiclient.ProfileConfig{MaxNoiseRatio: 0.4}
	var err error

	if config.ChunkSize, err = prompt.InputInt("Chunk size (tokens)", 1000); err != nil {
		return nil, err
	}
	if config.ChunkOverlap, err = prompt.InputInt("Chunk overlap (tokens)", 200); err != nil {
		return nil, err
	}
	if config.MinChunkSize, err = prompt.InputInt("Minimum chunk size (tokens)", 100); err != nil {
		return nil, err
	}
	if config.MinTextLength, err = prompt.InputInt("Minimum text length (characters)", 50); err != nil {
		return nil, err
	}
	if config.OCREnabled, err = prompt.Confirm("Enable OCR for scanned pages", true); err != nil {
		return nil, err
	}
	if config.EmbeddingModel, err = prompt.Input("Embedding model", "nomic-embed-text"); err != nil {
		return nil, err
	}

	return config, nil
}
