package profiles

import (
	"fmt"
	"os"

	"github.com/quernlabs/quern/cmd/quernctl/cmdutil"
	"github.com/quernlabs/quern/pkg/apiclient"
	"github.com/spf13/cobra"
)

var (
	duplicateChunkSize      int
	duplicateChunkOverlap   int
	duplicateMinChunkSize   int
	duplicateMinTextLength  int
	duplicateMaxNoiseRatio  float64
	duplicateOCR            bool
	duplicateEmbeddingModel string
	duplicateActivate       bool
)

var duplicateCmd = &cobra.Command{
	Use:   "duplicate <id>",
	Short: "Clone a profile under a versioned name",
	Long: `Clone a profile under a versioned name ("quality-v2").

Since processing parameters are immutable once documents reference a
profile, duplication with overrides is how a config evolves: clone,
adjust, activate.

Examples:
  # Plain clone
  quernctl profiles duplicate 9d2e4b7a-...

  # Clone with a larger chunk size and activate the clone
  quernctl profiles duplicate 9d2e4b7a-... --chunk-size 1500 --activate`,
	Args: cobra.ExactArgs(1),
	RunE: runDuplicate,
}

func init() {
	duplicateCmd.Flags().IntVar(&duplicateChunkSize, "chunk-size", 0, "Override target chunk size in tokens")
	duplicateCmd.Flags().IntVar(&duplicateChunkOverlap, "chunk-overlap", 0, "Override token overlap between adjacent chunks")
	duplicateCmd.Flags().IntVar(&duplicateMinChunkSize, "min-chunk-size", 0, "Override minimum tokens for a standalone chunk")
	duplicateCmd.Flags().IntVar(&duplicateMinTextLength, "min-text-length", 0, "Override minimum extracted characters")
	duplicateCmd.Flags().Float64Var(&duplicateMaxNoiseRatio, "max-noise-ratio", -1, "Override maximum noise ratio")
	duplicateCmd.Flags().BoolVar(&duplicateOCR, "ocr", false, "Override OCR for scanned pages")
	duplicateCmd.Flags().StringVar(&duplicateEmbeddingModel, "embedding-model", "", "Override embedding model name")
	duplicateCmd.Flags().BoolVar(&duplicateActivate, "activate", false, "Activate the clone after creating it")
}

func runDuplicate(cmd *cobra.Command, args []string) error {
	client, err := cmdutil.GetClient()
	if err != nil {
		return err
	}

	overrides, err := duplicateOverrides(cmd, client, args[0])
	if err != nil {
		return err
	}

	profile, err := client.DuplicateProfile(args[0], overrides)
	if err != nil {
		return fmt.Errorf("failed to duplicate profile: %w", err)
	}

	if duplicateActivate {
		if profile, err = client.ActivateProfile(profile.ID); err != nil {
			return fmt.Errorf("profile duplicated but activation failed: %w", err)
		}
		return cmdutil.PrintResourceWithSuccess(os.Stdout, profile, fmt.Sprintf("Profile '%s' created and activated", profile.Name))
	}

	return cmdutil.PrintResourceWithSuccess(os.Stdout, profile, fmt.Sprintf("Profile '%s' created from clone", profile.Name))
}

// duplicateOverrides builds the replacement config when any override
// flag is set, starting from the source profile's config. A nil return
// clones the config unchanged.
func duplicateOverrides(cmd *cobra.Command, client *apiclient.Client, id string) (*apiclient.ProfileConfig, error) {
	flagged := cmd.Flags().Changed("chunk-size") || cmd.Flags().Changed("chunk-overlap") ||
		cmd.Flags().Changed("min-chunk-size") || cmd.Flags().Changed("min-text-length") ||
		cmd.Flags().Changed("max-noise-ratio") || cmd.Flags().Changed("ocr") ||
		cmd.Flags().Changed("embedding-model")
	if !flagged {
		return nil, nil
	}

	source, err := client.GetProfile(id)
	if err != nil {
		return nil, fmt.Errorf("failed to get source profile: %w", err)
	}
	if source.Config == nil {
		return nil, fmt.Errorf("source profile has no config to override")
	}

	config := *source.Config
	if cmd.Flags().Changed("chunk-size") {
		config.ChunkSize = duplicateChunkSize
	}
	if cmd.Flags().Changed("chunk-overlap") {
		config.ChunkOverlap = duplicateChunkOverlap
	}
	if cmd.Flags().Changed("min-chunk-size") {
		config.MinChunkSize = duplicateMinChunkSize
	}
	if cmd.Flags().Changed("min-text-length") {
		config.MinTextLength = duplicateMinTextLength
	}
	if cmd.Flags().Changed("max-noise-ratio") {
		config.MaxNoiseRatio = duplicateMaxNoiseRatio
	}
	if cmd.Flags().Changed("ocr") {
		config.OCREnabled = duplicateOCR
	}
	if cmd.Flags().Changed("embedding-model") {
		config.EmbeddingModel = duplicateEmbeddingModel
	}
	return &config, nil
}
