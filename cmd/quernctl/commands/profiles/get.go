package profiles

import (
	"fmt"
	"os"
	"strconv"

	"github.com/quernlabs/quern/cmd/quernctl/cmdutil"
	"github.com/quernlabs/quern/pkg/apiclient"
	"github.com/spf13/cobra"
)

var getCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Get profile details",
	Long: `Get detailed information about a profile, including its
processing parameters.

Examples:
  # Get profile details as table
  quernctl profiles get 9d2e4b7a-1c3f-4e5d-8a6b-0f1e2d3c4b5a

  # Get as JSON
  quernctl profiles get 9d2e4b7a-1c3f-4e5d-8a6b-0f1e2d3c4b5a -o json`,
	Args: cobra.ExactArgs(1),
	RunE: runGet,
}

// SingleProfileList wraps a single profile for table rendering.
type SingleProfileList []apiclient.Profile

// Headers implements TableRenderer.
func (pl SingleProfileList) Headers() []string {
	return []string{"FIELD", "VALUE"}
}

// Rows implements TableRenderer.
func (pl SingleProfileList) Rows() [][]string {
	if len(pl) == 0 {
		return nil
	}
	p := pl[0]

	rows := [][]string{
		{"ID", p.ID},
		{"Name", p.Name},
		{"Description", cmdutil.EmptyOr(p.Description, "-")},
		{"Active", cmdutil.BoolToYesNo(p.IsActive)},
		{"Default", cmdutil.BoolToYesNo(p.IsDefault)},
		{"Archived", cmdutil.BoolToYesNo(p.IsArchived)},
		{"Created", p.CreatedAt.Format("2006-01-02 15:04:05")},
	}
	if c := p.Config; c != nil {
		rows = append(rows,
			[]string{"Chunk size", strconv.Itoa(c.ChunkSize)},
			[]string{"Chunk overlap", strconv.Itoa(c.ChunkOverlap)},
			[]string{"Min chunk size", strconv.Itoa(c.MinChunkSize)},
			[]string{"Min text length", strconv.Itoa(c.MinTextLength)},
			[]string{"Max noise ratio", fmt.Sprintf("%.2f", c.MaxNoiseRatio)},
			[]string{"OCR enabled", cmdutil.BoolToYesNo(c.OCREnabled)},
			[]string{"Embedding model", c.EmbeddingModel},
		)
	}
	return rows
}

func runGet(cmd *cobra.Command, args []string) error {
	client, err := cmdutil.GetClient()
	if err != nil {
		return err
	}

	profile, err := client.GetProfile(args[0])
	if err != nil {
		return fmt.Errorf("failed to get profile: %w", err)
	}

	return cmdutil.PrintResource(os.Stdout, profile, SingleProfileList{*profile})
}
