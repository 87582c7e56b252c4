package documents

import (
	"fmt"
	"os"

	"github.com/quernlabs/quern/cmd/quernctl/cmdutil"
	"github.com/quernlabs/quern/internal/cli/output"
	"github.com/quernlabs/quern/pkg/apiclient"
	"github.com/spf13/cobra"
)

var contentChunks bool

var contentCmd = &cobra.Command{
	Use:   "content <id>",
	Short: "Show the processed content of a document",
	Long: `Show the processed markdown content of a completed document.

With --chunks, shows the chunk inventory instead: how the document was
split, with per-chunk headings, token counts, and quality scores.

Examples:
  # Print the markdown content
  quernctl documents content 4f7a1c2e-9b11-4f8a-a3a1-0c5d2f8b9e10

  # Inspect the chunk inventory
  quernctl documents content 4f7a1c2e-9b11-4f8a-a3a1-0c5d2f8b9e10 --chunks

  # Structured content with chunks as JSON
  quernctl documents content 4f7a1c2e-9b11-4f8a-a3a1-0c5d2f8b9e10 -o json`,
	Args: cobra.ExactArgs(1),
	RunE: runContent,
}

func init() {
	contentCmd.Flags().BoolVar(&contentChunks, "chunks", false, "Show the chunk inventory instead of the content")
}

// ChunkTable is a list of chunks for table rendering.
type ChunkTable []apiclient.Chunk

// Headers implements TableRenderer.
func (ct ChunkTable) Headers() []string {
	return []string{"INDEX", "TYPE", "HEADING", "TOKENS", "QUALITY", "FLAGS"}
}

// Rows implements TableRenderer.
func (ct ChunkTable) Rows() [][]string {
	rows := make([][]string, 0, len(ct))
	for _, c := range ct {
		flags := "-"
		if len(c.QualityFlags) > 0 {
			flags = fmt.Sprintf("%v", c.QualityFlags)
		}
		rows = append(rows, []string{
			fmt.Sprintf("%d", c.ChunkIndex),
			c.ChunkType,
			cmdutil.Truncate(cmdutil.StringOr(c.Heading, "-"), 40),
			fmt.Sprintf("%d", c.TokenCount),
			fmt.Sprintf("%.2f", c.QualityScore),
			flags,
		})
	}
	return rows
}

func runContent(cmd *cobra.Command, args []string) error {
	client, err := cmdutil.GetClient()
	if err != nil {
		return err
	}
	id := args[0]

	format, err := cmdutil.GetOutputFormatParsed()
	if err != nil {
		return err
	}

	if contentChunks {
		chunks, err := client.DocumentChunks(id)
		if err != nil {
			return fmt.Errorf("failed to get chunks: %w", err)
		}
		return cmdutil.PrintOutput(os.Stdout, chunks, len(chunks) == 0, "No chunks.", ChunkTable(chunks))
	}

	// Table mode prints the raw markdown; structured formats carry the
	// chunk inventory alongside the content.
	if format == output.FormatTable {
		markdown, err := client.GetDocumentMarkdown(id)
		if err != nil {
			return fmt.Errorf("failed to get content: %w", err)
		}
		fmt.Print(markdown)
		return nil
	}

	content, err := client.GetDocumentContent(id)
	if err != nil {
		return fmt.Errorf("failed to get content: %w", err)
	}
	if format == output.FormatYAML {
		return output.PrintYAML(os.Stdout, content)
	}
	return output.PrintJSON(os.Stdout, content)
}
