package documents

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/quernlabs/quern/cmd/quernctl/cmdutil"
	"github.com/spf13/cobra"
)

var uploadCmd = &cobra.Command{
	Use:   "upload <file>...",
	Short: "Upload files for ingestion",
	Long: `Upload one or more files for ingestion.

Native formats (markdown, text, html) are processed inline and are
usually searchable within seconds. Binary formats (pdf, docx, pptx,
xlsx) are queued for the conversion worker.

Examples:
  # Upload a single file
  quernctl documents upload report.pdf

  # Upload several files at once
  quernctl documents upload notes.md slides.pptx handbook.docx`,
	Args: cobra.MinimumNArgs(1),
	RunE: runUpload,
}

func runUpload(cmd *cobra.Command, args []string) error {
	client, err := cmdutil.GetClient()
	if err != nil {
		return err
	}

	var failed int
	for _, path := range args {
		file, err := os.Open(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %s: %v\n", path, err)
			failed++
			continue
		}

		doc, err := client.UploadDocument(filepath.Base(path), file)
		_ = file.Close()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %s: %v\n", path, err)
			failed++
			continue
		}

		fmt.Printf("Uploaded %s (%s, status: %s)\n", doc.Filename, doc.ID, doc.Status)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d uploads failed", failed, len(args))
	}
	return nil
}
