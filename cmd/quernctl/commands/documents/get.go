package documents

import (
	"fmt"
	"os"
	"strconv"

	"github.com/quernlabs/quern/cmd/quernctl/cmdutil"
	"github.com/quernlabs/quern/internal/bytesize"
	"github.com/quernlabs/quern/internal/cli/timeutil"
	"github.com/quernlabs/quern/pkg/apiclient"
	"github.com/spf13/cobra"
)

var getCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Get document details",
	Long: `Get detailed information about a document, including its
processing outcome and chunk count.

Examples:
  # Get document details as table
  quernctl documents get 4f7a1c2e-9b11-4f8a-a3a1-0c5d2f8b9e10

  # Get as JSON
  quernctl documents get 4f7a1c2e-9b11-4f8a-a3a1-0c5d2f8b9e10 -o json`,
	Args: cobra.ExactArgs(1),
	RunE: runGet,
}

// SingleDocumentList wraps a single document for table rendering.
type SingleDocumentList []apiclient.Document

// Headers implements TableRenderer.
func (dl SingleDocumentList) Headers() []string {
	return []string{"FIELD", "VALUE"}
}

// Rows implements TableRenderer.
func (dl SingleDocumentList) Rows() [][]string {
	if len(dl) == 0 {
		return nil
	}
	d := dl[0]

	pages := "-"
	if d.PageCount != nil {
		pages = strconv.Itoa(*d.PageCount)
	}
	processing := "-"
	if d.ProcessingTimeMs != nil {
		processing = fmt.Sprintf("%dms", *d.ProcessingTimeMs)
	}
	processedAt := "-"
	if d.ProcessedAt != nil {
		processedAt = d.ProcessedAt.Format("2006-01-02 15:04:05")
	}

	rows := [][]string{
		{"ID", d.ID},
		{"Filename", d.Filename},
		{"MIME type", cmdutil.EmptyOr(d.MIMEType, "-")},
		{"Format", d.Format},
		{"Category", cmdutil.StringOr(d.FormatCategory, "-")},
		{"Size", bytesize.ByteSize(d.FileSize).String()},
		{"Content hash", d.ContentHash},
		{"Source", d.Source},
		{"Status", d.Status},
		{"Active", cmdutil.BoolToYesNo(d.IsActive)},
		{"Connection", d.ConnectionState},
		{"Profile", d.ProfileID},
		{"Chunks", strconv.FormatInt(d.ChunkCount, 10)},
		{"Pages", pages},
		{"OCR applied", cmdutil.BoolToYesNo(d.OCRApplied)},
		{"Processing time", processing},
		{"Uploaded", timeutil.FormatAge(d.CreatedAt) + " ago"},
		{"Processed", processedAt},
	}
	if d.FailReason != nil && *d.FailReason != "" {
		rows = append(rows, []string{"Fail reason", *d.FailReason})
		rows = append(rows, []string{"Retries", strconv.Itoa(d.RetryCount)})
	}
	return rows
}

func runGet(cmd *cobra.Command, args []string) error {
	client, err := cmdutil.GetClient()
	if err != nil {
		return err
	}

	doc, err := client.GetDocument(args[0])
	if err != nil {
		return fmt.Errorf("failed to get document: %w", err)
	}

	return cmdutil.PrintResource(os.Stdout, doc, SingleDocumentList{*doc})
}
