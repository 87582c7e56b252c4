package documents

import (
	"fmt"
	"os"
	"sort"

	"github.com/quernlabs/quern/cmd/quernctl/cmdutil"
	"github.com/quernlabs/quern/internal/bytesize"
	"github.com/quernlabs/quern/internal/cli/output"
	"github.com/quernlabs/quern/internal/cli/timeutil"
	"github.com/quernlabs/quern/pkg/apiclient"
	"github.com/spf13/cobra"
)

var (
	listStatus    string
	listActive    bool
	listInactive  bool
	listSource    string
	listFormat    string
	listCategory  string
	listSearch    string
	listSortBy    string
	listSortOrder string
	listLimit     int
	listOffset    int
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List documents",
	Long: `List documents in the corpus with optional filters.

Examples:
  # List the most recent documents
  quernctl documents list

  # Failed documents only
  quernctl documents list --status failed

  # PDFs currently hidden from search
  quernctl documents list --format pdf --inactive

  # Filename search, oldest first
  quernctl documents list --search "handbook" --sort-by createdAt --sort-order asc

  # Page through a large corpus
  quernctl documents list --limit 50 --offset 100`,
	RunE: runList,
}

func init() {
	listCmd.Flags().StringVar(&listStatus, "status", "", "Filter by status (pending|processing|completed|failed)")
	listCmd.Flags().BoolVar(&listActive, "active", false, "Only documents served by search")
	listCmd.Flags().BoolVar(&listInactive, "inactive", false, "Only documents hidden from search")
	listCmd.Flags().StringVar(&listSource, "source", "", "Filter by source (manual|external)")
	listCmd.Flags().StringVar(&listFormat, "format", "", "Filter by format (pdf, docx, md, ...)")
	listCmd.Flags().StringVar(&listCategory, "category", "", "Filter by format category (document|presentation|tabular)")
	listCmd.Flags().StringVar(&listSearch, "search", "", "Filter by filename substring")
	listCmd.Flags().StringVar(&listSortBy, "sort-by", "", "Sort column (createdAt|filename|fileSize)")
	listCmd.Flags().StringVar(&listSortOrder, "sort-order", "", "Sort direction (asc|desc)")
	listCmd.Flags().IntVar(&listLimit, "limit", 0, "Maximum documents to return (server default when omitted)")
	listCmd.Flags().IntVar(&listOffset, "offset", 0, "Documents to skip")
}

// DocumentTable is a list of documents for table rendering.
type DocumentTable []apiclient.Document

// Headers implements TableRenderer.
func (dt DocumentTable) Headers() []string {
	return []string{"ID", "FILENAME", "FORMAT", "SIZE", "STATUS", "ACTIVE", "AGE"}
}

// Rows implements TableRenderer.
func (dt DocumentTable) Rows() [][]string {
	rows := make([][]string, 0, len(dt))
	for _, d := range dt {
		status := d.Status
		if d.Status == "FAILED" && d.RetryCount > 0 {
			status = fmt.Sprintf("%s (%d retries)", d.Status, d.RetryCount)
		}
		rows = append(rows, []string{
			d.ID,
			cmdutil.Truncate(d.Filename, 40),
			d.Format,
			bytesize.ByteSize(d.FileSize).String(),
			status,
			cmdutil.BoolToYesNo(d.IsActive),
			timeutil.FormatAge(d.CreatedAt),
		})
	}
	return rows
}

func runList(cmd *cobra.Command, args []string) error {
	if listActive && listInactive {
		return fmt.Errorf("--active and --inactive are mutually exclusive")
	}

	client, err := cmdutil.GetClient()
	if err != nil {
		return err
	}

	opts := &apiclient.ListDocumentsOptions{
		Status:         listStatus,
		SourceType:     listSource,
		Format:         listFormat,
		FormatCategory: listCategory,
		Search:         listSearch,
		SortBy:         listSortBy,
		SortOrder:      listSortOrder,
		Limit:          listLimit,
		Offset:         listOffset,
	}
	if listActive {
		active := true
		opts.IsActive = &active
	}
	if listInactive {
		active := false
		opts.IsActive = &active
	}

	list, err := client.ListDocuments(opts)
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}

	if err := cmdutil.PrintOutput(os.Stdout, list, len(list.Documents) == 0, "No documents found.", DocumentTable(list.Documents)); err != nil {
		return err
	}

	if format, err := cmdutil.GetOutputFormatParsed(); err == nil && format == output.FormatTable && len(list.Documents) > 0 {
		fmt.Printf("%d of %d documents%s\n", len(list.Documents), list.Total, countsSummary(list.Counts))
	}
	return nil
}

// countsSummary renders corpus-wide status counts as " (completed: 30, failed: 2)".
func countsSummary(counts map[string]int64) string {
	if len(counts) == 0 {
		return ""
	}
	statuses := make([]string, 0, len(counts))
	for status := range counts {
		statuses = append(statuses, status)
	}
	sort.Strings(statuses)

	summary := " ("
	for i, status := range statuses {
		if i > 0 {
			summary += ", "
		}
		summary += fmt.Sprintf("%s: %d", status, counts[status])
	}
	return summary + ")"
}
