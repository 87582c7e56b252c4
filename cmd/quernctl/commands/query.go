package commands

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/quernlabs/quern/cmd/quernctl/cmdutil"
	"github.com/quernlabs/quern/internal/cli/output"
	"github.com/quernlabs/quern/pkg/apiclient"
	"github.com/spf13/cobra"
)

var (
	queryTopK       int
	queryMode       string
	queryAlpha      float64
	queryBreadcrumb string
	queryMinQuality float64
	queryChunkTypes string
	queryFull       bool
)

var queryCmd = &cobra.Command{
	Use:   "query <text>",
	Short: "Search the chunk corpus",
	Long: `Search the chunk corpus with semantic or hybrid retrieval.

Semantic mode ranks chunks by embedding similarity alone. Hybrid mode
blends embedding similarity with keyword matching, weighted by --alpha
(1.0 is fully semantic, 0.0 fully keyword).

Examples:
  # Semantic search
  quernctl query "quarterly revenue targets"

  # Hybrid search weighted towards keywords
  quernctl query "error code 5023" --mode hybrid --alpha 0.3

  # Only high-quality prose chunks under a heading path
  quernctl query "onboarding checklist" --min-quality 0.7 --chunk-types text --breadcrumb "HR Handbook"

  # Full chunk content as JSON
  quernctl query "data retention policy" -o json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().IntVarP(&queryTopK, "top-k", "k", 0, "Number of results (server default when omitted)")
	queryCmd.Flags().StringVarP(&queryMode, "mode", "m", "", "Search mode (semantic|hybrid)")
	queryCmd.Flags().Float64Var(&queryAlpha, "alpha", -1, "Hybrid blend weight, 0.0 keyword to 1.0 semantic")
	queryCmd.Flags().StringVar(&queryBreadcrumb, "breadcrumb", "", "Only chunks whose heading path contains this text")
	queryCmd.Flags().Float64Var(&queryMinQuality, "min-quality", -1, "Minimum chunk quality score, 0.0 to 1.0")
	queryCmd.Flags().StringVar(&queryChunkTypes, "chunk-types", "", "Comma-separated chunk types (text,table,code,list)")
	queryCmd.Flags().BoolVar(&queryFull, "full", false, "Print full chunk content instead of a preview")
}

// QueryResultList is a list of search results for table rendering.
type QueryResultList []apiclient.SearchResult

// Headers implements TableRenderer.
func (rl QueryResultList) Headers() []string {
	return []string{"SCORE", "DOCUMENT", "CHUNK", "TYPE", "HEADING", "CONTENT"}
}

// Rows implements TableRenderer.
func (rl QueryResultList) Rows() [][]string {
	rows := make([][]string, 0, len(rl))
	for _, r := range rl {
		rows = append(rows, []string{
			strconv.FormatFloat(r.Score, 'f', 3, 64),
			cmdutil.Truncate(r.Filename, 32),
			strconv.Itoa(r.ChunkIndex),
			r.ChunkType,
			cmdutil.Truncate(cmdutil.StringOr(r.Heading, "-"), 28),
			cmdutil.Truncate(r.Content, 64),
		})
	}
	return rows
}

func runQuery(cmd *cobra.Command, args []string) error {
	client, err := cmdutil.GetClient()
	if err != nil {
		return err
	}

	req := &apiclient.QueryRequest{
		Query: strings.Join(args, " "),
		Mode:  queryMode,
	}
	if queryTopK > 0 {
		req.TopK = &queryTopK
	}
	if queryAlpha >= 0 {
		req.Alpha = &queryAlpha
	}

	var filters apiclient.QueryFilters
	hasFilters := false
	if queryBreadcrumb != "" {
		filters.BreadcrumbsContain = queryBreadcrumb
		hasFilters = true
	}
	if queryMinQuality >= 0 {
		filters.MinQualityScore = &queryMinQuality
		hasFilters = true
	}
	if types := cmdutil.ParseCommaSeparatedList(queryChunkTypes); len(types) > 0 {
		filters.ChunkTypes = types
		hasFilters = true
	}
	if hasFilters {
		req.Filters = &filters
	}

	resp, err := client.Query(req)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	format, err := cmdutil.GetOutputFormatParsed()
	if err != nil {
		return err
	}

	switch format {
	case output.FormatJSON:
		return output.PrintJSON(os.Stdout, resp)
	case output.FormatYAML:
		return output.PrintYAML(os.Stdout, resp)
	}

	if len(resp.Results) == 0 {
		fmt.Println("No results.")
		return nil
	}

	if queryFull {
		printFullResults(resp)
		return nil
	}

	if err := output.PrintTable(os.Stdout, QueryResultList(resp.Results)); err != nil {
		return err
	}

	summary := fmt.Sprintf("%d results (mode: %s", len(resp.Results), resp.Mode)
	if resp.Alpha != nil {
		summary += fmt.Sprintf(", alpha: %.2f", *resp.Alpha)
	}
	fmt.Println(summary + ")")
	return nil
}

// printFullResults prints each result with its complete content, one
// block per chunk, for piping into a pager or file.
func printFullResults(resp *apiclient.QueryResponse) {
	for i, r := range resp.Results {
		fmt.Printf("--- [%d] %s #%d (score %.3f)\n", i+1, r.Filename, r.ChunkIndex, r.Score)
		if r.Heading != nil && *r.Heading != "" {
			fmt.Printf("    %s\n", strings.Join(append(r.Breadcrumbs, *r.Heading), " > "))
		}
		fmt.Println(r.Content)
		fmt.Println()
	}
}
