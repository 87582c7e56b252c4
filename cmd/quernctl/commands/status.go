package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/quernlabs/quern/cmd/quernctl/cmdutil"
	"github.com/quernlabs/quern/internal/bytesize"
	"github.com/quernlabs/quern/internal/cli/credentials"
	"github.com/quernlabs/quern/internal/cli/output"
	"github.com/quernlabs/quern/internal/cli/timeutil"
	"github.com/quernlabs/quern/pkg/apiclient"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show server status and corpus overview",
	Long: `Display the status of the connected Quern server.

This command checks the server health endpoint and, when the server is
healthy, fetches the corpus overview: document counts by status, chunk
totals, and storage size.

Examples:
  # Check status of connected server
  quernctl status

  # Output as JSON
  quernctl status -o json`,
	RunE: runStatus,
}

// ServerStatus represents the server status for display.
type ServerStatus struct {
	Server    string              `json:"server" yaml:"server"`
	Status    string              `json:"status" yaml:"status"`
	Healthy   bool                `json:"healthy" yaml:"healthy"`
	Version   string              `json:"version,omitempty" yaml:"version,omitempty"`
	StartedAt string              `json:"started_at,omitempty" yaml:"started_at,omitempty"`
	Uptime    string              `json:"uptime,omitempty" yaml:"uptime,omitempty"`
	Error     string              `json:"error,omitempty" yaml:"error,omitempty"`
	Corpus    *apiclient.Overview `json:"corpus,omitempty" yaml:"corpus,omitempty"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	serverURL := cmdutil.Flags.ServerURL
	if serverURL == "" {
		store, err := credentials.NewStore()
		if err != nil {
			return fmt.Errorf("failed to initialize context store: %w", err)
		}
		ctx, err := store.GetCurrentContext()
		if err != nil {
			return fmt.Errorf("no server configured. Run 'quernctl context set --server <url>' first")
		}
		serverURL = ctx.ServerURL
	}

	client, err := cmdutil.GetClient()
	if err != nil {
		return err
	}

	status := ServerStatus{
		Server:  serverURL,
		Status:  "unreachable",
		Healthy: false,
	}

	if health, err := client.Health(); err != nil {
		status.Error = err.Error()
	} else {
		status.Status = health.Status
		status.Healthy = health.Healthy()
		if health.Error != "" {
			status.Error = health.Error
		}
		if v, ok := health.Data["version"].(string); ok {
			status.Version = v
		}
		if s, ok := health.Data["started_at"].(string); ok {
			status.StartedAt = s
		}
		if u, ok := health.Data["uptime"].(string); ok {
			status.Uptime = u
		}
	}

	// The overview needs the API, so only fetch it from a live server.
	if status.Healthy {
		if overview, err := client.AnalyticsOverview(); err == nil {
			status.Corpus = overview
		} else if status.Error == "" {
			status.Error = fmt.Sprintf("overview unavailable: %v", err)
		}
	}

	format, err := cmdutil.GetOutputFormatParsed()
	if err != nil {
		return err
	}

	switch format {
	case output.FormatJSON:
		return output.PrintJSON(os.Stdout, status)
	case output.FormatYAML:
		return output.PrintYAML(os.Stdout, status)
	default:
		printStatusTable(status)
	}

	return nil
}

func printStatusTable(status ServerStatus) {
	fmt.Println()
	fmt.Println("Quern Server Status")
	fmt.Println("===================")
	fmt.Println()
	fmt.Printf("  Server:     %s\n", status.Server)

	if status.Healthy {
		fmt.Printf("  Status:     \033[32m● %s\033[0m\n", status.Status)
	} else if status.Status == "unreachable" {
		fmt.Printf("  Status:     \033[31m○ %s\033[0m\n", status.Status)
	} else {
		fmt.Printf("  Status:     \033[33m● %s\033[0m\n", status.Status)
	}

	if status.Version != "" {
		fmt.Printf("  Version:    %s\n", status.Version)
	}
	if status.StartedAt != "" {
		fmt.Printf("  Started:    %s\n", timeutil.FormatTime(status.StartedAt))
	}
	if status.Uptime != "" {
		fmt.Printf("  Uptime:     %s\n", timeutil.FormatUptime(status.Uptime))
	}
	if status.Error != "" {
		fmt.Printf("  Error:      %s\n", status.Error)
	}

	if c := status.Corpus; c != nil {
		fmt.Println()
		fmt.Println("  Corpus")
		fmt.Printf("    Documents:      %d (%d active)\n", c.TotalDocuments, c.ActiveDocuments)
		for _, st := range []string{"PENDING", "PROCESSING", "COMPLETED", "FAILED"} {
			if n := c.DocumentsByStatus[st]; n > 0 {
				fmt.Printf("      %-12s  %d\n", strings.ToLower(st), n)
			}
		}
		fmt.Printf("    Chunks:         %d (%.1f per document)\n", c.TotalChunks, c.AvgChunksPerDoc)
		fmt.Printf("    Storage:        %s\n", bytesize.ByteSize(c.TotalSizeBytes).String())
	}
	fmt.Println()
}
