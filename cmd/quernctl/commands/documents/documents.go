// Package documents implements document management subcommands for quernctl.
package documents

import (
	"github.com/spf13/cobra"
)

// Cmd is the documents subcommand.
var Cmd = &cobra.Command{
	Use:     "documents",
	Aliases: []string{"docs", "document"},
	Short:   "Manage ingested documents",
	Long: `Manage documents in the Quern corpus.

Subcommands:
  list          List documents with filters
  get           Get document details
  upload        Upload a file for ingestion
  content       Show the processed content of a document
  delete        Delete documents and their chunks
  retry         Re-enqueue failed documents
  availability  Toggle whether documents are served by search`,
}

func init() {
	Cmd.AddCommand(listCmd)
	Cmd.AddCommand(getCmd)
	Cmd.AddCommand(uploadCmd)
	Cmd.AddCommand(contentCmd)
	Cmd.AddCommand(deleteCmd)
	Cmd.AddCommand(retryCmd)
	Cmd.AddCommand(availabilityCmd)
}
