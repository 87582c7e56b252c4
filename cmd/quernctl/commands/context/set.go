package context

import (
	"fmt"
	"net/url"

	"github.com/quernlabs/quern/cmd/quernctl/cmdutil"
	"github.com/quernlabs/quern/internal/cli/credentials"
	"github.com/quernlabs/quern/internal/cli/prompt"
	"github.com/quernlabs/quern/pkg/apiclient"
	"github.com/spf13/cobra"
)

var (
	setServer    string
	setAPIKey    string
	setPromptKey bool
)

var setCmd = &cobra.Command{
	Use:   "set [name]",
	Short: "Create or update a context",
	Long: `Create or update a server context and switch to it.

The context name defaults to one derived from the server URL, so
"http://quern.internal:8080" becomes "quern.internal-8080". The API key
is optional: servers running without authentication accept
unauthenticated requests.

Examples:
  # Create a context for a local server
  quernctl context set --server http://localhost:8080

  # Named context with an API key prompted securely
  quernctl context set production --server https://quern.example.com --prompt-key

  # API key on the command line (less secure)
  quernctl context set --server http://localhost:8080 --api-key secret`,
	Args: cobra.MaximumNArgs(1),
	RunE: runContextSet,
}

func init() {
	setCmd.Flags().StringVar(&setServer, "server", "", "Server URL (required for new contexts)")
	setCmd.Flags().StringVar(&setAPIKey, "api-key", "", "API key for the server")
	setCmd.Flags().BoolVar(&setPromptKey, "prompt-key", false, "Prompt for the API key without echoing")
}

func runContextSet(cmd *cobra.Command, args []string) error {
	store, err := credentials.NewStore()
	if err != nil {
		return fmt.Errorf("failed to initialize context store: %w", err)
	}

	// Updating an existing context keeps its server URL and key unless
	// overridden.
	var existing *credentials.Context
	if len(args) == 1 {
		if ctx, err := store.GetContext(args[0]); err == nil {
			existing = ctx
		}
	}

	serverURL := setServer
	if serverURL == "" && existing != nil {
		serverURL = existing.ServerURL
	}
	if serverURL == "" {
		return fmt.Errorf("no server URL specified\n\n" +
			"Specify the server URL:\n" +
			"  quernctl context set --server http://localhost:8080")
	}

	parsedURL, err := url.Parse(serverURL)
	if err != nil {
		return fmt.Errorf("invalid server URL: %w", err)
	}
	if parsedURL.Scheme == "" {
		parsedURL.Scheme = "http"
		serverURL = parsedURL.String()
	}

	apiKey := setAPIKey
	if setPromptKey {
		apiKey, err = prompt.Secret("API key")
		if err != nil {
			return cmdutil.HandleAbort(err)
		}
	}
	if apiKey == "" && existing != nil {
		apiKey = existing.APIKey
	}

	contextName := ""
	if len(args) == 1 {
		contextName = args[0]
	}
	if contextName == "" {
		contextName = credentials.GenerateContextName(serverURL)
	}

	ctx := &credentials.Context{
		ServerURL: serverURL,
		APIKey:    apiKey,
	}
	if err := store.SetContext(contextName, ctx); err != nil {
		return fmt.Errorf("failed to save context: %w", err)
	}
	if err := store.UseContext(contextName); err != nil {
		return fmt.Errorf("failed to set current context: %w", err)
	}

	fmt.Printf("Context saved: %s\n", contextName)
	fmt.Printf("Server: %s\n", serverURL)

	// Reachability check is advisory: saving a context for a server
	// that is currently down should still work.
	client := apiclient.New(serverURL)
	if apiKey != "" {
		client = client.WithAPIKey(apiKey)
	}
	if health, err := client.Health(); err != nil {
		fmt.Printf("Warning: server not reachable: %v\n", err)
	} else if !health.Healthy() {
		fmt.Printf("Warning: server reported status %q\n", health.Status)
	}

	return nil
}
