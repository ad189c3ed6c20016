package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"tradepost/pkg/sync"
)

var (
	version = "dev"
	commit  = "unknown"
)

var (
	flagServer  string
	flagAPIKey  string
	flagUser    string
	flagSecret  string
	flagVerbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "tradepost-cli",
	Short: "Tradepost CLI for browsing and watching conversations",
	Long: `Tradepost CLI talks to a tradepost server as one user: list
conversations, watch a thread with live polling, and send messages.`,
	Version: fmt.Sprintf("%s (commit: %s)", version, commit),
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&flagServer, "server", envOr("TRADEPOST_SERVER", "http://localhost:8080"), "server base URL")
	rootCmd.PersistentFlags().StringVar(&flagAPIKey, "api-key", os.Getenv("TRADEPOST_API_KEY"), "API key")
	rootCmd.PersistentFlags().StringVar(&flagUser, "user", os.Getenv("TRADEPOST_USER"), "acting user id")
	rootCmd.PersistentFlags().StringVar(&flagSecret, "signing-secret", os.Getenv("TRADEPOST_SIGNING_SECRET"), "identity signing secret")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable verbose output")
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// newClient builds the API client from the global flags, failing fast on
// missing identity.
func newClient() (*sync.Client, error) {
	if flagAPIKey == "" {
		return nil, fmt.Errorf("api key required: set --api-key or TRADEPOST_API_KEY")
	}
	if flagUser == "" {
		return nil, fmt.Errorf("user id required: set --user or TRADEPOST_USER")
	}
	return sync.NewClient(flagServer, flagAPIKey, flagUser, flagSecret), nil
}
