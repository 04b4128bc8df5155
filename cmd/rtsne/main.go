package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/teranos/rtsne/am"
	"github.com/teranos/rtsne/cmd/rtsne/commands"
	"github.com/teranos/rtsne/errors"
	"github.com/teranos/rtsne/logger"
)

var rootCmd = &cobra.Command{
	Use:   "rtsne",
	Short: "rtsne - t-SNE embeddings from the command line, HTTP, gRPC and MCP",
	Long: `rtsne - t-distributed Stochastic Neighbor Embedding.

Embeds a numeric matrix (rows = observations) into a low-dimensional space.
Every surface calls the same run_embedding entry point.

Available commands:
  run     - Embed a matrix from a file or URL
  serve   - Start the HTTP/WebSocket and gRPC servers
  mcp     - Serve the run_embedding tool over MCP (stdio)
  runs    - Inspect recorded runs
  am      - Manage rtsne configuration ("I am")
  version - Show version information

Examples:
  rtsne run data.csv --perplexity 30 -o embedding.json
  rtsne run --job iris.toml
  rtsne serve --port 8770
  rtsne runs ls`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		verbosity, _ := cmd.Flags().GetCount("verbose")
		jsonLogs := am.GetViper().GetBool("log.json")
		if err := logger.InitializeWithLevel(jsonLogs, logger.VerbosityToLevel(verbosity)); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Cleanup()
	},
}

func init() {
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase output verbosity (repeat for more detail: -v, -vv, -vvv)")

	rootCmd.AddCommand(commands.RunCmd)
	rootCmd.AddCommand(commands.ServeCmd)
	rootCmd.AddCommand(commands.McpCmd)
	rootCmd.AddCommand(commands.RunsCmd)
	rootCmd.AddCommand(commands.AmCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		if hint := errors.FlattenHints(err); hint != "" {
			fmt.Fprintln(os.Stderr, "Hint:", hint)
		}
		os.Exit(1)
	}
}
