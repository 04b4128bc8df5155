package commands

import (
	"github.com/spf13/cobra"

	"github.com/teranos/rtsne/logger"
	"github.com/teranos/rtsne/mcpserver"
)

// McpCmd serves run_embedding to MCP clients over stdio.
var McpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the run_embedding tool over MCP (stdio)",
	Long: `Start a Model Context Protocol server on stdin/stdout.

Register it with an MCP client, for example:

  {"mcpServers": {"rtsne": {"command": "rtsne", "args": ["mcp"]}}}

Logs go to stderr; stdout carries only protocol messages.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		svc, closeFn, err := openService(cfg, true)
		if err != nil {
			return err
		}
		defer closeFn()

		return mcpserver.New(svc, logger.ComponentLogger("mcp")).Serve()
	},
}
