package main

import (
	rostermcp "github.com/hyperengineering/roster/mcp"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP server for coding agent integration",
	Long: `Start a Model Context Protocol (MCP) server over stdio.

This allows coding agents to query and update the registry directly.

Configuration in Claude Code (~/.claude/claude_desktop_config.json):

  {
    "mcpServers": {
      "roster": {
        "command": "roster",
        "args": ["mcp"],
        "env": {
          "ROSTER_DB_PATH": "/path/to/roster.db"
        }
      }
    }
  }

Environment variables:
  ROSTER_DB_PATH    Path to local SQLite database
  ROSTER_SOURCE_ID  Client identifier (default: hostname)
  ATLAS_URL         Atlas service URL (optional, enables sync)
  ATLAS_API_KEY     Atlas API key (required if ATLAS_URL set)`,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	defer client.Close()

	server := rostermcp.NewServer(client)
	return server.Run()
}
