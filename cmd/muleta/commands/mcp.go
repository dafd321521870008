// ABOUTME: MCP command starts the Model Context Protocol server on stdio
// ABOUTME: Lets LLM agents ingest text, study cards and build arguments through muleta
package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harper/muleta/internal/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// NewMCPCmd creates the MCP command
func NewMCPCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start MCP server for LLM agents",
		Long: `Start MCP server for LLM agents

Runs muleta as an MCP (Model Context Protocol) server so agents like
Claude can ingest study text, query the knowledge graph, generate and
review cards, analyze gaps and build arguments via stdio.`,
		RunE: runMCP,
		Example: `  # Start MCP server (typically called by Claude Desktop)
  muleta mcp

  # Configure in claude_desktop_config.json:
  # {
  #   "mcpServers": {
  #     "muleta": {
  #       "command": "muleta",
  #       "args": ["mcp"]
  #     }
  #   }
  # }`,
	}
	return cmd
}

func runMCP(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	log := a.Log.Component("mcp")
	server, _ := mcp.NewServer(a)

	log.Info("MCP server starting on stdio", "version", mcp.ServerVersion)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- mcpserver.ServeStdio(server)
	}()

	ctx := cmd.Context()
	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, closing storage")
		if err := a.Close(); err != nil {
			log.Warn("error closing storage", "error", err)
		}
		return nil
	case err := <-serverErr:
		_ = a.Close()
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}
	return nil
}
