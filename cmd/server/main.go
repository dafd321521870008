// ABOUTME: Main entry point for the standalone muleta MCP server with stdio transport
// ABOUTME: Loads config, opens storage, and serves every muleta tool until stdin closes
package main

import (
	"fmt"
	"os"

	"github.com/harper/muleta/internal/app"
	"github.com/harper/muleta/internal/config"
	"github.com/harper/muleta/internal/logger"
	"github.com/harper/muleta/internal/mcp"
	"github.com/joho/godotenv"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer log.Sync()

	a, err := app.Open(cfg, log)
	if err != nil {
		return fmt.Errorf("initializing storage: %w", err)
	}
	defer func() { _ = a.Close() }()

	server, _ := mcp.NewServer(a)

	log.Info("muleta MCP server starting on stdio", "version", mcp.ServerVersion)
	if err := mcpserver.ServeStdio(server); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
