package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aretw0/humanbrowse"
	"github.com/aretw0/humanbrowse/internal/logging"
	mcpadapter "github.com/aretw0/humanbrowse/pkg/adapters/mcp"
)

// mcpCmd represents the mcp command
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the Model Context Protocol (MCP) server",
	Long: `Attaches to the running browser and exposes the step-run operations as
MCP tools, so AI agents can drive the session directly.

Supported Transports:
- stdio (default): Uses Standard Input/Output. Ideal for local process integration.
- sse: Uses Server-Sent Events over HTTP. Ideal for remote agents or debuggers.`,
	Run: func(cmd *cobra.Command, args []string) {
		configPath, _ := cmd.Flags().GetString("config")
		transport, _ := cmd.Flags().GetString("transport")
		port, _ := cmd.Flags().GetInt("port")

		settings, err := loadSettings(configPath)
		if err != nil {
			log.Fatalf("Error loading settings: %v", err)
		}

		// Logs go to stderr; stdout carries JSON-RPC in stdio mode.
		logger := logging.New(slog.LevelInfo)
		slog.SetDefault(logger)

		svc, err := humanbrowse.New(context.Background(), settings, humanbrowse.WithLogger(logger))
		if err != nil {
			log.Fatalf("Error initializing service: %v", err)
		}

		srv := mcpadapter.NewServer(svc.Orchestrator())

		switch transport {
		case "stdio":
			log.SetOutput(os.Stderr)
			slog.Info("Starting MCP Server (Stdio)...")
			if err := srv.ServeStdio(); err != nil {
				slog.Error("MCP Server execution failed", "error", err)
				os.Exit(1)
			}
		case "sse":
			slog.Info("Starting MCP Server (SSE)", "port", port)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := srv.ServeSSE(ctx, port); err != nil {
				if err != http.ErrServerClosed {
					slog.Error("MCP Server execution failed", "error", err)
					os.Exit(1)
				}
			}
			slog.Info("MCP Server stopped gracefully")
		default:
			log.Fatalf("Unknown transport: %s. Supported: stdio, sse", transport)
		}
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)

	mcpCmd.Flags().String("transport", "stdio", "Transport protocol to use: 'stdio' or 'sse'")
	mcpCmd.Flags().Int("port", 8081, "Port to listen on (only for SSE)")
}
