package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/aretw0/canvasbuilder"
	"github.com/aretw0/canvasbuilder/internal/cli"
	"github.com/aretw0/canvasbuilder/internal/config"
	"github.com/aretw0/canvasbuilder/internal/logging"
	"github.com/aretw0/canvasbuilder/pkg/adapters/mcp"
	"github.com/spf13/cobra"
)

// mcpCmd represents the mcp command
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the Model Context Protocol (MCP) server",
	Long: `Starts the canvas builder as an MCP Server, exposing classify_intent,
process_turn and get_session as tools and the scope catalog as a resource.

Supported Transports:
- stdio (default): Uses Standard Input/Output. Ideal for local process integration.
- sse: Uses Server-Sent Events over HTTP. Ideal for remote agents or debuggers.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		transport, _ := cmd.Flags().GetString("transport")
		port, _ := cmd.Flags().GetInt("port")

		path, _ := cmd.Flags().GetString("config")
		cfg, err := config.Load(path)
		if err != nil {
			return err
		}
		if level, _ := cmd.Flags().GetString("log-level"); level != "" {
			cfg.Log.Level = level
		}

		// Logs go to stderr so they never corrupt JSON-RPC on stdout.
		logger := logging.New(logging.ParseLevel(cfg.Log.Level))
		app, err := cli.NewApp(cmd.Context(), cfg, cli.WithLogger(logger))
		if err != nil {
			return err
		}
		defer app.Close()

		srv := mcp.NewServer(app.NewRunner(), app.Classifier, canvasbuilder.Version,
			mcp.WithCatalog(app.Catalog),
			mcp.WithLogger(logger),
		)

		switch transport {
		case "stdio":
			logger.Info("Starting canvas MCP Server (Stdio)...")
			return srv.ServeStdio()
		case "sse":
			logger.Info("Starting canvas MCP Server (SSE)", "port", port)

			sigCtx := cli.NewSignalContext(context.Background())
			defer sigCtx.Cancel()

			if err := srv.ServeSSE(sigCtx, port); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("MCP server execution failed: %w", err)
			}
			logger.Info("MCP Server stopped gracefully")
			return nil
		default:
			return fmt.Errorf("unknown transport: %s. Supported: stdio, sse", transport)
		}
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)

	mcpCmd.Flags().String("transport", "stdio", "Transport protocol to use: 'stdio' or 'sse'")
	mcpCmd.Flags().Int("port", 8080, "Port to listen on (only for SSE)")
}
