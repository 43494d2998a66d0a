package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/bryanchriswhite/WindowAccordion/internal/logger"
	"github.com/bryanchriswhite/WindowAccordion/internal/mcptools"
	"github.com/bryanchriswhite/WindowAccordion/internal/model"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve window control tools over MCP",
	Long: `Run a Model Context Protocol server exposing the window list and window
controls as tools. The stdio transport is meant to be launched by an MCP client.`,
	Example: `  # Serve over stdio (for MCP clients)
  accordion mcp

  # Serve over streamable HTTP on port 8081
  accordion mcp --transport streamable-http --mcp-port 8081`,
	RunE: runMCP,
}

var (
	mcpTransport string
	mcpPort      int
)

func init() {
	rootCmd.AddCommand(mcpCmd)

	mcpCmd.Flags().StringVarP(&mcpTransport, "transport", "t", mcptools.TransportStdio, "transport (stdio or streamable-http)")
	mcpCmd.Flags().IntVar(&mcpPort, "mcp-port", 8081, "port for the streamable-http transport")
}

func runMCP(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("mcp")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.close()

	if !a.monitor.Start() {
		return fmt.Errorf("window monitoring not started: %w", model.ErrPermissionDenied)
	}
	defer a.monitor.Stop()

	if cfg.Registry.Watch {
		go func() {
			if err := a.registry.Watch(ctx); err != nil {
				log.Warn().Err(err).Msg("Registry file watch stopped")
			}
		}()
	}

	srv := mcptools.NewServer(a.monitor, a.controller, a.registry, Version)
	log.Info().Str("transport", mcpTransport).Msg("MCP server starting")
	return srv.Serve(ctx, mcptools.Config{Transport: mcpTransport, Port: mcpPort})
}
