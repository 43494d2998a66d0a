package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bryanchriswhite/WindowAccordion/internal/api"
	"github.com/bryanchriswhite/WindowAccordion/internal/logger"
	"github.com/bryanchriswhite/WindowAccordion/internal/model"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the WindowAccordion server",
	Long: `Start window monitoring and the HTTP server.

The server provides a REST API for windows, applications and profiles, and a
WebSocket stream at /api/stream that pushes every published change.`,
	Example: `  # Start server on default port (8080)
  accordion serve

  # Start server on custom port
  accordion serve --port 9090

  # Start with debug logging
  accordion serve --log-level debug --log-pretty`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("serve")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.close()

	if !a.monitor.Start() {
		return fmt.Errorf("window monitoring not started: %w", model.ErrPermissionDenied)
	}

	if cfg.Registry.Watch {
		go func() {
			if err := a.registry.Watch(ctx); err != nil {
				log.Warn().Err(err).Msg("Registry file watch unavailable")
			}
		}()
	}

	log.Info().
		Str("config", cfg.File).
		Str("registry", cfg.Registry.Path).
		Str("backend", a.provider.BackendName).
		Int("port", cfg.ServerPort).
		Msg("WindowAccordion is running")

	server := api.NewServer(a.monitor, a.controller, a.registry, a.provider.BackendName)
	if err := server.Start(ctx, cfg.ServerPort); err != nil {
		return err
	}

	log.Info().Msg("Shutting down gracefully...")
	return nil
}
