// Package mcptools exposes the window monitor, focus controller and
// application registry as Model Context Protocol tools.
package mcptools

import (
	"context"
	"fmt"
	"time"

	"github.com/bryanchriswhite/WindowAccordion/internal/logger"
	"github.com/bryanchriswhite/WindowAccordion/internal/model"
	"github.com/bryanchriswhite/WindowAccordion/internal/registry"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
)

// Transports accepted by Serve
const (
	TransportStdio = "stdio"
	TransportHTTP  = "streamable-http"
)

const refreshTimeout = 5 * time.Second

// Windows is the read side of the window monitor
type Windows interface {
	Windows() []model.Window
	Applications() []model.Application
	Groups() []model.AppGroup
	Window(id model.WindowID) (model.Window, bool)
	ApplicationStates() []model.ApplicationState
	RefreshNow(ctx context.Context) error
}

// Controller acts on observed windows
type Controller interface {
	Focus(w model.Window) bool
	Minimize(w model.Window) bool
	Unminimize(w model.Window) bool
	Close(w model.Window) bool
	Move(w model.Window, to model.Point) bool
	Resize(w model.Window, to model.Size) bool
	Bounds(w model.Window) (model.Rect, bool)
	IsMinimized(w model.Window) bool
	ActivateApplication(bundleID string) bool
}

// Config holds MCP server configuration
type Config struct {
	Transport string
	Port      int
}

// Server wraps the MCP server with the window accordion services
type Server struct {
	windows    Windows
	controller Controller
	registry   *registry.Registry
	mcp        *mcpserver.MCPServer
	log        *zerolog.Logger
}

// NewServer creates an MCP server with every tool registered
func NewServer(windows Windows, controller Controller, reg *registry.Registry, version string) *Server {
	s := &Server{
		windows:    windows,
		controller: controller,
		registry:   reg,
		log:        logger.WithComponent("mcp"),
	}
	s.mcp = mcpserver.NewMCPServer(
		"window-accordion",
		version,
		mcpserver.WithToolCapabilities(false),
		mcpserver.WithRecovery(),
	)
	s.registerTools()
	return s
}

// MCP returns the underlying MCP server
func (s *Server) MCP() *mcpserver.MCPServer {
	return s.mcp
}

// Serve runs the configured transport. The streamable HTTP transport shuts
// down when ctx is cancelled; stdio ends when its input closes.
func (s *Server) Serve(ctx context.Context, cfg Config) error {
	switch cfg.Transport {
	case TransportStdio, "":
		return mcpserver.ServeStdio(s.mcp)
	case TransportHTTP:
		httpServer := mcpserver.NewStreamableHTTPServer(s.mcp)
		errCh := make(chan error, 1)
		go func() {
			s.log.Info().Int("port", cfg.Port).Msg("Serving MCP over streamable HTTP")
			errCh <- httpServer.Start(fmt.Sprintf(":%d", cfg.Port))
		}()
		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return httpServer.Shutdown(shutdownCtx)
		}
	default:
		return fmt.Errorf("unsupported transport: %s (use stdio or streamable-http)", cfg.Transport)
	}
}

func (s *Server) registerTools() {
	windowID := mcp.WithNumber("window_id", mcp.Required(), mcp.Description("Window ID from list_windows"))
	bundleID := mcp.WithString("bundle_id", mcp.Required(), mcp.Description("Application bundle identifier (lowercased WM_CLASS)"))

	s.mcp.AddTool(
		mcp.NewTool("list_windows",
			mcp.WithDescription("List on-screen windows of enabled applications"),
			mcp.WithBoolean("refresh", mcp.Description("Take a fresh snapshot first")),
			mcp.WithBoolean("grouped", mcp.Description("Group windows per application")),
		),
		s.handleListWindows,
	)
	s.mcp.AddTool(
		mcp.NewTool("list_applications",
			mcp.WithDescription("List running applications with their enablement state"),
			mcp.WithBoolean("refresh", mcp.Description("Take a fresh snapshot first")),
		),
		s.handleListApplications,
	)

	for _, op := range []struct{ name, desc string }{
		{"focus_window", "Raise a window and give it keyboard focus"},
		{"minimize_window", "Minimize a window"},
		{"unminimize_window", "Restore a minimized window and focus it"},
		{"close_window", "Press the close control of a window"},
	} {
		s.mcp.AddTool(mcp.NewTool(op.name, mcp.WithDescription(op.desc), windowID), s.handleWindowAction)
	}

	s.mcp.AddTool(
		mcp.NewTool("move_window",
			mcp.WithDescription("Move a window to screen coordinates"),
			windowID,
			mcp.WithNumber("x", mcp.Required(), mcp.Description("Left edge")),
			mcp.WithNumber("y", mcp.Required(), mcp.Description("Top edge")),
		),
		s.handleMoveWindow,
	)
	s.mcp.AddTool(
		mcp.NewTool("resize_window",
			mcp.WithDescription("Resize a window"),
			windowID,
			mcp.WithNumber("width", mcp.Required(), mcp.Description("Width in pixels")),
			mcp.WithNumber("height", mcp.Required(), mcp.Description("Height in pixels")),
		),
		s.handleResizeWindow,
	)
	s.mcp.AddTool(
		mcp.NewTool("window_bounds",
			mcp.WithDescription("Read the live bounds and minimized state of a window"),
			windowID,
		),
		s.handleWindowBounds,
	)
	s.mcp.AddTool(
		mcp.NewTool("activate_application",
			mcp.WithDescription("Bring a running application to the foreground"),
			bundleID,
		),
		s.handleActivateApplication,
	)

	s.mcp.AddTool(
		mcp.NewTool("list_profiles",
			mcp.WithDescription("List application profiles, highest priority first"),
			mcp.WithBoolean("enabled_only", mcp.Description("Only enabled profiles")),
		),
		s.handleListProfiles,
	)
	for _, op := range []struct{ name, desc string }{
		{"enable_application", "Show an application's windows in the accordion"},
		{"disable_application", "Hide an application's windows from the accordion"},
		{"toggle_application", "Flip an application's enablement"},
	} {
		s.mcp.AddTool(mcp.NewTool(op.name, mcp.WithDescription(op.desc), bundleID), s.handleEnablement)
	}
	s.mcp.AddTool(
		mcp.NewTool("discover_applications",
			mcp.WithDescription("Create profiles for running applications that have none"),
		),
		s.handleDiscover,
	)
}
