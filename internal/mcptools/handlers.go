package mcptools

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/bryanchriswhite/WindowAccordion/internal/model"
	"github.com/mark3labs/mcp-go/mcp"
	"gopkg.in/yaml.v3"
)

// actionResult is the YAML body of a control tool response
type actionResult struct {
	OK       bool           `yaml:"ok"`
	Action   string         `yaml:"action"`
	WindowID model.WindowID `yaml:"window_id,omitempty"`
	Bundle   string         `yaml:"bundle_id,omitempty"`
	Enabled  *bool          `yaml:"enabled,omitempty"`
	Error    string         `yaml:"error,omitempty"`
}

type windowEntry struct {
	ID        model.WindowID `yaml:"id"`
	Title     string         `yaml:"title"`
	App       string         `yaml:"app"`
	Bundle    string         `yaml:"bundle_id"`
	PID       int            `yaml:"pid"`
	Bounds    model.Rect     `yaml:"bounds"`
	Minimized bool           `yaml:"minimized,omitempty"`
	Main      bool           `yaml:"main"`
}

type groupEntry struct {
	App     string        `yaml:"app"`
	Bundle  string        `yaml:"bundle_id"`
	PID     int           `yaml:"pid"`
	Windows []windowEntry `yaml:"windows"`
}

type applicationEntry struct {
	Name     string `yaml:"name"`
	Bundle   string `yaml:"bundle_id"`
	PID      int    `yaml:"pid"`
	Enabled  bool   `yaml:"enabled"`
	LastUsed string `yaml:"last_used,omitempty"`
}

func toWindowEntry(w model.Window) windowEntry {
	return windowEntry{
		ID:        w.ID,
		Title:     w.DisplayTitle(),
		App:       w.Application.DisplayName,
		Bundle:    w.Application.BundleIdentifier,
		PID:       w.OwnerPID,
		Bounds:    w.Bounds,
		Minimized: w.IsMinimized,
		Main:      w.IsMainWindow(),
	}
}

func yamlResult(v any) (*mcp.CallToolResult, error) {
	b, err := yaml.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(b)), nil
}

func actionToText(r actionResult) (*mcp.CallToolResult, error) {
	b, err := yaml.Marshal(r)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("ok: %v\naction: %s", r.OK, r.Action)), nil
	}
	if !r.OK {
		return mcp.NewToolResultError(string(b)), nil
	}
	return mcp.NewToolResultText(string(b)), nil
}

func (s *Server) refreshIfAsked(ctx context.Context, params map[string]any) error {
	if !boolParam(params, "refresh", false) {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, refreshTimeout)
	defer cancel()
	return s.windows.RefreshNow(ctx)
}

// lookupWindow finds the published window named by the window_id argument
func (s *Server) lookupWindow(params map[string]any) (model.Window, error) {
	id, ok := intParam(params, "window_id")
	if !ok || id < 0 || uint64(id) > math.MaxUint32 {
		return model.Window{}, fmt.Errorf("window_id is required")
	}
	w, found := s.windows.Window(model.WindowID(id))
	if !found {
		return model.Window{}, fmt.Errorf("window %d not found; call list_windows to see current IDs", id)
	}
	return w, nil
}

func (s *Server) handleListWindows(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	params := request.GetArguments()
	if err := s.refreshIfAsked(ctx, params); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("refresh failed: %v", err)), nil
	}

	if boolParam(params, "grouped", false) {
		groups := make([]groupEntry, 0)
		for _, g := range s.windows.Groups() {
			entry := groupEntry{
				App:    g.Application.DisplayName,
				Bundle: g.Application.BundleIdentifier,
				PID:    g.Application.ProcessID,
			}
			for _, w := range g.Windows {
				entry.Windows = append(entry.Windows, toWindowEntry(w))
			}
			groups = append(groups, entry)
		}
		return yamlResult(groups)
	}

	entries := make([]windowEntry, 0)
	for _, w := range s.windows.Windows() {
		entries = append(entries, toWindowEntry(w))
	}
	return yamlResult(entries)
}

func (s *Server) handleListApplications(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.refreshIfAsked(ctx, request.GetArguments()); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("refresh failed: %v", err)), nil
	}

	states := make(map[string]model.ApplicationState)
	for _, st := range s.windows.ApplicationStates() {
		states[st.BundleIdentifier] = st
	}

	entries := make([]applicationEntry, 0)
	for _, app := range s.windows.Applications() {
		entry := applicationEntry{
			Name:    app.DisplayName,
			Bundle:  app.BundleIdentifier,
			PID:     app.ProcessID,
			Enabled: s.registry.IsApplicationEnabled(app.BundleIdentifier),
		}
		if st, ok := states[app.BundleIdentifier]; ok && st.LastUsed != nil {
			entry.LastUsed = st.LastUsed.Format(time.RFC3339)
		}
		entries = append(entries, entry)
	}
	return yamlResult(entries)
}

func (s *Server) handleWindowAction(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	action := request.Params.Name
	w, err := s.lookupWindow(request.GetArguments())
	if err != nil {
		return actionToText(actionResult{Action: action, Error: err.Error()})
	}

	var ok bool
	switch action {
	case "focus_window":
		ok = s.controller.Focus(w)
	case "minimize_window":
		ok = s.controller.Minimize(w)
	case "unminimize_window":
		ok = s.controller.Unminimize(w)
	case "close_window":
		ok = s.controller.Close(w)
	default:
		return actionToText(actionResult{Action: action, Error: "unknown action"})
	}
	return actionToText(windowResult(action, w, ok))
}

func windowResult(action string, w model.Window, ok bool) actionResult {
	r := actionResult{OK: ok, Action: action, WindowID: w.ID}
	if !ok {
		r.Error = "window could not be resolved or the action was rejected"
	}
	return r
}

func (s *Server) handleMoveWindow(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	params := request.GetArguments()
	w, err := s.lookupWindow(params)
	if err != nil {
		return actionToText(actionResult{Action: "move_window", Error: err.Error()})
	}
	x, okX := intParam(params, "x")
	y, okY := intParam(params, "y")
	if !okX || !okY {
		return actionToText(actionResult{Action: "move_window", WindowID: w.ID, Error: "x and y are required"})
	}
	return actionToText(windowResult("move_window", w, s.controller.Move(w, model.Point{X: x, Y: y})))
}

func (s *Server) handleResizeWindow(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	params := request.GetArguments()
	w, err := s.lookupWindow(params)
	if err != nil {
		return actionToText(actionResult{Action: "resize_window", Error: err.Error()})
	}
	width, okW := intParam(params, "width")
	height, okH := intParam(params, "height")
	if !okW || !okH || width <= 0 || height <= 0 {
		return actionToText(actionResult{Action: "resize_window", WindowID: w.ID, Error: "positive width and height are required"})
	}
	return actionToText(windowResult("resize_window", w, s.controller.Resize(w, model.Size{Width: width, Height: height})))
}

func (s *Server) handleWindowBounds(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	w, err := s.lookupWindow(request.GetArguments())
	if err != nil {
		return actionToText(actionResult{Action: "window_bounds", Error: err.Error()})
	}
	bounds, ok := s.controller.Bounds(w)
	if !ok {
		return actionToText(windowResult("window_bounds", w, false))
	}
	return yamlResult(map[string]any{
		"window_id": w.ID,
		"bounds":    bounds,
		"minimized": s.controller.IsMinimized(w),
	})
}

func (s *Server) handleActivateApplication(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	bundle := stringParam(request.GetArguments(), "bundle_id", "")
	if bundle == "" {
		return actionToText(actionResult{Action: "activate_application", Error: "bundle_id is required"})
	}
	r := actionResult{OK: s.controller.ActivateApplication(bundle), Action: "activate_application", Bundle: bundle}
	if !r.OK {
		r.Error = "no running process could be activated"
	}
	return actionToText(r)
}

func (s *Server) handleListProfiles(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if boolParam(request.GetArguments(), "enabled_only", false) {
		return yamlResult(s.registry.EnabledProfiles())
	}
	return yamlResult(s.registry.Profiles())
}

func (s *Server) handleEnablement(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	action := request.Params.Name
	bundle := stringParam(request.GetArguments(), "bundle_id", "")
	if bundle == "" {
		return actionToText(actionResult{Action: action, Error: "bundle_id is required"})
	}

	var err error
	switch action {
	case "enable_application":
		err = s.registry.Enable(bundle)
	case "disable_application":
		err = s.registry.Disable(bundle)
	case "toggle_application":
		_, err = s.registry.Toggle(bundle)
	}
	r := actionResult{OK: err == nil, Action: action, Bundle: bundle}
	if err != nil {
		r.Error = err.Error()
	}
	enabled := s.registry.IsApplicationEnabled(bundle)
	r.Enabled = &enabled
	return actionToText(r)
}

func (s *Server) handleDiscover(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	added, err := s.registry.Discover(s.windows.Applications())
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	names := make([]string, 0, len(added))
	for _, p := range added {
		names = append(names, p.BundleIdentifier)
	}
	return yamlResult(map[string]any{"added": names})
}
