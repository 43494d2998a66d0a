package mcptools

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/bryanchriswhite/WindowAccordion/internal/focus"
	"github.com/bryanchriswhite/WindowAccordion/internal/logger"
	"github.com/bryanchriswhite/WindowAccordion/internal/model"
	"github.com/bryanchriswhite/WindowAccordion/internal/monitor"
	"github.com/bryanchriswhite/WindowAccordion/internal/platform"
	"github.com/bryanchriswhite/WindowAccordion/internal/platform/platformtest"
	"github.com/bryanchriswhite/WindowAccordion/internal/registry"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

var editorBounds = model.Rect{X: 0, Y: 0, Width: 1200, Height: 900}

func newTestServer(t *testing.T) (*Server, *platformtest.Desktop, *registry.Registry) {
	t.Helper()
	logger.SetOutput(io.Discard)

	desktop := platformtest.NewDesktop()
	desktop.SetApplications(
		platform.RawApplication{BundleIdentifier: "code", DisplayName: "Code", PID: 10},
		platform.RawApplication{BundleIdentifier: "firefox", DisplayName: "Firefox", PID: 20},
	)
	desktop.SetWindows(
		platform.RawWindow{ID: 41, OwnerPID: 10, Title: "main.go", Bounds: editorBounds, OnScreen: true},
		platform.RawWindow{ID: 42, OwnerPID: 20, Title: "Docs", Bounds: editorBounds, OnScreen: true},
	)
	desktop.SetLiveWindows(10, platform.LiveWindow{Title: "main.go", Bounds: editorBounds})

	reg := registry.New(registry.Options{
		DefaultEnabled:  []string{"code"},
		DefaultProfiles: []registry.Profile{},
	})
	provider := desktop.Provider()
	m, err := monitor.New(monitor.Options{Provider: provider, Registry: reg})
	require.NoError(t, err)
	ctrl, err := focus.New(focus.Options{Provider: provider})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		m.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	refreshCtx, refreshCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer refreshCancel()
	require.NoError(t, m.RefreshNow(refreshCtx))

	return NewServer(m, ctrl, reg, "test"), desktop, reg
}

func call(name string, args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func text(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, result)
	require.NotEmpty(t, result.Content)
	switch c := result.Content[0].(type) {
	case mcp.TextContent:
		return c.Text
	case *mcp.TextContent:
		return c.Text
	}
	t.Fatalf("unexpected content %T", result.Content[0])
	return ""
}

func TestListWindows(t *testing.T) {
	s, _, _ := newTestServer(t)

	result, err := s.handleListWindows(context.Background(), call("list_windows", nil))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	var windows []windowEntry
	require.NoError(t, yaml.Unmarshal([]byte(text(t, result)), &windows))
	require.Len(t, windows, 1)
	assert.Equal(t, model.WindowID(41), windows[0].ID)
	assert.Equal(t, "code", windows[0].Bundle)
	assert.True(t, windows[0].Main)

	result, err = s.handleListWindows(context.Background(), call("list_windows", map[string]any{"grouped": true, "refresh": true}))
	require.NoError(t, err)
	var groups []groupEntry
	require.NoError(t, yaml.Unmarshal([]byte(text(t, result)), &groups))
	require.Len(t, groups, 1)
	assert.Equal(t, "Code", groups[0].App)
	assert.Len(t, groups[0].Windows, 1)
}

func TestListApplications(t *testing.T) {
	s, _, _ := newTestServer(t)

	result, err := s.handleListApplications(context.Background(), call("list_applications", nil))
	require.NoError(t, err)

	var apps []applicationEntry
	require.NoError(t, yaml.Unmarshal([]byte(text(t, result)), &apps))
	require.Len(t, apps, 2)
	enabled := map[string]bool{}
	for _, a := range apps {
		enabled[a.Bundle] = a.Enabled
	}
	assert.Equal(t, map[string]bool{"code": true, "firefox": false}, enabled)
}

func TestWindowActions(t *testing.T) {
	s, desktop, _ := newTestServer(t)

	tests := []struct {
		name    string
		args    map[string]any
		wantErr bool
	}{
		{"focus_window", map[string]any{"window_id": float64(41)}, false},
		{"minimize_window", map[string]any{"window_id": float64(41)}, false},
		{"unminimize_window", map[string]any{"window_id": float64(41)}, false},
		{"focus_window", map[string]any{"window_id": float64(42)}, true},
		{"focus_window", map[string]any{}, true},
		{"close_window", map[string]any{"window_id": float64(41)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := s.handleWindowAction(context.Background(), call(tt.name, tt.args))
			require.NoError(t, err)
			assert.Equal(t, tt.wantErr, result.IsError, text(t, result))
		})
	}

	var closed bool
	for _, p := range desktop.Performed() {
		if p.Action == platform.ActionClose {
			closed = true
		}
	}
	assert.True(t, closed)
}

func TestMoveResizeBounds(t *testing.T) {
	s, _, _ := newTestServer(t)

	result, err := s.handleMoveWindow(context.Background(), call("move_window", map[string]any{"window_id": float64(41), "x": float64(5), "y": float64(6)}))
	require.NoError(t, err)
	assert.False(t, result.IsError, text(t, result))

	result, err = s.handleResizeWindow(context.Background(), call("resize_window", map[string]any{"window_id": float64(41), "width": float64(640), "height": float64(480)}))
	require.NoError(t, err)
	assert.False(t, result.IsError, text(t, result))

	result, err = s.handleResizeWindow(context.Background(), call("resize_window", map[string]any{"window_id": float64(41), "width": float64(-1), "height": float64(480)}))
	require.NoError(t, err)
	assert.True(t, result.IsError)

	result, err = s.handleMoveWindow(context.Background(), call("move_window", map[string]any{"window_id": float64(41)}))
	require.NoError(t, err)
	assert.True(t, result.IsError)

	result, err = s.handleWindowBounds(context.Background(), call("window_bounds", map[string]any{"window_id": float64(41)}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var body struct {
		Bounds    model.Rect `yaml:"bounds"`
		Minimized bool       `yaml:"minimized"`
	}
	require.NoError(t, yaml.Unmarshal([]byte(text(t, result)), &body))
	assert.Equal(t, model.Rect{X: 5, Y: 6, Width: 640, Height: 480}, body.Bounds)
	assert.False(t, body.Minimized)
}

func TestActivateApplicationTool(t *testing.T) {
	s, desktop, _ := newTestServer(t)

	result, err := s.handleActivateApplication(context.Background(), call("activate_application", map[string]any{"bundle_id": "firefox"}))
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Equal(t, []int{20}, desktop.Activations())

	result, err = s.handleActivateApplication(context.Background(), call("activate_application", map[string]any{}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestEnablementTools(t *testing.T) {
	s, _, reg := newTestServer(t)

	result, err := s.handleEnablement(context.Background(), call("enable_application", map[string]any{"bundle_id": "firefox"}))
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.True(t, reg.IsApplicationEnabled("firefox"))

	result, err = s.handleEnablement(context.Background(), call("toggle_application", map[string]any{"bundle_id": "code"}))
	require.NoError(t, err)
	var r actionResult
	require.NoError(t, yaml.Unmarshal([]byte(text(t, result)), &r))
	require.NotNil(t, r.Enabled)
	assert.False(t, *r.Enabled)

	result, err = s.handleEnablement(context.Background(), call("disable_application", map[string]any{"bundle_id": "firefox"}))
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Empty(t, reg.EnabledApplications())

	result, err = s.handleEnablement(context.Background(), call("disable_application", nil))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestDiscoverAndListProfiles(t *testing.T) {
	s, _, _ := newTestServer(t)

	result, err := s.handleDiscover(context.Background(), call("discover_applications", nil))
	require.NoError(t, err)
	var discovered struct {
		Added []string `yaml:"added"`
	}
	require.NoError(t, yaml.Unmarshal([]byte(text(t, result)), &discovered))
	assert.Equal(t, []string{"firefox"}, discovered.Added)

	result, err = s.handleListProfiles(context.Background(), call("list_profiles", map[string]any{"enabled_only": true}))
	require.NoError(t, err)
	var profiles []registry.Profile
	require.NoError(t, yaml.Unmarshal([]byte(text(t, result)), &profiles))
	require.Len(t, profiles, 1)
	assert.Equal(t, "code", profiles[0].BundleIdentifier)
}

func TestParams(t *testing.T) {
	params := map[string]any{"s": "text", "n": float64(3), "i": 7, "b": true, "f": 1.5}

	assert.Equal(t, "text", stringParam(params, "s", ""))
	assert.Equal(t, "3", stringParam(params, "n", ""))
	assert.Equal(t, "fallback", stringParam(params, "missing", "fallback"))

	n, ok := intParam(params, "n")
	assert.True(t, ok)
	assert.Equal(t, 3, n)
	n, ok = intParam(params, "i")
	assert.True(t, ok)
	assert.Equal(t, 7, n)
	_, ok = intParam(params, "s")
	assert.False(t, ok)
	_, ok = intParam(params, "missing")
	assert.False(t, ok)

	assert.True(t, boolParam(params, "b", false))
	assert.True(t, boolParam(params, "missing", true))
	assert.False(t, boolParam(params, "s", false))
}

func TestServeRejectsUnknownTransport(t *testing.T) {
	s, _, _ := newTestServer(t)
	err := s.Serve(context.Background(), Config{Transport: "carrier-pigeon"})
	assert.ErrorContains(t, err, "unsupported transport")
}
