package monitor

import (
	"testing"

	"github.com/bryanchriswhite/WindowAccordion/internal/model"
	"github.com/bryanchriswhite/WindowAccordion/internal/platform"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testFilter = Filter{MinWindowSize: DefaultMinWindowSize}

func rawApp(bundle, name string, pid int) platform.RawApplication {
	return platform.RawApplication{BundleIdentifier: bundle, DisplayName: name, PID: pid}
}

func rawWindow(id uint32, pid int, title string, w, h int) platform.RawWindow {
	return platform.RawWindow{
		ID:       id,
		OwnerPID: pid,
		Title:    title,
		Bounds:   model.Rect{X: 10, Y: 10, Width: w, Height: h},
		OnScreen: true,
	}
}

func ids(windows []model.Window) []model.WindowID {
	out := make([]model.WindowID, len(windows))
	for i, w := range windows {
		out[i] = w.ID
	}
	return out
}

func TestReconcileWindowFilters(t *testing.T) {
	apps := []platform.RawApplication{rawApp("app.a", "Alpha", 100)}

	tests := []struct {
		name   string
		window platform.RawWindow
		keep   bool
	}{
		{name: "regular window", window: rawWindow(1, 100, "Doc", 800, 600), keep: true},
		{name: "unresolvable owner", window: rawWindow(1, 999, "Doc", 800, 600), keep: false},
		{name: "untitled main layer", window: rawWindow(1, 100, "", 800, 600), keep: true},
		{name: "untitled chrome", window: func() platform.RawWindow {
			w := rawWindow(1, 100, "", 800, 600)
			w.Layer = 25
			return w
		}(), keep: false},
		{name: "titled above main layer", window: func() platform.RawWindow {
			w := rawWindow(1, 100, "Palette", 800, 600)
			w.Layer = 3
			return w
		}(), keep: true},
		{name: "off-screen", window: func() platform.RawWindow {
			w := rawWindow(1, 100, "Doc", 800, 600)
			w.OnScreen = false
			return w
		}(), keep: false},
		{name: "narrow", window: rawWindow(1, 100, "Doc", 49, 600), keep: false},
		{name: "short", window: rawWindow(1, 100, "Doc", 800, 49), keep: false},
		{name: "exactly minimum", window: rawWindow(1, 100, "Doc", 50, 50), keep: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			windows, _ := Reconcile(Snapshot{
				Windows:      []platform.RawWindow{tt.window},
				Applications: apps,
			}, nil, nil, testFilter)
			if tt.keep {
				require.Len(t, windows, 1)
				assert.Equal(t, "app.a", windows[0].Application.BundleIdentifier)
				assert.Equal(t, 100, windows[0].OwnerPID)
				assert.True(t, windows[0].IsVisible)
			} else {
				assert.Empty(t, windows)
			}
		})
	}
}

func TestReconcileUndersizedNeverPublished(t *testing.T) {
	snap := Snapshot{
		Windows: []platform.RawWindow{
			rawWindow(1, 100, "Tiny", 20, 20),
			rawWindow(2, 200, "Thin", 10, 900),
		},
		Applications: []platform.RawApplication{rawApp("app.a", "A", 100), rawApp("app.b", "B", 200)},
	}
	for _, enabled := range []model.BundleSet{nil, model.NewBundleSet("app.a"), model.NewBundleSet("app.a", "app.b")} {
		windows, _ := Reconcile(snap, nil, enabled, testFilter)
		assert.Empty(t, windows)
	}
}

func TestReconcileEnabledSetGating(t *testing.T) {
	snap := Snapshot{
		Windows: []platform.RawWindow{
			rawWindow(1, 100, "A1", 800, 600),
			rawWindow(2, 200, "B1", 800, 600),
			rawWindow(3, 100, "A2", 800, 600),
		},
		Applications: []platform.RawApplication{rawApp("app.a", "A", 100), rawApp("app.b", "B", 200)},
	}

	tests := []struct {
		name    string
		enabled model.BundleSet
		want    []model.WindowID
	}{
		{name: "empty set passes all", enabled: model.NewBundleSet(), want: []model.WindowID{1, 3, 2}},
		{name: "nil set passes all", enabled: nil, want: []model.WindowID{1, 3, 2}},
		{name: "members only", enabled: model.NewBundleSet("app.b"), want: []model.WindowID{2}},
		{name: "unknown member hides everything", enabled: model.NewBundleSet("app.z"), want: []model.WindowID{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			windows, _ := Reconcile(snap, nil, tt.enabled, testFilter)
			assert.Equal(t, tt.want, ids(windows))
		})
	}
}

func TestReconcileStableOrdering(t *testing.T) {
	snap := Snapshot{
		Windows: []platform.RawWindow{
			rawWindow(5, 200, "zeta", 800, 600),
			rawWindow(4, 100, "beta", 800, 600),
			rawWindow(3, 200, "alpha", 800, 600),
			rawWindow(2, 100, "alpha", 800, 600),
			rawWindow(1, 100, "alpha", 800, 600),
		},
		Applications: []platform.RawApplication{
			rawApp("app.z", "Zed", 200),
			rawApp("app.a", "Alpha", 100),
		},
	}

	w1, a1 := Reconcile(snap, nil, nil, testFilter)
	w2, a2 := Reconcile(snap, nil, nil, testFilter)

	assert.Equal(t, []model.WindowID{2, 1, 4, 3, 5}, ids(w1), "display name, then title, then snapshot order")
	assert.Equal(t, ids(w1), ids(w2))
	assert.Equal(t, a1, a2)
	require.Len(t, a1, 2)
	assert.Equal(t, "Alpha", a1[0].DisplayName)
	assert.Equal(t, "Zed", a1[1].DisplayName)
}

func TestReconcileApplications(t *testing.T) {
	f := Filter{
		MinWindowSize:        DefaultMinWindowSize,
		SystemBundlePrefixes: []string{"org.gnome."},
		AllowedSystemApps:    model.NewBundleSet("org.gnome.nautilus"),
	}
	snap := Snapshot{
		Applications: []platform.RawApplication{
			rawApp("org.gnome.shell", "Shell", 1),
			rawApp("org.gnome.nautilus", "Files", 2),
			rawApp("", "Nameless", 3),
			rawApp("firefox", "", 4),
			rawApp("code", "Code", 5),
		},
	}

	_, apps := Reconcile(snap, nil, model.NewBundleSet("code"), f)

	names := make([]string, len(apps))
	for i, a := range apps {
		names[i] = a.DisplayName
	}
	assert.Equal(t, []string{"Code", "Files", "firefox"}, names, "apps are not gated by the enabled set")
}

type pidResolver map[int]platform.RawApplication

func (r pidResolver) ApplicationForPID(pid int) (platform.RawApplication, bool) {
	app, ok := r[pid]
	return app, ok
}

func TestReconcileResolverFallback(t *testing.T) {
	snap := Snapshot{
		Windows: []platform.RawWindow{rawWindow(1, 300, "Helper", 400, 300)},
	}
	resolver := pidResolver{300: rawApp("app.helper", "Helper", 300)}

	windows, apps := Reconcile(snap, resolver, nil, testFilter)
	require.Len(t, windows, 1)
	assert.Equal(t, "app.helper", windows[0].Application.BundleIdentifier)
	assert.Empty(t, apps, "resolved owners are not added to the application list")

	windows, _ = Reconcile(snap, pidResolver{}, nil, testFilter)
	assert.Empty(t, windows)
}

// countingResolver records every lookup
type countingResolver struct {
	pidResolver
	calls map[int]int
}

func (r *countingResolver) ApplicationForPID(pid int) (platform.RawApplication, bool) {
	r.calls[pid]++
	return r.pidResolver.ApplicationForPID(pid)
}

func TestReconcileResolvesEachPIDOnce(t *testing.T) {
	var snap Snapshot
	for i := 0; i < 50; i++ {
		snap.Windows = append(snap.Windows,
			rawWindow(uint32(i+1), 0, "Orphan", 400, 300),
			rawWindow(uint32(i+100), 400, "Stray", 400, 300),
			rawWindow(uint32(i+200), 300, "Helper", 400, 300),
		)
	}
	resolver := &countingResolver{
		pidResolver: pidResolver{300: rawApp("app.helper", "Helper", 300)},
		calls:       make(map[int]int),
	}

	windows, _ := Reconcile(snap, resolver, nil, testFilter)
	assert.Len(t, windows, 50)
	assert.Zero(t, resolver.calls[0], "pid 0 has no owner to resolve")
	assert.Equal(t, 1, resolver.calls[400], "misses are remembered")
	assert.Equal(t, 1, resolver.calls[300], "hits are remembered")
}
