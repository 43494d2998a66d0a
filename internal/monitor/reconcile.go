package monitor

import (
	"sort"
	"strings"

	"github.com/bryanchriswhite/WindowAccordion/internal/model"
	"github.com/bryanchriswhite/WindowAccordion/internal/platform"
)

// Filter holds the rules applied to every snapshot
type Filter struct {
	MinWindowSize        model.Size
	SystemBundlePrefixes []string
	AllowedSystemApps    model.BundleSet
}

// DefaultMinWindowSize is the smallest window that enters the model
var DefaultMinWindowSize = model.Size{Width: 50, Height: 50}

// isSystemApp reports whether bundleID belongs to the desktop shell and is not
// allow-listed
func (f Filter) isSystemApp(bundleID string) bool {
	if f.AllowedSystemApps.Has(bundleID) {
		return false
	}
	for _, prefix := range f.SystemBundlePrefixes {
		if prefix != "" && strings.HasPrefix(bundleID, prefix) {
			return true
		}
	}
	return false
}

// Snapshot is one poll's worth of raw descriptors
type Snapshot struct {
	Windows      []platform.RawWindow
	Applications []platform.RawApplication
}

// Reconcile turns a raw snapshot into the window and application lists the
// monitor publishes. It is pure apart from calls into resolver, which may be
// nil.
//
// Windows are dropped when their owner cannot be resolved, when they are
// untitled chrome above layer 0, when they are off-screen or when they are
// smaller than the minimum size. A non-empty enabled set keeps only windows of
// member applications. Both lists are sorted by display name; windows break
// ties by title.
func Reconcile(snap Snapshot, resolver platform.ApplicationResolver, enabled model.BundleSet, f Filter) ([]model.Window, []model.Application) {
	byPID := make(map[int]model.Application, len(snap.Applications))
	for _, raw := range snap.Applications {
		if raw.BundleIdentifier == "" {
			continue
		}
		if _, dup := byPID[raw.PID]; dup {
			continue
		}
		byPID[raw.PID] = toApplication(raw)
	}

	// PIDs the resolver could not answer for, asked at most once per tick
	unresolved := make(map[int]bool)
	resolve := func(pid int) (model.Application, bool) {
		if app, ok := byPID[pid]; ok {
			return app, true
		}
		if resolver == nil || pid == 0 || unresolved[pid] {
			return model.Application{}, false
		}
		raw, ok := resolver.ApplicationForPID(pid)
		if !ok || raw.BundleIdentifier == "" {
			unresolved[pid] = true
			return model.Application{}, false
		}
		app := toApplication(raw)
		byPID[pid] = app
		return app, true
	}

	windows := make([]model.Window, 0, len(snap.Windows))
	for _, raw := range snap.Windows {
		app, ok := resolve(raw.OwnerPID)
		if !ok {
			continue
		}
		if raw.Title == "" && raw.Layer != 0 {
			continue
		}
		if !raw.OnScreen {
			continue
		}
		if raw.Bounds.SmallerThan(f.MinWindowSize) {
			continue
		}
		if len(enabled) > 0 && !enabled.Has(app.BundleIdentifier) {
			continue
		}
		windows = append(windows, model.Window{
			ID:          model.WindowID(raw.ID),
			Title:       raw.Title,
			Application: app,
			Bounds:      raw.Bounds,
			IsMinimized: false,
			IsVisible:   raw.OnScreen,
			Layer:       raw.Layer,
			OwnerPID:    raw.OwnerPID,
		})
	}
	sort.SliceStable(windows, func(i, j int) bool {
		a, b := windows[i], windows[j]
		if a.Application.DisplayName != b.Application.DisplayName {
			return a.Application.DisplayName < b.Application.DisplayName
		}
		return a.Title < b.Title
	})

	apps := make([]model.Application, 0, len(snap.Applications))
	for _, raw := range snap.Applications {
		if raw.BundleIdentifier == "" || f.isSystemApp(raw.BundleIdentifier) {
			continue
		}
		apps = append(apps, toApplication(raw))
	}
	sort.SliceStable(apps, func(i, j int) bool {
		return apps[i].DisplayName < apps[j].DisplayName
	})

	return windows, apps
}

func toApplication(raw platform.RawApplication) model.Application {
	name := raw.DisplayName
	if name == "" {
		name = raw.BundleIdentifier
	}
	return model.Application{
		BundleIdentifier: raw.BundleIdentifier,
		DisplayName:      name,
		Icon:             raw.Icon,
		ProcessID:        raw.PID,
	}
}
