package model

// WindowID is the OS-assigned window identifier. It is unique only within a
// single snapshot and must not be used as a key across polls.
type WindowID uint32

// Window represents an on-screen window observed during one poll
type Window struct {
	ID          WindowID    `json:"id" yaml:"id"`
	Title       string      `json:"title" yaml:"title"`
	Application Application `json:"application" yaml:"application"`
	Bounds      Rect        `json:"bounds" yaml:"bounds"`
	IsMinimized bool        `json:"is_minimized" yaml:"is_minimized"`
	IsVisible   bool        `json:"is_visible" yaml:"is_visible"`
	Layer       int         `json:"layer" yaml:"layer"`
	OwnerPID    int         `json:"owner_pid" yaml:"owner_pid"`
}

// Equal compares windows by ID only
func (w Window) Equal(other Window) bool {
	return w.ID == other.ID
}

// DisplayTitle returns the title, or "Untitled" when the window has none
func (w Window) DisplayTitle() string {
	if w.Title == "" {
		return "Untitled"
	}
	return w.Title
}

// IsMainWindow reports whether the window sits on the main UI layer and can be seen
func (w Window) IsMainWindow() bool {
	return w.Layer == 0 && w.IsVisible && !w.IsMinimized
}

// WindowIDs returns the set of IDs present in windows
func WindowIDs(windows []Window) map[WindowID]struct{} {
	ids := make(map[WindowID]struct{}, len(windows))
	for _, w := range windows {
		ids[w.ID] = struct{}{}
	}
	return ids
}

// AppGroup collects the windows belonging to one application instance
type AppGroup struct {
	Application Application `json:"application"`
	Windows     []Window    `json:"windows"`
}

// MainWindow returns the first main-layer window in the group
func (g AppGroup) MainWindow() (Window, bool) {
	for _, w := range g.Windows {
		if w.IsMainWindow() {
			return w, true
		}
	}
	return Window{}, false
}

// VisibleWindows returns the windows that are visible and not minimized
func (g AppGroup) VisibleWindows() []Window {
	visible := make([]Window, 0, len(g.Windows))
	for _, w := range g.Windows {
		if w.IsVisible && !w.IsMinimized {
			visible = append(visible, w)
		}
	}
	return visible
}

// GroupByApplication groups windows per application instance, preserving the
// order in which each application first appears.
func GroupByApplication(windows []Window) []AppGroup {
	index := make(map[AppKey]int)
	groups := make([]AppGroup, 0)
	for _, w := range windows {
		key := w.Application.Key()
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, AppGroup{Application: w.Application})
		}
		groups[i].Windows = append(groups[i].Windows, w)
	}
	return groups
}
