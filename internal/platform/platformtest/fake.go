// Package platformtest provides an in-memory desktop implementing every
// platform collaborator, for tests.
package platformtest

import (
	"context"
	"sync"

	"github.com/bryanchriswhite/WindowAccordion/internal/model"
	"github.com/bryanchriswhite/WindowAccordion/internal/platform"
)

// Handle identifies a fake live window element
type Handle struct {
	PID   int
	Index int
}

// PerformedAction records one PerformControlAction call
type PerformedAction struct {
	Handle Handle
	Action platform.Action
	Value  any
}

// Desktop is a scriptable fake desktop. The zero value is not usable; call
// NewDesktop.
type Desktop struct {
	mu sync.Mutex

	windows     []platform.RawWindow
	apps        []platform.RawApplication
	live        map[int][]platform.LiveWindow
	granted     bool
	activatable map[int]bool
	rejected    map[platform.Action]bool

	snapshotCalls int
	activations   []int
	performed     []PerformedAction
	prompts       int

	emitMu sync.Mutex
	emit   func(platform.LifecycleEvent)
}

// NewDesktop returns a desktop with permission granted and nothing running
func NewDesktop() *Desktop {
	return &Desktop{
		granted:     true,
		live:        make(map[int][]platform.LiveWindow),
		activatable: make(map[int]bool),
		rejected:    make(map[platform.Action]bool),
	}
}

// Provider wires the desktop into every collaborator slot
func (d *Desktop) Provider() *platform.Provider {
	return &platform.Provider{
		Windows:     d,
		Apps:        d,
		Permission:  d,
		Activator:   d,
		Control:     d,
		Lifecycle:   []platform.LifecycleSource{d},
		BackendName: "fake",
	}
}

// SetWindows replaces the raw window snapshot
func (d *Desktop) SetWindows(windows ...platform.RawWindow) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.windows = append([]platform.RawWindow(nil), windows...)
}

// SetApplications replaces the running application list. Every listed
// process becomes activatable.
func (d *Desktop) SetApplications(apps ...platform.RawApplication) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.apps = append([]platform.RawApplication(nil), apps...)
	for _, a := range apps {
		if _, ok := d.activatable[a.PID]; !ok {
			d.activatable[a.PID] = true
		}
	}
}

// SetLiveWindows sets the elements the control surface reports for pid.
// Handles are assigned automatically.
func (d *Desktop) SetLiveWindows(pid int, windows ...platform.LiveWindow) {
	d.mu.Lock()
	defer d.mu.Unlock()
	live := make([]platform.LiveWindow, len(windows))
	for i, w := range windows {
		w.Handle = Handle{PID: pid, Index: i}
		live[i] = w
	}
	d.live[pid] = live
}

// SetPermission toggles the permission gate
func (d *Desktop) SetPermission(granted bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.granted = granted
}

// SetActivatable controls whether ActivateProcess succeeds for pid
func (d *Desktop) SetActivatable(pid int, ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.activatable[pid] = ok
}

// Reject makes every future call of action fail
func (d *Desktop) Reject(action platform.Action) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rejected[action] = true
}

// SnapshotCalls returns how many snapshots were taken
func (d *Desktop) SnapshotCalls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.snapshotCalls
}

// Activations returns the PIDs passed to ActivateProcess, in order
func (d *Desktop) Activations() []int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]int(nil), d.activations...)
}

// Performed returns every control action performed, in order
func (d *Desktop) Performed() []PerformedAction {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]PerformedAction(nil), d.performed...)
}

// Prompts returns how many times permission was requested
func (d *Desktop) Prompts() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.prompts
}

// SnapshotWindows implements platform.WindowSnapshotter
func (d *Desktop) SnapshotWindows() []platform.RawWindow {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.snapshotCalls++
	return append([]platform.RawWindow(nil), d.windows...)
}

// RunningApplications implements platform.ApplicationEnumerator
func (d *Desktop) RunningApplications() []platform.RawApplication {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]platform.RawApplication(nil), d.apps...)
}

// IsPermissionGranted implements platform.PermissionGate
func (d *Desktop) IsPermissionGranted() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.granted
}

// PromptForPermission implements platform.PermissionGate
func (d *Desktop) PromptForPermission() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.prompts++
}

// ActivateProcess implements platform.ProcessActivator
func (d *Desktop) ActivateProcess(pid int) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.activations = append(d.activations, pid)
	return d.activatable[pid]
}

// LiveWindows implements platform.ControlSurface
func (d *Desktop) LiveWindows(pid int, limit int) []platform.LiveWindow {
	d.mu.Lock()
	defer d.mu.Unlock()
	live := d.live[pid]
	if limit > 0 && len(live) > limit {
		live = live[:limit]
	}
	return append([]platform.LiveWindow(nil), live...)
}

// PerformControlAction implements platform.ControlSurface. Position, size and
// minimized updates are applied to the stored live window.
func (d *Desktop) PerformControlAction(handle platform.ControlHandle, action platform.Action, value any) bool {
	h, ok := handle.(Handle)
	if !ok {
		return false
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.performed = append(d.performed, PerformedAction{Handle: h, Action: action, Value: value})
	if d.rejected[action] {
		return false
	}

	live := d.live[h.PID]
	if h.Index < 0 || h.Index >= len(live) {
		return false
	}
	switch action {
	case platform.ActionSetPosition:
		p, ok := value.(model.Point)
		if !ok {
			return false
		}
		live[h.Index].Bounds.X, live[h.Index].Bounds.Y = p.X, p.Y
	case platform.ActionSetSize:
		s, ok := value.(model.Size)
		if !ok {
			return false
		}
		live[h.Index].Bounds.Width, live[h.Index].Bounds.Height = s.Width, s.Height
	case platform.ActionSetMinimized:
		m, ok := value.(bool)
		if !ok {
			return false
		}
		live[h.Index].IsMinimized = m
	case platform.ActionClose:
		d.live[h.PID] = append(live[:h.Index:h.Index], live[h.Index+1:]...)
	}
	return true
}

// WatchLifecycle implements platform.LifecycleSource. Events passed to Emit
// are delivered until ctx is done.
func (d *Desktop) WatchLifecycle(ctx context.Context, emit func(platform.LifecycleEvent)) error {
	d.emitMu.Lock()
	d.emit = emit
	d.emitMu.Unlock()

	<-ctx.Done()

	d.emitMu.Lock()
	d.emit = nil
	d.emitMu.Unlock()
	return nil
}

// Emit delivers a lifecycle event to the active watcher, if any. It reports
// whether a watcher received it.
func (d *Desktop) Emit(ev platform.LifecycleEvent) bool {
	d.emitMu.Lock()
	emit := d.emit
	d.emitMu.Unlock()
	if emit == nil {
		return false
	}
	emit(ev)
	return true
}
