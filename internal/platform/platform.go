package platform

import (
	"context"
	"image"

	"github.com/bryanchriswhite/WindowAccordion/internal/model"
)

// RawWindow is one entry of a window snapshot as reported by the OS
type RawWindow struct {
	ID       uint32
	OwnerPID int
	Bounds   model.Rect
	Title    string
	Layer    int
	OnScreen bool
}

// RawApplication is one running application as reported by the OS
type RawApplication struct {
	BundleIdentifier string
	DisplayName      string
	PID              int
	Icon             image.Image
}

// ControlHandle is an opaque reference to a live window element. Only the
// ControlSurface that produced it knows how to interpret it.
type ControlHandle any

// LiveWindow is a window element enumerated through the control surface at
// the moment of an action
type LiveWindow struct {
	Title       string
	Bounds      model.Rect
	IsMinimized bool
	Handle      ControlHandle
}

// Action is a control operation performed on a live window element
type Action string

const (
	ActionRaise        Action = "raise"
	ActionClose        Action = "close"
	ActionSetMinimized Action = "set_minimized"
	ActionSetPosition  Action = "set_position"
	ActionSetSize      Action = "set_size"
	ActionSetMain      Action = "set_main"
	ActionSetFocused   Action = "set_focused"
)

// WindowSnapshotter lists on-screen windows. Implementations are best effort
// and return an empty list on failure.
type WindowSnapshotter interface {
	SnapshotWindows() []RawWindow
}

// ApplicationEnumerator lists running applications
type ApplicationEnumerator interface {
	RunningApplications() []RawApplication
}

// ApplicationResolver resolves the application owning a process. Enumerators
// that can answer this more cheaply than a full listing implement it.
type ApplicationResolver interface {
	ApplicationForPID(pid int) (RawApplication, bool)
}

// PermissionGate reports whether this process may observe and control other
// processes' windows
type PermissionGate interface {
	IsPermissionGranted() bool
	// PromptForPermission asks the user for access. Fire and forget.
	PromptForPermission()
}

// ProcessActivator brings a process to the foreground
type ProcessActivator interface {
	ActivateProcess(pid int) bool
}

// ControlSurface enumerates and acts on another process's window elements
type ControlSurface interface {
	// LiveWindows returns at most limit window elements owned by pid
	LiveWindows(pid int, limit int) []LiveWindow

	// PerformControlAction applies action to the element behind handle.
	// value carries a model.Point for ActionSetPosition, a model.Size for
	// ActionSetSize and a bool for ActionSetMinimized.
	PerformControlAction(handle ControlHandle, action Action, value any) bool
}

// LifecycleKind names an application lifecycle notification
type LifecycleKind string

const (
	Launched   LifecycleKind = "launched"
	Terminated LifecycleKind = "terminated"
	Activated  LifecycleKind = "activated"
)

// LifecycleEvent is an application lifecycle notification from the OS
type LifecycleEvent struct {
	Kind             LifecycleKind
	PID              int
	BundleIdentifier string
}

// LifecycleSource delivers application lifecycle notifications until ctx is
// cancelled. It blocks, so callers run it in a goroutine.
type LifecycleSource interface {
	WatchLifecycle(ctx context.Context, emit func(LifecycleEvent)) error
}
