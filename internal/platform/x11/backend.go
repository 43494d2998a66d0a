// Package x11 implements the platform collaborators on an X11 display using
// EWMH and ICCCM hints. X11 has no per-client accessibility permission, no
// application bundles and no process activation, so:
//
//   - the permission gate is always granted
//   - the bundle identifier is the lowercased WM_CLASS class
//   - activating a process activates its topmost client window
package x11

import (
	"fmt"
	"sync"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/bryanchriswhite/WindowAccordion/internal/logger"
	"github.com/bryanchriswhite/WindowAccordion/internal/platform"
	"github.com/rs/zerolog"
)

// Backend talks to the X server for snapshots and control actions
type Backend struct {
	xu   *xgbutil.XUtil
	root xproto.Window
	log  *zerolog.Logger

	iconMu sync.Mutex
	icons  map[string]iconEntry
}

// New connects to the X server named by $DISPLAY
func New() (*Backend, error) {
	xu, err := xgbutil.NewConn()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X server: %w", err)
	}

	return &Backend{
		xu:    xu,
		root:  xu.RootWin(),
		log:   logger.WithComponent("x11-backend"),
		icons: make(map[string]iconEntry),
	}, nil
}

// NewProvider connects and wires the backend into every collaborator slot
func NewProvider() (*platform.Provider, error) {
	b, err := New()
	if err != nil {
		return nil, err
	}
	return &platform.Provider{
		Windows:     b,
		Apps:        b,
		Permission:  b,
		Activator:   b,
		Control:     b,
		Lifecycle:   []platform.LifecycleSource{b},
		CloseFunc:   b.Close,
		BackendName: b.Name(),
	}, nil
}

// Name returns the backend name
func (b *Backend) Name() string {
	return "x11"
}

// Close closes the X11 connection
func (b *Backend) Close() error {
	b.xu.Conn().Close()
	return nil
}

// IsPermissionGranted implements platform.PermissionGate. Any X client may
// inspect and control any other.
func (b *Backend) IsPermissionGranted() bool {
	return true
}

// PromptForPermission implements platform.PermissionGate
func (b *Backend) PromptForPermission() {
	b.log.Debug().Msg("X11 needs no window control permission")
}

func (b *Backend) atom(name string) (xproto.Atom, error) {
	return internAtom(b.xu, name)
}
