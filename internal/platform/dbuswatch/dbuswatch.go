// Package dbuswatch reports application launches and exits from the session
// bus. Desktop applications claim a well-known bus name matching their
// application ID, so NameOwnerChanged signals for those names mirror the
// application lifecycle, often before the first window is mapped.
package dbuswatch

import (
	"context"
	"fmt"
	"strings"

	"github.com/bryanchriswhite/WindowAccordion/internal/logger"
	"github.com/bryanchriswhite/WindowAccordion/internal/platform"
	"github.com/godbus/dbus/v5"
	"github.com/rs/zerolog"
)

const (
	busInterface       = "org.freedesktop.DBus"
	nameOwnerChanged   = "NameOwnerChanged"
	getConnectionPID   = busInterface + ".GetConnectionUnixProcessID"
	listNames          = busInterface + ".ListNames"
	nameOwnerSignal    = busInterface + "." + nameOwnerChanged
	signalBufferLength = 16
)

// Bus name prefixes owned by session services rather than applications
var serviceNamePrefixes = []string{
	"org.freedesktop.",
	"org.gtk.",
	"org.a11y.",
	"org.kde.KWin",
	"org.kde.kded",
	"org.kde.StatusNotifier",
	"org.kde.plasmashell",
	"org.gnome.Shell",
	"org.gnome.SessionManager",
	"org.gnome.SettingsDaemon",
	"org.mpris.",
	"ca.desrt.",
	"com.canonical.",
}

// Watcher is a platform.LifecycleSource backed by the session bus
type Watcher struct {
	connect func() (*dbus.Conn, error)
	log     *zerolog.Logger
}

// New returns a watcher that connects to the session bus when started
func New() *Watcher {
	return &Watcher{
		connect: func() (*dbus.Conn, error) { return dbus.ConnectSessionBus() },
		log:     logger.WithComponent("dbus-watch"),
	}
}

// IsApplicationName reports whether a bus name looks like an application ID
func IsApplicationName(name string) bool {
	if name == "" || strings.HasPrefix(name, ":") || !strings.Contains(name, ".") {
		return false
	}
	for _, prefix := range serviceNamePrefixes {
		if strings.HasPrefix(name, prefix) {
			return false
		}
	}
	return true
}

// BundleIdentifier maps an application bus name to the bundle identifier
// the window backend derives from WM_CLASS
func BundleIdentifier(name string) string {
	return strings.ToLower(name)
}

// ownerChange classifies a NameOwnerChanged signal
func ownerChange(name, oldOwner, newOwner string) (platform.LifecycleKind, bool) {
	if !IsApplicationName(name) {
		return "", false
	}
	switch {
	case oldOwner == "" && newOwner != "":
		return platform.Launched, true
	case oldOwner != "" && newOwner == "":
		return platform.Terminated, true
	default:
		return "", false
	}
}

// parseOwnerChanged extracts name, old owner and new owner from a signal body
func parseOwnerChanged(sig *dbus.Signal) (name, oldOwner, newOwner string, ok bool) {
	if sig == nil || sig.Name != nameOwnerSignal || len(sig.Body) != 3 {
		return "", "", "", false
	}
	name, ok1 := sig.Body[0].(string)
	oldOwner, ok2 := sig.Body[1].(string)
	newOwner, ok3 := sig.Body[2].(string)
	return name, oldOwner, newOwner, ok1 && ok2 && ok3
}

func connectionPID(conn *dbus.Conn, name string) (int, error) {
	var pid uint32
	if err := conn.BusObject().Call(getConnectionPID, 0, name).Store(&pid); err != nil {
		return 0, err
	}
	return int(pid), nil
}

// WatchLifecycle implements platform.LifecycleSource. It blocks until ctx is
// cancelled or the bus connection drops.
func (w *Watcher) WatchLifecycle(ctx context.Context, emit func(platform.LifecycleEvent)) error {
	conn, err := w.connect()
	if err != nil {
		return fmt.Errorf("failed to connect to session bus: %w", err)
	}
	defer conn.Close()

	if err := conn.AddMatchSignal(
		dbus.WithMatchInterface(busInterface),
		dbus.WithMatchMember(nameOwnerChanged),
	); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", nameOwnerChanged, err)
	}

	// PIDs must be looked up while the name is owned; remember them for exit
	pids := make(map[string]int)
	var names []string
	if err := conn.BusObject().Call(listNames, 0).Store(&names); err != nil {
		w.log.Warn().Err(err).Msg("Failed to list D-Bus names")
	}
	for _, name := range names {
		if !IsApplicationName(name) {
			continue
		}
		if pid, err := connectionPID(conn, name); err == nil {
			pids[name] = pid
		}
	}
	w.log.Info().Int("applications", len(pids)).Msg("Watching session bus for application lifecycle")

	signals := make(chan *dbus.Signal, signalBufferLength)
	conn.Signal(signals)
	defer conn.RemoveSignal(signals)

	for {
		select {
		case <-ctx.Done():
			return nil
		case sig, ok := <-signals:
			if !ok {
				return fmt.Errorf("session bus signal channel closed")
			}
			name, oldOwner, newOwner, ok := parseOwnerChanged(sig)
			if !ok {
				continue
			}
			kind, ok := ownerChange(name, oldOwner, newOwner)
			if !ok {
				continue
			}

			var pid int
			if kind == platform.Launched {
				pid, err = connectionPID(conn, name)
				if err != nil {
					w.log.Debug().Err(err).Str("name", name).Msg("Failed to resolve PID for bus name")
					continue
				}
				pids[name] = pid
			} else {
				pid = pids[name]
				delete(pids, name)
			}

			w.log.Debug().
				Str("kind", string(kind)).
				Str("name", name).
				Int("pid", pid).
				Msg("Application lifecycle event")
			emit(platform.LifecycleEvent{
				Kind:             kind,
				PID:              pid,
				BundleIdentifier: BundleIdentifier(name),
			})
		}
	}
}
