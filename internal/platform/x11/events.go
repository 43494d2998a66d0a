package x11

import (
	"context"
	"fmt"
	"sort"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/ewmh"
	"github.com/BurntSushi/xgbutil/icccm"
	"github.com/BurntSushi/xgbutil/xwindow"
	"github.com/bryanchriswhite/WindowAccordion/internal/platform"
)

// WatchLifecycle implements platform.LifecycleSource. A process counts as
// launched when its first client is managed and terminated when its last one
// goes away. Changes of _NET_ACTIVE_WINDOW report activations.
//
// Events are read on a dedicated connection so the blocking read never stalls
// snapshot and control requests.
func (b *Backend) WatchLifecycle(ctx context.Context, emit func(platform.LifecycleEvent)) error {
	xu, err := xgbutil.NewConn()
	if err != nil {
		return fmt.Errorf("failed to open event connection: %w", err)
	}

	root := xwindow.New(xu, xu.RootWin())
	if err := root.Listen(xproto.EventMaskPropertyChange); err != nil {
		xu.Conn().Close()
		return fmt.Errorf("failed to listen on root window: %w", err)
	}

	clientList, err := internAtom(xu, "_NET_CLIENT_LIST")
	if err != nil {
		xu.Conn().Close()
		return err
	}
	activeWindow, err := internAtom(xu, "_NET_ACTIVE_WINDOW")
	if err != nil {
		xu.Conn().Close()
		return err
	}

	go func() {
		<-ctx.Done()
		xu.Conn().Close()
	}()

	known := processes(xu)
	lastActive := 0
	b.log.Info().Int("processes", len(known)).Msg("Watching X11 lifecycle events")

	for {
		ev, xerr := xu.Conn().WaitForEvent()
		if ctx.Err() != nil {
			return nil
		}
		if ev == nil && xerr == nil {
			return fmt.Errorf("X11 event connection closed")
		}
		if xerr != nil {
			b.log.Debug().Str("error", xerr.Error()).Msg("X11 event error")
			continue
		}

		prop, ok := ev.(xproto.PropertyNotifyEvent)
		if !ok {
			continue
		}

		switch prop.Atom {
		case clientList:
			current := processes(xu)
			launched, terminated := diffProcesses(known, current)
			for _, pid := range launched {
				emit(platform.LifecycleEvent{Kind: platform.Launched, PID: pid, BundleIdentifier: current[pid]})
			}
			for _, pid := range terminated {
				emit(platform.LifecycleEvent{Kind: platform.Terminated, PID: pid, BundleIdentifier: known[pid]})
			}
			known = current

		case activeWindow:
			win, err := ewmh.ActiveWindowGet(xu)
			if err != nil || win == 0 {
				continue
			}
			pid, err := ewmh.WmPidGet(xu, win)
			if err != nil || int(pid) == lastActive {
				continue
			}
			lastActive = int(pid)
			emit(platform.LifecycleEvent{Kind: platform.Activated, PID: lastActive, BundleIdentifier: known[lastActive]})
		}
	}
}

func internAtom(xu *xgbutil.XUtil, name string) (xproto.Atom, error) {
	reply, err := xproto.InternAtom(xu.Conn(), false, uint16(len(name)), name).Reply()
	if err != nil {
		return 0, fmt.Errorf("failed to intern %s: %w", name, err)
	}
	return reply.Atom, nil
}

// processes maps each PID owning a managed client to its bundle identifier
func processes(xu *xgbutil.XUtil) map[int]string {
	out := make(map[int]string)
	clients, err := ewmh.ClientListGet(xu)
	if err != nil {
		return out
	}
	for _, win := range clients {
		pid, err := ewmh.WmPidGet(xu, win)
		if err != nil || pid == 0 {
			continue
		}
		if _, ok := out[int(pid)]; ok {
			continue
		}
		bundle := ""
		if class, err := icccm.WmClassGet(xu, win); err == nil {
			bundle, _ = bundleFromClass(class)
		}
		out[int(pid)] = bundle
	}
	return out
}

// diffProcesses returns the PIDs that appeared in and vanished from next,
// each sorted ascending
func diffProcesses(prev, next map[int]string) (launched, terminated []int) {
	for pid := range next {
		if _, ok := prev[pid]; !ok {
			launched = append(launched, pid)
		}
	}
	for pid := range prev {
		if _, ok := next[pid]; !ok {
			terminated = append(terminated, pid)
		}
	}
	sort.Ints(launched)
	sort.Ints(terminated)
	return launched, terminated
}
