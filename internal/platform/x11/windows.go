package x11

import (
	"sort"
	"strings"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil/ewmh"
	"github.com/BurntSushi/xgbutil/icccm"
	"github.com/bryanchriswhite/WindowAccordion/internal/model"
	"github.com/bryanchriswhite/WindowAccordion/internal/platform"
)

const stickyDesktop = 0xFFFFFFFF

// Window type layers. Normal and dialog windows are on the main layer.
var typeLayers = map[string]int{
	"_NET_WM_WINDOW_TYPE_DESKTOP":       -20,
	"_NET_WM_WINDOW_TYPE_DOCK":          20,
	"_NET_WM_WINDOW_TYPE_TOOLBAR":       3,
	"_NET_WM_WINDOW_TYPE_MENU":          3,
	"_NET_WM_WINDOW_TYPE_UTILITY":       3,
	"_NET_WM_WINDOW_TYPE_SPLASH":        10,
	"_NET_WM_WINDOW_TYPE_DROPDOWN_MENU": 25,
	"_NET_WM_WINDOW_TYPE_POPUP_MENU":    25,
	"_NET_WM_WINDOW_TYPE_TOOLTIP":       25,
	"_NET_WM_WINDOW_TYPE_NOTIFICATION":  25,
	"_NET_WM_WINDOW_TYPE_COMBO":         25,
	"_NET_WM_WINDOW_TYPE_DND":           25,
}

// layerFor maps EWMH window types and states to a stacking layer
func layerFor(types, states []string) int {
	for _, t := range types {
		if layer, ok := typeLayers[t]; ok {
			return layer
		}
	}
	for _, s := range states {
		if s == "_NET_WM_STATE_ABOVE" {
			return 3
		}
	}
	return 0
}

// isHidden reports whether EWMH or ICCCM state marks the window minimized
func isHidden(states []string, iconic bool) bool {
	if iconic {
		return true
	}
	for _, s := range states {
		if s == "_NET_WM_STATE_HIDDEN" {
			return true
		}
	}
	return false
}

// bundleFromClass derives the bundle identifier from WM_CLASS, preferring the
// class over the instance
func bundleFromClass(class *icccm.WmClass) (bundle, display string) {
	if class == nil {
		return "", ""
	}
	name := strings.TrimSpace(class.Class)
	if name == "" {
		name = strings.TrimSpace(class.Instance)
	}
	return strings.ToLower(name), name
}

// clientInfo is everything read about one managed client
type clientInfo struct {
	id       xproto.Window
	pid      int
	title    string
	bundle   string
	display  string
	bounds   model.Rect
	layer    int
	hidden   bool
	onScreen bool
}

func (b *Backend) clients() []xproto.Window {
	clients, err := ewmh.ClientListStackingGet(b.xu)
	if err != nil || len(clients) == 0 {
		clients, err = ewmh.ClientListGet(b.xu)
	}
	if err != nil {
		b.log.Debug().Err(err).Msg("Failed to read client list")
		return nil
	}
	return clients
}

func (b *Backend) clientInfo(win xproto.Window, currentDesktop uint, haveDesktop bool) (clientInfo, bool) {
	info := clientInfo{id: win}

	bounds, ok := b.windowRect(win)
	if !ok {
		return info, false
	}
	info.bounds = bounds

	if pid, err := ewmh.WmPidGet(b.xu, win); err == nil {
		info.pid = int(pid)
	}
	info.title = b.windowTitle(win)
	if class, err := icccm.WmClassGet(b.xu, win); err == nil {
		info.bundle, info.display = bundleFromClass(class)
	}

	types, _ := ewmh.WmWindowTypeGet(b.xu, win)
	states, _ := ewmh.WmStateGet(b.xu, win)
	info.layer = layerFor(types, states)

	iconic := false
	if st, err := icccm.WmStateGet(b.xu, win); err == nil && st.State == icccm.StateIconic {
		iconic = true
	}
	info.hidden = isHidden(states, iconic)

	info.onScreen = !info.hidden && b.isViewable(win)
	if info.onScreen && haveDesktop {
		if desktop, err := ewmh.WmDesktopGet(b.xu, win); err == nil &&
			desktop != stickyDesktop && desktop != currentDesktop {
			info.onScreen = false
		}
	}
	return info, true
}

func (b *Backend) isViewable(win xproto.Window) bool {
	attrs, err := xproto.GetWindowAttributes(b.xu.Conn(), win).Reply()
	if err != nil {
		return false
	}
	return attrs.MapState == xproto.MapStateViewable
}

// windowRect returns the client geometry in root coordinates
func (b *Backend) windowRect(win xproto.Window) (model.Rect, bool) {
	geom, err := xproto.GetGeometry(b.xu.Conn(), xproto.Drawable(win)).Reply()
	if err != nil {
		return model.Rect{}, false
	}
	translate, err := xproto.TranslateCoordinates(b.xu.Conn(), win, b.root, 0, 0).Reply()
	if err != nil {
		return model.Rect{}, false
	}
	return model.Rect{
		X:      int(translate.DstX),
		Y:      int(translate.DstY),
		Width:  int(geom.Width),
		Height: int(geom.Height),
	}, true
}

func (b *Backend) windowTitle(win xproto.Window) string {
	if title, err := ewmh.WmNameGet(b.xu, win); err == nil {
		if title = strings.TrimSpace(title); title != "" {
			return title
		}
	}
	if title, err := icccm.WmNameGet(b.xu, win); err == nil {
		return strings.TrimSpace(title)
	}
	return ""
}

func (b *Backend) readClients() []clientInfo {
	currentDesktop, err := ewmh.CurrentDesktopGet(b.xu)
	haveDesktop := err == nil

	clients := b.clients()
	infos := make([]clientInfo, 0, len(clients))
	for _, win := range clients {
		info, ok := b.clientInfo(win, currentDesktop, haveDesktop)
		if !ok {
			continue
		}
		infos = append(infos, info)
	}
	return infos
}

// SnapshotWindows implements platform.WindowSnapshotter. Clients are
// reported top of the stack first.
func (b *Backend) SnapshotWindows() []platform.RawWindow {
	infos := b.readClients()
	windows := make([]platform.RawWindow, 0, len(infos))
	for i := len(infos) - 1; i >= 0; i-- {
		info := infos[i]
		windows = append(windows, platform.RawWindow{
			ID:       uint32(info.id),
			OwnerPID: info.pid,
			Bounds:   info.bounds,
			Title:    info.title,
			Layer:    info.layer,
			OnScreen: info.onScreen,
		})
	}
	b.log.Debug().Int("count", len(windows)).Msg("Window snapshot")
	return windows
}

// RunningApplications implements platform.ApplicationEnumerator. X11 only
// knows processes that own a managed client, one entry per PID.
func (b *Backend) RunningApplications() []platform.RawApplication {
	infos := b.readClients()
	return b.applicationsFrom(infos)
}

func (b *Backend) applicationsFrom(infos []clientInfo) []platform.RawApplication {
	seen := make(map[int]bool)
	apps := make([]platform.RawApplication, 0)
	for _, info := range infos {
		if info.pid == 0 || info.bundle == "" || seen[info.pid] {
			continue
		}
		seen[info.pid] = true
		apps = append(apps, platform.RawApplication{
			BundleIdentifier: info.bundle,
			DisplayName:      info.display,
			PID:              info.pid,
			Icon:             b.iconFor(info.bundle, info.id),
		})
	}
	sort.Slice(apps, func(i, j int) bool { return apps[i].PID < apps[j].PID })
	return apps
}

// ApplicationForPID implements platform.ApplicationResolver
func (b *Backend) ApplicationForPID(pid int) (platform.RawApplication, bool) {
	if pid == 0 {
		return platform.RawApplication{}, false
	}
	for _, info := range b.readClients() {
		if info.pid != pid || info.bundle == "" {
			continue
		}
		return platform.RawApplication{
			BundleIdentifier: info.bundle,
			DisplayName:      info.display,
			PID:              info.pid,
			Icon:             b.iconFor(info.bundle, info.id),
		}, true
	}
	return platform.RawApplication{}, false
}

// clientsOf returns pid's clients, topmost first
func (b *Backend) clientsOf(pid int) []clientInfo {
	infos := b.readClients()
	out := make([]clientInfo, 0)
	for i := len(infos) - 1; i >= 0; i-- {
		if infos[i].pid == pid {
			out = append(out, infos[i])
		}
	}
	return out
}
