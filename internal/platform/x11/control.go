package x11

import (
	"fmt"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil/ewmh"
	"github.com/BurntSushi/xgbutil/icccm"
	"github.com/bryanchriswhite/WindowAccordion/internal/model"
	"github.com/bryanchriswhite/WindowAccordion/internal/platform"
)

// ActivateProcess implements platform.ProcessActivator by activating the
// process's topmost client window
func (b *Backend) ActivateProcess(pid int) bool {
	clients := b.clientsOf(pid)
	if len(clients) == 0 {
		return false
	}
	if err := ewmh.ActiveWindowReq(b.xu, clients[0].id); err != nil {
		b.log.Debug().Err(err).Int("pid", pid).Msg("Failed to activate process")
		return false
	}
	return true
}

// LiveWindows implements platform.ControlSurface
func (b *Backend) LiveWindows(pid int, limit int) []platform.LiveWindow {
	clients := b.clientsOf(pid)
	if limit > 0 && len(clients) > limit {
		clients = clients[:limit]
	}
	live := make([]platform.LiveWindow, 0, len(clients))
	for _, c := range clients {
		live = append(live, platform.LiveWindow{
			Title:       c.title,
			Bounds:      c.bounds,
			IsMinimized: c.hidden,
			Handle:      c.id,
		})
	}
	return live
}

// PerformControlAction implements platform.ControlSurface
func (b *Backend) PerformControlAction(handle platform.ControlHandle, action platform.Action, value any) bool {
	win, ok := handle.(xproto.Window)
	if !ok {
		b.log.Warn().Str("action", string(action)).Msgf("Unexpected control handle %T", handle)
		return false
	}

	err := b.perform(win, action, value)
	if err != nil {
		b.log.Debug().
			Err(err).
			Uint32("window_id", uint32(win)).
			Str("action", string(action)).
			Msg("Control action failed")
		return false
	}
	return true
}

func (b *Backend) perform(win xproto.Window, action platform.Action, value any) error {
	switch action {
	case platform.ActionRaise:
		return xproto.ConfigureWindowChecked(b.xu.Conn(), win,
			xproto.ConfigWindowStackMode, []uint32{xproto.StackModeAbove}).Check()

	case platform.ActionSetMain:
		return ewmh.ActiveWindowReq(b.xu, win)

	case platform.ActionSetFocused:
		return xproto.SetInputFocusChecked(b.xu.Conn(), xproto.InputFocusPointerRoot,
			win, xproto.TimeCurrentTime).Check()

	case platform.ActionSetMinimized:
		minimized, ok := value.(bool)
		if !ok {
			return fmt.Errorf("set_minimized wants bool, got %T", value)
		}
		if minimized {
			return b.iconify(win)
		}
		if err := xproto.MapWindowChecked(b.xu.Conn(), win).Check(); err != nil {
			return err
		}
		return ewmh.ActiveWindowReq(b.xu, win)

	case platform.ActionSetPosition:
		p, ok := value.(model.Point)
		if !ok {
			return fmt.Errorf("set_position wants model.Point, got %T", value)
		}
		r, ok := b.windowRect(win)
		if !ok {
			return fmt.Errorf("window %d has no geometry", win)
		}
		return ewmh.MoveresizeWindow(b.xu, win, p.X, p.Y, r.Width, r.Height)

	case platform.ActionSetSize:
		s, ok := value.(model.Size)
		if !ok {
			return fmt.Errorf("set_size wants model.Size, got %T", value)
		}
		if s.Width <= 0 || s.Height <= 0 {
			return fmt.Errorf("invalid size %dx%d", s.Width, s.Height)
		}
		r, ok := b.windowRect(win)
		if !ok {
			return fmt.Errorf("window %d has no geometry", win)
		}
		return ewmh.MoveresizeWindow(b.xu, win, r.X, r.Y, s.Width, s.Height)

	case platform.ActionClose:
		if err := ewmh.CloseWindow(b.xu, win); err == nil {
			return nil
		}
		return b.deleteWindow(win)

	default:
		return fmt.Errorf("unsupported action %q", action)
	}
}

// iconify asks the window manager to minimize win (ICCCM 4.1.4)
func (b *Backend) iconify(win xproto.Window) error {
	changeState, err := b.atom("WM_CHANGE_STATE")
	if err != nil {
		return err
	}
	ev := xproto.ClientMessageEvent{
		Format: 32,
		Window: win,
		Type:   changeState,
		Data:   xproto.ClientMessageDataUnionData32New([]uint32{icccm.StateIconic, 0, 0, 0, 0}),
	}
	mask := uint32(xproto.EventMaskSubstructureRedirect | xproto.EventMaskSubstructureNotify)
	return xproto.SendEventChecked(b.xu.Conn(), false, b.root, mask, string(ev.Bytes())).Check()
}

// deleteWindow sends WM_DELETE_WINDOW to clients that ignore _NET_CLOSE_WINDOW
func (b *Backend) deleteWindow(win xproto.Window) error {
	protocols, err := b.atom("WM_PROTOCOLS")
	if err != nil {
		return err
	}
	deleteAtom, err := b.atom("WM_DELETE_WINDOW")
	if err != nil {
		return err
	}
	ev := xproto.ClientMessageEvent{
		Format: 32,
		Window: win,
		Type:   protocols,
		Data: xproto.ClientMessageDataUnionData32New([]uint32{
			uint32(deleteAtom), uint32(xproto.TimeCurrentTime), 0, 0, 0,
		}),
	}
	return xproto.SendEventChecked(b.xu.Conn(), false, win, xproto.EventMaskNoEvent, string(ev.Bytes())).Check()
}
