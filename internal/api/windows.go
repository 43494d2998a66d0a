package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/bryanchriswhite/WindowAccordion/internal/model"
	"github.com/gorilla/mux"
)

// windowView adds derived fields to a published window
type windowView struct {
	model.Window
	DisplayTitle string `json:"display_title"`
	IsMainWindow bool   `json:"is_main_window"`
}

func newWindowView(w model.Window) windowView {
	return windowView{Window: w, DisplayTitle: w.DisplayTitle(), IsMainWindow: w.IsMainWindow()}
}

func windowViews(windows []model.Window) []windowView {
	views := make([]windowView, 0, len(windows))
	for _, w := range windows {
		views = append(views, newWindowView(w))
	}
	return views
}

type groupView struct {
	Application model.Application `json:"application"`
	MainWindow  *windowView       `json:"main_window,omitempty"`
	Windows     []windowView      `json:"windows"`
	Visible     int               `json:"visible"`
}

// refreshIfAsked runs a tick first when the request carries ?refresh=true
func (s *Server) refreshIfAsked(r *http.Request) error {
	if refresh, _ := strconv.ParseBool(r.URL.Query().Get("refresh")); !refresh {
		return nil
	}
	ctx, cancel := context.WithTimeout(r.Context(), refreshTimeout)
	defer cancel()
	return s.windows.RefreshNow(ctx)
}

// lookupWindow resolves the {id} route variable against the published list
func (s *Server) lookupWindow(w http.ResponseWriter, r *http.Request) (model.Window, bool) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 32)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid window id: %w", err))
		return model.Window{}, false
	}
	win, ok := s.windows.Window(model.WindowID(id))
	if !ok {
		s.writeError(w, http.StatusNotFound, fmt.Errorf("window %d not found", id))
		return model.Window{}, false
	}
	return win, true
}

func (s *Server) handleGetWindows(w http.ResponseWriter, r *http.Request) {
	if err := s.refreshIfAsked(r); err != nil {
		s.writeError(w, http.StatusServiceUnavailable, fmt.Errorf("refresh failed: %w", err))
		return
	}
	s.writeJSON(w, http.StatusOK, windowViews(s.windows.Windows()))
}

func (s *Server) handleGetWindow(w http.ResponseWriter, r *http.Request) {
	win, ok := s.lookupWindow(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, newWindowView(win))
}

func (s *Server) handleGetBounds(w http.ResponseWriter, r *http.Request) {
	win, ok := s.lookupWindow(w, r)
	if !ok {
		return
	}
	bounds, ok := s.controller.Bounds(win)
	if !ok {
		s.writeJSON(w, http.StatusConflict, statusResponse{Status: "failed"})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"bounds":       bounds,
		"is_minimized": s.controller.IsMinimized(win),
	})
}

func (s *Server) handleWindowAction(w http.ResponseWriter, r *http.Request) {
	win, ok := s.lookupWindow(w, r)
	if !ok {
		return
	}

	var result bool
	switch action := mux.Vars(r)["action"]; action {
	case "focus":
		result = s.controller.Focus(win)
	case "minimize":
		result = s.controller.Minimize(win)
	case "unminimize":
		result = s.controller.Unminimize(win)
	case "close":
		result = s.controller.Close(win)
	default:
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("unknown action %q", action))
		return
	}
	s.writeResult(w, result)
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	win, ok := s.lookupWindow(w, r)
	if !ok {
		return
	}
	var to model.Point
	if err := json.NewDecoder(r.Body).Decode(&to); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	s.writeResult(w, s.controller.Move(win, to))
}

func (s *Server) handleResize(w http.ResponseWriter, r *http.Request) {
	win, ok := s.lookupWindow(w, r)
	if !ok {
		return
	}
	var to model.Size
	if err := json.NewDecoder(r.Body).Decode(&to); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if to.Width <= 0 || to.Height <= 0 {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid size %dx%d", to.Width, to.Height))
		return
	}
	s.writeResult(w, s.controller.Resize(win, to))
}

func (s *Server) handleGetGroups(w http.ResponseWriter, r *http.Request) {
	groups := s.windows.Groups()
	views := make([]groupView, 0, len(groups))
	for _, g := range groups {
		view := groupView{
			Application: g.Application,
			Windows:     windowViews(g.Windows),
			Visible:     len(g.VisibleWindows()),
		}
		if main, ok := g.MainWindow(); ok {
			mv := newWindowView(main)
			view.MainWindow = &mv
		}
		views = append(views, view)
	}
	s.writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleGetApplications(w http.ResponseWriter, r *http.Request) {
	if err := s.refreshIfAsked(r); err != nil {
		s.writeError(w, http.StatusServiceUnavailable, fmt.Errorf("refresh failed: %w", err))
		return
	}
	s.writeJSON(w, http.StatusOK, s.windows.Applications())
}

func (s *Server) handleGetStates(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.windows.ApplicationStates())
}

func (s *Server) handleGetIcon(w http.ResponseWriter, r *http.Request) {
	pid, err := strconv.Atoi(mux.Vars(r)["pid"])
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid pid: %w", err))
		return
	}
	size, err := iconSize(r.URL.Query().Get("size"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	for _, app := range s.windows.Applications() {
		if app.ProcessID != pid {
			continue
		}
		if app.Icon == nil {
			break
		}
		data, err := encodeIcon(app.Icon, size)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "max-age=60")
		w.Write(data)
		return
	}
	s.writeError(w, http.StatusNotFound, fmt.Errorf("no icon for pid %d", pid))
}

func (s *Server) handleActivate(w http.ResponseWriter, r *http.Request) {
	s.writeResult(w, s.controller.ActivateApplication(mux.Vars(r)["bundle"]))
}
