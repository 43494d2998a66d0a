package api

import (
	"net/http"
	"time"

	"github.com/bryanchriswhite/WindowAccordion/internal/model"
	"github.com/bryanchriswhite/WindowAccordion/internal/monitor"
)

const (
	streamBuffer = 32
	writeTimeout = 10 * time.Second
)

// Stream event types
const (
	EventWindows      = "windows"
	EventApplications = "applications"
	EventWindowClosed = "window_closed"
	EventDelta        = "delta"
)

// StreamEvent is one message on the /api/stream WebSocket
type StreamEvent struct {
	Type         string              `json:"type"`
	Windows      []windowView        `json:"windows,omitempty"`
	Applications []model.Application `json:"applications,omitempty"`
	WindowID     model.WindowID      `json:"window_id,omitempty"`
	Added        []model.WindowID    `json:"added,omitempty"`
	Removed      []model.WindowID    `json:"removed,omitempty"`
}

// handleStream pushes every published change to the client. Observer
// callbacks run on the monitor goroutine, so events are queued without
// blocking and dropped when the client falls behind.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("WebSocket upgrade error")
		return
	}
	defer conn.Close()

	events := make(chan StreamEvent, streamBuffer)
	send := func(ev StreamEvent) {
		select {
		case events <- ev:
		default:
			s.log.Debug().Str("type", ev.Type).Msg("Stream client behind, dropping event")
		}
	}

	unsubscribe := s.windows.Subscribe(monitor.ObserverFuncs{
		OnWindows: func(windows []model.Window) {
			send(StreamEvent{Type: EventWindows, Windows: windowViews(windows)})
		},
		OnApplications: func(apps []model.Application) {
			send(StreamEvent{Type: EventApplications, Applications: apps})
		},
		OnWindowClosed: func(id model.WindowID) {
			send(StreamEvent{Type: EventWindowClosed, WindowID: id})
		},
		OnDelta: func(added, removed []model.WindowID) {
			send(StreamEvent{Type: EventDelta, Added: added, Removed: removed})
		},
	})
	defer unsubscribe()

	// Reads only serve to notice the client going away
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	write := func(ev StreamEvent) bool {
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteJSON(ev); err != nil {
			s.log.Debug().Err(err).Msg("WebSocket write error")
			return false
		}
		return true
	}

	if !write(StreamEvent{Type: EventWindows, Windows: windowViews(s.windows.Windows())}) {
		return
	}
	if !write(StreamEvent{Type: EventApplications, Applications: s.windows.Applications()}) {
		return
	}

	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case ev := <-events:
			if !write(ev) {
				return
			}
		}
	}
}
