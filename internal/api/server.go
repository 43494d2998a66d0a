package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bryanchriswhite/WindowAccordion/internal/logger"
	"github.com/bryanchriswhite/WindowAccordion/internal/model"
	"github.com/bryanchriswhite/WindowAccordion/internal/monitor"
	"github.com/bryanchriswhite/WindowAccordion/internal/registry"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Version is reported by the health endpoint
const Version = "0.1.0"

// refreshTimeout bounds a ?refresh=true request
const refreshTimeout = 5 * time.Second

// WindowSource is the read side of the window monitor
type WindowSource interface {
	Windows() []model.Window
	Applications() []model.Application
	Groups() []model.AppGroup
	Window(id model.WindowID) (model.Window, bool)
	ApplicationStates() []model.ApplicationState
	ApplicationState(bundleID string) (model.ApplicationState, bool)
	IsMonitoring() bool
	RefreshNow(ctx context.Context) error
	Subscribe(o monitor.Observer) func()
}

// WindowController acts on observed windows
type WindowController interface {
	Focus(w model.Window) bool
	Minimize(w model.Window) bool
	Unminimize(w model.Window) bool
	Close(w model.Window) bool
	Move(w model.Window, to model.Point) bool
	Resize(w model.Window, to model.Size) bool
	Bounds(w model.Window) (model.Rect, bool)
	IsMinimized(w model.Window) bool
	ActivateApplication(bundleID string) bool
}

// Server represents the HTTP API server
type Server struct {
	router     *mux.Router
	windows    WindowSource
	controller WindowController
	registry   *registry.Registry
	backend    string
	upgrader   websocket.Upgrader
	log        *zerolog.Logger
}

// NewServer creates a new API server
func NewServer(windows WindowSource, controller WindowController, reg *registry.Registry, backend string) *Server {
	s := &Server{
		router:     mux.NewRouter(),
		windows:    windows,
		controller: controller,
		registry:   reg,
		backend:    backend,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // local tool, any origin
			},
		},
		log: logger.WithComponent("api"),
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	// Windows
	api.HandleFunc("/windows", s.handleGetWindows).Methods("GET")
	api.HandleFunc("/windows/{id:[0-9]+}", s.handleGetWindow).Methods("GET")
	api.HandleFunc("/windows/{id:[0-9]+}/bounds", s.handleGetBounds).Methods("GET")
	api.HandleFunc("/windows/{id:[0-9]+}/move", s.handleMove).Methods("POST")
	api.HandleFunc("/windows/{id:[0-9]+}/resize", s.handleResize).Methods("POST")
	api.HandleFunc("/windows/{id:[0-9]+}/{action:focus|minimize|unminimize|close}", s.handleWindowAction).Methods("POST")
	api.HandleFunc("/groups", s.handleGetGroups).Methods("GET")
	api.HandleFunc("/stream", s.handleStream)

	// Applications
	api.HandleFunc("/applications", s.handleGetApplications).Methods("GET")
	api.HandleFunc("/applications/states", s.handleGetStates).Methods("GET")
	api.HandleFunc("/applications/{pid:[0-9]+}/icon", s.handleGetIcon).Methods("GET")
	api.HandleFunc("/applications/{bundle}/activate", s.handleActivate).Methods("POST")

	// Profiles
	api.HandleFunc("/profiles", s.handleGetProfiles).Methods("GET")
	api.HandleFunc("/profiles", s.handlePutProfile).Methods("POST")
	api.HandleFunc("/profiles/discover", s.handleDiscover).Methods("POST")
	api.HandleFunc("/profiles/reset", s.handleReset).Methods("POST")
	api.HandleFunc("/profiles/{bundle}", s.handleGetProfile).Methods("GET")
	api.HandleFunc("/profiles/{bundle}", s.handlePutProfile).Methods("PUT")
	api.HandleFunc("/profiles/{bundle}", s.handleDeleteProfile).Methods("DELETE")
	api.HandleFunc("/profiles/{bundle}/{op:enable|disable|toggle}", s.handleEnablement).Methods("POST")

	// Status
	api.HandleFunc("/status", s.handleStatus).Methods("GET")
	api.HandleFunc("/health", s.handleHealth).Methods("GET")

	s.router.PathPrefix("/").HandlerFunc(s.handleIndex)
}

// Handler returns the HTTP handler with CORS applied
func (s *Server) Handler() http.Handler {
	return s.enableCORS(s.router)
}

// Start serves on port until ctx is cancelled
func (s *Server) Start(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Int("port", port).Msgf("Starting server on http://localhost:%d", port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	}
}

// enableCORS adds CORS headers
func (s *Server) enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

type statusResponse struct {
	Status string `json:"status"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Debug().Err(err).Msg("Failed to write response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, code int, err error) {
	if code >= http.StatusInternalServerError {
		s.log.Error().Err(err).Msg("Request failed")
	}
	s.writeJSON(w, code, errorResponse{Error: err.Error()})
}

// writeResult maps a boolean action outcome to a response
func (s *Server) writeResult(w http.ResponseWriter, ok bool) {
	if !ok {
		s.writeJSON(w, http.StatusConflict, statusResponse{Status: "failed"})
		return
	}
	s.writeJSON(w, http.StatusOK, statusResponse{Status: "success"})
}

func registryErrorCode(err error) int {
	switch {
	case errors.Is(err, registry.ErrProfileNotFound):
		return http.StatusNotFound
	case errors.Is(err, registry.ErrInvalidProfile):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"monitoring":   s.windows.IsMonitoring(),
		"backend":      s.backend,
		"windows":      len(s.windows.Windows()),
		"applications": len(s.windows.Applications()),
		"enabled":      s.registry.EnabledApplications().Sorted(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": Version,
	})
}

const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <title>WindowAccordion</title>
    <style>
        body { font-family: sans-serif; max-width: 800px; margin: 50px auto; padding: 20px; }
        code { background: #f5f5f5; padding: 2px 6px; border-radius: 3px; }
    </style>
</head>
<body>
    <h1>WindowAccordion</h1>
    <p>Window monitor is running.</p>
    <ul>
        <li><a href="/api/status">/api/status</a></li>
        <li><a href="/api/windows">/api/windows</a></li>
        <li><a href="/api/groups">/api/groups</a></li>
        <li><a href="/api/applications">/api/applications</a></li>
        <li><a href="/api/profiles">/api/profiles</a></li>
        <li><code>/api/stream</code> (WebSocket)</li>
    </ul>
</body>
</html>`

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/" {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(indexHTML))
		return
	}

	if !strings.HasPrefix(r.URL.Path, "/api") {
		http.NotFound(w, r)
		return
	}
	s.writeError(w, http.StatusNotFound, fmt.Errorf("no route for %s %s", r.Method, r.URL.Path))
}
