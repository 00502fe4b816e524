// Package api exposes the capture, metadata, and library operations over
// HTTP for the desktop frontend.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/screenshotos/screenshotos/internal/config"
	"github.com/screenshotos/screenshotos/internal/display"
	"github.com/screenshotos/screenshotos/internal/index"
	"github.com/screenshotos/screenshotos/internal/logger"
	"github.com/screenshotos/screenshotos/internal/orchestrator"
	"github.com/screenshotos/screenshotos/internal/sidecar"
	"github.com/screenshotos/screenshotos/internal/storage"
)

// Server is the HTTP API server.
type Server struct {
	router     *mux.Router
	httpServer *http.Server
	upgrader   websocket.Upgrader

	orch       *orchestrator.Orchestrator
	displayMgr *display.Manager
	sidecars   *sidecar.Store
	idx        *index.Indexer
	library    *storage.Library
	configMgr  *config.Manager
	events     *eventHub
}

// NewServer creates the API server and wires the capture-complete hook
// into the event stream.
func NewServer(
	orch *orchestrator.Orchestrator,
	displayMgr *display.Manager,
	sidecars *sidecar.Store,
	idx *index.Indexer,
	library *storage.Library,
	configMgr *config.Manager,
) *Server {
	s := &Server{
		router:     mux.NewRouter(),
		orch:       orch,
		displayMgr: displayMgr,
		sidecars:   sidecars,
		idx:        idx,
		library:    library,
		configMgr:  configMgr,
		events:     newEventHub(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // local desktop frontend only
			},
		},
	}

	orch.OnCapture = func(ci orchestrator.CapturedImage) {
		s.events.broadcast(event{Type: "capture", Data: ci})
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	// Capture
	api.HandleFunc("/capture/fullscreen", s.handleCaptureFullScreen).Methods("POST")
	api.HandleFunc("/capture/area", s.handleCaptureArea).Methods("POST")

	// Displays
	api.HandleFunc("/displays", s.handleGetDisplays).Methods("GET")

	// Image search
	api.HandleFunc("/images", s.handleSearchImages).Methods("GET")
	api.HandleFunc("/images/tags", s.handleImagesByTags).Methods("GET")
	api.HandleFunc("/images/range", s.handleImagesByDateRange).Methods("GET")
	api.HandleFunc("/images/similar", s.handleFindSimilar).Methods("GET")
	api.HandleFunc("/tags", s.handleAllTags).Methods("GET")

	// Sidecar metadata
	api.HandleFunc("/metadata", s.handleGetMetadata).Methods("GET")
	api.HandleFunc("/metadata", s.handleUpdateMetadata).Methods("PATCH")
	api.HandleFunc("/metadata/annotations", s.handleAddAnnotation).Methods("POST")
	api.HandleFunc("/metadata/annotations/{id}", s.handleRemoveAnnotation).Methods("DELETE")

	// Library lifecycle
	api.HandleFunc("/library/archive", s.handleArchive).Methods("POST")
	api.HandleFunc("/library/restore", s.handleRestore).Methods("POST")
	api.HandleFunc("/library/trash", s.handleTrash).Methods("POST")

	// Index management
	api.HandleFunc("/index/status", s.handleIndexStatus).Methods("GET")
	api.HandleFunc("/index/rescan", s.handleRescan).Methods("POST")

	// Configuration
	api.HandleFunc("/config", s.handleGetConfig).Methods("GET")
	api.HandleFunc("/config", s.handleUpdateConfig).Methods("PUT")

	// Event stream
	api.HandleFunc("/events", s.handleEvents)

	// Health check
	api.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Start starts the HTTP server and blocks until it exits.
func (s *Server) Start(port int) error {
	addr := fmt.Sprintf(":%d", port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.enableCORS(s.router),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.WithComponent("api").Info().
		Str("addr", addr).
		Msg("API server listening")

	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains connections and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.events.close()
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// enableCORS adds CORS headers
func (s *Server) enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// envelope is the uniform response shape.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func writeData(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(envelope{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(envelope{Success: false, Error: err.Error()})
}
