// Package server provides the HTTP and WebSocket surface of handrelay: the session
// catalog, remote playback, live landmarks and recording control.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ayusman/handrelay/internal/detector"
	"github.com/ayusman/handrelay/internal/server/api"
	"github.com/ayusman/handrelay/internal/store"
)

// Capture is the live capture loop as seen by the server.
type Capture interface {
	api.RecordingController
	Subscribe() (<-chan []detector.Hand, func())
}

// Config holds the server configuration.
type Config struct {
	StaticDir string
	Store     *store.Store
	// Capture enables the live endpoints. Nil when serving the catalog only.
	Capture Capture
}

// Server represents the HTTP server.
type Server struct {
	config Config
	mux    *http.ServeMux
	start  time.Time
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	if s.config.Store != nil {
		sessionHandler := api.NewSessionHandler(s.config.Store)
		playHandler := NewPlayHandler(s.config.Store)

		// /api/sessions/{id}/play is a WebSocket; everything else is JSON.
		sessionRouter := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.HasSuffix(r.URL.Path, "/play") {
				playHandler.ServeHTTP(w, r)
				return
			}
			sessionHandler.ServeHTTP(w, r)
		})

		s.mux.Handle("/api/sessions", sessionRouter)
		s.mux.Handle("/api/sessions/", sessionRouter)
	}

	if s.config.Capture != nil {
		s.mux.Handle("/api/recording", api.NewRecordingHandler(s.config.Capture))
		s.mux.Handle("/api/landmarks", NewLandmarksHandler(s.config.Capture))
		s.mux.Handle("/api/stream", NewStreamHandler(s.config.Capture))
	}

	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]interface{}{
		"status":  "ok",
		"uptime":  time.Since(s.start).String(),
		"capture": s.config.Capture != nil,
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// shutdownTimeout bounds how long Run waits for open requests after ctx is done.
// Streaming handlers are cut off when it expires.
const shutdownTimeout = 3 * time.Second

// Run serves on addr until ctx is done, then shuts down.
func (s *Server) Run(ctx context.Context, addr string) error {
	hs := &http.Server{Addr: addr, Handler: s}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", addr)
		errCh <- hs.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := hs.Shutdown(shutdownCtx); err != nil {
		hs.Close()
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
