// Package server exposes the custodian's ingested campaign history
// over net/http, grounded on the teacher's internal/server/server.go
// (a ServeMux of JSON handlers behind a mutex-guarded "ready" flag,
// lifecycle managed by Start/Shutdown wrapping an *http.Server) and
// original_source/backend/src/api for the endpoint shapes. This is
// deliberately the thinnest layer in the repo: it exists only so the
// custodian and ingest pipeline have a real consumer, not to implement
// any part of the Clausewitz reader itself.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/standardbeagle/clausewitz/internal/config"
	"github.com/standardbeagle/clausewitz/internal/custodian"
	"github.com/standardbeagle/clausewitz/internal/debug"
)

// Server serves the Custodian's campaign history as JSON.
type Server struct {
	cfg       *config.Config
	custodian *custodian.Custodian
	startTime time.Time

	mu       sync.Mutex
	running  bool
	listener net.Listener
	http     *http.Server
	wg       sync.WaitGroup
}

// New creates a Server bound to cfg.Server.Addr. Call Start to begin
// serving.
func New(cfg *config.Config, cust *custodian.Custodian) *Server {
	return &Server{cfg: cfg, custodian: cust, startTime: time.Now()}
}

// Start begins listening and serving in a background goroutine.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("server: already running")
	}

	listener, err := net.Listen("tcp", s.cfg.Server.Addr)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("server: listen on %s: %w", s.cfg.Server.Addr, err)
	}
	s.listener = listener

	mux := http.NewServeMux()
	s.registerHandlers(mux)
	s.http = &http.Server{Handler: mux}
	s.running = true
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.http.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			debug.LogServer("serve error: %v\n", err)
		}
	}()

	debug.LogServer("listening on %s\n", s.cfg.Server.Addr)
	return nil
}

// Addr returns the address the Server is actually listening on, which
// may differ from cfg.Server.Addr if it used a ":0" port. Only valid
// after Start succeeds.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Shutdown gracefully stops the Server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	httpServer := s.http
	s.mu.Unlock()

	if httpServer != nil {
		if err := httpServer.Shutdown(ctx); err != nil {
			return fmt.Errorf("server: shutdown: %w", err)
		}
	}
	s.wg.Wait()
	debug.LogServer("shut down cleanly\n")
	return nil
}

func (s *Server) registerHandlers(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/campaigns", s.handleCampaigns)
	mux.HandleFunc("/campaigns/", s.handleCampaignSubroute)
}

type healthzResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthzResponse{Status: "ok", StartedAt: s.startTime})
}

func (s *Server) handleCampaigns(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.custodian.Campaigns())
}

// handleCampaignSubroute dispatches /campaigns/{name}/latest and
// /campaigns/{name}/history, the only two nested routes this mux
// needs — a full router dependency has no other caller in this repo,
// so a manual path split is the idiomatic-enough choice here.
func (s *Server) handleCampaignSubroute(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/campaigns/")
	name, action, found := strings.Cut(rest, "/")
	if !found || name == "" {
		http.NotFound(w, r)
		return
	}

	switch action {
	case "latest":
		snap, ok := s.custodian.Latest(name)
		if !ok {
			http.Error(w, fmt.Sprintf("campaign %q has no ingested snapshot", name), http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, snap)
	case "history":
		writeJSON(w, http.StatusOK, s.custodian.History(name))
	default:
		http.NotFound(w, r)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		debug.LogServer("encode response: %v\n", err)
	}
}
