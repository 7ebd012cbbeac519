// Package control exposes the JSON control surface: start/stop/run-once
// triggers, settings, manual-login actions, status and recent logs. It
// is interface glue only; the business rules live in the worker and
// session packages.
package control

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Skytheredhead/outlookscrape/internal/logbuf"
	"github.com/Skytheredhead/outlookscrape/internal/session"
	"github.com/Skytheredhead/outlookscrape/internal/store"
	"github.com/Skytheredhead/outlookscrape/internal/worker"
)

// Server handles the control endpoints.
type Server struct {
	loop     *worker.Loop
	sessions *session.Manager
	settings *store.Settings
	logs     *logbuf.Buffer
	logger   *slog.Logger
}

// New creates a control server.
func New(loop *worker.Loop, sessions *session.Manager, settings *store.Settings, logs *logbuf.Buffer, logger *slog.Logger) *Server {
	return &Server{
		loop:     loop,
		sessions: sessions,
		settings: settings,
		logs:     logs,
		logger:   logger,
	}
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("POST /start", s.handleStart)
	mux.HandleFunc("POST /stop", s.handleStop)
	mux.HandleFunc("POST /run-once", s.handleRunOnce)
	mux.HandleFunc("GET /settings", s.handleGetSettings)
	mux.HandleFunc("POST /settings", s.handleSetSettings)
	mux.HandleFunc("POST /login/launch", s.handleLoginLaunch)
	mux.HandleFunc("POST /login/confirm", s.handleLoginConfirm)
	mux.HandleFunc("GET /logs", s.handleLogs)
	return mux
}

type statusResponse struct {
	worker.Status
	ProfileReady   bool   `json:"profile_ready"`
	ForwardedToday int    `json:"forwarded_today"`
	TargetEmail    string `json:"target_email"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{
		Status:         s.loop.Status(),
		ProfileReady:   s.sessions.ProfileReady(),
		ForwardedToday: s.loop.ForwardedToday(),
		TargetEmail:    s.settings.TargetEmail(),
	})
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if err := s.loop.Start(); err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "started"})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.loop.Stop()
	writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

func (s *Server) handleRunOnce(w http.ResponseWriter, r *http.Request) {
	if err := s.loop.RunOnce(r.Context()); err != nil {
		s.logger.Warn("manual check failed", "error", err)
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.settings.All())
}

type settingsRequest struct {
	TargetEmail *string `json:"target_email"`
	PollingMin  *int    `json:"polling_min_minutes"`
	PollingMax  *int    `json:"polling_max_minutes"`
}

func (s *Server) handleSetSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode settings: %w", err))
		return
	}
	if req.TargetEmail != nil {
		addr := strings.TrimSpace(*req.TargetEmail)
		if addr == "" || !strings.Contains(addr, "@") {
			writeError(w, http.StatusBadRequest, fmt.Errorf("target_email must be a mail address"))
			return
		}
		if err := s.settings.Set(store.KeyTargetEmail, addr); err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
	}
	if req.PollingMin != nil {
		if err := s.settings.Set(store.KeyPollingMin, strconv.Itoa(*req.PollingMin)); err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
	}
	if req.PollingMax != nil {
		if err := s.settings.Set(store.KeyPollingMax, strconv.Itoa(*req.PollingMax)); err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, s.settings.All())
}

func (s *Server) handleLoginLaunch(w http.ResponseWriter, r *http.Request) {
	// Launching the headful window can take a few seconds; keep the
	// request bounded so the surface stays responsive.
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()
	if err := s.sessions.LaunchManualLogin(ctx); err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "launched"})
}

func (s *Server) handleLoginConfirm(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 45*time.Second)
	defer cancel()
	if err := s.sessions.ConfirmManualLogin(ctx); err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "confirmed"})
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	n := 200
	if raw := r.URL.Query().Get("n"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			n = v
		}
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	for _, line := range s.logs.Tail(n) {
		fmt.Fprintln(w, line)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
