package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"quickbuck/internal/config"
	"quickbuck/internal/store"
	"quickbuck/internal/tick"
)

type Server struct {
	cfg    config.Config
	log    *slog.Logger
	engine *tick.Orchestrator
	store  *store.Queries
	mux    *chi.Mux
}

func New(cfg config.Config, logger *slog.Logger, engine *tick.Orchestrator, queries *store.Queries) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:    cfg,
		log:    logger,
		engine: engine,
		store:  queries,
		mux:    chi.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	r := s.mux
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Post("/tick", s.handleTriggerTick)
		r.Get("/tick/history", s.handleTickHistory)
		r.Get("/leaderboard", s.handleLeaderboard)
	})
}

// handleTriggerTick is the manual operator entry point. It funnels into the
// same orchestrator as the scheduled worker, so it fails cleanly when a
// scheduled tick is already running.
func (s *Server) handleTriggerTick(w http.ResponseWriter, r *http.Request) {
	sum, err := s.engine.Execute(r.Context(), "manual")
	if err != nil {
		if errors.Is(err, tick.ErrTickInProgress) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) handleTickHistory(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := strings.TrimSpace(r.URL.Query().Get("limit")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 200 {
			writeError(w, http.StatusBadRequest, "limit must be an integer in [1,200]")
			return
		}
		limit = n
	}
	entries, err := s.store.RecentTickHistory(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	rows, err := s.store.Leaderboard(r.Context(), 100)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rows": rows})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": strings.TrimSpace(message)})
}
