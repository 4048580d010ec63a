// Package ops serves the operational HTTP endpoints: health checks and a
// small debug surface for the rooms the bot is handling.
package ops

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/sariahouse/racebot/internal/supervisor"
)

type Server struct {
	router   *chi.Mux
	shutdown *supervisor.CleanShutdown
}

func NewServer(shutdown *supervisor.CleanShutdown) *Server {
	s := &Server{
		router:   chi.NewRouter(),
		shutdown: shutdown,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := s.router

	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Get("/healthz", s.handleHealth)
	r.Get("/debug/rooms", s.handleRooms)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) handleRooms(w http.ResponseWriter, r *http.Request) {
	rooms := s.shutdown.OpenRooms()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]any{"open_rooms": rooms}); err != nil {
		http.Error(w, "encoding failed", http.StatusInternalServerError)
	}
}
