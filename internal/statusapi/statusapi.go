// Package statusapi is a diagnostics-only HTTP/WebSocket server exposing
// pipeline health and counters. It is not the video transport: no
// encoded frame ever flows through it, only JSON stats snapshots.
package statusapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/tenclass/sweet-encoder/internal/logger"
	"github.com/tenclass/sweet-encoder/internal/pipeline"
)

// StatsProvider is the subset of *pipeline.Pipeline the status API needs.
type StatsProvider interface {
	Stats() pipeline.Stats
}

// Server serves /health, /stats and a streaming /stats/stream websocket.
type Server struct {
	router   *mux.Router
	pipeline StatsProvider
	upgrader websocket.Upgrader
	poll     time.Duration
}

// New builds a status server backed by the given pipeline.
func New(p StatsProvider) *Server {
	s := &Server{
		router:   mux.NewRouter(),
		pipeline: p,
		poll:     time.Second,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)
	s.router.HandleFunc("/stats/stream", s.handleStatsStream)
	return s
}

// ListenAndServe starts the HTTP server on addr, blocking until it
// returns an error. The listener is created and owned by net/http;
// this method offers no shutdown hook.
func (s *Server) ListenAndServe(addr string) error {
	logger.WithComponent("statusapi").Info().Str("addr", addr).Msg("starting status endpoint")
	return http.ListenAndServe(addr, s.router)
}

// ServeHTTP lets Server be used directly with httptest or a custom
// http.Server, in addition to ListenAndServe.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.pipeline.Stats())
}

func (s *Server) handleStatsStream(w http.ResponseWriter, r *http.Request) {
	log := logger.WithComponent("statusapi")

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()

	for range ticker.C {
		if err := conn.WriteJSON(s.pipeline.Stats()); err != nil {
			log.Debug().Err(err).Msg("websocket write failed, closing stream")
			return
		}
	}
}
