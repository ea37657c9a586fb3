// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Phlares/wow-arena-analysis/internal/adapters/repository"
	"github.com/Phlares/wow-arena-analysis/internal/domain/types"
)

// Dependencies required by HTTP handlers.
type Dependencies interface {
	StatsProvider

	// Match returns the stored record for one recording.
	Match(ctx context.Context, recordingID string) (types.MatchRecord, error)
	// Latest returns up to n resolved records, newest session first.
	Latest(ctx context.Context, n int) ([]types.MatchRecord, error)
}

// Server wires HTTP routes for the read API.
type Server struct {
	healthHandler  *HealthHandler
	statsHandler   *StatsHandler
	matchesHandler *MatchesHandler
}

// NewServer creates a new API server with all handlers. maxLimit caps
// /matches?limit.
func NewServer(deps Dependencies, maxLimit int) *Server {
	return &Server{
		healthHandler:  NewHealthHandler(),
		statsHandler:   NewStatsHandler(deps),
		matchesHandler: NewMatchesHandler(deps, maxLimit),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/matches", MetricsMiddleware(s.matchesHandler.HandleList, "matches"))
	mux.HandleFunc("/matches/", MetricsMiddleware(s.matchesHandler.HandleGet, "match"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

func isNotFound(err error) bool {
	return errors.Is(err, repository.ErrNotFound)
}
