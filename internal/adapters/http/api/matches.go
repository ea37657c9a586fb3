package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/Phlares/wow-arena-analysis/internal/domain/types"
)

// defaultLimit applies when /matches is called without a limit.
const defaultLimit = 20

// MatchesDependencies defines the read operations behind /matches.
type MatchesDependencies interface {
	Match(ctx context.Context, recordingID string) (types.MatchRecord, error)
	Latest(ctx context.Context, n int) ([]types.MatchRecord, error)
}

// MatchesHandler serves stored match records.
type MatchesHandler struct {
	deps     MatchesDependencies
	maxLimit int
}

// NewMatchesHandler creates a new matches handler.
func NewMatchesHandler(deps MatchesDependencies, maxLimit int) *MatchesHandler {
	if maxLimit < 1 {
		maxLimit = defaultLimit
	}
	return &MatchesHandler{deps: deps, maxLimit: maxLimit}
}

// HandleList handles GET /matches?limit=N requests.
func (h *MatchesHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_matches"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	n := defaultLimit
	if n > h.maxLimit {
		n = h.maxLimit
	}
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		v, err := strconv.Atoi(limitStr)
		if err != nil || v < 1 {
			writeError(w, http.StatusBadRequest, "bad_request", wrap(op, ErrBadRequest))
			return
		}
		if v > h.maxLimit {
			writeError(w, http.StatusBadRequest, "limit_exceeded",
				wrap(op, fmt.Errorf("%w: limit above %d", ErrBadRequest, h.maxLimit)))
			return
		}
		n = v
	}

	records, err := h.deps.Latest(r.Context(), n)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", wrap(op, err))
		return
	}
	if records == nil {
		records = []types.MatchRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

// HandleGet handles GET /matches/{recording_id} requests.
func (h *MatchesHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_match"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/matches/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", wrap(op, ErrBadRequest))
		return
	}

	rec, err := h.deps.Match(r.Context(), id)
	if err != nil {
		if isNotFound(err) {
			writeError(w, http.StatusNotFound, "not_found", wrap(op, ErrNotFound))
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, rec)
}
