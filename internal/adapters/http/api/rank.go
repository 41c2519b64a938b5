package api

import (
	"context"
	"net/http"
	"strings"
)

// RankDependencies defines the interface for rank operations.
type RankDependencies interface {
	SchemeDependencies
	Rank(ctx context.Context, scheme, crewID string) (Entry, error)
}

// RankHandler handles rank requests.
type RankHandler struct {
	deps RankDependencies
}

// NewRankHandler creates a new rank handler.
func NewRankHandler(deps RankDependencies) *RankHandler {
	return &RankHandler{deps: deps}
}

// pathParam extracts the single segment after prefix.
func pathParam(r *http.Request, prefix string) (string, bool) {
	p := strings.TrimPrefix(r.URL.Path, prefix)
	if p == "" || strings.Contains(p, "/") {
		return "", false
	}
	return p, true
}

// HandleGetRank handles GET /rank/{crew_id}?scheme=S requests.
func (h *RankHandler) HandleGetRank(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_rank"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	crewID, ok := pathParam(r, "/rank/")
	if !ok {
		fail(w, NewKind(op, ErrBadRequest))
		return
	}
	scheme, err := canonicalScheme(h.deps, r.URL.Query().Get("scheme"))
	if err != nil {
		fail(w, Wrap(op, err))
		return
	}
	entry, err := h.deps.Rank(r.Context(), scheme, crewID)
	if err != nil {
		fail(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, entry)
}
