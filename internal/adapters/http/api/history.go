package api

import (
	"context"
	"net/http"

	"github.com/xplor/crewscore/internal/domain/model"
)

// HistoryDependencies reads archived score cards.
type HistoryDependencies interface {
	History(ctx context.Context, crewID string, limit int) ([]model.ScoreCard, error)
}

// HistoryHandler handles score history requests.
type HistoryHandler struct {
	deps     HistoryDependencies
	maxLimit int
}

// NewHistoryHandler creates a new history handler.
func NewHistoryHandler(deps HistoryDependencies, maxLimit int) *HistoryHandler {
	return &HistoryHandler{deps: deps, maxLimit: maxLimit}
}

// HandleGetHistory handles GET /history/{crew_id}?limit=N requests.
func (h *HistoryHandler) HandleGetHistory(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_history"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	crewID, ok := pathParam(r, "/history/")
	if !ok {
		fail(w, NewKind(op, ErrBadRequest))
		return
	}
	n, err := parseLimit(r, defaultLimit, h.maxLimit)
	if err != nil {
		fail(w, Wrap(op, err))
		return
	}
	cards, err := h.deps.History(r.Context(), crewID, n)
	if err != nil {
		fail(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, cards)
}
