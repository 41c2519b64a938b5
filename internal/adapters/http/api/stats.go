package api

import (
	"net/http"
	"strings"
)

// StatsProvider reports a snapshot of service counters.
type StatsProvider interface {
	GetStats() map[string]any
}

// StatsHandler serves GET /stats. An optional ?keys=a,b narrows the snapshot
// to the named counters; unknown names are ignored.
type StatsHandler struct {
	stats StatsProvider
}

// NewStatsHandler wraps a StatsProvider.
func NewStatsHandler(stats StatsProvider) *StatsHandler {
	return &StatsHandler{stats: stats}
}

// HandleStats writes the snapshot as JSON.
func (h *StatsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	snapshot := h.stats.GetStats()
	if raw := r.URL.Query().Get("keys"); raw != "" {
		snapshot = selectKeys(snapshot, strings.Split(raw, ","))
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func selectKeys(all map[string]any, keys []string) map[string]any {
	out := make(map[string]any, len(keys))
	for _, k := range keys {
		k = strings.TrimSpace(k)
		if v, ok := all[k]; ok {
			out[k] = v
		}
	}
	return out
}
