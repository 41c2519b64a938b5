package api

import (
	"net/http"
	"strings"

	"github.com/xplor/crewscore/internal/domain/scoring"
)

// SchemeDependencies lists and looks up scoring schemes.
type SchemeDependencies interface {
	Schemes() []scoring.Scheme
	Scheme(name string) (scoring.Scheme, error)
}

// SchemesHandler serves the weight and tier tables.
type SchemesHandler struct {
	deps SchemeDependencies
}

// NewSchemesHandler creates a new schemes handler.
func NewSchemesHandler(deps SchemeDependencies) *SchemesHandler {
	return &SchemesHandler{deps: deps}
}

type schemeSummary struct {
	Name        string         `json:"name"`
	Label       string         `json:"label"`
	Version     string         `json:"version"`
	Description string         `json:"description,omitempty"`
	MaxTotal    int            `json:"max_total"`
	Categories  []string       `json:"categories"`
	Tiers       []scoring.Tier `json:"tiers"`
}

type schemeDetail struct {
	scoring.Scheme
	MaxTotal int `json:"max_total"`
}

// HandleList handles GET /schemes.
func (h *SchemesHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	list := h.deps.Schemes()
	out := make([]schemeSummary, 0, len(list))
	for _, s := range list {
		cats := make([]string, len(s.Categories))
		for i, c := range s.Categories {
			cats[i] = c.Name
		}
		out = append(out, schemeSummary{
			Name:        s.Name,
			Label:       s.Label,
			Version:     s.Version,
			Description: s.Description,
			MaxTotal:    s.MaxTotal(),
			Categories:  cats,
			Tiers:       s.Tiers.Bands,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleGet handles GET /schemes/{name}.
func (h *SchemesHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_scheme"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	name := strings.TrimPrefix(r.URL.Path, "/schemes/")
	if name == "" || strings.Contains(name, "/") {
		fail(w, NewKind(op, ErrBadRequest))
		return
	}
	s, err := h.deps.Scheme(name)
	if err != nil {
		writeError(w, http.StatusNotFound, "not_found", WrapKind(op, ErrNotFound, err))
		return
	}
	writeJSON(w, http.StatusOK, schemeDetail{Scheme: s, MaxTotal: s.MaxTotal()})
}

// canonicalScheme resolves name, empty meaning the default, to a registered scheme name.
func canonicalScheme(deps SchemeDependencies, name string) (string, error) {
	s, err := deps.Scheme(name)
	if err != nil {
		return "", err
	}
	return s.Name, nil
}
