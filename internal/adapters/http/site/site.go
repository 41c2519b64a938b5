// Package site serves the landing page that documents the loaded scoring
// schemes and links to the dashboard and API reference.
package site

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"html/template"
	"net/http"

	"github.com/xplor/crewscore/internal/domain/scoring"
)

// Error constants.
var (
	ErrRender = errors.New("landing page render failed")
)

//go:embed static/index.html.tmpl
var staticFS embed.FS

var page = template.Must(template.ParseFS(staticFS, "static/index.html.tmpl"))

// SchemeLister lists the schemes shown on the landing page.
type SchemeLister interface {
	Schemes() []scoring.Scheme
}

type schemeView struct {
	scoring.Scheme
	MaxTotal int
}

// RootHandler renders the landing page.
type RootHandler struct {
	title   string
	schemes SchemeLister
}

// NewRootHandler creates a new root handler.
func NewRootHandler(title string, schemes SchemeLister) *RootHandler {
	return &RootHandler{title: title, schemes: schemes}
}

// Register attaches the landing page to mux. Only the exact root path is
// served; anything else below / is a 404.
func Register(_ context.Context, mux *http.ServeMux, schemes SchemeLister) {
	if mux == nil {
		panic("mux is nil")
	}
	mux.Handle("/", NewRootHandler("Crew Ratings", schemes))
}

// ServeHTTP handles GET / requests.
func (h *RootHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" || r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	list := h.schemes.Schemes()
	views := make([]schemeView, len(list))
	for i, s := range list {
		views[i] = schemeView{Scheme: s, MaxTotal: s.MaxTotal()}
	}

	var buf bytes.Buffer
	if err := page.Execute(&buf, struct {
		Title   string
		Schemes []schemeView
	}{h.title, views}); err != nil {
		http.Error(w, errors.Join(ErrRender, err).Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
