package site

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/xplor/crewscore/internal/domain/scoring"
)

type registryLister struct{ reg *scoring.Registry }

func (l registryLister) Schemes() []scoring.Scheme { return l.reg.List() }

func TestSiteHandler(t *testing.T) {
	Convey("Given a site handler over the built-in schemes", t, func() {
		reg, err := scoring.DefaultRegistry()
		So(err, ShouldBeNil)
		mux := http.NewServeMux()
		Register(context.Background(), mux, registryLister{reg})

		Convey("When requesting the root page", func() {
			req := httptest.NewRequest("GET", "/", http.NoBody)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			Convey("Then every scheme and tier is listed", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Header().Get("Content-Type"), ShouldContainSubstring, "text/html")
				body := w.Body.String()
				So(body, ShouldContainSubstring, "Crew Ratings")
				So(body, ShouldContainSubstring, "(cri v")
				So(body, ShouldContainSubstring, "(yci v")
				So(body, ShouldContainSubstring, "Top Contributor")
				So(body, ShouldContainSubstring, "uncapped")
				So(body, ShouldContainSubstring, `href="/api-docs"`)
			})
		})

		Convey("When requesting an unknown path", func() {
			req := httptest.NewRequest("GET", "/some-asset", http.NoBody)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			Convey("Then it is not found", func() {
				So(w.Code, ShouldEqual, http.StatusNotFound)
			})
		})

		Convey("When posting to the root", func() {
			req := httptest.NewRequest("POST", "/", http.NoBody)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			Convey("Then it is not found", func() {
				So(w.Code, ShouldEqual, http.StatusNotFound)
			})
		})
	})
}
