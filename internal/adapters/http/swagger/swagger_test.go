package swagger

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/smartystreets/goconvey/convey"
	"gopkg.in/yaml.v3"
)

func get(mux *http.ServeMux, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(method, path, http.NoBody))
	return w
}

func TestRegister(t *testing.T) {
	convey.Convey("Given the reference routes on a mux", t, func() {
		mux := http.NewServeMux()
		convey.So(Register(context.Background(), mux), convey.ShouldBeNil)

		convey.Convey("Then the YAML document is served as authored", func() {
			w := get(mux, http.MethodGet, "/openapi.yaml")
			convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
			convey.So(w.Header().Get("Content-Type"), convey.ShouldEqual, "application/yaml; charset=utf-8")
			convey.So(w.Body.Bytes(), convey.ShouldResemble, OpenAPI)
		})

		convey.Convey("And the JSON rendering carries the same paths", func() {
			w := get(mux, http.MethodGet, "/openapi.json")
			convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
			var doc struct {
				Paths map[string]any `json:"paths"`
			}
			convey.So(json.Unmarshal(w.Body.Bytes(), &doc), convey.ShouldBeNil)
			convey.So(doc.Paths, convey.ShouldContainKey, "/leaderboard")
		})

		convey.Convey("And the ReDoc page points at the document", func() {
			w := get(mux, http.MethodGet, "/api-docs")
			convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
			convey.So(w.Body.String(), convey.ShouldContainSubstring, "Redoc.init('/openapi.yaml'")
		})

		convey.Convey("And other methods are not found", func() {
			convey.So(get(mux, http.MethodPost, "/openapi.yaml").Code, convey.ShouldEqual, http.StatusNotFound)
			convey.So(get(mux, http.MethodDelete, "/openapi.json").Code, convey.ShouldEqual, http.StatusNotFound)
		})
	})

	convey.Convey("Given no mux", t, func() {
		convey.So(Register(context.Background(), nil), convey.ShouldNotBeNil)
	})
}

func TestOpenAPIDocument(t *testing.T) {
	convey.Convey("Given the embedded OpenAPI document", t, func() {
		var doc struct {
			OpenAPI string                    `yaml:"openapi"`
			Paths   map[string]map[string]any `yaml:"paths"`
		}
		err := yaml.Unmarshal(OpenAPI, &doc)

		convey.Convey("Then it parses and documents every route", func() {
			convey.So(err, convey.ShouldBeNil)
			convey.So(doc.OpenAPI, convey.ShouldStartWith, "3.")
			for _, p := range []string{
				"/healthz", "/stats", "/schemes", "/schemes/{name}", "/score", "/score/batch",
				"/submissions", "/leaderboard", "/rank/{crew_id}", "/history/{crew_id}",
			} {
				convey.So(doc.Paths, convey.ShouldContainKey, p)
			}
		})
	})
}
