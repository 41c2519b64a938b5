// Package swagger publishes the API reference: the OpenAPI document in YAML
// and JSON, and a ReDoc page rendering it.
package swagger

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"net/http"

	"gopkg.in/yaml.v3"
)

// OpenAPI is the API document as authored.
//
//go:embed openapi.yaml
var OpenAPI []byte

// OpenAPIJSON converts the embedded document to JSON for clients that do not
// read YAML.
func OpenAPIJSON() ([]byte, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(OpenAPI, &doc); err != nil {
		return nil, fmt.Errorf("parse openapi document: %w", err)
	}
	out, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode openapi document: %w", err)
	}
	return out, nil
}

// Register mounts
//
//	GET /api-docs      ReDoc page
//	GET /openapi.yaml  document as authored
//	GET /openapi.json  same document as JSON
//
// It fails only if the embedded document cannot be converted.
func Register(_ context.Context, mux *http.ServeMux) error {
	if mux == nil {
		return fmt.Errorf("swagger: nil mux")
	}
	asJSON, err := OpenAPIJSON()
	if err != nil {
		return err
	}

	mux.HandleFunc("/api-docs", static("text/html; charset=utf-8", []byte(redocPage)))
	mux.HandleFunc("/openapi.yaml", static("application/yaml; charset=utf-8", OpenAPI))
	mux.HandleFunc("/openapi.json", static("application/json", asJSON))
	return nil
}

func static(contentType string, body []byte) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", contentType)
		_, _ = w.Write(body)
	}
}

const redocCDN = "https://cdn.redoc.ly/redoc/v2.1.5/bundles/redoc.standalone.js"

const redocPage = `<!doctype html>
<html>
<head>
<meta charset="utf-8">
<title>Crew Ratings API</title>
<style>body{margin:0}</style>
</head>
<body>
<div id="docs"></div>
<script src="` + redocCDN + `"></script>
<script>Redoc.init('/openapi.yaml', {suppressWarnings: true, hideDownloadButton: false}, document.getElementById('docs'));</script>
</body>
</html>`
