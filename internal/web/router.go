// Package web is the delivery surface: it serves the installable shell page,
// its static assets, and a health endpoint. All account and code handling
// stays on the device; nothing here touches the vault.
package web

import (
	"embed"
	"encoding/json"
	"io/fs"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/civistrom/civid/internal/buildinfo"
	"github.com/civistrom/civid/internal/config"
	"github.com/civistrom/civid/internal/logging"
)

//go:embed static
var staticFS embed.FS

// HealthResponse is the JSON body of GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	App     string `json:"app"`
	Version string `json:"version"`
	Time    string `json:"time"`
}

// NewRouter builds the delivery router.
func NewRouter(logger logging.Logger) *mux.Router {
	r := mux.NewRouter()

	serveIndex := func(w http.ResponseWriter, req *http.Request) {
		body, err := staticFS.ReadFile("static/index.html")
		if err != nil {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(body)
	}

	r.HandleFunc("/health", func(w http.ResponseWriter, req *http.Request) {
		resp := HealthResponse{
			Status:  "ok",
			App:     config.AppName,
			Version: buildinfo.BuildVersion,
			Time:    time.Now().UTC().Format(time.RFC3339),
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			logger.Error(req.Context(), "writing health response", "error", err)
		}
	}).Methods("GET")

	r.HandleFunc("/", serveIndex).Methods("GET")
	r.HandleFunc("/index.html", serveIndex).Methods("GET")

	r.HandleFunc("/manifest.webmanifest", func(w http.ResponseWriter, req *http.Request) {
		body, err := staticFS.ReadFile("static/manifest.webmanifest")
		if err != nil {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/manifest+json")
		_, _ = w.Write(body)
	}).Methods("GET")

	assets, _ := fs.Sub(staticFS, "static/assets")
	r.PathPrefix("/assets/").Handler(http.StripPrefix("/assets/", http.FileServer(http.FS(assets)))).Methods("GET")

	return r
}
