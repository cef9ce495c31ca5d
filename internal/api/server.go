// Package api implements the HTTP JSON surface of the catalog service.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/studyshelf/studyshelf/internal/catalog"
	"github.com/studyshelf/studyshelf/internal/config"
	"github.com/studyshelf/studyshelf/internal/logging"
	"github.com/studyshelf/studyshelf/internal/metrics"
	"github.com/studyshelf/studyshelf/internal/preview"
	"github.com/studyshelf/studyshelf/internal/source"
)

// Server routes catalog and preview requests to the store and fetcher.
type Server struct {
	config  *config.Config
	store   *catalog.Store
	fetcher *preview.Fetcher
	coord   catalog.Coordinate
	version string
}

// NewServer creates a new server. coord is the configured repository
// coordinate used by refreshes that carry no body.
func NewServer(
	cfg *config.Config,
	store *catalog.Store,
	fetcher *preview.Fetcher,
	coord catalog.Coordinate,
	version string,
) *Server {
	return &Server{
		config:  cfg,
		store:   store,
		fetcher: fetcher,
		coord:   coord,
		version: version,
	}
}

// Handler returns the HTTP handler with CORS, logging and metrics middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)

	mux.HandleFunc("GET /api/v1/catalog", s.handleCatalog)
	mux.HandleFunc("GET /api/v1/catalog/materials", s.handleMaterials)
	mux.HandleFunc("GET /api/v1/catalog/subjects", s.handleSubjects)
	mux.HandleFunc("POST /api/v1/catalog/refresh", s.handleRefresh)

	mux.HandleFunc("GET /api/v1/preview/{path...}", s.handlePreview)

	return metrics.Middleware(logging.Middleware(s.cors(mux)))
}

// cors allows the catalog page, served from another origin, to call the
// API. Preflight requests are answered here and never reach the mux.
func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := s.config.CORSOrigin
		if origin == "" {
			origin = "*"
		}
		w.Header().Set("Access-Control-Allow-Origin", origin)
		if origin != "*" {
			w.Header().Set("Vary", "Origin")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ─── Health ─────────────────────────────────────────────────────────────────

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok", "version": s.version})
}

// ─── Response helpers ───────────────────────────────────────────────────────

func (s *Server) sendJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) sendError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// sendListingError maps a failed remote listing to 502 and hands the
// upstream status and body through unchanged.
func (s *Server) sendListingError(w http.ResponseWriter, le *source.ListingError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadGateway)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error: "remote listing failed",
		Code:  http.StatusBadGateway,
		Upstream: &UpstreamDetail{
			StatusCode: le.StatusCode,
			Status:     le.Status,
			Body:       le.Body,
		},
	})
}
