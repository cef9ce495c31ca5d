package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/studyshelf/studyshelf/internal/catalog"
	"github.com/studyshelf/studyshelf/internal/source"
)

// ─── Catalog ────────────────────────────────────────────────────────────────

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	snap, err := s.store.Snapshot()
	if err != nil {
		s.sendError(w, http.StatusServiceUnavailable, "catalog has not been crawled yet")
		return
	}

	s.sendJSON(w, http.StatusOK, CatalogResponse{
		Coordinate: snap.Coordinate,
		CrawledAt:  snap.CrawledAt,
		DurationMS: snap.Duration.Milliseconds(),
		Total:      len(snap.Materials),
		Materials:  snap.Materials,
		Subjects:   snap.Subjects,
	})
}

func (s *Server) handleMaterials(w http.ResponseWriter, r *http.Request) {
	snap, err := s.store.Snapshot()
	if err != nil {
		s.sendError(w, http.StatusServiceUnavailable, "catalog has not been crawled yet")
		return
	}

	q := r.URL.Query()
	kind := q.Get("kind")
	if kind != "" && !catalog.ValidKind(kind) {
		s.sendError(w, http.StatusBadRequest, fmt.Sprintf("unknown kind %q", kind))
		return
	}

	filter := catalog.Filter{
		Search:  q.Get("search"),
		Subject: q.Get("subject"),
		Kind:    catalog.Kind(kind),
	}
	matched := filter.Apply(snap.Materials)

	s.sendJSON(w, http.StatusOK, MaterialsResponse{
		Total:     len(matched),
		Materials: matched,
	})
}

func (s *Server) handleSubjects(w http.ResponseWriter, r *http.Request) {
	snap, err := s.store.Snapshot()
	if err != nil {
		s.sendError(w, http.StatusServiceUnavailable, "catalog has not been crawled yet")
		return
	}

	s.sendJSON(w, http.StatusOK, SubjectsResponse{Subjects: snap.Subjects})
}

// ─── Refresh ────────────────────────────────────────────────────────────────

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	// An optional JSON body replaces the configured coordinate wholesale.
	coord := s.coord
	var override catalog.Coordinate
	switch err := json.NewDecoder(r.Body).Decode(&override); {
	case err == nil:
		coord = override
	case errors.Is(err, io.EOF):
		// no body, crawl the configured repository
	default:
		s.sendError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	snap, err := s.store.Refresh(r.Context(), coord)
	if err != nil {
		var cfgErr *catalog.ConfigError
		var listErr *source.ListingError
		switch {
		case errors.As(err, &cfgErr):
			s.sendError(w, http.StatusBadRequest, cfgErr.Error())
		case errors.As(err, &listErr):
			s.sendListingError(w, listErr)
		case errors.Is(err, catalog.ErrSuperseded):
			s.sendError(w, http.StatusConflict, "refresh superseded by a newer request")
		default:
			s.sendError(w, http.StatusBadGateway, "crawl failed: "+err.Error())
		}
		return
	}

	s.sendJSON(w, http.StatusOK, RefreshResponse{
		Coordinate: snap.Coordinate,
		Materials:  len(snap.Materials),
		Subjects:   len(snap.Subjects),
		CrawledAt:  snap.CrawledAt,
		DurationMS: snap.Duration.Milliseconds(),
	})
}
