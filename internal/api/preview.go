package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/studyshelf/studyshelf/internal/preview"
)

// ─── Preview ────────────────────────────────────────────────────────────────

// handlePreview proxies a material's content to the page so the browser
// never has to fetch the remote host cross-origin. With ?format=html a
// markdown material is rendered to HTML instead of served raw.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	snap, err := s.store.Snapshot()
	if err != nil {
		s.sendError(w, http.StatusServiceUnavailable, "catalog has not been crawled yet")
		return
	}

	path := r.PathValue("path")
	m, ok := snap.FindPath(path)
	if !ok {
		s.sendError(w, http.StatusNotFound, "material not found: "+path)
		return
	}

	content, err := s.fetcher.Fetch(r.Context(), m)
	if err != nil {
		var upErr *preview.UpstreamError
		switch {
		case errors.Is(err, preview.ErrNoDownloadURL):
			s.sendError(w, http.StatusNotFound, "material has no download URL")
		case errors.Is(err, preview.ErrTooLarge):
			s.sendError(w, http.StatusRequestEntityTooLarge, "material exceeds the preview size limit")
		case errors.As(err, &upErr):
			s.sendError(w, http.StatusBadGateway, "upstream fetch failed: "+upErr.Status)
		default:
			s.sendError(w, http.StatusBadGateway, "preview fetch failed")
		}
		return
	}

	if r.URL.Query().Get("format") == "html" && strings.HasSuffix(strings.ToLower(m.Name), ".md") {
		html, err := preview.RenderMarkdown(content.Data)
		if err != nil {
			s.sendError(w, http.StatusInternalServerError, "render markdown: "+err.Error())
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(html)
		return
	}

	w.Header().Set("Content-Type", content.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(content.Data)))
	w.Write(content.Data)
}
