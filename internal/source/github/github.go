// Package github implements source.Lister over the GitHub repository
// contents API: one unauthenticated GET per directory, no pagination,
// no retries.
package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/studyshelf/studyshelf/internal/logging"
	"github.com/studyshelf/studyshelf/internal/metrics"
	"github.com/studyshelf/studyshelf/internal/source"
)

// DefaultBaseURL is the public GitHub API endpoint. Any server
// speaking the same contents API works (GitHub Enterprise, a test
// server).
const DefaultBaseURL = "https://api.github.com"

// maxErrorBody bounds how much of a failed response body is kept for
// diagnostics.
const maxErrorBody = 4 << 10

// Config holds the lister settings.
type Config struct {
	BaseURL string        // defaults to DefaultBaseURL
	Timeout time.Duration // per-request timeout; 0 means no timeout
}

// Lister lists repository directories via the contents API.
type Lister struct {
	baseURL string
	client  *http.Client
}

// NewLister creates a contents-API lister.
func NewLister(cfg Config) *Lister {
	base := strings.TrimSuffix(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	return &Lister{
		baseURL: base,
		client: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:        100,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
	}
}

// apiEntry mirrors one element of a contents API directory response.
type apiEntry struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	Type        string `json:"type"`
	Size        int64  `json:"size"`
	SHA         string `json:"sha"`
	DownloadURL string `json:"download_url"`
}

// ListDirectory fetches one directory listing. A 200 response whose
// payload is not a JSON array means the path resolved to a single
// file; that is reported as an empty directory, not an error.
func (l *Lister) ListDirectory(ctx context.Context, owner, repo, dir, ref string) ([]source.Entry, error) {
	u := fmt.Sprintf("%s/repos/%s/%s/contents/%s",
		l.baseURL, url.PathEscape(owner), url.PathEscape(repo), escapePath(dir))
	if ref != "" {
		u += "?ref=" + url.QueryEscape(ref)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build listing request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", "studyshelf")

	start := time.Now()
	resp, err := l.client.Do(req)
	if err != nil {
		metrics.RecordListing("github", 0, time.Since(start))
		return nil, source.NewTransportError(err)
	}
	defer resp.Body.Close()
	metrics.RecordListing("github", resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &source.ListingError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       strings.TrimSpace(string(body)),
		}
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, source.NewTransportError(err)
	}

	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		// The path resolved to a single file (object payload), not a
		// directory. Treated leniently as an empty directory.
		logging.L().Warn("listing returned a non-array payload, treating as empty directory",
			zap.String("path", dir))
		return []source.Entry{}, nil
	}

	var raw []apiEntry
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil, &source.ListingError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       fmt.Sprintf("malformed directory payload: %v", err),
		}
	}

	entries := make([]source.Entry, 0, len(raw))
	for _, e := range raw {
		entries = append(entries, source.Entry{
			Name:        e.Name,
			Path:        e.Path,
			Type:        source.EntryType(e.Type),
			Size:        e.Size,
			SHA:         e.SHA,
			DownloadURL: e.DownloadURL,
		})
	}
	return entries, nil
}

// escapePath escapes each path segment while keeping the separators.
func escapePath(p string) string {
	if p == "" {
		return ""
	}
	segs := strings.Split(p, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return strings.Join(segs, "/")
}
