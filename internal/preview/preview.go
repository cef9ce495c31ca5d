// Package preview proxies material content for the browser: a bounded
// fetch of a material's download URL, an in-memory LRU keyed by path
// and content address, and markdown-to-HTML rendering for inline
// display. The cache never outlives the process.
package preview

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"path"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/yuin/goldmark"
	"go.uber.org/zap"

	"github.com/studyshelf/studyshelf/internal/catalog"
	"github.com/studyshelf/studyshelf/internal/logging"
	"github.com/studyshelf/studyshelf/internal/metrics"
)

// ErrNoDownloadURL means the material has no fetchable location.
var ErrNoDownloadURL = errors.New("preview: material has no download URL")

// ErrTooLarge means the remote body exceeded the configured limit.
var ErrTooLarge = errors.New("preview: content exceeds the preview size limit")

// UpstreamError reports a non-200 response from the content host.
type UpstreamError struct {
	StatusCode int
	Status     string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("preview fetch failed: %s", e.Status)
}

// Content is one fetched material body.
type Content struct {
	Data        []byte
	ContentType string
}

// Config holds the fetcher settings.
type Config struct {
	CacheEntries int           // LRU capacity, minimum 1
	MaxBytes     int64         // per-material body cap
	Timeout      time.Duration // per-fetch timeout; 0 means none
}

// Fetcher retrieves material bodies with a bounded in-memory cache.
// Fetches are single-attempt: upstream failures surface immediately.
type Fetcher struct {
	client   *http.Client
	cache    *lru.Cache[string, *Content]
	maxBytes int64
}

// NewFetcher creates a Fetcher.
func NewFetcher(cfg Config) (*Fetcher, error) {
	if cfg.CacheEntries < 1 {
		cfg.CacheEntries = 1
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 10 << 20
	}
	cache, err := lru.New[string, *Content](cfg.CacheEntries)
	if err != nil {
		return nil, fmt.Errorf("preview cache: %w", err)
	}
	return &Fetcher{
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
		cache:    cache,
		maxBytes: cfg.MaxBytes,
	}, nil
}

// Fetch returns the material body, from cache when the same path and
// content address were fetched before.
func (f *Fetcher) Fetch(ctx context.Context, m catalog.Material) (*Content, error) {
	if m.DownloadURL == "" {
		return nil, ErrNoDownloadURL
	}

	key := m.Path + "@" + m.SHA
	if c, ok := f.cache.Get(key); ok {
		metrics.RecordPreview("hit", 0)
		return c, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.DownloadURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build preview request: %w", err)
	}
	req.Header.Set("User-Agent", "studyshelf")

	resp, err := f.client.Do(req)
	if err != nil {
		metrics.RecordPreview("error", 0)
		return nil, fmt.Errorf("fetch %s: %w", m.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.RecordPreview("error", 0)
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Status: resp.Status}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		metrics.RecordPreview("error", 0)
		return nil, fmt.Errorf("read %s: %w", m.Path, err)
	}
	if int64(len(body)) > f.maxBytes {
		metrics.RecordPreview("error", 0)
		return nil, ErrTooLarge
	}

	ct := resp.Header.Get("Content-Type")
	if ct == "" || ct == "application/octet-stream" {
		ct = contentTypeFor(m.Name)
	}

	c := &Content{Data: body, ContentType: ct}
	f.cache.Add(key, c)
	metrics.RecordPreview("fetch", len(body))
	logging.L().Debug("preview fetched",
		zap.String("path", m.Path),
		zap.Int("size", len(body)),
		zap.String("content_type", ct))
	return c, nil
}

// markdown is the shared converter for RenderMarkdown.
var markdown = goldmark.New()

// RenderMarkdown converts markdown source to HTML for inline preview.
// Raw HTML in the source is escaped by the converter's defaults.
func RenderMarkdown(src []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := markdown.Convert(src, &buf); err != nil {
		return nil, fmt.Errorf("render markdown: %w", err)
	}
	return buf.Bytes(), nil
}

// contentTypeFor resolves a content type from the file extension.
// Extensions the platform mime table misses, or labels in a way
// browsers refuse to display inline, are pinned first.
func contentTypeFor(name string) string {
	ext := strings.ToLower(path.Ext(name))
	switch ext {
	case ".md", ".txt":
		return "text/plain; charset=utf-8"
	case ".mp4":
		return "video/mp4"
	case ".webm":
		return "video/webm"
	case ".mov":
		return "video/quicktime"
	case ".mkv":
		return "video/x-matroska"
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
