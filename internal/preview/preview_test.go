package preview

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/studyshelf/studyshelf/internal/catalog"
)

func newFetcher(t *testing.T, cfg Config) *Fetcher {
	t.Helper()
	f, err := NewFetcher(cfg)
	if err != nil {
		t.Fatalf("new fetcher: %v", err)
	}
	return f
}

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte("study hard"))
	}))
	defer srv.Close()

	f := newFetcher(t, Config{CacheEntries: 4})
	m := catalog.Material{Name: "readme.txt", Path: "materials/readme.txt", SHA: "s1", DownloadURL: srv.URL}

	c, err := f.Fetch(context.Background(), m)
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if string(c.Data) != "study hard" {
		t.Errorf("data = %q", c.Data)
	}
	if c.ContentType != "text/plain; charset=utf-8" {
		t.Errorf("content type = %q", c.ContentType)
	}
}

func TestFetchContentTypeFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Raw-content hosts commonly answer with a generic type
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write([]byte{0x89, 0x50, 0x4e, 0x47})
	}))
	defer srv.Close()

	f := newFetcher(t, Config{CacheEntries: 4})
	m := catalog.Material{Name: "photo.PNG", Path: "materials/photo.PNG", SHA: "s1", DownloadURL: srv.URL}

	c, err := f.Fetch(context.Background(), m)
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if c.ContentType != "image/png" {
		t.Errorf("content type = %q, want image/png", c.ContentType)
	}
}

func TestFetchCachesByPathAndSHA(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Write([]byte("v"))
	}))
	defer srv.Close()

	f := newFetcher(t, Config{CacheEntries: 4})
	m := catalog.Material{Name: "a.txt", Path: "materials/a.txt", SHA: "v1", DownloadURL: srv.URL}

	for i := 0; i < 3; i++ {
		if _, err := f.Fetch(context.Background(), m); err != nil {
			t.Fatalf("fetch %d failed: %v", i, err)
		}
	}
	if n := atomic.LoadInt32(&hits); n != 1 {
		t.Fatalf("expected 1 upstream fetch, got %d", n)
	}

	// A new content address busts the cache
	m.SHA = "v2"
	if _, err := f.Fetch(context.Background(), m); err != nil {
		t.Fatalf("fetch after sha change failed: %v", err)
	}
	if n := atomic.LoadInt32(&hits); n != 2 {
		t.Fatalf("expected 2 upstream fetches after sha change, got %d", n)
	}
}

func TestFetchTooLarge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(make([]byte, 100))
	}))
	defer srv.Close()

	f := newFetcher(t, Config{CacheEntries: 4, MaxBytes: 8})
	m := catalog.Material{Name: "big.bin", Path: "materials/big.bin", DownloadURL: srv.URL}

	if _, err := f.Fetch(context.Background(), m); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
}

func TestFetchUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := newFetcher(t, Config{CacheEntries: 4})
	m := catalog.Material{Name: "a.txt", Path: "materials/a.txt", DownloadURL: srv.URL}

	_, err := f.Fetch(context.Background(), m)
	var ue *UpstreamError
	if !errors.As(err, &ue) {
		t.Fatalf("expected *UpstreamError, got %v", err)
	}
	if ue.StatusCode != http.StatusInternalServerError {
		t.Errorf("StatusCode = %d", ue.StatusCode)
	}
}

func TestFetchNoDownloadURL(t *testing.T) {
	f := newFetcher(t, Config{CacheEntries: 4})

	_, err := f.Fetch(context.Background(), catalog.Material{Name: "a.txt", Path: "materials/a.txt"})
	if !errors.Is(err, ErrNoDownloadURL) {
		t.Fatalf("expected ErrNoDownloadURL, got %v", err)
	}
}

func TestRenderMarkdown(t *testing.T) {
	html, err := RenderMarkdown([]byte("# Week 1\n\nRead *chapter one*.\n"))
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	out := string(html)
	if !strings.Contains(out, "<h1>Week 1</h1>") {
		t.Errorf("missing heading in %q", out)
	}
	if !strings.Contains(out, "<em>chapter one</em>") {
		t.Errorf("missing emphasis in %q", out)
	}
}
