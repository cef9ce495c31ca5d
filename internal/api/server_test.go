package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/studyshelf/studyshelf/internal/catalog"
	"github.com/studyshelf/studyshelf/internal/config"
	"github.com/studyshelf/studyshelf/internal/preview"
	"github.com/studyshelf/studyshelf/internal/source"
)

// stubCrawler serves a canned crawl result and records the coordinate
// of the most recent crawl.
type stubCrawler struct {
	mu        sync.Mutex
	materials []catalog.Material
	err       error
	lastCoord catalog.Coordinate
}

func (c *stubCrawler) Crawl(ctx context.Context, coord catalog.Coordinate) ([]catalog.Material, error) {
	c.mu.Lock()
	c.lastCoord = coord
	c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	return c.materials, nil
}

func (c *stubCrawler) crawledCoord() catalog.Coordinate {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastCoord
}

var apiCoord = catalog.Coordinate{Owner: "acme", Repo: "docs", Root: "materials"}

func testServer(t *testing.T, crawler catalog.Crawler) (*httptest.Server, *catalog.Store) {
	t.Helper()
	store := catalog.NewStore(crawler)
	t.Cleanup(store.Close)

	fetcher, err := preview.NewFetcher(preview.Config{CacheEntries: 8})
	if err != nil {
		t.Fatalf("fetcher init: %v", err)
	}

	cfg := &config.Config{CORSOrigin: "*"}
	srv := NewServer(cfg, store, fetcher, apiCoord, "test")
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, store
}

func crawledMaterials(downloadBase string) []catalog.Material {
	return []catalog.Material{
		{Name: "algebra.pdf", Path: "materials/Math/algebra.pdf", Size: 2048, Kind: catalog.KindPDF,
			SHA: "a1", DownloadURL: downloadBase + "/algebra.pdf"},
		{Name: "syllabus.md", Path: "materials/Math/syllabus.md", Size: 128, Kind: catalog.KindDocument,
			SHA: "s1", DownloadURL: downloadBase + "/syllabus.md"},
		{Name: "waves.mp4", Path: "materials/Physics/waves.mp4", Size: 4096, Kind: catalog.KindVideo,
			SHA: "w1", DownloadURL: downloadBase + "/waves.mp4"},
		{Name: "readme.txt", Path: "materials/readme.txt", Size: 64, Kind: catalog.KindDocument,
			SHA: "r1", DownloadURL: downloadBase + "/readme.txt"},
	}
}

func getJSON(t *testing.T, url string, wantStatus int, into any) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("GET %s = %d, want %d (body %s)", url, resp.StatusCode, wantStatus, body)
	}
	if into != nil {
		if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
}

func postRefresh(t *testing.T, ts *httptest.Server, body string, wantStatus int, into any) {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	resp, err := http.Post(ts.URL+"/api/v1/catalog/refresh", "application/json", rdr)
	if err != nil {
		t.Fatalf("POST refresh: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		b, _ := io.ReadAll(resp.Body)
		t.Fatalf("POST refresh = %d, want %d (body %s)", resp.StatusCode, wantStatus, b)
	}
	if into != nil {
		if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
			t.Fatalf("decode refresh response: %v", err)
		}
	}
}

func TestHealth(t *testing.T) {
	ts, _ := testServer(t, &stubCrawler{})

	var out map[string]string
	getJSON(t, ts.URL+"/health", http.StatusOK, &out)
	if out["status"] != "ok" || out["version"] != "test" {
		t.Errorf("health = %v", out)
	}
}

func TestCatalogBeforeAnyCrawl(t *testing.T) {
	ts, _ := testServer(t, &stubCrawler{})

	for _, path := range []string{
		"/api/v1/catalog",
		"/api/v1/catalog/materials",
		"/api/v1/catalog/subjects",
	} {
		var e ErrorResponse
		getJSON(t, ts.URL+path, http.StatusServiceUnavailable, &e)
		if e.Error == "" || e.Code != http.StatusServiceUnavailable {
			t.Errorf("%s error body = %+v", path, e)
		}
	}
}

func TestRefreshAndCatalog(t *testing.T) {
	ts, _ := testServer(t, &stubCrawler{materials: crawledMaterials("https://raw.example.test")})

	var rr RefreshResponse
	postRefresh(t, ts, "", http.StatusOK, &rr)
	if rr.Materials != 4 || rr.Subjects != 3 {
		t.Fatalf("refresh summary = %+v", rr)
	}
	if rr.Coordinate != apiCoord {
		t.Errorf("refresh used coordinate %+v, want the configured one", rr.Coordinate)
	}

	var cat CatalogResponse
	getJSON(t, ts.URL+"/api/v1/catalog", http.StatusOK, &cat)
	if cat.Total != 4 || len(cat.Materials) != 4 {
		t.Fatalf("catalog total = %d, materials = %d", cat.Total, len(cat.Materials))
	}

	// Sorted by subject then name, with subjects attached
	wantOrder := []string{"algebra.pdf", "syllabus.md", "waves.mp4", "readme.txt"}
	for i, name := range wantOrder {
		if cat.Materials[i].Name != name {
			t.Errorf("materials[%d] = %q, want %q", i, cat.Materials[i].Name, name)
		}
	}
	if cat.Materials[0].Subject != "Math" || cat.Materials[3].Subject != catalog.Uncategorized {
		t.Errorf("subjects not attached: %+v", cat.Materials)
	}
	if len(cat.Subjects) != 3 || cat.Subjects[0] != "Math" {
		t.Errorf("subjects = %v", cat.Subjects)
	}
}

func TestMaterialsFiltering(t *testing.T) {
	ts, _ := testServer(t, &stubCrawler{materials: crawledMaterials("https://raw.example.test")})
	postRefresh(t, ts, "", http.StatusOK, nil)

	cases := []struct {
		query string
		want  []string
	}{
		{"search=alg", []string{"algebra.pdf"}},
		{"search=ALG", []string{"algebra.pdf"}},
		{"subject=Math", []string{"algebra.pdf", "syllabus.md"}},
		{"subject=Uncategorized", []string{"readme.txt"}},
		{"kind=image", nil},
		{"kind=video", []string{"waves.mp4"}},
		// The pdf bucket admits generic documents as well
		{"kind=pdf", []string{"algebra.pdf", "syllabus.md", "readme.txt"}},
		{"kind=document", []string{"syllabus.md", "readme.txt"}},
		{"subject=Math&kind=pdf", []string{"algebra.pdf", "syllabus.md"}},
		{"search=waves&subject=Math", nil},
		{"", []string{"algebra.pdf", "syllabus.md", "waves.mp4", "readme.txt"}},
	}

	for _, tc := range cases {
		var out MaterialsResponse
		getJSON(t, ts.URL+"/api/v1/catalog/materials?"+tc.query, http.StatusOK, &out)

		got := make([]string, len(out.Materials))
		for i, m := range out.Materials {
			got[i] = m.Name
		}
		if len(got) != len(tc.want) {
			t.Errorf("query %q matched %v, want %v", tc.query, got, tc.want)
			continue
		}
		for i := range tc.want {
			if got[i] != tc.want[i] {
				t.Errorf("query %q matched %v, want %v", tc.query, got, tc.want)
				break
			}
		}
		if out.Total != len(tc.want) {
			t.Errorf("query %q total = %d, want %d", tc.query, out.Total, len(tc.want))
		}
	}
}

func TestMaterialsRejectsUnknownKind(t *testing.T) {
	ts, _ := testServer(t, &stubCrawler{materials: crawledMaterials("https://raw.example.test")})
	postRefresh(t, ts, "", http.StatusOK, nil)

	var e ErrorResponse
	getJSON(t, ts.URL+"/api/v1/catalog/materials?kind=audio", http.StatusBadRequest, &e)
	if !strings.Contains(e.Error, "audio") {
		t.Errorf("error should name the bad kind: %+v", e)
	}
}

func TestSubjects(t *testing.T) {
	ts, _ := testServer(t, &stubCrawler{materials: crawledMaterials("https://raw.example.test")})
	postRefresh(t, ts, "", http.StatusOK, nil)

	var out SubjectsResponse
	getJSON(t, ts.URL+"/api/v1/catalog/subjects", http.StatusOK, &out)

	want := []string{"Math", "Physics", catalog.Uncategorized}
	if len(out.Subjects) != len(want) {
		t.Fatalf("subjects = %v, want %v", out.Subjects, want)
	}
	for i := range want {
		if out.Subjects[i] != want[i] {
			t.Fatalf("subjects = %v, want %v", out.Subjects, want)
		}
	}
}

func TestRefreshCoordinateOverride(t *testing.T) {
	crawler := &stubCrawler{materials: []catalog.Material{}}
	ts, _ := testServer(t, crawler)

	var rr RefreshResponse
	postRefresh(t, ts, `{"owner":"other","repo":"things","ref":"v2","root":"docs"}`, http.StatusOK, &rr)

	want := catalog.Coordinate{Owner: "other", Repo: "things", Ref: "v2", Root: "docs"}
	if crawler.crawledCoord() != want {
		t.Errorf("crawled %+v, want the override %+v", crawler.crawledCoord(), want)
	}
	if rr.Coordinate != want {
		t.Errorf("response coordinate = %+v", rr.Coordinate)
	}
}

func TestRefreshOverrideReplacesWholesale(t *testing.T) {
	// An override is a full replacement: an empty body object drops the
	// configured owner and repo rather than merging with them.
	ts, _ := testServer(t, &stubCrawler{})

	var e ErrorResponse
	postRefresh(t, ts, `{}`, http.StatusBadRequest, &e)
	if !strings.Contains(e.Error, "owner") || !strings.Contains(e.Error, "repo") {
		t.Errorf("error should name the missing fields: %+v", e)
	}
}

func TestRefreshMalformedBody(t *testing.T) {
	ts, _ := testServer(t, &stubCrawler{})

	var e ErrorResponse
	postRefresh(t, ts, `{"owner":`, http.StatusBadRequest, &e)
	if e.Code != http.StatusBadRequest {
		t.Errorf("error body = %+v", e)
	}
}

func TestRefreshListingErrorPassesUpstreamThrough(t *testing.T) {
	ts, _ := testServer(t, &stubCrawler{err: &source.ListingError{
		StatusCode: http.StatusNotFound,
		Status:     "404 Not Found",
		Body:       `{"message":"Not Found"}`,
	}})

	var e ErrorResponse
	postRefresh(t, ts, "", http.StatusBadGateway, &e)
	if e.Upstream == nil {
		t.Fatalf("missing upstream detail: %+v", e)
	}
	if e.Upstream.StatusCode != http.StatusNotFound || e.Upstream.Body != `{"message":"Not Found"}` {
		t.Errorf("upstream detail altered: %+v", e.Upstream)
	}

	// The failed crawl must not install a partial catalog
	getJSON(t, ts.URL+"/api/v1/catalog", http.StatusServiceUnavailable, nil)
}

func TestEmptyCatalogIsOKNotAnError(t *testing.T) {
	ts, _ := testServer(t, &stubCrawler{materials: []catalog.Material{}})
	postRefresh(t, ts, "", http.StatusOK, nil)

	var cat CatalogResponse
	getJSON(t, ts.URL+"/api/v1/catalog", http.StatusOK, &cat)
	if cat.Total != 0 || len(cat.Materials) != 0 || len(cat.Subjects) != 0 {
		t.Errorf("empty catalog = %+v", cat)
	}
}

func TestPreviewProxiesContent(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/algebra.pdf":
			w.Header().Set("Content-Type", "application/pdf")
			w.Write([]byte("%PDF-1.4 fake"))
		case "/syllabus.md":
			w.Write([]byte("# Week 1\n\nRead chapter one.\n"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer upstream.Close()

	ts, _ := testServer(t, &stubCrawler{materials: crawledMaterials(upstream.URL)})
	postRefresh(t, ts, "", http.StatusOK, nil)

	resp, err := http.Get(ts.URL + "/api/v1/preview/materials/Math/algebra.pdf")
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("preview status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/pdf" {
		t.Errorf("content type = %q", ct)
	}
	body, _ := io.ReadAll(resp.Body)
	if !bytes.Equal(body, []byte("%PDF-1.4 fake")) {
		t.Errorf("body = %q", body)
	}
}

func TestPreviewRendersMarkdown(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("# Week 1\n"))
	}))
	defer upstream.Close()

	ts, _ := testServer(t, &stubCrawler{materials: crawledMaterials(upstream.URL)})
	postRefresh(t, ts, "", http.StatusOK, nil)

	resp, err := http.Get(ts.URL + "/api/v1/preview/materials/Math/syllabus.md?format=html")
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("preview status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("content type = %q, want html", ct)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "<h1>Week 1</h1>") {
		t.Errorf("rendered markdown = %q", body)
	}
}

func TestPreviewUnknownPath(t *testing.T) {
	ts, _ := testServer(t, &stubCrawler{materials: crawledMaterials("https://raw.example.test")})
	postRefresh(t, ts, "", http.StatusOK, nil)

	getJSON(t, ts.URL+"/api/v1/preview/materials/Math/missing.txt", http.StatusNotFound, nil)
}

func TestCORSPreflight(t *testing.T) {
	ts, _ := testServer(t, &stubCrawler{})

	req, _ := http.NewRequest(http.MethodOptions, ts.URL+"/api/v1/catalog", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("preflight: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("preflight status = %d", resp.StatusCode)
	}
	if resp.Header.Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("allow-origin = %q", resp.Header.Get("Access-Control-Allow-Origin"))
	}
}
