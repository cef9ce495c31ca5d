// Package metrics provides Prometheus metrics for the StudyShelf server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studyshelf_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "studyshelf_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Directory listing metrics
	listingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studyshelf_listings_total",
			Help: "Total directory listing calls against the content source",
		},
		[]string{"backend", "status"},
	)

	listingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "studyshelf_listing_duration_seconds",
			Help:    "Directory listing call duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend"},
	)

	// Crawl metrics
	crawlsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studyshelf_crawls_total",
			Help: "Total crawls by outcome",
		},
		[]string{"outcome"},
	)

	crawlDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "studyshelf_crawl_duration_seconds",
			Help:    "Full tree crawl duration in seconds",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
		},
	)

	// Catalog metrics
	catalogMaterials = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "studyshelf_catalog_materials",
			Help: "Number of materials in the current catalog",
		},
	)

	catalogSubjects = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "studyshelf_catalog_subjects",
			Help: "Number of distinct subjects in the current catalog",
		},
	)

	// Preview metrics
	previewsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studyshelf_previews_total",
			Help: "Total preview fetches by result",
		},
		[]string{"result"},
	)

	previewBytesFetched = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "studyshelf_preview_bytes_fetched_total",
			Help: "Total bytes fetched from the content source for previews",
		},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordHTTPRequest records an HTTP request metric.
func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordListing records one directory listing call. A zero status
// means no response was received (transport failure).
func RecordListing(backend string, status int, duration time.Duration) {
	label := "transport_error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	listingsTotal.WithLabelValues(backend, label).Inc()
	listingDuration.WithLabelValues(backend).Observe(duration.Seconds())
}

// RecordCrawl records a completed crawl.
func RecordCrawl(success bool, duration time.Duration) {
	outcome := "success"
	if !success {
		outcome = "error"
	}
	crawlsTotal.WithLabelValues(outcome).Inc()
	crawlDuration.Observe(duration.Seconds())
}

// SetCatalogSize sets the current catalog gauges.
func SetCatalogSize(materials, subjects int) {
	catalogMaterials.Set(float64(materials))
	catalogSubjects.Set(float64(subjects))
}

// RecordPreview records a preview fetch: "hit" for cache hits,
// "fetch" for upstream fetches, "error" for failures.
func RecordPreview(result string, bytes int) {
	previewsTotal.WithLabelValues(result).Inc()
	previewBytesFetched.Add(float64(bytes))
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Middleware returns HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)
		RecordHTTPRequest(r.Method, r.URL.Path, rw.statusCode, time.Since(start))
	})
}
