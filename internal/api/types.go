package api

import (
	"time"

	"github.com/studyshelf/studyshelf/internal/catalog"
)

// ErrorResponse is the JSON body of every non-2xx response.
type ErrorResponse struct {
	Error    string          `json:"error"`
	Code     int             `json:"code,omitempty"`
	Upstream *UpstreamDetail `json:"upstream,omitempty"`
}

// UpstreamDetail carries a failed remote listing response through to the
// client verbatim.
type UpstreamDetail struct {
	StatusCode int    `json:"status_code"`
	Status     string `json:"status,omitempty"`
	Body       string `json:"body,omitempty"`
}

// CatalogResponse is the full current snapshot.
type CatalogResponse struct {
	Coordinate catalog.Coordinate `json:"coordinate"`
	CrawledAt  time.Time          `json:"crawled_at"`
	DurationMS int64              `json:"duration_ms"`
	Total      int                `json:"total"`
	Materials  []catalog.Material `json:"materials"`
	Subjects   []string           `json:"subjects"`
}

// MaterialsResponse is a filtered view over the snapshot.
type MaterialsResponse struct {
	Total     int                `json:"total"`
	Materials []catalog.Material `json:"materials"`
}

// SubjectsResponse lists the distinct subjects, sorted.
type SubjectsResponse struct {
	Subjects []string `json:"subjects"`
}

// RefreshResponse summarizes a successful crawl.
type RefreshResponse struct {
	Coordinate catalog.Coordinate `json:"coordinate"`
	Materials  int                `json:"materials"`
	Subjects   int                `json:"subjects"`
	CrawledAt  time.Time          `json:"crawled_at"`
	DurationMS int64              `json:"duration_ms"`
}
