package catalog

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/studyshelf/studyshelf/internal/logging"
	"github.com/studyshelf/studyshelf/internal/metrics"
)

// ErrNotCrawled is returned by Snapshot before any crawl has completed.
var ErrNotCrawled = errors.New("catalog: no completed crawl yet")

// ErrSuperseded is returned to a refresh that was overtaken by a newer
// one; the newer refresh owns the snapshot.
var ErrSuperseded = errors.New("catalog: refresh superseded by a newer one")

// Crawler produces the flat, kind-classified material list for one
// coordinate. Implemented by crawl.Crawler.
type Crawler interface {
	Crawl(ctx context.Context, coord Coordinate) ([]Material, error)
}

// Snapshot is one immutable result of a completed crawl. Readers must
// not mutate the slices.
type Snapshot struct {
	Coordinate Coordinate
	Materials  []Material
	Subjects   []string
	CrawledAt  time.Time
	Duration   time.Duration
}

// FindPath returns the material with the given repository path.
func (s *Snapshot) FindPath(p string) (Material, bool) {
	for _, m := range s.Materials {
		if m.Path == p {
			return m, true
		}
	}
	return Material{}, false
}

// Store owns the latest successful snapshot. A failed refresh leaves
// the previous snapshot untouched; readers never see a partially
// built catalog. Nothing persists across restarts.
type Store struct {
	crawler Crawler

	mu         sync.RWMutex
	snap       *Snapshot
	generation uint64
	cancel     context.CancelFunc
}

// NewStore returns an empty store backed by the given crawler.
func NewStore(c Crawler) *Store {
	return &Store{crawler: c}
}

// Refresh crawls coord, builds the catalog, and installs it as the new
// snapshot. Starting a refresh cancels any refresh still in flight;
// the superseded one never installs its result, even if its crawl
// finishes later. The coordinate is validated before any remote call.
func (s *Store) Refresh(ctx context.Context, coord Coordinate) (*Snapshot, error) {
	if err := coord.Validate(); err != nil {
		return nil, err
	}

	crawlCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
		logging.L().Info("canceled in-flight refresh", zap.String("coordinate", coord.String()))
	}
	s.cancel = cancel
	s.generation++
	gen := s.generation
	s.mu.Unlock()

	start := time.Now()
	materials, err := s.crawler.Crawl(crawlCtx, coord)
	elapsed := time.Since(start)

	var snap *Snapshot
	if err == nil {
		sorted, subjects := Build(materials, coord.Root)
		snap = &Snapshot{
			Coordinate: coord,
			Materials:  sorted,
			Subjects:   subjects,
			CrawledAt:  time.Now().UTC(),
			Duration:   elapsed,
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		return nil, ErrSuperseded
	}
	s.cancel = nil
	if err != nil {
		return nil, err
	}

	s.snap = snap
	metrics.SetCatalogSize(len(snap.Materials), len(snap.Subjects))
	logging.L().Info("catalog refreshed",
		zap.String("coordinate", coord.String()),
		zap.Int("materials", len(snap.Materials)),
		zap.Int("subjects", len(snap.Subjects)),
		zap.Duration("took", elapsed))
	return snap, nil
}

// Snapshot returns the latest completed snapshot, or ErrNotCrawled.
func (s *Store) Snapshot() (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snap == nil {
		return nil, ErrNotCrawled
	}
	return s.snap, nil
}

// Close cancels any in-flight refresh.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}
