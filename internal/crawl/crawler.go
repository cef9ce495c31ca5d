// Package crawl implements the depth-first repository traversal that
// turns a remote content tree into a flat, kind-classified material
// list.
package crawl

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/studyshelf/studyshelf/internal/catalog"
	"github.com/studyshelf/studyshelf/internal/logging"
	"github.com/studyshelf/studyshelf/internal/metrics"
	"github.com/studyshelf/studyshelf/internal/source"
)

// Crawler walks a remote content tree one directory listing per
// directory. The zero worker count crawls strictly sequentially.
type Crawler struct {
	lister  source.Lister
	workers int
}

// New creates a Crawler. workers <= 1 keeps at most one listing call
// in flight at a time; larger values fan sibling directories out while
// producing the exact same result order.
func New(lister source.Lister, workers int) *Crawler {
	if workers < 1 {
		workers = 1
	}
	return &Crawler{lister: lister, workers: workers}
}

// Crawl traverses coord's tree depth-first, pre-order, siblings in
// listing order, and returns one Material per file with its kind
// classified. Subjects are not attached here. Any listing failure
// aborts the whole crawl: accumulated results are discarded and the
// listing error propagates unchanged. An empty tree is a valid result.
func (c *Crawler) Crawl(ctx context.Context, coord catalog.Coordinate) ([]catalog.Material, error) {
	start := time.Now()

	var (
		materials []catalog.Material
		err       error
	)
	if c.workers <= 1 {
		materials, err = c.walk(ctx, coord, coord.Root)
	} else {
		materials, err = c.walkParallel(ctx, coord)
	}

	metrics.RecordCrawl(err == nil, time.Since(start))
	if err != nil {
		return nil, err
	}

	logging.L().Debug("crawl finished",
		zap.String("coordinate", coord.String()),
		zap.Int("files", len(materials)),
		zap.Duration("took", time.Since(start)))

	if materials == nil {
		materials = []catalog.Material{}
	}
	return materials, nil
}

// walk is the sequential traversal: list the directory, recurse into
// subdirectories before later siblings, classify files in place.
func (c *Crawler) walk(ctx context.Context, coord catalog.Coordinate, dir string) ([]catalog.Material, error) {
	entries, err := c.lister.ListDirectory(ctx, coord.Owner, coord.Repo, dir, coord.Ref)
	if err != nil {
		return nil, err
	}

	var out []catalog.Material
	for _, e := range entries {
		switch e.Type {
		case source.TypeDir:
			sub, err := c.walk(ctx, coord, e.Path)
			if err != nil {
				return nil, err
			}
			out = append(out, sub...)
		case source.TypeFile:
			out = append(out, materialFrom(e))
		default:
			// Symlinks and submodules are not crawlable content.
		}
	}
	return out, nil
}

// walkParallel fans sibling-directory listings out across a bounded
// number of concurrent calls. Results land in per-entry slots that are
// merged in sibling order, so the output is identical to the
// sequential walk. The first failure cancels all outstanding work.
func (c *Crawler) walkParallel(ctx context.Context, coord catalog.Coordinate) ([]catalog.Material, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sem := make(chan struct{}, c.workers)

	var (
		mu       sync.Mutex
		firstErr error
	)
	fail := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
			cancel()
		}
		mu.Unlock()
	}

	var walk func(dir string) []catalog.Material
	walk = func(dir string) []catalog.Material {
		// The semaphore bounds concurrent listing calls only; holding
		// it across the recursion would deadlock on deep trees.
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			fail(ctx.Err())
			return nil
		}
		entries, err := c.lister.ListDirectory(ctx, coord.Owner, coord.Repo, dir, coord.Ref)
		<-sem
		if err != nil {
			fail(err)
			return nil
		}

		slots := make([][]catalog.Material, len(entries))
		var wg sync.WaitGroup
		for i, e := range entries {
			switch e.Type {
			case source.TypeDir:
				wg.Add(1)
				go func(i int, path string) {
					defer wg.Done()
					slots[i] = walk(path)
				}(i, e.Path)
			case source.TypeFile:
				slots[i] = []catalog.Material{materialFrom(e)}
			}
		}
		wg.Wait()

		var out []catalog.Material
		for _, s := range slots {
			out = append(out, s...)
		}
		return out
	}

	out := walk(coord.Root)

	mu.Lock()
	err := firstErr
	mu.Unlock()
	if err != nil {
		return nil, err
	}
	return out, nil
}

func materialFrom(e source.Entry) catalog.Material {
	return catalog.Material{
		Name:        e.Name,
		Path:        e.Path,
		Size:        e.Size,
		DownloadURL: e.DownloadURL,
		SHA:         e.SHA,
		Kind:        catalog.Classify(e.Name),
	}
}
