// Package ingest drives a save file from its raw bytes on disk to a
// domain Snapshot, bounding how many files are parsed and extracted
// concurrently. Grounded on the teacher's internal/indexing pipeline
// (a scanner feeding a bounded worker pool) generalized from a
// directory scan to a watch.Event stream, per spec.md §5's stance
// that the scanner/parser/extractor themselves stay synchronous and
// concurrency is the caller's concern.
package ingest

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/standardbeagle/clausewitz/internal/archive"
	"github.com/standardbeagle/clausewitz/internal/cache"
	"github.com/standardbeagle/clausewitz/internal/config"
	"github.com/standardbeagle/clausewitz/internal/debug"
	"github.com/standardbeagle/clausewitz/internal/extractor"
	"github.com/standardbeagle/clausewitz/internal/valtree"
	"github.com/standardbeagle/clausewitz/internal/watch"
)

// Sink receives a freshly parsed Snapshot for the save at path. Called
// from whichever worker goroutine finished the parse; implementations
// must be safe for concurrent use.
type Sink func(snap extractor.Snapshot, path string)

// Pipeline bounds concurrent parse/extract work over a stream of
// watch.Events to at most cfg.Ingest.Workers in flight at once.
type Pipeline struct {
	cfg   *config.Config
	cache *cache.Cache
	sink  Sink
	sem   *semaphore.Weighted
}

// New builds a Pipeline. c may be nil to disable result caching.
func New(cfg *config.Config, c *cache.Cache, sink Sink) *Pipeline {
	workers := cfg.Ingest.Workers
	if workers <= 0 {
		workers = 1
	}
	return &Pipeline{
		cfg:   cfg,
		cache: c,
		sink:  sink,
		sem:   semaphore.NewWeighted(int64(workers)),
	}
}

// Run consumes events until the channel closes or ctx is cancelled,
// dispatching each NewFile event to a worker bounded by
// cfg.Ingest.Workers. A single save's parse/extract failure is logged
// and does not stop the pipeline or any other in-flight work — the
// errgroup here exists purely to bound and wait for concurrency, not
// to fail fast, so worker functions never return a non-nil error.
func (p *Pipeline) Run(ctx context.Context, events <-chan watch.Event) error {
	g, gctx := errgroup.WithContext(ctx)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return g.Wait()
			}
			if ev.Kind != watch.NewFile {
				continue
			}
			if err := p.sem.Acquire(gctx, 1); err != nil {
				return g.Wait()
			}
			path := ev.Path
			g.Go(func() error {
				defer p.sem.Release(1)
				if _, err := p.ProcessFile(gctx, path); err != nil {
					debug.LogParse("ingest failed for %s: %v\n", path, err)
				}
				return nil
			})
		case <-ctx.Done():
			return g.Wait()
		}
	}
}

// ProcessFile reads, caches, parses, and extracts path, invoking the
// Pipeline's Sink on success. It is exported so a one-shot CLI command
// can ingest a single file without going through a watcher.
func (p *Pipeline) ProcessFile(ctx context.Context, path string) (extractor.Snapshot, error) {
	if timeout := time.Duration(p.cfg.Ingest.TimeoutSec) * time.Second; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	meta, gamestate, err := archive.Open(path)
	if err != nil {
		return extractor.Snapshot{}, fmt.Errorf("ingest: open %s: %w", path, err)
	}

	if p.cache != nil {
		if snap, ok := p.cache.Get(cacheKey(meta, gamestate)); ok {
			p.sink(snap, path)
			return snap, nil
		}
	}

	snap, err := parseAndExtract(meta, gamestate)
	if err != nil {
		return extractor.Snapshot{}, fmt.Errorf("ingest: %s: %w", path, err)
	}

	if p.cache != nil {
		p.cache.Put(cacheKey(meta, gamestate), snap)
	}
	debug.LogExtract("extracted campaign %q from %s (%d empires)\n", snap.CampaignName, path, len(snap.Empires))
	p.sink(snap, path)
	return snap, nil
}

func cacheKey(meta, gamestate []byte) []byte {
	key := make([]byte, 0, len(meta)+len(gamestate))
	key = append(key, meta...)
	key = append(key, gamestate...)
	return key
}

// parseAndExtract parses a save's raw members into the Dict Extract
// expects. A zip-wrapped save's meta and gamestate members are bare
// dict bodies with no enclosing key and must be wrapped; a plain-text
// ("ironman") save has no separate meta member at all (archive.Open
// returns it empty) because the single file already is the full
// meta/gamestate document.
func parseAndExtract(meta, gamestate []byte) (extractor.Snapshot, error) {
	if len(meta) == 0 {
		root, err := valtree.Parse(gamestate)
		if err != nil {
			return extractor.Snapshot{}, fmt.Errorf("parse save: %w", err)
		}
		return extractor.Extract(root)
	}

	metaRoot, err := valtree.Parse(meta)
	if err != nil {
		return extractor.Snapshot{}, fmt.Errorf("parse meta: %w", err)
	}
	gamestateRoot, err := valtree.Parse(gamestate)
	if err != nil {
		return extractor.Snapshot{}, fmt.Errorf("parse gamestate: %w", err)
	}

	root := valtree.Val{
		Kind: valtree.KindDict,
		Dict: []valtree.Entry{
			{Key: []byte("meta"), Value: metaRoot},
			{Key: []byte("gamestate"), Value: gamestateRoot},
		},
	}
	return extractor.Extract(root)
}
