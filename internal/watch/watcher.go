// Package watch monitors a Stellaris save directory for new and
// modified save files, grounded on the teacher's
// internal/indexing/watcher.go (fsnotify + recursive directory
// registration + timer-based debouncer) and
// original_source/backend/src/dirwatcher/handler.rs for the domain
// semantics: a save is finished when the game's write-then-rename
// sequence settles, which the debounce window coalesces into one
// event per path.
package watch

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/standardbeagle/clausewitz/internal/config"
	"github.com/standardbeagle/clausewitz/internal/debug"
)

// Kind distinguishes a newly-written (or overwritten) save from one
// that was removed out from under the watch root.
type Kind int

const (
	NewFile Kind = iota
	Removed
)

func (k Kind) String() string {
	if k == Removed {
		return "removed"
	}
	return "new_file"
}

// Event is one coalesced filesystem change under the watch root.
type Event struct {
	Kind Kind
	Path string
}

// Watcher recursively watches cfg.Watch.Root and emits debounced
// Events for paths matching cfg.Include and not matching cfg.Exclude.
type Watcher struct {
	fsw    *fsnotify.Watcher
	cfg    *config.Config
	events chan Event

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	debouncer *eventDebouncer
}

// New creates a Watcher bound to cfg. Call Start to begin watching.
func New(cfg *config.Config) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: create fsnotify watcher: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &Watcher{
		fsw:    fsw,
		cfg:    cfg,
		events: make(chan Event, cfg.Ingest.QueueSize),
		ctx:    ctx,
		cancel: cancel,
	}
	w.debouncer = newEventDebouncer(time.Duration(cfg.Watch.DebounceMs)*time.Millisecond, w.emit)
	return w, nil
}

// Events returns the channel Events are delivered on. Closed after
// Stop completes.
func (w *Watcher) Events() <-chan Event { return w.events }

// Start registers watches on cfg.Watch.Root and every subdirectory
// (Paradox campaign saves nest one directory per campaign under the
// configured root) and begins processing filesystem events.
func (w *Watcher) Start() error {
	if err := w.addWatches(w.cfg.Watch.Root); err != nil {
		return fmt.Errorf("watch: add watches under %s: %w", w.cfg.Watch.Root, err)
	}

	w.wg.Add(1)
	go w.processEvents()

	w.wg.Add(1)
	go w.debouncer.run(w.ctx, &w.wg)

	debug.LogWatch("started watching %s\n", w.cfg.Watch.Root)
	return nil
}

// Stop tears down the fsnotify watcher and waits for its goroutines
// to exit, then closes the Events channel.
func (w *Watcher) Stop() error {
	w.cancel()
	err := w.fsw.Close()
	w.wg.Wait()
	close(w.events)
	return err
}

func (w *Watcher) addWatches(root string) error {
	visited := make(map[string]bool)

	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			return nil
		}
		if !w.cfg.Watch.RecursiveScan && path != root {
			return filepath.SkipDir
		}

		real, err := filepath.EvalSymlinks(path)
		if err != nil {
			return nil
		}
		if visited[real] {
			return filepath.SkipDir
		}
		visited[real] = true

		if err := w.fsw.Add(path); err != nil {
			log.Printf("watch: failed to add watch for %s: %v", path, err)
		}
		return nil
	})
}

func (w *Watcher) processEvents() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			debug.LogWatch("fsnotify error: %v\n", err)
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	info, err := os.Stat(ev.Name)
	if err != nil {
		if ev.Op&fsnotify.Remove != 0 && w.matchesSavePattern(ev.Name) {
			w.debouncer.addEvent(ev.Name, Removed)
		}
		return
	}

	if info.IsDir() {
		if ev.Op&fsnotify.Create != 0 {
			if err := w.fsw.Add(ev.Name); err != nil {
				log.Printf("watch: failed to add watch for new directory %s: %v", ev.Name, err)
			}
		}
		return
	}

	if !w.matchesSavePattern(ev.Name) {
		return
	}

	switch {
	case ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0:
		w.debouncer.addEvent(ev.Name, NewFile)
	case ev.Op&fsnotify.Remove != 0:
		w.debouncer.addEvent(ev.Name, Removed)
	}
}

// matchesSavePattern applies cfg.Include/cfg.Exclude as doublestar
// globs against both the absolute path and the path relative to the
// watch root, mirroring the teacher's shouldProcessPath fallback.
func (w *Watcher) matchesSavePattern(path string) bool {
	for _, pattern := range w.cfg.Exclude {
		if matched, _ := doublestar.Match(pattern, path); matched {
			return false
		}
		if rel, err := filepath.Rel(w.cfg.Watch.Root, path); err == nil {
			if matched, _ := doublestar.Match(pattern, filepath.ToSlash(rel)); matched {
				return false
			}
		}
	}

	if len(w.cfg.Include) == 0 {
		return true
	}
	for _, pattern := range w.cfg.Include {
		if matched, _ := doublestar.Match(pattern, path); matched {
			return true
		}
		if rel, err := filepath.Rel(w.cfg.Watch.Root, path); err == nil {
			if matched, _ := doublestar.Match(pattern, filepath.ToSlash(rel)); matched {
				return true
			}
		}
	}
	return false
}

func (w *Watcher) emit(path string, kind Kind) {
	select {
	case w.events <- Event{Kind: kind, Path: path}:
	case <-w.ctx.Done():
	}
}

// eventDebouncer batches per-path filesystem events, grounded on the
// teacher's eventDebouncer: the latest event type for a path wins and
// a burst of writes to the same path only fires once the timer
// settles.
type eventDebouncer struct {
	mu       sync.Mutex
	events   map[string]Kind
	debounce time.Duration
	timer    *time.Timer
	flushFn  func(path string, kind Kind)
}

func newEventDebouncer(debounce time.Duration, flushFn func(path string, kind Kind)) *eventDebouncer {
	return &eventDebouncer{
		events:   make(map[string]Kind),
		debounce: debounce,
		flushFn:  flushFn,
	}
}

func (d *eventDebouncer) addEvent(path string, kind Kind) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.events[path] = kind
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.debounce, d.flush)
}

func (d *eventDebouncer) flush() {
	d.mu.Lock()
	events := d.events
	d.events = make(map[string]Kind)
	d.mu.Unlock()

	for path, kind := range events {
		d.flushFn(path, kind)
	}
}

// run waits for ctx to be cancelled. Events queued at shutdown are
// dropped rather than flushed, same as the teacher's debouncer: the
// watcher is tearing down and nothing downstream would consume them.
func (d *eventDebouncer) run(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()
	<-ctx.Done()

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.events = make(map[string]Kind)
}
