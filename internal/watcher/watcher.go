// Package watcher provides polling-based source file watching for watch
// mode. Polling keeps behavior identical across platforms; the interval is
// coarse because re-indexing a file is cheap and hash-guarded anyway.
package watcher

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"cix/internal/config"
	"cix/internal/logging"
)

// EventType represents the type of file system event
type EventType int

const (
	EventCreate EventType = iota
	EventModify
	EventDelete
)

// String returns a string representation of the event type
func (e EventType) String() string {
	switch e {
	case EventCreate:
		return "create"
	case EventModify:
		return "modify"
	case EventDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Event is one observed change to a source file. Path is repo-relative
// with forward slashes.
type Event struct {
	Type      EventType
	Path      string
	Timestamp time.Time
}

// ChangeHandler receives a debounced batch of events
type ChangeHandler func(events []Event)

// Watcher polls a repository's source files for changes
type Watcher struct {
	repoRoot string
	cfg      config.WatcherConfig
	ignore   map[string]bool
	supports func(path string) bool
	logger   *logging.Logger
	batch    *BatchDebouncer

	mu     sync.Mutex
	seen   map[string]time.Time // path -> mtime at last scan
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// defaultIgnores are directory names skipped when the configuration
// doesn't list its own. Mirrors the indexer's walk rules.
var defaultIgnores = []string{
	".git", ".cix", "node_modules", "vendor", "target", "__pycache__", "dist", "build",
}

// New creates a watcher over repoRoot. supports filters candidate files,
// normally the parser's Supports method. ignore lists directory names to
// skip; empty uses the defaults.
func New(
	repoRoot string,
	cfg config.WatcherConfig,
	ignore []string,
	supports func(path string) bool,
	logger *logging.Logger,
	handler ChangeHandler,
) *Watcher {
	if len(ignore) == 0 {
		ignore = defaultIgnores
	}
	ignored := make(map[string]bool, len(ignore))
	for _, name := range ignore {
		ignored[name] = true
	}

	debounce := time.Duration(cfg.DebounceMs) * time.Millisecond
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}

	return &Watcher{
		repoRoot: repoRoot,
		cfg:      cfg,
		ignore:   ignored,
		supports: supports,
		logger:   logger.WithComponent("watcher"),
		batch:    NewBatchDebouncer(debounce, handler),
		seen:     make(map[string]time.Time),
		stopCh:   make(chan struct{}),
	}
}

// Start seeds the baseline scan and begins polling. The initial state of
// the tree produces no events; only subsequent changes do.
func (w *Watcher) Start() error {
	baseline, err := w.scan()
	if err != nil {
		return err
	}
	w.mu.Lock()
	w.seen = baseline
	w.mu.Unlock()

	interval := time.Duration(w.cfg.PollIntervalMs) * time.Millisecond
	if interval <= 0 {
		interval = 2 * time.Second
	}

	w.logger.Info("Watching for source changes", map[string]interface{}{
		"path":         w.repoRoot,
		"files":        len(baseline),
		"pollInterval": interval.String(),
	})

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				w.poll()
			case <-w.stopCh:
				return
			}
		}
	}()
	return nil
}

// Stop halts polling and flushes any pending batch
func (w *Watcher) Stop() {
	close(w.stopCh)
	w.wg.Wait()
	w.batch.Flush()
	w.logger.Info("Watcher stopped", nil)
}

// Poll runs one scan cycle immediately. Exposed for tests and for callers
// that drive their own schedule.
func (w *Watcher) Poll() {
	w.poll()
}

func (w *Watcher) poll() {
	current, err := w.scan()
	if err != nil {
		w.logger.Warn("Scan failed", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	now := time.Now()
	w.mu.Lock()
	previous := w.seen
	w.seen = current
	w.mu.Unlock()

	for path, mtime := range current {
		prev, existed := previous[path]
		switch {
		case !existed:
			w.batch.Add(Event{Type: EventCreate, Path: path, Timestamp: now})
		case mtime.After(prev):
			w.batch.Add(Event{Type: EventModify, Path: path, Timestamp: now})
		}
	}
	for path := range previous {
		if _, still := current[path]; !still {
			w.batch.Add(Event{Type: EventDelete, Path: path, Timestamp: now})
		}
	}
}

// scan walks the tree and records the mtime of every candidate file
func (w *Watcher) scan() (map[string]time.Time, error) {
	files := make(map[string]time.Time)

	err := filepath.WalkDir(w.repoRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// A directory vanishing mid-walk is a change, not a failure
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if path != w.repoRoot && (w.ignore[name] || strings.HasPrefix(name, ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		if w.supports != nil && !w.supports(path) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		rel, err := filepath.Rel(w.repoRoot, path)
		if err != nil {
			return err
		}
		files[filepath.ToSlash(rel)] = info.ModTime()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// PendingEvents returns the number of events waiting in the debounce batch
func (w *Watcher) PendingEvents() int {
	return w.batch.EventCount()
}
