package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/pretextml/pretext/internal/gitignore"
)

// HybridWatcher watches a directory tree with fsnotify, falling back
// to polling when fsnotify cannot be initialized. Events flow through
// the debouncer and come out as batches on Events().
type HybridWatcher struct {
	opts Options
	root string

	// Exactly one backend is non-nil, chosen at construction.
	notify *fsnotify.Watcher
	poller *PollingWatcher

	debouncer *Debouncer
	events    chan []FileEvent
	errors    chan error
	stopCh    chan struct{}
	dropped   atomic.Uint64

	mu      sync.RWMutex
	ignore  *gitignore.Matcher
	stopped bool
}

// isConfigFile reports whether base names the project config file.
// Changes to it become OpConfigChange events so watch mode reloads
// configuration before rebuilding.
func isConfigFile(base string) bool {
	return base == ".pretext.yaml" || base == ".pretext.yml"
}

// NewHybridWatcher creates a watcher with the given options. It tries
// fsnotify first and silently falls back to polling.
func NewHybridWatcher(opts Options) (*HybridWatcher, error) {
	opts = opts.WithDefaults()

	h := &HybridWatcher{
		opts:      opts,
		debouncer: NewDebouncer(opts.DebounceWindow),
		ignore:    baseMatcher(opts.IgnorePatterns),
		events:    make(chan []FileEvent, opts.EventBufferSize),
		errors:    make(chan error, 10),
		stopCh:    make(chan struct{}),
	}

	if fsw, err := fsnotify.NewWatcher(); err == nil {
		h.notify = fsw
	} else {
		h.poller = NewPollingWatcher(opts.PollInterval)
	}
	return h, nil
}

// baseMatcher builds a matcher holding only the caller's patterns.
func baseMatcher(patterns []string) *gitignore.Matcher {
	m := gitignore.New()
	for _, p := range patterns {
		m.AddPattern(p)
	}
	return m
}

// Start watches path recursively until the context is canceled or
// Stop is called. It blocks; run it in a goroutine and consume
// Events().
func (h *HybridWatcher) Start(ctx context.Context, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve watch root: %w", err)
	}
	h.root = abs

	h.refreshIgnores()

	go h.pumpBatches(ctx)

	if h.notify != nil {
		return h.notifyLoop(ctx)
	}
	return h.pollLoop(ctx)
}

// notifyLoop drains the fsnotify channels until shutdown.
func (h *HybridWatcher) notifyLoop(ctx context.Context) error {
	if err := h.watchTree(h.root); err != nil {
		return fmt.Errorf("register watch directories: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			_ = h.Stop()
			return ctx.Err()
		case <-h.stopCh:
			return nil
		case ev, ok := <-h.notify.Events:
			if !ok {
				return nil
			}
			h.onNotifyEvent(ev)
		case err, ok := <-h.notify.Errors:
			if !ok {
				return nil
			}
			h.reportError(err)
		}
	}
}

// pollLoop runs the polling backend, forwarding its events into the
// shared routing path.
func (h *HybridWatcher) pollLoop(ctx context.Context) error {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-h.stopCh:
				return
			case ev, ok := <-h.poller.Events():
				if !ok {
					return
				}
				h.route(ev)
			case err, ok := <-h.poller.Errors():
				if !ok {
					return
				}
				h.reportError(err)
			}
		}
	}()

	return h.poller.Start(ctx, h.root)
}

// onNotifyEvent translates one fsnotify event and hands it to the
// shared routing path.
func (h *HybridWatcher) onNotifyEvent(ev fsnotify.Event) {
	rel, err := filepath.Rel(h.root, ev.Name)
	if err != nil {
		rel = ev.Name
	}
	rel = filepath.ToSlash(rel)

	isDir := false
	if info, err := os.Stat(ev.Name); err == nil {
		isDir = info.IsDir()
	}

	var op Operation
	switch {
	case ev.Op.Has(fsnotify.Create):
		op = OpCreate
		// New directories need their own watches; a mkdir -p can
		// bring a whole subtree at once.
		if isDir && !h.ignored(rel, true) {
			_ = h.watchTree(ev.Name)
		}
	case ev.Op.Has(fsnotify.Write):
		op = OpModify
	case ev.Op.Has(fsnotify.Remove):
		op = OpDelete
	case ev.Op.Has(fsnotify.Rename):
		op = OpRename
	default:
		// chmod and unknown ops are noise
		return
	}

	h.route(FileEvent{Path: rel, Operation: op, IsDir: isDir, Timestamp: time.Now()})
}

// route filters one event and feeds the debouncer. Both backends end
// up here.
func (h *HybridWatcher) route(ev FileEvent) {
	if h.ignored(ev.Path, ev.IsDir) {
		return
	}

	switch base := filepath.Base(ev.Path); {
	case isConfigFile(base):
		ev.Operation = OpConfigChange
		ev.IsDir = false
	case base == ".gitignore":
		// Changed ignore rules affect what the next rebuild reads, so
		// reload them and let the event through as a plain change.
		h.refreshIgnores()
		ev.Operation = OpModify
	}

	h.debouncer.Add(ev)
}

// pumpBatches moves debounced batches to the public channel.
func (h *HybridWatcher) pumpBatches(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-h.stopCh:
			return
		case batch, ok := <-h.debouncer.Output():
			if !ok {
				return
			}
			if len(batch) > 0 {
				h.publish(batch)
			}
		}
	}
}

// watchTree registers dir and every non-ignored directory under it
// with fsnotify.
func (h *HybridWatcher) watchTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		rel, _ := filepath.Rel(h.root, path)
		if rel != "." && h.ignored(filepath.ToSlash(rel), true) {
			return filepath.SkipDir
		}
		return h.notify.Add(path)
	})
}

// ignored reports whether a path is filtered out of watching.
func (h *HybridWatcher) ignored(rel string, isDir bool) bool {
	if rel == "." || rel == "" {
		return true
	}
	if rel == ".git" || strings.HasPrefix(rel, ".git/") {
		return true
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.ignore.Match(rel, isDir)
}

// refreshIgnores rebuilds the matcher from the caller's patterns plus
// every .gitignore under the root. The new matcher is assembled
// outside the lock and swapped in at the end, so event filtering
// never stalls on the walk.
func (h *HybridWatcher) refreshIgnores() {
	m := baseMatcher(h.opts.IgnorePatterns)

	rootIgnore := filepath.Join(h.root, ".gitignore")
	if err := m.AddFromFile(rootIgnore, ""); err != nil && !os.IsNotExist(err) {
		slog.Warn("could not read .gitignore",
			slog.String("path", rootIgnore),
			slog.String("error", err.Error()))
	}

	_ = filepath.WalkDir(h.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || d.Name() != ".gitignore" || path == rootIgnore {
			return nil
		}
		base, _ := filepath.Rel(h.root, filepath.Dir(path))
		if err := m.AddFromFile(path, filepath.ToSlash(base)); err != nil {
			slog.Warn("could not read nested .gitignore",
				slog.String("path", path),
				slog.String("error", err.Error()))
		}
		return nil
	})

	h.mu.Lock()
	h.ignore = m
	h.mu.Unlock()
}

// publish sends a batch without blocking, counting drops. The read
// lock is held across the send so Stop cannot close the channel
// between the stopped check and the send.
func (h *HybridWatcher) publish(batch []FileEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.stopped {
		return
	}

	select {
	case h.events <- batch:
	default:
		n := h.dropped.Add(1)
		slog.Warn("watch event buffer full, dropping batch",
			slog.Int("events", len(batch)),
			slog.Uint64("dropped_total", n))
	}
}

func (h *HybridWatcher) reportError(err error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.stopped {
		return
	}

	select {
	case h.errors <- err:
	default:
	}
}

// Stop tears down the backend and closes the event channels. Calling
// it more than once is safe.
func (h *HybridWatcher) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.stopped {
		return nil
	}
	h.stopped = true
	close(h.stopCh)

	h.debouncer.Stop()
	if h.notify != nil {
		_ = h.notify.Close()
	}
	if h.poller != nil {
		_ = h.poller.Stop()
	}

	close(h.events)
	close(h.errors)
	return nil
}

// Events returns the channel of debounced event batches.
// The channel is closed when the watcher stops.
func (h *HybridWatcher) Events() <-chan []FileEvent {
	return h.events
}

// Errors returns the channel of non-fatal watcher errors.
func (h *HybridWatcher) Errors() <-chan error {
	return h.errors
}

// DroppedBatches returns how many batches were dropped because the
// event buffer was full.
func (h *HybridWatcher) DroppedBatches() uint64 {
	return h.dropped.Load()
}

// WatcherType reports which backend is active, for log lines.
func (h *HybridWatcher) WatcherType() string {
	if h.notify != nil {
		return "fsnotify"
	}
	return "polling"
}
