package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sync"
	"time"
)

// PollingWatcher detects changes by rescanning the tree on an
// interval and diffing against the previous snapshot. It is the
// fallback when fsnotify is unavailable.
type PollingWatcher struct {
	interval time.Duration
	root     string

	mu      sync.Mutex
	last    treeState
	stopped bool

	events chan FileEvent
	errors chan error
	stopCh chan struct{}
}

// treeState maps slash-relative paths to the stat fields the differ
// compares.
type treeState map[string]entryState

type entryState struct {
	modTime time.Time
	size    int64
	isDir   bool
}

// NewPollingWatcher creates a polling watcher with the given scan
// interval.
func NewPollingWatcher(interval time.Duration) *PollingWatcher {
	return &PollingWatcher{
		interval: interval,
		last:     make(treeState),
		events:   make(chan FileEvent, 100),
		errors:   make(chan error, 10),
		stopCh:   make(chan struct{}),
	}
}

// Start polls path until the context is canceled or Stop is called.
// The first scan establishes a baseline and emits nothing.
func (p *PollingWatcher) Start(ctx context.Context, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve watch root: %w", err)
	}
	p.root = abs

	p.mu.Lock()
	p.last = p.capture()
	p.mu.Unlock()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = p.Stop()
			return ctx.Err()
		case <-p.stopCh:
			return nil
		case <-ticker.C:
			p.poll()
		}
	}
}

// poll rescans the tree and emits one event per difference from the
// previous snapshot.
func (p *PollingWatcher) poll() {
	curr := p.capture()

	p.mu.Lock()
	defer p.mu.Unlock()

	for _, ev := range p.last.diff(curr) {
		p.send(ev)
	}
	p.last = curr
}

// capture walks the tree and records every entry's state. Unreadable
// entries are skipped; they surface as creates once readable again.
func (p *PollingWatcher) capture() treeState {
	state := make(treeState)
	_ = filepath.WalkDir(p.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		rel, err := filepath.Rel(p.root, path)
		if err != nil || rel == "." {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		state[filepath.ToSlash(rel)] = entryState{
			modTime: info.ModTime(),
			size:    info.Size(),
			isDir:   d.IsDir(),
		}
		return nil
	})
	return state
}

// diff returns the events that turn prev into curr: creates for new
// paths, modifies for changed stat fields, deletes for vanished paths.
func (prev treeState) diff(curr treeState) []FileEvent {
	now := time.Now()
	var changes []FileEvent

	for rel, e := range curr {
		old, existed := prev[rel]
		switch {
		case !existed:
			changes = append(changes, FileEvent{Path: rel, Operation: OpCreate, IsDir: e.isDir, Timestamp: now})
		case old.modTime != e.modTime || old.size != e.size:
			changes = append(changes, FileEvent{Path: rel, Operation: OpModify, IsDir: e.isDir, Timestamp: now})
		}
	}
	for rel, e := range prev {
		if _, still := curr[rel]; !still {
			changes = append(changes, FileEvent{Path: rel, Operation: OpDelete, IsDir: e.isDir, Timestamp: now})
		}
	}
	return changes
}

// send delivers one event without blocking. Callers hold the lock.
func (p *PollingWatcher) send(ev FileEvent) {
	if p.stopped {
		return
	}
	select {
	case p.events <- ev:
	default:
		slog.Warn("polling buffer full, dropping event",
			slog.String("path", ev.Path),
			slog.String("op", ev.Operation.String()))
	}
}

// Stop stops the poller and closes its channels.
// Safe to call multiple times.
func (p *PollingWatcher) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return nil
	}
	p.stopped = true
	close(p.stopCh)
	close(p.events)
	close(p.errors)
	return nil
}

// Events returns the channel of file events.
func (p *PollingWatcher) Events() <-chan FileEvent {
	return p.events
}

// Errors returns the channel of scan errors.
func (p *PollingWatcher) Errors() <-chan error {
	return p.errors
}
