package watcher

import (
	"log/slog"
	"sync"
	"time"
)

// Debouncer coalesces bursts of file events so one editor save or git
// operation produces a single rebuild. Events for the same path inside
// the window merge:
//
//	create then modify  ->  create (the file is still new)
//	create then delete  ->  dropped (it never really existed)
//	modify then delete  ->  delete
//	delete then create  ->  modify (the file was replaced)
type Debouncer struct {
	window time.Duration

	mu      sync.Mutex
	byPath  map[string]pending
	timer   *time.Timer
	out     chan []FileEvent
	stopped bool
}

// pending is an event waiting out the quiet window. first remembers
// the operation that opened the entry; the merge rules key off it
// even after later events overwrite ev.
type pending struct {
	ev    FileEvent
	first Operation
}

// merge folds the next event for the same path into p. The second
// return is false when the pair cancels out.
func (p pending) merge(next FileEvent) (pending, bool) {
	switch {
	case p.first == OpCreate && next.Operation == OpModify:
		return p, true // still a brand-new file
	case p.first == OpCreate && next.Operation == OpDelete:
		return pending{}, false
	case p.first == OpDelete && next.Operation == OpCreate:
		next.Operation = OpModify
	}
	p.ev = next
	return p, true
}

// NewDebouncer creates a debouncer with the given quiet window.
func NewDebouncer(window time.Duration) *Debouncer {
	return &Debouncer{
		window: window,
		byPath: make(map[string]pending),
		out:    make(chan []FileEvent, 10),
	}
}

// Add records an event, merging it with any pending event for the
// same path, and pushes the flush deadline back by one window.
func (d *Debouncer) Add(ev FileEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	if prev, ok := d.byPath[ev.Path]; ok {
		if merged, keep := prev.merge(ev); keep {
			d.byPath[ev.Path] = merged
		} else {
			delete(d.byPath, ev.Path)
		}
	} else {
		d.byPath[ev.Path] = pending{ev: ev, first: ev.Operation}
	}

	if d.timer == nil {
		d.timer = time.AfterFunc(d.window, d.flush)
	} else {
		d.timer.Reset(d.window)
	}
}

// flush emits everything pending as one batch.
func (d *Debouncer) flush() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped || len(d.byPath) == 0 {
		return
	}

	batch := make([]FileEvent, 0, len(d.byPath))
	for _, p := range d.byPath {
		batch = append(batch, p.ev)
	}
	clear(d.byPath)

	select {
	case d.out <- batch:
	default:
		slog.Warn("dropping debounced batch, output channel full",
			slog.Int("events", len(batch)))
	}
}

// Output returns the channel of debounced event batches.
func (d *Debouncer) Output() <-chan []FileEvent {
	return d.out
}

// Stop cancels any pending flush and closes the output channel.
// Calling it more than once is safe.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
	close(d.out)
}
