// Package watcher provides file system watching with debouncing and
// gitignore-aware filtering, used by `pretext build --watch` to
// trigger rebuilds when the dataset changes.
//
// Watching is hybrid: fsnotify delivers events where the platform
// supports it, and a polling scanner takes over in environments where
// it does not (network mounts, some container volumes).
//
// Events are debounced so a burst of writes from an editor or a git
// checkout produces one batch, and filtered against .gitignore
// patterns plus caller-supplied ignores so the build output does not
// retrigger its own rebuild.
//
// Usage:
//
//	w, err := watcher.NewHybridWatcher(watcher.Options{
//	    DebounceWindow: cfg.WatchDebounceDuration(),
//	    IgnorePatterns: []string{"corpus.txt", "manifest.db*"},
//	})
//	if err != nil {
//	    return err
//	}
//	defer w.Stop()
//	go w.Start(ctx, datasetDir)
//
//	for batch := range w.Events() {
//	    // rebuild once per batch
//	}
package watcher
