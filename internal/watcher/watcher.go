package watcher

import (
	"cmp"
	"time"
)

// Defaults applied by Options.WithDefaults.
const (
	defaultDebounceWindow = 500 * time.Millisecond // matches the build.watch_debounce config default
	defaultPollInterval   = 5 * time.Second
	defaultEventBuffer    = 256
)

// Operation classifies a file system change.
type Operation int

const (
	OpCreate Operation = iota // new file or directory appeared
	OpModify                  // existing file changed
	OpDelete                  // file or directory went away
	OpRename                  // file or directory was renamed

	// OpConfigChange flags a change to the project config file. Watch
	// mode reloads configuration before the next rebuild.
	OpConfigChange
)

var opNames = [...]string{
	OpCreate:       "CREATE",
	OpModify:       "MODIFY",
	OpDelete:       "DELETE",
	OpRename:       "RENAME",
	OpConfigChange: "CONFIG_CHANGE",
}

// String returns a human-readable name for the operation.
func (op Operation) String() string {
	if op < 0 || int(op) >= len(opNames) {
		return "UNKNOWN"
	}
	return opNames[op]
}

// FileEvent is one observed file system change. Paths are relative to
// the watch root and use forward slashes.
type FileEvent struct {
	Path      string
	Operation Operation
	IsDir     bool
	Timestamp time.Time
}

// Options configures watcher behavior. The zero value is usable:
// WithDefaults fills in anything left unset.
type Options struct {
	// DebounceWindow is the quiet period before a batch is emitted.
	DebounceWindow time.Duration

	// PollInterval is the scan interval for the polling fallback.
	PollInterval time.Duration

	// EventBufferSize is the capacity of the batch channel.
	EventBufferSize int

	// IgnorePatterns are extra ignores beyond .gitignore, in gitignore
	// syntax. Watch mode passes the build outputs here so a finished
	// rebuild does not trigger the next one.
	IgnorePatterns []string
}

// WithDefaults fills zero values with the package defaults.
func (o Options) WithDefaults() Options {
	o.DebounceWindow = cmp.Or(o.DebounceWindow, defaultDebounceWindow)
	o.PollInterval = cmp.Or(o.PollInterval, defaultPollInterval)
	o.EventBufferSize = cmp.Or(o.EventBufferSize, defaultEventBuffer)
	return o
}

// DefaultOptions returns the default watcher options.
func DefaultOptions() Options {
	return Options{}.WithDefaults()
}
