// Package profiling hooks Go's runtime profilers into pretext runs.
// Corpus builds over large dumps are the intended subject: start a
// profile before the pipeline runs, stop it after the corpus is
// committed.
package profiling

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"runtime/pprof"
	"runtime/trace"
)

// startInto opens path, starts a profiler against the file, and
// returns a stop function that finishes the profile and closes it.
// Call stop exactly once.
func startInto(path, kind string, start func(io.Writer) error, finish func()) (func(), error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create %s %s: %w", kind, path, err)
	}

	if err := start(f); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("start %s: %w", kind, err)
	}

	return func() {
		finish()
		_ = f.Close()
	}, nil
}

// StartCPU begins CPU profiling into path.
func StartCPU(path string) (stop func(), err error) {
	return startInto(path, "CPU profile", pprof.StartCPUProfile, pprof.StopCPUProfile)
}

// StartTrace begins execution tracing into path.
func StartTrace(path string) (stop func(), err error) {
	return startInto(path, "trace file", trace.Start, trace.Stop)
}

// WriteHeap writes a heap profile to path. A GC runs first so the
// snapshot reflects live objects, not garbage awaiting collection.
func WriteHeap(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create heap profile %s: %w", path, err)
	}

	runtime.GC()

	if err := pprof.WriteHeapProfile(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("write heap profile: %w", err)
	}
	return f.Close()
}
