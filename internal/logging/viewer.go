package logging

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"time"
)

// LogEntry is one parsed line of the JSON log.
type LogEntry struct {
	Time    time.Time      `json:"time"`
	Level   string         `json:"level"`
	Msg     string         `json:"msg"`
	Attrs   map[string]any `json:"-"` // structured fields beyond the standard three
	Raw     string         `json:"-"` // the line as it appeared in the file
	IsValid bool           `json:"-"` // false when the line was not JSON
}

// ViewerConfig configures filtering and rendering for the log viewer.
type ViewerConfig struct {
	Level   string         // minimum level to show (debug, info, warn, error)
	Pattern *regexp.Regexp // only show lines matching this pattern
	NoColor bool           // strip ANSI colors from output
}

// Viewer reads, filters, and renders pretext log files.
type Viewer struct {
	config ViewerConfig
	out    io.Writer
}

// NewViewer builds a viewer that writes to out.
func NewViewer(cfg ViewerConfig, out io.Writer) *Viewer {
	return &Viewer{config: cfg, out: out}
}

// Tail returns the last n lines of the log that pass the filters.
func (v *Viewer) Tail(path string, n int) ([]LogEntry, error) {
	lines, err := readLogLines(path)
	if err != nil {
		return nil, err
	}

	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}

	var entries []LogEntry
	for _, line := range lines {
		if entry := v.parseLine(line); v.matchesFilter(entry) {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

const (
	// logLineLimit bounds a single JSON log line.
	logLineLimit = 1 << 20

	// followPollInterval is how often Follow checks for appended lines.
	followPollInterval = 100 * time.Millisecond
)

// readLogLines loads a log file into memory line by line.
func readLogLines(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var lines []string
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, logLineLimit), logLineLimit)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read log file: %w", err)
	}
	return lines, nil
}

// Follow streams entries appended to the log until ctx is cancelled.
func (v *Viewer) Follow(ctx context.Context, path string, entries chan<- LogEntry) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer func() { _ = file.Close() }()

	// History is Tail's job; only lines written from now on matter.
	if _, err := file.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("seek to end: %w", err)
	}

	reader := bufio.NewReader(file)
	ticker := time.NewTicker(followPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if !v.drain(ctx, reader, entries) {
				return nil
			}
		}
	}
}

// drain forwards every complete line currently readable. It reports false
// when the context was cancelled mid-send.
func (v *Viewer) drain(ctx context.Context, reader *bufio.Reader, entries chan<- LogEntry) bool {
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return true // no more data for now
		}

		line = strings.TrimSuffix(line, "\n")
		if line == "" {
			continue
		}

		entry := v.parseLine(line)
		if !v.matchesFilter(entry) {
			continue
		}

		select {
		case entries <- entry:
		case <-ctx.Done():
			return false
		}
	}
}

// FormatEntry renders one entry as a display line. Lines that never parsed
// come back verbatim.
func (v *Viewer) FormatEntry(entry LogEntry) string {
	if !entry.IsValid {
		return entry.Raw
	}

	var sb strings.Builder
	sb.WriteString(entry.Time.Format("15:04:05.000"))
	sb.WriteByte(' ')
	sb.WriteString(v.formatLevel(entry.Level))
	sb.WriteByte(' ')
	sb.WriteString(entry.Msg)
	for k, val := range entry.Attrs {
		fmt.Fprintf(&sb, " %s=%v", k, val)
	}
	return sb.String()
}

// Print writes formatted entries to the viewer output.
func (v *Viewer) Print(entries []LogEntry) {
	for _, entry := range entries {
		_, _ = fmt.Fprintln(v.out, v.FormatEntry(entry))
	}
}

// parseLine decodes a JSON log line. The standard fields are pulled out and
// whatever remains becomes Attrs.
func (v *Viewer) parseLine(line string) LogEntry {
	entry := LogEntry{Raw: line}

	var fields map[string]any
	if err := json.Unmarshal([]byte(line), &fields); err != nil {
		return entry
	}

	entry.IsValid = true
	entry.Time = takeTime(fields, "time")
	entry.Level = takeString(fields, "level")
	entry.Msg = takeString(fields, "msg")
	entry.Attrs = fields
	return entry
}

// takeString removes key from fields and returns its string value.
func takeString(fields map[string]any, key string) string {
	s, _ := fields[key].(string)
	delete(fields, key)
	return s
}

// takeTime removes key from fields and parses it as an RFC 3339 timestamp.
func takeTime(fields map[string]any, key string) time.Time {
	raw, _ := fields[key].(string)
	delete(fields, key)
	t, _ := time.Parse(time.RFC3339Nano, raw)
	return t
}

// matchesFilter applies the configured level and pattern filters.
func (v *Viewer) matchesFilter(entry LogEntry) bool {
	if v.config.Level != "" && parseLevel(entry.Level) < parseLevel(v.config.Level) {
		return false
	}
	if v.config.Pattern != nil && !v.config.Pattern.MatchString(entry.Raw) {
		return false
	}
	return true
}

// levelColors holds the ANSI prefix used for each level.
var levelColors = map[string]string{
	"debug":   "\033[90m", // gray
	"info":    "\033[32m", // green
	"warn":    "\033[33m", // yellow
	"warning": "\033[33m",
	"error":   "\033[31m", // red
}

// formatLevel renders the level as a fixed-width, optionally colored tag.
func (v *Viewer) formatLevel(level string) string {
	tag := strings.ToUpper(level)
	if len(tag) > 5 {
		tag = tag[:5]
	}
	tag = fmt.Sprintf("%-5s", tag)

	color, ok := levelColors[strings.ToLower(level)]
	if v.config.NoColor || !ok {
		return tag
	}
	return color + tag + "\033[0m"
}
