// Package output provides the status-line formatting shared by all CLI
// commands. Progress rendering lives in internal/ui; this package is
// only the plain icon-prefixed lines commands print around it.
package output

import (
	"fmt"
	"io"
)

const (
	iconSuccess = "✅"
	iconWarning = "⚠️ " // trailing space: the emoji renders narrow in most terminals
	iconError   = "❌"
)

// Writer prints icon-prefixed status lines to a single destination.
type Writer struct {
	out io.Writer
}

// New creates a Writer on out.
func New(out io.Writer) *Writer {
	return &Writer{out: out}
}

// print writes one icon-prefixed line. An empty icon becomes two
// spaces so the message still aligns under iconed lines. Write errors
// are ignored; console output is best-effort.
func (w *Writer) print(icon, msg string) {
	if icon == "" {
		icon = "  "
	}
	_, _ = fmt.Fprintf(w.out, "%s %s\n", icon, msg)
}

// Status prints a status message with an icon.
func (w *Writer) Status(icon, msg string) {
	w.print(icon, msg)
}

// Statusf prints a formatted status message with an icon.
func (w *Writer) Statusf(icon, format string, args ...any) {
	w.print(icon, fmt.Sprintf(format, args...))
}

// Success prints a success message with a checkmark.
func (w *Writer) Success(msg string) {
	w.print(iconSuccess, msg)
}

// Successf prints a formatted success message.
func (w *Writer) Successf(format string, args ...any) {
	w.print(iconSuccess, fmt.Sprintf(format, args...))
}

// Warning prints a warning message.
func (w *Writer) Warning(msg string) {
	w.print(iconWarning, msg)
}

// Warningf prints a formatted warning message.
func (w *Writer) Warningf(format string, args ...any) {
	w.print(iconWarning, fmt.Sprintf(format, args...))
}

// Error prints an error message.
func (w *Writer) Error(msg string) {
	w.print(iconError, msg)
}

// Errorf prints a formatted error message.
func (w *Writer) Errorf(format string, args ...any) {
	w.print(iconError, fmt.Sprintf(format, args...))
}

// Newline prints an empty line.
func (w *Writer) Newline() {
	_, _ = fmt.Fprintln(w.out)
}
