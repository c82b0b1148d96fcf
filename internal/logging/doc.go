// Package logging provides opt-in file-based logging with rotation for
// pretext. When the --debug flag is set, comprehensive logs are written
// to ~/.pretext/logs/ for debugging and troubleshooting.
//
// By default (without --debug), logging is minimal and goes to stderr
// only, keeping terminal output clean during corpus builds.
package logging
