// Package logging assembles structured slog loggers and formatting helpers used
// across snsnotify.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so dispatch code can tag log
// lines with the job, build number, and correlation id. The package also
// provides a no-op logger for tests and wiring code that cannot fail.
package logging
