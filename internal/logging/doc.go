// Package logging assembles the structured slog loggers used by tilenorm.
//
// It owns the console and JSON handlers, per-run JSON log files under the
// state directory, and context-aware helpers that tag log lines with run
// fields taken from the context. A no-op logger is provided for tests and
// wiring code that cannot fail.
package logging
