// Package logging assembles structured slog loggers and formatting helpers used
// across mangabridge.
//
// It owns the console and JSON handlers, centralizes level and output plumbing
// (including size-based rotation of the log file), and exposes context-aware
// helpers so pipeline code automatically tags log lines with correlation IDs
// and stage names. A no-op logger is provided for tests and wiring code that
// cannot fail.
//
// Prefer these constructors over hand-rolled slog setup so new components emit
// records with the same shape as the rest of the system.
package logging
