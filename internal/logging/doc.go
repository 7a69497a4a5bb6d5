// Package logging assembles structured slog loggers and formatting helpers used
// across fieldsync.
//
// It owns the console and JSON handlers, level and output plumbing, and the
// context helpers that tag log lines with queue item IDs and sync pass
// correlation IDs. The daemon tees its output into a per-run JSON file that
// is pruned by retention. A no-op logger is provided for tests and wiring
// code that cannot fail.
package logging
