// Package logging builds slog loggers for the daemon and CLI and provides
// typed attribute helpers plus the standard field names used across the
// pipeline (component, job_id, event_type, error_hint).
package logging
