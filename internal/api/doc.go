// Package api defines wire-format types and converters shared by the daemon's
// IPC socket and its optional HTTP status endpoint. It translates queue items,
// queue stats, and sync reports into transport-friendly DTOs so the CLI and
// other consumers can render them without coupling to internal types.
//
// DTOs use camelCase JSON tags. Timestamps use RFC3339 with milliseconds in
// UTC. Queue payloads are passed through as json.RawMessage; Summary gives a
// short description that never includes photo data.
package api
