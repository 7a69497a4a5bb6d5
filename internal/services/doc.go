// Package services defines shared utilities consumed by the backend client,
// the visit actions, and the sync driver.
//
// Key responsibilities:
//   - Context helpers that stamp queue item IDs and correlation identifiers
//     for logging.
//   - Structured error markers plus the Wrap helper, used to decide whether a
//     failed write is parked in the offline queue or surfaced to the worker.
package services
