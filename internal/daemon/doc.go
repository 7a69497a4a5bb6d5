// Package daemon coordinates the long-running fieldsync process.
//
// It wires the queue store, the sync driver, the udev network monitor, and
// the optional HTTP status API into a single lifecycle with flock-based
// locking to prevent multiple instances. The daemon also exposes the queue
// maintenance helpers (list, remove, clear, requeue) used over IPC.
//
// Keep orchestration logic here: replay rules live in syncer and connectivity
// detection in netwatch, while the daemon focuses on startup, shutdown, and
// high level coordination.
package daemon
