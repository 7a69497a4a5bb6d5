// Package main hosts the fieldsync CLI entrypoint and command graph.
//
// The Cobra-based command tree covers the worker's visit actions (login,
// check-in, task completion, check-out), offline queue maintenance, and the
// sync daemon lifecycle. Queue commands talk to the daemon over IPC when it
// runs and open the queue database directly otherwise.
//
// Keep this package lean: behavior lives in the internal packages and is
// surfaced here through commands and flags.
package main
