// Package syncer drains the offline queue against the backend.
//
// A Driver owns the recurring trigger: it runs one pass immediately on Start,
// then on every interval tick and whenever Nudge is called. Passes never
// overlap. Each pass reads a snapshot of the pending items and replays them in
// insertion order; a successful replay removes the item, a failure is recorded
// on it and the item waits for the next pass. With sync.max_attempts set, items
// that keep failing are parked as dead letters.
package syncer
