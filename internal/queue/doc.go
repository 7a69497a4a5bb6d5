// Package queue persists backend writes that could not be delivered and
// hands them back to the sync driver in insertion order.
//
// The Store is backed by SQLite so pending check-ins, task results, and
// photos survive restarts. Each item carries a typed Payload (PhotoUpload,
// WorkflowLog, or Attendance) stored as JSON next to its kind. Failed replays
// are counted on the item; once a configured attempt cap is reached the sync
// driver parks the item as a dead letter, where it stays until an operator
// requeues or removes it.
//
// Schema changes bump the version in schema.go; users delete the database to
// adopt the new schema. Every storage failure is returned to the caller.
package queue
