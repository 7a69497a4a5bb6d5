// Package logs reads the daemon log for `fieldsync logs`.
//
// The daemon writes one file per run and keeps fieldsync.log in log_dir
// pointing at the current one. Tail reads the last lines of that file or
// continues from a byte offset, optionally waiting for new lines, and can keep
// only lines mentioning a queue item or event.
package logs
