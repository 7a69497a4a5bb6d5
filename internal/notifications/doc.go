// Package notifications publishes sync events to an ntfy topic.
//
// NewService returns a no-op implementation when notifications.ntfy_topic is
// empty, so callers publish unconditionally. Per-event toggles and the
// sync_min_items threshold are applied here rather than at the call sites.
package notifications
