package api

import (
	"encoding/json"
	"fmt"
	"time"

	"fieldsync/internal/queue"
	"fieldsync/internal/syncer"
)

// FromQueueItem converts a queue record to its API representation.
func FromQueueItem(item *queue.Item) QueueItem {
	if item == nil {
		return QueueItem{}
	}
	dto := QueueItem{
		ID:        item.ID,
		Kind:      string(item.Kind),
		Status:    string(item.Status),
		Summary:   Summarize(item.Payload),
		Attempts:  item.Attempts,
		LastError: item.LastError,
		CreatedAt: formatTime(item.CreatedAt),
	}
	if item.LastAttemptAt != nil {
		dto.LastAttemptAt = formatTime(*item.LastAttemptAt)
	}
	if item.PayloadErr != nil {
		dto.Summary = "undecodable payload: " + item.PayloadErr.Error()
	}
	if item.Payload != nil {
		if raw, err := json.Marshal(item.Payload); err == nil {
			dto.Payload = raw
		}
	}
	return dto
}

// FromQueueItems converts a slice of queue records into API DTOs.
func FromQueueItems(items []*queue.Item) []QueueItem {
	out := make([]QueueItem, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		out = append(out, FromQueueItem(item))
	}
	return out
}

// Summarize renders a one-line description of a payload. Photo data is never
// included.
func Summarize(payload queue.Payload) string {
	switch p := payload.(type) {
	case queue.PhotoUpload:
		return fmt.Sprintf("%s photo for task %s", p.Type, p.TaskID)
	case queue.WorkflowLog:
		return fmt.Sprintf("task %s %s (workflow %s)", p.TaskID, p.Status, p.WorkflowID)
	case queue.Attendance:
		if p.Action == queue.ActionCheckOut {
			return fmt.Sprintf("check-out of visit %s", p.VisitID)
		}
		return fmt.Sprintf("check-in at store %s", p.StoreID)
	default:
		return ""
	}
}

// FromQueueStats converts store counters, keying kinds by their string form.
func FromQueueStats(stats queue.Stats) QueueStats {
	dto := QueueStats{
		Pending:    stats.Pending,
		DeadLetter: stats.DeadLetter,
		ByKind:     make(map[string]int, len(stats.ByKind)),
	}
	for kind, count := range stats.ByKind {
		dto.ByKind[string(kind)] = count
	}
	if stats.Oldest != nil {
		dto.Oldest = formatTime(*stats.Oldest)
	}
	return dto
}

// FromSyncReport converts a sync pass report.
func FromSyncReport(report syncer.Report) SyncReport {
	return SyncReport{
		RequestID:    report.RequestID,
		StartedAt:    formatTime(report.StartedAt),
		DurationMS:   report.Duration.Milliseconds(),
		Attempted:    report.Attempted,
		Succeeded:    report.Succeeded,
		Failed:       report.Failed,
		DeadLettered: report.DeadLettered,
		Skipped:      report.Skipped,
	}
}

// FromSyncStatus converts the driver status.
func FromSyncStatus(status syncer.Status) SyncStatus {
	dto := SyncStatus{
		Running:   status.Running,
		Busy:      status.Busy,
		Interval:  status.Interval,
		LastError: status.LastError,
	}
	if status.LastReport != nil {
		report := FromSyncReport(*status.LastReport)
		dto.LastReport = &report
	}
	return dto
}

// ParseTime parses a timestamp produced by this package. Empty input returns
// the zero time.
func ParseTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	return time.Parse(dateTimeFormat, value)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
