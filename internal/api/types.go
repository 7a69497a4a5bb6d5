package api

import "encoding/json"

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// QueueItem describes a queue entry in a transport-friendly format.
type QueueItem struct {
	ID            string          `json:"id"`
	Kind          string          `json:"kind"`
	Status        string          `json:"status"`
	Summary       string          `json:"summary"`
	Attempts      int             `json:"attempts"`
	LastError     string          `json:"lastError,omitempty"`
	LastAttemptAt string          `json:"lastAttemptAt,omitempty"`
	CreatedAt     string          `json:"createdAt,omitempty"`
	Payload       json.RawMessage `json:"payload,omitempty"`
}

// QueueStats summarizes queue contents.
type QueueStats struct {
	Pending    int            `json:"pending"`
	DeadLetter int            `json:"deadLetter"`
	ByKind     map[string]int `json:"byKind"`
	Oldest     string         `json:"oldest,omitempty"`
}

// SyncReport is the outcome of one sync pass.
type SyncReport struct {
	RequestID    string `json:"requestId,omitempty"`
	StartedAt    string `json:"startedAt,omitempty"`
	DurationMS   int64  `json:"durationMs"`
	Attempted    int    `json:"attempted"`
	Succeeded    int    `json:"succeeded"`
	Failed       int    `json:"failed"`
	DeadLettered int    `json:"deadLettered"`
	Skipped      string `json:"skipped,omitempty"`
}

// SyncStatus mirrors the sync driver state.
type SyncStatus struct {
	Running    bool        `json:"running"`
	Busy       bool        `json:"busy"`
	Interval   string      `json:"interval"`
	LastReport *SyncReport `json:"lastReport,omitempty"`
	LastError  string      `json:"lastError,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool       `json:"running"`
	PID          int        `json:"pid"`
	QueueDBPath  string     `json:"queueDbPath"`
	LockFilePath string     `json:"lockFilePath"`
	LogPath      string     `json:"logPath,omitempty"`
	APIBaseURL   string     `json:"apiBaseUrl"`
	NetworkWatch bool       `json:"networkWatch"`
	Sync         SyncStatus `json:"sync"`
	Queue        QueueStats `json:"queue"`
	QueueError   string     `json:"queueError,omitempty"`
}

// QueueListResponse wraps a collection of queue items for API responses.
type QueueListResponse struct {
	Items []QueueItem `json:"items"`
}

// QueueItemResponse wraps a single queue item.
type QueueItemResponse struct {
	Item QueueItem `json:"item"`
}

// StatusLine is a single labelled health line shown by the status command.
// Severity is one of ok, info, warn, or error.
type StatusLine struct {
	Label    string `json:"label"`
	Severity string `json:"severity"`
	Detail   string `json:"detail"`
}

// StatusSnapshot combines daemon state with locally computed checks. When
// the daemon is unreachable, Daemon.Queue is read from the queue database.
type StatusSnapshot struct {
	Reachable bool         `json:"reachable"`
	Daemon    DaemonStatus `json:"daemon"`
	Checks    []StatusLine `json:"checks"`
}
