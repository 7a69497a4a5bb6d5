package ipc

import "fieldsync/internal/api"

// StartRequest starts the sync driver.
type StartRequest struct{}

// StartResponse indicates whether the daemon was started.
type StartResponse struct {
	Started bool   `json:"started"`
	Message string `json:"message"`
}

// StopRequest stops the sync driver.
type StopRequest struct{}

// StopResponse indicates stop result.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// QueueItem mirrors the HTTP API queue DTO for internal IPC callers.
type QueueItem = api.QueueItem

// StatusResponse is the daemon status as served by the HTTP status API.
type StatusResponse = api.DaemonStatus

// SyncNowRequest runs a sync pass immediately.
type SyncNowRequest struct{}

// SyncNowResponse carries the pass report.
type SyncNowResponse struct {
	Report api.SyncReport `json:"report"`
}

// QueueListRequest filters queue listing by status. Empty means all items.
type QueueListRequest struct {
	Statuses []string `json:"statuses"`
}

// QueueListResponse contains queue entries in replay order.
type QueueListResponse struct {
	Items []QueueItem `json:"items"`
}

// QueueDeadLettersRequest lists parked items.
type QueueDeadLettersRequest struct{}

// QueueDescribeRequest fetches a single queue item by id.
type QueueDescribeRequest struct {
	ID string `json:"id"`
}

// QueueDescribeResponse contains a single queue entry.
type QueueDescribeResponse struct {
	Found bool      `json:"found"`
	Item  QueueItem `json:"item"`
}

// QueueRemoveRequest removes specific items by ID.
type QueueRemoveRequest struct {
	IDs []string `json:"ids"`
}

// QueueRemoveResponse reports number of removed entries.
type QueueRemoveResponse struct {
	Removed int64 `json:"removed"`
}

// QueueClearRequest removes all items.
type QueueClearRequest struct{}

// QueueClearResponse reports number of removed entries.
type QueueClearResponse struct {
	Removed int64 `json:"removed"`
}

// QueueRequeueRequest moves dead letters back to pending. An empty list
// requeues every dead letter.
type QueueRequeueRequest struct {
	IDs []string `json:"ids"`
}

// QueueRequeueResponse reports number of requeued items.
type QueueRequeueResponse struct {
	Updated int64 `json:"updated"`
}
