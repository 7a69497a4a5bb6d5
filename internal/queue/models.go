package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"fieldsync/internal/geo"
)

// Kind identifies the backend write a queue item replays.
type Kind string

const (
	KindPhotoUpload Kind = "photo_upload"
	KindWorkflowLog Kind = "workflow_log"
	KindAttendance  Kind = "attendance"
)

// Status represents whether an item is still retried by the sync driver.
type Status string

const (
	StatusPending    Status = "pending"
	StatusDeadLetter Status = "dead_letter"
)

// ParseStatus maps a user-supplied status name to a Status. "dead" is accepted
// as shorthand for dead_letter.
func ParseStatus(value string) (Status, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case string(StatusPending):
		return StatusPending, true
	case string(StatusDeadLetter), "dead", "dead-letter":
		return StatusDeadLetter, true
	default:
		return "", false
	}
}

// PhotoSlot distinguishes the two photos of a photo task.
type PhotoSlot string

const (
	PhotoBefore PhotoSlot = "before"
	PhotoAfter  PhotoSlot = "after"
)

// LogStatus is the outcome recorded for a workflow task.
type LogStatus string

const (
	LogCompleted LogStatus = "completed"
	LogSkipped   LogStatus = "skipped"
)

// AttendanceAction selects the attendance endpoint an item replays against.
type AttendanceAction string

const (
	ActionCheckIn  AttendanceAction = "check-in"
	ActionCheckOut AttendanceAction = "check-out"
)

// Payload is the typed body of a queue item. The set of implementations is
// closed: PhotoUpload, WorkflowLog, and Attendance.
type Payload interface {
	Kind() Kind
	validate() error
}

// PhotoUpload re-uploads a task photo captured while offline. Photo holds the
// image as a base64 data URL.
type PhotoUpload struct {
	Photo  string    `json:"photo"`
	Type   PhotoSlot `json:"type"`
	TaskID string    `json:"taskId"`
}

// WorkflowLog submits the result of one workflow task.
type WorkflowLog struct {
	WorkflowID string          `json:"workflowId"`
	TaskID     string          `json:"taskId"`
	StoreID    string          `json:"storeId"`
	Status     LogStatus       `json:"status"`
	Data       json.RawMessage `json:"data,omitempty"`
}

// Attendance records a check-in or check-out. Check-in carries StoreID and
// Location; check-out carries VisitID.
type Attendance struct {
	Action   AttendanceAction `json:"type"`
	StoreID  string           `json:"storeId,omitempty"`
	Location *geo.Location    `json:"location,omitempty"`
	VisitID  string           `json:"visitId,omitempty"`
}

func (PhotoUpload) Kind() Kind { return KindPhotoUpload }
func (WorkflowLog) Kind() Kind { return KindWorkflowLog }
func (Attendance) Kind() Kind { return KindAttendance }

func (p PhotoUpload) validate() error {
	if !strings.HasPrefix(p.Photo, "data:") {
		return errors.New("photo must be a data URL")
	}
	if p.Type != PhotoBefore && p.Type != PhotoAfter {
		return fmt.Errorf("photo type %q must be before or after", p.Type)
	}
	if strings.TrimSpace(p.TaskID) == "" {
		return errors.New("photo task id is required")
	}
	return nil
}

func (w WorkflowLog) validate() error {
	if strings.TrimSpace(w.WorkflowID) == "" || strings.TrimSpace(w.TaskID) == "" {
		return errors.New("workflow log requires workflow and task ids")
	}
	if w.Status != LogCompleted && w.Status != LogSkipped {
		return fmt.Errorf("workflow log status %q must be completed or skipped", w.Status)
	}
	if len(w.Data) > 0 && !json.Valid(w.Data) {
		return errors.New("workflow log data is not valid JSON")
	}
	return nil
}

func (a Attendance) validate() error {
	switch a.Action {
	case ActionCheckIn:
		if strings.TrimSpace(a.StoreID) == "" {
			return errors.New("check-in requires a store id")
		}
		if a.Location == nil {
			return errors.New("check-in requires a location")
		}
	case ActionCheckOut:
		if strings.TrimSpace(a.VisitID) == "" {
			return errors.New("check-out requires a visit id")
		}
	default:
		return fmt.Errorf("attendance action %q must be check-in or check-out", a.Action)
	}
	return nil
}

// Item is one pending backend write.
type Item struct {
	// Seq is the insertion sequence; List returns items in Seq order.
	Seq           int64
	ID            string
	Kind          Kind
	Payload       Payload
	// PayloadErr is set when the stored payload could not be decoded. Payload
	// is nil then; the raw JSON stays in the row until the item is removed.
	PayloadErr    error
	CreatedAt     time.Time
	Status        Status
	Attempts      int
	LastError     string
	LastAttemptAt *time.Time
}

// Stats summarizes queue contents.
type Stats struct {
	Pending    int          `json:"pending"`
	DeadLetter int          `json:"dead_letter"`
	ByKind     map[Kind]int `json:"by_kind"`
	Oldest     *time.Time   `json:"oldest,omitempty"`
}

func decodePayload(kind Kind, raw []byte) (Payload, error) {
	switch kind {
	case KindPhotoUpload:
		var p PhotoUpload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	case KindWorkflowLog:
		var w WorkflowLog
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, err
		}
		return w, nil
	case KindAttendance:
		var a Attendance
		if err := json.Unmarshal(raw, &a); err != nil {
			return nil, err
		}
		return a, nil
	default:
		return nil, fmt.Errorf("unknown queue item kind %q", kind)
	}
}
