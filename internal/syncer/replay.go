package syncer

import (
	"context"
	"errors"
	"fmt"

	"fieldsync/internal/backend"
	"fieldsync/internal/geo"
	"fieldsync/internal/photo"
	"fieldsync/internal/queue"
)

// Replayer performs the backend write a queue item stands for.
type Replayer interface {
	Replay(ctx context.Context, item *queue.Item) error
}

// API is the subset of the backend client used for replay.
type API interface {
	UploadPhoto(ctx context.Context, img photo.Image, slot queue.PhotoSlot, taskID string) (backend.UploadResult, error)
	SubmitWorkflowLog(ctx context.Context, entry queue.WorkflowLog) error
	CheckIn(ctx context.Context, storeID string, at geo.Location) (backend.StoreVisit, error)
	CheckOut(ctx context.Context, visitID string) error
}

// CheckInHook observes a queued check-in once the backend has accepted it.
type CheckInHook func(storeID string, visit backend.StoreVisit)

// BackendReplayer replays items against the REST API.
type BackendReplayer struct {
	api       API
	onCheckIn CheckInHook
}

// NewBackendReplayer wraps api. onCheckIn may be nil.
func NewBackendReplayer(api API, onCheckIn CheckInHook) *BackendReplayer {
	return &BackendReplayer{api: api, onCheckIn: onCheckIn}
}

// Replay dispatches on the payload type.
func (r *BackendReplayer) Replay(ctx context.Context, item *queue.Item) error {
	if item == nil {
		return errors.New("nil queue item")
	}
	switch p := item.Payload.(type) {
	case queue.PhotoUpload:
		return r.replayPhoto(ctx, p)
	case queue.WorkflowLog:
		return r.api.SubmitWorkflowLog(ctx, p)
	case queue.Attendance:
		return r.replayAttendance(ctx, p)
	default:
		return fmt.Errorf("unsupported payload %T for item %s", item.Payload, item.ID)
	}
}

func (r *BackendReplayer) replayPhoto(ctx context.Context, p queue.PhotoUpload) error {
	img, err := photo.ParseDataURL(p.Photo)
	if err != nil {
		return fmt.Errorf("decode queued photo: %w", err)
	}
	_, err = r.api.UploadPhoto(ctx, img, p.Type, p.TaskID)
	return err
}

func (r *BackendReplayer) replayAttendance(ctx context.Context, p queue.Attendance) error {
	switch p.Action {
	case queue.ActionCheckIn:
		if p.Location == nil {
			return errors.New("queued check-in has no location")
		}
		visit, err := r.api.CheckIn(ctx, p.StoreID, *p.Location)
		if err != nil {
			return err
		}
		if r.onCheckIn != nil {
			r.onCheckIn(p.StoreID, visit)
		}
		return nil
	case queue.ActionCheckOut:
		return r.api.CheckOut(ctx, p.VisitID)
	default:
		return fmt.Errorf("unsupported attendance action %q", p.Action)
	}
}
