package testsupport

import (
	"context"
	"testing"

	"fieldsync/internal/config"
	"fieldsync/internal/geo"
	"fieldsync/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// MustAdd enqueues payload and fails the test on error.
func MustAdd(t testing.TB, store *queue.Store, payload queue.Payload) *queue.Item {
	t.Helper()

	item, err := store.Add(context.Background(), payload)
	if err != nil {
		t.Fatalf("store.Add: %v", err)
	}
	return item
}

// CheckIn builds a check-in payload for storeID at a fixed location.
func CheckIn(storeID string) queue.Attendance {
	return queue.Attendance{
		Action:   queue.ActionCheckIn,
		StoreID:  storeID,
		Location: &geo.Location{Latitude: 37.5665, Longitude: 126.978},
	}
}

// CheckOut builds a check-out payload for visitID.
func CheckOut(visitID string) queue.Attendance {
	return queue.Attendance{Action: queue.ActionCheckOut, VisitID: visitID}
}

// TaskLog builds a completed workflow log payload.
func TaskLog(taskID string) queue.WorkflowLog {
	return queue.WorkflowLog{
		WorkflowID: "wf-1",
		TaskID:     taskID,
		StoreID:    "store-1",
		Status:     queue.LogCompleted,
		Data:       []byte(`{"text":"ok"}`),
	}
}

// PNGDataURL is a 1x1 transparent PNG encoded as a data URL.
const PNGDataURL = "data:image/png;base64,iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAQAAAC1HAwCAAAAC0lEQVR42mNkYAAAAAYAAjCB0C8AAAAASUVORK5CYII="
