package queue_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"fieldsync/internal/queue"
	"fieldsync/internal/testsupport"
)

var (
	idPattern = regexp.MustCompile(`^\d{13}-[0-9a-f]{9}$`)
	testNow   = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
)

func ids(items []*queue.Item) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.ID)
	}
	return out
}

func TestListEmptyQueue(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))

	items, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if items == nil || len(items) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", items)
	}
}

func TestAddAppendsOneItem(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	first := testsupport.MustAdd(t, store, testsupport.CheckIn("store-1"))
	before, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}

	payload := testsupport.TaskLog("task-7")
	added, err := store.Add(ctx, payload)
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if !idPattern.MatchString(added.ID) {
		t.Fatalf("unexpected id format %q", added.ID)
	}
	if added.ID == first.ID {
		t.Fatal("expected distinct ids")
	}

	after, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(after) != len(before)+1 {
		t.Fatalf("expected %d items, got %d", len(before)+1, len(after))
	}
	if after[0].ID != first.ID {
		t.Fatalf("existing item moved: %v", ids(after))
	}
	last := after[len(after)-1]
	if last.ID != added.ID || last.Kind != queue.KindWorkflowLog {
		t.Fatalf("unexpected appended item %#v", last)
	}
	got, ok := last.Payload.(queue.WorkflowLog)
	if !ok {
		t.Fatalf("expected WorkflowLog payload, got %T", last.Payload)
	}
	if got.TaskID != "task-7" || got.Status != queue.LogCompleted || string(got.Data) != `{"text":"ok"}` {
		t.Fatalf("payload not preserved: %#v", got)
	}
	if last.CreatedAt.IsZero() {
		t.Fatal("expected creation timestamp")
	}
}

func TestAddRejectsInvalidPayload(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	cases := []queue.Payload{
		queue.Attendance{Action: "teleport"},
		queue.Attendance{Action: queue.ActionCheckIn, StoreID: "s1"},
		queue.Attendance{Action: queue.ActionCheckOut},
		queue.PhotoUpload{Photo: "not-a-data-url", Type: queue.PhotoBefore, TaskID: "t"},
		queue.WorkflowLog{WorkflowID: "w", TaskID: "t", Status: "pending"},
	}
	for _, payload := range cases {
		if _, err := store.Add(ctx, payload); err == nil {
			t.Fatalf("expected error for %#v", payload)
		}
	}
	if _, err := store.Add(ctx, nil); err == nil {
		t.Fatal("expected error for nil payload")
	}
}

func TestRemoveKeepsRelativeOrder(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	a := testsupport.MustAdd(t, store, testsupport.CheckIn("a"))
	b := testsupport.MustAdd(t, store, testsupport.TaskLog("b"))
	c := testsupport.MustAdd(t, store, queue.PhotoUpload{Photo: testsupport.PNGDataURL, Type: queue.PhotoAfter, TaskID: "c"})
	d := testsupport.MustAdd(t, store, testsupport.CheckOut("d"))

	removed, err := store.Remove(ctx, b.ID)
	if err != nil || !removed {
		t.Fatalf("Remove failed: removed=%v err=%v", removed, err)
	}

	items, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	want := []string{a.ID, c.ID, d.ID}
	got := ids(items)
	if len(got) != len(want) {
		t.Fatalf("unexpected items %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order changed: got %v want %v", got, want)
		}
	}
}

func TestRemoveAbsentIsNoop(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	testsupport.MustAdd(t, store, testsupport.CheckIn("a"))

	removed, err := store.Remove(ctx, "missing")
	if err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if removed {
		t.Fatal("expected no-op for absent id")
	}
	items, _ := store.List(ctx)
	if len(items) != 1 {
		t.Fatalf("expected queue untouched, got %d items", len(items))
	}
}

func TestClearEmptiesQueue(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	testsupport.MustAdd(t, store, testsupport.CheckIn("a"))
	dead := testsupport.MustAdd(t, store, testsupport.TaskLog("b"))
	if _, err := store.DeadLetter(ctx, dead.ID); err != nil {
		t.Fatalf("DeadLetter failed: %v", err)
	}

	n, err := store.Clear(ctx)
	if err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 removed, got %d", n)
	}
	items, err := store.ListAll(ctx)
	if err != nil {
		t.Fatalf("ListAll failed: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected empty queue, got %v", ids(items))
	}

	if _, err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear on empty queue failed: %v", err)
	}
}

func TestQueueSurvivesReopen(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	item, err := store.Add(context.Background(), testsupport.CheckIn("persisted"))
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened := testsupport.MustOpenStore(t, cfg)
	got, err := reopened.Get(context.Background(), item.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected item to survive reopen")
	}
	att, ok := got.Payload.(queue.Attendance)
	if !ok || att.StoreID != "persisted" || att.Location == nil {
		t.Fatalf("unexpected payload after reopen: %#v", got.Payload)
	}
}

func TestRecordFailureAndDeadLetter(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	item := testsupport.MustAdd(t, store, testsupport.TaskLog("t"))

	for want := 1; want <= 2; want++ {
		attempts, err := store.RecordFailure(ctx, item.ID, errors.New("HTTP 500"))
		if err != nil {
			t.Fatalf("RecordFailure failed: %v", err)
		}
		if attempts != want {
			t.Fatalf("expected attempts %d, got %d", want, attempts)
		}
	}
	got, _ := store.Get(ctx, item.ID)
	if got.LastError != "HTTP 500" || got.LastAttemptAt == nil {
		t.Fatalf("failure not recorded: %#v", got)
	}

	if moved, err := store.DeadLetter(ctx, item.ID); err != nil || !moved {
		t.Fatalf("DeadLetter failed: moved=%v err=%v", moved, err)
	}
	pending, _ := store.List(ctx)
	if len(pending) != 0 {
		t.Fatalf("dead letter still pending: %v", ids(pending))
	}
	dead, err := store.ListDeadLetters(ctx)
	if err != nil || len(dead) != 1 {
		t.Fatalf("expected one dead letter, got %v err=%v", ids(dead), err)
	}

	if ok, err := store.Requeue(ctx, item.ID); err != nil || !ok {
		t.Fatalf("Requeue failed: ok=%v err=%v", ok, err)
	}
	got, _ = store.Get(ctx, item.ID)
	if got.Status != queue.StatusPending || got.Attempts != 0 {
		t.Fatalf("expected reset pending item, got %#v", got)
	}
	if ok, _ := store.Requeue(ctx, item.ID); ok {
		t.Fatal("requeue of a pending item should report false")
	}

	if attempts, err := store.RecordFailure(ctx, "missing", errors.New("x")); err != nil || attempts != 0 {
		t.Fatalf("expected no-op for missing item, got %d %v", attempts, err)
	}
}

func TestStats(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	empty, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if empty.Pending != 0 || empty.Oldest != nil {
		t.Fatalf("unexpected empty stats %#v", empty)
	}

	testsupport.MustAdd(t, store, testsupport.CheckIn("a"))
	testsupport.MustAdd(t, store, testsupport.CheckOut("v"))
	dead := testsupport.MustAdd(t, store, testsupport.TaskLog("t"))
	if _, err := store.DeadLetter(ctx, dead.ID); err != nil {
		t.Fatalf("DeadLetter failed: %v", err)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Pending != 2 || stats.DeadLetter != 1 {
		t.Fatalf("unexpected counts %#v", stats)
	}
	if stats.ByKind[queue.KindAttendance] != 2 {
		t.Fatalf("unexpected kind counts %#v", stats.ByKind)
	}
	if stats.Oldest == nil {
		t.Fatal("expected oldest timestamp")
	}
}

func TestOpenRejectsSchemaMismatch(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	path := store.Path()
	store.Close()

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open raw db: %v", err)
	}
	if _, err := db.Exec("PRAGMA user_version = 99"); err != nil {
		t.Fatalf("bump version: %v", err)
	}
	db.Close()

	if _, err := queue.OpenPath(path); !errors.Is(err, queue.ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}

func TestListKeepsUndecodableItems(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	good := testsupport.MustAdd(t, store, testsupport.CheckIn("a"))
	bad := testsupport.MustAdd(t, store, testsupport.TaskLog("b"))

	db, err := sql.Open("sqlite", store.Path())
	if err != nil {
		t.Fatalf("open raw db: %v", err)
	}
	if _, err := db.Exec(`UPDATE queue_items SET payload_json = 'not json' WHERE id = ?`, bad.ID); err != nil {
		t.Fatalf("corrupt payload: %v", err)
	}
	db.Close()

	items, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(items) != 2 || items[0].ID != good.ID || items[1].ID != bad.ID {
		t.Fatalf("unexpected items %v", ids(items))
	}
	if items[0].PayloadErr != nil || items[0].Payload == nil {
		t.Fatalf("healthy item lost its payload: %#v", items[0])
	}
	if items[1].PayloadErr == nil || items[1].Payload != nil {
		t.Fatalf("expected decode error on corrupt item, got %#v", items[1])
	}
}

func TestOpenPathReportsUnusableLocation(t *testing.T) {
	dir := t.TempDir()
	if _, err := queue.OpenPath(filepath.Join(dir, "missing", "queue.db")); err == nil {
		t.Fatal("expected error opening database in missing directory")
	}
}

func TestNewIDFormat(t *testing.T) {
	seen := map[string]struct{}{}
	for i := 0; i < 100; i++ {
		id := queue.NewID(testNow)
		if !idPattern.MatchString(id) {
			t.Fatalf("unexpected id %q", id)
		}
		seen[id] = struct{}{}
	}
	if len(seen) != 100 {
		t.Fatalf("expected unique ids, got %d", len(seen))
	}
}
