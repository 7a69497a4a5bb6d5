package daemon_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"fieldsync/internal/api"
	"fieldsync/internal/config"
	"fieldsync/internal/daemon"
	"fieldsync/internal/logging"
	"fieldsync/internal/queue"
	"fieldsync/internal/syncer"
	"fieldsync/internal/testsupport"
)

type recordingReplayer struct {
	mu   sync.Mutex
	ids  []string
	fail error
}

func (r *recordingReplayer) Replay(_ context.Context, item *queue.Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, item.ID)
	return r.fail
}

func (r *recordingReplayer) replayed() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ids...)
}

func newDaemon(t *testing.T, cfg *config.Config, replayer syncer.Replayer) (*daemon.Daemon, *queue.Store) {
	t.Helper()
	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	driver := syncer.New(store, replayer, logging.NewNop(),
		syncer.WithInterval(time.Hour),
		syncer.WithMaxAttempts(cfg.Sync.MaxAttempts),
	)
	d, err := daemon.New(cfg, store, driver, logging.NewNop(), "")
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() {
		d.Close()
	})
	return d, store
}

func TestDaemonStartStop(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, _ := newDaemon(t, cfg, &recordingReplayer{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	status := d.Status(ctx)
	if !status.Running || !status.Sync.Running {
		t.Fatalf("expected daemon and driver running, got %#v", status)
	}
	if status.LockFilePath != cfg.LockPath() || status.QueueDBPath != cfg.QueuePath() {
		t.Fatalf("unexpected paths %#v", status)
	}
	if status.NetworkWatch {
		t.Fatal("network watch should be off when disabled in config")
	}

	// Second start should fail
	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	d.Stop()
	status = d.Status(ctx)
	if status.Running || status.Sync.Running {
		t.Fatal("expected daemon to be stopped")
	}

	if err := d.Start(ctx); err != nil {
		t.Fatalf("restart after stop failed: %v", err)
	}
}

func TestSecondInstanceIsRefused(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	first, _ := newDaemon(t, cfg, &recordingReplayer{})
	second, _ := newDaemon(t, cfg, &recordingReplayer{})
	ctx := context.Background()

	if err := first.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	err := second.Start(ctx)
	if err == nil || !strings.Contains(err.Error(), "already running") {
		t.Fatalf("expected lock conflict, got %v", err)
	}
	if second.Running() {
		t.Fatal("refused daemon must not report running")
	}
}

func TestSyncNowReplaysInOrder(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	replayer := &recordingReplayer{}
	d, store := newDaemon(t, cfg, replayer)
	ctx := context.Background()

	a := testsupport.MustAdd(t, store, testsupport.CheckIn("s1"))
	b := testsupport.MustAdd(t, store, testsupport.TaskLog("t1"))

	report, err := d.SyncNow(ctx)
	if err != nil {
		t.Fatalf("SyncNow failed: %v", err)
	}
	if report.Succeeded != 2 {
		t.Fatalf("unexpected report %#v", report)
	}
	got := replayer.replayed()
	if len(got) != 2 || got[0] != a.ID || got[1] != b.ID {
		t.Fatalf("unexpected replay order %v", got)
	}
	items, err := d.ListQueue(ctx, nil)
	if err != nil || len(items) != 0 {
		t.Fatalf("expected empty queue, got %v %v", items, err)
	}
}

func TestQueueMaintenance(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMaxAttempts(1))
	replayer := &recordingReplayer{fail: errors.New("HTTP 500")}
	d, store := newDaemon(t, cfg, replayer)
	ctx := context.Background()

	keep := testsupport.MustAdd(t, store, testsupport.CheckIn("s1"))
	drop := testsupport.MustAdd(t, store, testsupport.TaskLog("t1"))

	if _, err := d.SyncNow(ctx); err != nil {
		t.Fatalf("SyncNow failed: %v", err)
	}
	dead, err := d.ListQueue(ctx, []queue.Status{queue.StatusDeadLetter})
	if err != nil || len(dead) != 2 {
		t.Fatalf("expected both items parked, got %v %v", dead, err)
	}

	removed, err := d.RemoveItems(ctx, []string{drop.ID, "missing"})
	if err != nil || removed != 1 {
		t.Fatalf("RemoveItems: removed=%d err=%v", removed, err)
	}

	updated, err := d.Requeue(ctx, nil)
	if err != nil || updated != 1 {
		t.Fatalf("Requeue: updated=%d err=%v", updated, err)
	}
	pending, err := d.ListQueue(ctx, []queue.Status{queue.StatusPending})
	if err != nil || len(pending) != 1 || pending[0].ID != keep.ID || pending[0].Attempts != 0 {
		t.Fatalf("unexpected pending items %#v %v", pending, err)
	}

	item, err := d.DescribeItem(ctx, keep.ID)
	if err != nil || item == nil || item.Summary != "check-in at store s1" {
		t.Fatalf("DescribeItem: %#v %v", item, err)
	}

	cleared, err := d.ClearQueue(ctx)
	if err != nil || cleared != 1 {
		t.Fatalf("ClearQueue: cleared=%d err=%v", cleared, err)
	}
}

func TestStatusAPI(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Daemon.APIBind = "127.0.0.1:0"
	cfg.Daemon.APIToken = "secret"
	d, store := newDaemon(t, cfg, &recordingReplayer{fail: errors.New("offline")})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	item := testsupport.MustAdd(t, store, testsupport.CheckOut("v1"))
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	base := "http://" + d.APIAddr()
	if d.APIAddr() == "" {
		t.Fatal("expected status api address")
	}

	get := func(path, token string) *http.Response {
		t.Helper()
		req, err := http.NewRequest(http.MethodGet, base+path, nil)
		if err != nil {
			t.Fatalf("build request: %v", err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		t.Cleanup(func() { resp.Body.Close() })
		return resp
	}

	if resp := get("/api/status", ""); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}
	if resp := get("/api/status", "wrong"); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong token, got %d", resp.StatusCode)
	}

	resp := get("/api/status", "secret")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status code %d", resp.StatusCode)
	}
	var status api.DaemonStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if !status.Running || status.Queue.Pending+status.Queue.DeadLetter != 1 {
		t.Fatalf("unexpected status %#v", status)
	}

	resp = get("/api/queue/"+item.ID, "secret")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected item status code %d", resp.StatusCode)
	}
	var one api.QueueItemResponse
	if err := json.NewDecoder(resp.Body).Decode(&one); err != nil {
		t.Fatalf("decode item: %v", err)
	}
	if one.Item.ID != item.ID || one.Item.Kind != "attendance" {
		t.Fatalf("unexpected item %#v", one.Item)
	}

	if resp := get("/api/queue/missing", "secret"); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}

	d.Stop()
	if d.APIAddr() != "" {
		t.Fatal("expected status api to stop with the daemon")
	}
}
