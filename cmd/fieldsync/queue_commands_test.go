package main

import (
	"context"
	"strings"
	"testing"

	"fieldsync/internal/daemon"
	"fieldsync/internal/daemonrun"
	"fieldsync/internal/ipc"
	"fieldsync/internal/queue"
	"fieldsync/internal/testsupport"
)

// startIPCServer serves the queue over the configured socket without
// starting the sync loop.
func startIPCServer(t *testing.T, env *cliTestEnv) *queue.Store {
	t.Helper()
	store := testsupport.MustOpenStore(t, env.cfg)
	driver := daemonrun.NewDriver(env.cfg, store, nil)
	d, err := daemon.New(env.cfg, store, driver, nil, "")
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })

	server, err := ipc.NewServer(t.Context(), env.cfg.SocketPath(), d, nil)
	if err != nil {
		t.Fatalf("ipc.NewServer: %v", err)
	}
	server.Serve()
	t.Cleanup(server.Close)
	return store
}

func TestQueueCommandsThroughDaemon(t *testing.T) {
	env := setupCLITestEnv(t, offlineURL(t))
	store := startIPCServer(t, env)

	first := testsupport.MustAdd(t, store, testsupport.CheckIn("store-1"))
	second := testsupport.MustAdd(t, store, testsupport.TaskLog("t1"))

	out, err := env.run(t, "queue", "status")
	if err != nil {
		t.Fatalf("queue status: %v", err)
	}
	requireContains(t, out, "Pending")
	requireContains(t, out, "Oldest pending item queued")

	out, err = env.run(t, "queue", "list")
	if err != nil {
		t.Fatalf("queue list: %v", err)
	}
	firstAt := strings.Index(out, first.ID)
	secondAt := strings.Index(out, second.ID)
	if firstAt < 0 || secondAt < 0 || firstAt > secondAt {
		t.Fatalf("expected items in replay order, got %q", out)
	}

	out, err = env.run(t, "queue", "show", second.ID)
	if err != nil {
		t.Fatalf("queue show: %v", err)
	}
	requireContains(t, out, "ID:        "+second.ID)
	requireContains(t, out, `"taskId":"t1"`)

	if _, err := env.run(t, "queue", "show", "missing-id"); err == nil {
		t.Fatal("expected unknown item to fail")
	}

	out, err = env.run(t, "queue", "remove", first.ID, "missing-id")
	if err != nil {
		t.Fatalf("queue remove: %v", err)
	}
	requireContains(t, out, "Removed 1 of 2 items")

	if _, err := env.run(t, "queue", "clear"); err == nil || !strings.Contains(err.Error(), "--force") {
		t.Fatalf("expected clear to require --force, got %v", err)
	}
	out, err = env.run(t, "queue", "clear", "--force")
	if err != nil {
		t.Fatalf("queue clear: %v", err)
	}
	requireContains(t, out, "Cleared 1 queue items")

	out, err = env.run(t, "queue", "status")
	if err != nil {
		t.Fatalf("queue status: %v", err)
	}
	requireContains(t, out, "Queue is empty")
}

func TestQueueDeadLettersWithoutDaemon(t *testing.T) {
	env := setupCLITestEnv(t, offlineURL(t))
	store := testsupport.MustOpenStore(t, env.cfg)

	item := testsupport.MustAdd(t, store, testsupport.CheckOut("visit-9"))
	if ok, err := store.DeadLetter(context.Background(), item.ID); err != nil || !ok {
		t.Fatalf("DeadLetter: ok=%v err=%v", ok, err)
	}

	out, err := env.run(t, "queue", "list", "--status", "pending")
	if err != nil {
		t.Fatalf("queue list: %v", err)
	}
	requireContains(t, out, "Queue is empty")

	out, err = env.run(t, "queue", "dead")
	if err != nil {
		t.Fatalf("queue dead: %v", err)
	}
	requireContains(t, out, item.ID)
	requireContains(t, out, "fieldsync queue requeue <id>")

	if _, err := env.run(t, "queue", "list", "--status", "bogus"); err == nil {
		t.Fatal("expected unknown status to fail")
	}

	out, err = env.run(t, "queue", "requeue")
	if err != nil {
		t.Fatalf("queue requeue: %v", err)
	}
	requireContains(t, out, "Requeued 1 items")

	out, err = env.run(t, "queue", "list", "-s", "pending", "--json")
	if err != nil {
		t.Fatalf("queue list --json: %v", err)
	}
	requireContains(t, out, `"id": "`+item.ID+`"`)

	out, err = env.run(t, "queue", "dead")
	if err != nil {
		t.Fatalf("queue dead: %v", err)
	}
	requireContains(t, out, "No dead letters")
}
