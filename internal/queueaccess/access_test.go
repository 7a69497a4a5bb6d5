package queueaccess_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"fieldsync/internal/config"
	"fieldsync/internal/daemon"
	"fieldsync/internal/ipc"
	"fieldsync/internal/logging"
	"fieldsync/internal/queue"
	"fieldsync/internal/queueaccess"
	"fieldsync/internal/syncer"
	"fieldsync/internal/testsupport"
)

type failingReplayer struct{}

func (failingReplayer) Replay(context.Context, *queue.Item) error { return errors.New("HTTP 500") }

func openStore(cfg *config.Config) func() (*queue.Store, error) {
	return func() (*queue.Store, error) { return queue.Open(cfg) }
}

func exercise(t *testing.T, access queueaccess.Access, store *queue.Store) {
	t.Helper()
	ctx := context.Background()

	a := testsupport.MustAdd(t, store, testsupport.CheckIn("s1"))
	b := testsupport.MustAdd(t, store, testsupport.TaskLog("t1"))
	if _, err := store.DeadLetter(ctx, b.ID); err != nil {
		t.Fatalf("DeadLetter failed: %v", err)
	}

	stats, err := access.Stats(ctx)
	if err != nil || stats.Pending != 1 || stats.DeadLetter != 1 {
		t.Fatalf("Stats: %#v %v", stats, err)
	}

	items, err := access.List(ctx, nil)
	if err != nil || len(items) != 2 || items[0].ID != a.ID {
		t.Fatalf("List: %#v %v", items, err)
	}
	if _, err := access.List(ctx, []string{"bogus"}); err == nil {
		t.Fatal("expected unknown status error")
	}

	dead, err := access.DeadLetters(ctx)
	if err != nil || len(dead) != 1 || dead[0].ID != b.ID {
		t.Fatalf("DeadLetters: %#v %v", dead, err)
	}

	item, err := access.Describe(ctx, a.ID)
	if err != nil || item == nil || item.Status != "pending" {
		t.Fatalf("Describe: %#v %v", item, err)
	}
	if missing, err := access.Describe(ctx, "missing"); err != nil || missing != nil {
		t.Fatalf("expected nil for missing item, got %#v %v", missing, err)
	}

	updated, err := access.Requeue(ctx, []string{b.ID})
	if err != nil || updated != 1 {
		t.Fatalf("Requeue: %d %v", updated, err)
	}
	removed, err := access.Remove(ctx, []string{a.ID, "missing"})
	if err != nil || removed != 1 {
		t.Fatalf("Remove: %d %v", removed, err)
	}
	cleared, err := access.Clear(ctx)
	if err != nil || cleared != 1 {
		t.Fatalf("Clear: %d %v", cleared, err)
	}
}

func TestFallsBackToStore(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	dial := func() (*ipc.Client, error) { return ipc.Dial(cfg.SocketPath()) }

	session, err := queueaccess.OpenWithFallback(dial, openStore(cfg))
	if err != nil {
		t.Fatalf("OpenWithFallback: %v", err)
	}
	t.Cleanup(func() { session.Close() })
	if session.Access.Daemon() {
		t.Fatal("expected direct store access without a daemon")
	}

	exercise(t, session.Access, testsupport.MustOpenStore(t, cfg))
}

func TestUsesDaemonWhenReachable(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	store := testsupport.MustOpenStore(t, cfg)
	driver := syncer.New(store, failingReplayer{}, logging.NewNop(), syncer.WithInterval(time.Hour))
	d, err := daemon.New(cfg, store, driver, logging.NewNop(), "")
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	srv, err := ipc.NewServer(ctx, cfg.SocketPath(), d, logging.NewNop())
	if err != nil {
		t.Skipf("unix sockets unavailable: %v", err)
	}
	srv.Serve()
	t.Cleanup(srv.Close)

	dial := func() (*ipc.Client, error) { return ipc.Dial(cfg.SocketPath()) }
	session, err := queueaccess.OpenWithFallback(dial, func() (*queue.Store, error) {
		t.Fatal("store must not be opened when the daemon answers")
		return nil, nil
	})
	if err != nil {
		t.Fatalf("OpenWithFallback: %v", err)
	}
	t.Cleanup(func() { session.Close() })
	if !session.Access.Daemon() {
		t.Fatal("expected IPC access")
	}

	exercise(t, session.Access, store)
}

func TestOpenWithoutOpener(t *testing.T) {
	if _, err := queueaccess.OpenWithFallback(nil, nil); err == nil {
		t.Fatal("expected error without a store opener")
	}
}
