package api_test

import (
	"context"
	"testing"

	"fieldsync/internal/api"
	"fieldsync/internal/queue"
	"fieldsync/internal/testsupport"
)

func TestQueueServiceListFiltersByStatus(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	first := testsupport.MustAdd(t, store, testsupport.CheckIn("s1"))
	dead := testsupport.MustAdd(t, store, testsupport.TaskLog("t1"))
	last := testsupport.MustAdd(t, store, testsupport.CheckOut("v1"))
	if _, err := store.DeadLetter(ctx, dead.ID); err != nil {
		t.Fatalf("DeadLetter failed: %v", err)
	}

	svc := api.NewQueueService(store)
	all, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 3 || all[0].ID != first.ID || all[2].ID != last.ID {
		t.Fatalf("unexpected order %#v", all)
	}

	pending, err := svc.List(ctx, queue.StatusPending)
	if err != nil {
		t.Fatalf("List pending failed: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("expected 2 pending items, got %d", len(pending))
	}

	parked, err := svc.List(ctx, queue.StatusDeadLetter)
	if err != nil {
		t.Fatalf("List dead letters failed: %v", err)
	}
	if len(parked) != 1 || parked[0].ID != dead.ID || parked[0].Status != "dead_letter" {
		t.Fatalf("unexpected dead letters %#v", parked)
	}

	stats, err := svc.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Pending != 2 || stats.DeadLetter != 1 {
		t.Fatalf("unexpected stats %#v", stats)
	}
}

func TestQueueServiceDescribe(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	item := testsupport.MustAdd(t, store, testsupport.CheckIn("s1"))
	svc := api.NewQueueService(store)

	got, err := svc.Describe(context.Background(), item.ID)
	if err != nil || got == nil {
		t.Fatalf("Describe failed: %v %v", got, err)
	}
	if got.Kind != "attendance" || got.Summary != "check-in at store s1" {
		t.Fatalf("unexpected item %#v", got)
	}

	missing, err := svc.Describe(context.Background(), "missing")
	if err != nil || missing != nil {
		t.Fatalf("expected nil for missing item, got %#v %v", missing, err)
	}
}

func TestNilQueueService(t *testing.T) {
	var svc *api.QueueService
	items, err := svc.List(context.Background())
	if err != nil || items != nil {
		t.Fatalf("expected empty result, got %v %v", items, err)
	}
}
