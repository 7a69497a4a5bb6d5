package services_test

import (
	"context"
	"testing"

	"fieldsync/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithItemID(ctx, "1700000000000-a1b2c3d4e")
	ctx = services.WithRequestID(ctx, "req-123")

	if id, ok := services.ItemIDFromContext(ctx); !ok || id != "1700000000000-a1b2c3d4e" {
		t.Fatalf("unexpected item id: %v %v", id, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("unexpected request id: %v %v", rid, ok)
	}
}

func TestBlankValuesPreserveContext(t *testing.T) {
	ctx := context.Background()
	if services.WithItemID(ctx, "") != ctx {
		t.Fatal("expected blank item id to return original context")
	}
	if _, ok := services.RequestIDFromContext(services.WithRequestID(ctx, "")); ok {
		t.Fatal("expected blank request id to be ignored")
	}
}
