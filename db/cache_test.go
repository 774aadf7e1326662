package db_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/mindtek/leadchat/db"
	"github.com/mindtek/leadchat/db/models"
)

func setupCachedStore(t *testing.T) (*db.CachedStore, *db.MemoryStore) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	inner := db.NewMemoryStore()
	return db.NewCachedStore(inner, client, time.Minute), inner
}

func TestCachedStoreServesWarmReads(t *testing.T) {
	cached, inner := setupCachedStore(t)
	ctx := context.Background()

	turns := []models.Turn{{Role: models.RoleUser, Content: "Hi"}}
	if err := cached.UpsertTurns(ctx, "c1", turns); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	// First read warms the cache.
	if _, err := cached.GetTurns(ctx, "c1"); err != nil {
		t.Fatalf("get turns failed: %v", err)
	}

	// A write that bypasses the decorator is invisible until invalidation,
	// proving the second read came from Redis.
	stale := []models.Turn{
		{Role: models.RoleUser, Content: "Hi"},
		{Role: models.RoleAssistant, Content: "Hello!"},
	}
	if err := inner.UpsertTurns(ctx, "c1", stale); err != nil {
		t.Fatalf("direct upsert failed: %v", err)
	}

	got, err := cached.GetTurns(ctx, "c1")
	if err != nil {
		t.Fatalf("cached get failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected cached read of 1 turn, got %d", len(got))
	}
}

func TestCachedStoreInvalidatesOnWrite(t *testing.T) {
	cached, _ := setupCachedStore(t)
	ctx := context.Background()

	if err := cached.UpsertTurns(ctx, "c1", []models.Turn{{Role: models.RoleUser, Content: "Hi"}}); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	if _, err := cached.GetTurns(ctx, "c1"); err != nil {
		t.Fatalf("get turns failed: %v", err)
	}

	updated := []models.Turn{
		{Role: models.RoleUser, Content: "Hi"},
		{Role: models.RoleAssistant, Content: "Hello!"},
	}
	if err := cached.UpsertTurns(ctx, "c1", updated); err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}

	got, err := cached.GetTurns(ctx, "c1")
	if err != nil {
		t.Fatalf("get after invalidation failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 turns after invalidation, got %d", len(got))
	}
}

func TestCachedStoreInvalidatesOnDelete(t *testing.T) {
	cached, _ := setupCachedStore(t)
	ctx := context.Background()

	if err := cached.UpsertTurns(ctx, "c1", []models.Turn{{Role: models.RoleUser, Content: "Hi"}}); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	if _, err := cached.GetTurns(ctx, "c1"); err != nil {
		t.Fatalf("get turns failed: %v", err)
	}

	if err := cached.Delete(ctx, "c1"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	if _, err := cached.GetTurns(ctx, "c1"); err == nil {
		t.Fatalf("expected miss after delete")
	}
}
