package db_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/mindtek/leadchat/config"
	"github.com/mindtek/leadchat/db"
	"github.com/mindtek/leadchat/db/models"
)

func TestPostgresStoreRoundTrip(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set; skipping postgres integration test")
	}

	store, err := db.NewPostgresStore(context.Background(), config.PostgresConfig{
		DSN:            dsn,
		ConnectTimeout: 5 * time.Second,
	})
	if err != nil {
		t.Fatalf("failed to connect to postgres: %v", err)
	}
	defer store.Close(context.Background())

	ctx := context.Background()
	convID := uuid.NewString()
	defer store.Delete(ctx, convID)

	turns := []models.Turn{
		{Role: models.RoleUser, Content: "Hi"},
		{Role: models.RoleAssistant, Content: "Hello!"},
	}
	if err := store.UpsertTurns(ctx, convID, turns); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	if err := store.UpsertTurns(ctx, convID, turns); err != nil {
		t.Fatalf("repeated upsert failed: %v", err)
	}

	got, err := store.GetTurns(ctx, convID)
	if err != nil {
		t.Fatalf("get turns failed: %v", err)
	}
	if len(got) != 2 || got[1].Role != models.RoleAssistant {
		t.Fatalf("unexpected turns after upsert: %+v", got)
	}

	lead := models.LeadRecord{
		CustomerName:         "Ada",
		CustomerEmail:        "ada@example.com",
		CustomerIndustry:     "retail",
		CustomerProblem:      "slow support queue",
		CustomerConsultation: true,
		LeadQuality:          models.LeadQualityOK,
	}
	if err := store.SetLead(ctx, convID, lead); err != nil {
		t.Fatalf("set lead failed: %v", err)
	}

	summaries, err := store.List(ctx)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}

	var found bool
	for _, summary := range summaries {
		if summary.ConversationID != convID {
			continue
		}
		found = true
		if summary.CustomerIndustry != "retail" || summary.LeadQuality != models.LeadQualityOK {
			t.Fatalf("unexpected summary projection: %+v", summary)
		}
	}
	if !found {
		t.Fatalf("conversation %s missing from list", convID)
	}

	if err := store.Delete(ctx, convID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := store.GetTurns(ctx, convID); !errors.Is(err, db.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}
