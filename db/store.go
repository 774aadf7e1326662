package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/mindtek/leadchat/config"
	"github.com/mindtek/leadchat/db/models"
)

// ErrNotFound is returned when a conversation id has no stored record.
var ErrNotFound = errors.New("conversation not found")

// Store is the sole persistence boundary for conversations and lead records.
// Each operation is scoped to a single conversation row; no cross-conversation
// transactions are offered.
type Store interface {
	// GetTurns returns the ordered turn sequence for a conversation, or
	// ErrNotFound when no record exists.
	GetTurns(ctx context.Context, conversationID string) ([]models.Turn, error)

	// UpsertTurns replaces the whole stored turn sequence for a conversation,
	// creating the record (and its created_at timestamp) on first write.
	// Re-applying the same sequence is a no-op, so a retried call cannot
	// duplicate turns.
	UpsertTurns(ctx context.Context, conversationID string, turns []models.Turn) error

	// SetLead writes the lead record as a full replacement of any prior one.
	SetLead(ctx context.Context, conversationID string, lead models.LeadRecord) error

	// Delete removes the conversation and its lead record. Deleting an absent
	// conversation is not an error.
	Delete(ctx context.Context, conversationID string) error

	// List returns conversation summaries ordered by creation time, newest
	// first.
	List(ctx context.Context) ([]models.ConversationSummary, error)

	Close(ctx context.Context) error
}

// NewStore builds the configured store driver, optionally wrapped with the
// Redis read-through cache when REDIS_URL is set.
func NewStore(ctx context.Context, cfg config.StoreConfig, logger *zap.SugaredLogger) (Store, error) {
	var (
		store Store
		err   error
	)

	switch cfg.Driver {
	case config.DriverSupabase:
		store, err = NewSupabaseStore(cfg.Supabase)
	case config.DriverMongo:
		store, err = NewMongoStore(ctx, cfg.Mongo)
	case config.DriverPostgres:
		store, err = NewPostgresStore(ctx, cfg.Postgres)
	case config.DriverMemory:
		store = NewMemoryStore()
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	if cfg.Redis.URL == "" {
		return store, nil
	}

	opts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	logger.Infow("history cache enabled", "ttl", cfg.Redis.CacheTTL)
	return NewCachedStore(store, client, cfg.Redis.CacheTTL), nil
}
