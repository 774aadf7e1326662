package db

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mindtek/leadchat/db/models"
)

const historyKeyPrefix = "leadchat:history:"

// CachedStore layers a bounded Redis read-through cache over another store.
// Only the turn sequence is cached; the wrapped store remains the sole source
// of truth, so a cache miss or Redis outage degrades to a direct read.
type CachedStore struct {
	inner  Store
	client *redis.Client
	ttl    time.Duration
}

func NewCachedStore(inner Store, client *redis.Client, ttl time.Duration) *CachedStore {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedStore{inner: inner, client: client, ttl: ttl}
}

func (s *CachedStore) GetTurns(ctx context.Context, conversationID string) ([]models.Turn, error) {
	key := historyKeyPrefix + conversationID

	val, err := s.client.Get(ctx, key).Result()
	if err == nil {
		var turns []models.Turn
		if jsonErr := json.Unmarshal([]byte(val), &turns); jsonErr == nil {
			return turns, nil
		}
		// Unreadable cache entry: fall through to the durable store.
		_ = s.client.Del(ctx, key).Err()
	} else if !errors.Is(err, redis.Nil) {
		return s.inner.GetTurns(ctx, conversationID)
	}

	turns, err := s.inner.GetTurns(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	if encoded, jsonErr := json.Marshal(turns); jsonErr == nil {
		_ = s.client.Set(ctx, key, encoded, s.ttl).Err()
	}

	return turns, nil
}

func (s *CachedStore) UpsertTurns(ctx context.Context, conversationID string, turns []models.Turn) error {
	if err := s.inner.UpsertTurns(ctx, conversationID, turns); err != nil {
		return err
	}

	_ = s.client.Del(ctx, historyKeyPrefix+conversationID).Err()
	return nil
}

func (s *CachedStore) SetLead(ctx context.Context, conversationID string, lead models.LeadRecord) error {
	return s.inner.SetLead(ctx, conversationID, lead)
}

func (s *CachedStore) Delete(ctx context.Context, conversationID string) error {
	if err := s.inner.Delete(ctx, conversationID); err != nil {
		return err
	}

	_ = s.client.Del(ctx, historyKeyPrefix+conversationID).Err()
	return nil
}

func (s *CachedStore) List(ctx context.Context) ([]models.ConversationSummary, error) {
	return s.inner.List(ctx)
}

func (s *CachedStore) Close(ctx context.Context) error {
	if err := s.client.Close(); err != nil {
		_ = s.inner.Close(ctx)
		return err
	}
	return s.inner.Close(ctx)
}
