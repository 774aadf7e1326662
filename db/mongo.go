package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/mindtek/leadchat/config"
	"github.com/mindtek/leadchat/db/models"
)

type mongoConversation struct {
	ID        string             `bson:"_id"`
	CreatedAt time.Time          `bson:"created_at"`
	Messages  []models.Turn      `bson:"messages"`
	Lead      *models.LeadRecord `bson:"lead,omitempty"`
}

// MongoStore persists each conversation as a single document in the
// conversations collection.
type MongoStore struct {
	client        *mongo.Client
	conversations *mongo.Collection
}

func NewMongoStore(ctx context.Context, cfg config.MongoConfig) (*MongoStore, error) {
	if cfg.URI == "" {
		return nil, fmt.Errorf("mongo: uri is required")
	}

	clientOpts := options.Client().ApplyURI(cfg.URI)
	if cfg.ConnectTimeout > 0 {
		clientOpts.SetServerSelectionTimeout(cfg.ConnectTimeout)
	}

	dialCtx, cancel := context.WithTimeout(ctx, timeoutOrDefault(cfg.ConnectTimeout))
	defer cancel()

	client, err := mongo.Connect(dialCtx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("mongo: connect: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 3*time.Second)
	defer pingCancel()

	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(pingCtx)
		return nil, fmt.Errorf("mongo: ping: %w", err)
	}

	store := &MongoStore{
		client:        client,
		conversations: client.Database(cfg.Database).Collection("conversations"),
	}

	if err := store.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}

	return store, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := s.conversations.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "created_at", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("mongo: ensure conversation index: %w", err)
	}

	return nil
}

func (s *MongoStore) GetTurns(ctx context.Context, conversationID string) ([]models.Turn, error) {
	var doc mongoConversation
	err := s.conversations.FindOne(ctx, bson.M{"_id": conversationID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mongo: fetch conversation: %w", err)
	}

	return doc.Messages, nil
}

func (s *MongoStore) UpsertTurns(ctx context.Context, conversationID string, turns []models.Turn) error {
	update := bson.M{
		"$set":         bson.M{"messages": turns},
		"$setOnInsert": bson.M{"created_at": time.Now().UTC()},
	}

	_, err := s.conversations.UpdateOne(ctx, bson.M{"_id": conversationID}, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("mongo: upsert conversation: %w", err)
	}

	return nil
}

func (s *MongoStore) SetLead(ctx context.Context, conversationID string, lead models.LeadRecord) error {
	result, err := s.conversations.UpdateOne(ctx, bson.M{"_id": conversationID}, bson.M{"$set": bson.M{"lead": lead}})
	if err != nil {
		return fmt.Errorf("mongo: set lead record: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}

	return nil
}

func (s *MongoStore) Delete(ctx context.Context, conversationID string) error {
	if _, err := s.conversations.DeleteOne(ctx, bson.M{"_id": conversationID}); err != nil {
		return fmt.Errorf("mongo: delete conversation: %w", err)
	}

	return nil
}

func (s *MongoStore) List(ctx context.Context) ([]models.ConversationSummary, error) {
	findOpts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetProjection(bson.M{"messages": 0})

	cursor, err := s.conversations.Find(ctx, bson.M{}, findOpts)
	if err != nil {
		return nil, fmt.Errorf("mongo: list conversations: %w", err)
	}
	defer cursor.Close(ctx)

	summaries := make([]models.ConversationSummary, 0)
	for cursor.Next(ctx) {
		var doc mongoConversation
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("mongo: decode conversation: %w", err)
		}

		summary := models.ConversationSummary{
			ConversationID: doc.ID,
			CreatedAt:      doc.CreatedAt,
		}
		if doc.Lead != nil {
			consultation := doc.Lead.CustomerConsultation
			summary.CustomerIndustry = doc.Lead.CustomerIndustry
			summary.CustomerConsultation = &consultation
			summary.LeadQuality = doc.Lead.LeadQuality
		}
		summaries = append(summaries, summary)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("mongo: list conversations: %w", err)
	}

	return summaries, nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return s.client.Disconnect(ctx)
}

func timeoutOrDefault(value time.Duration) time.Duration {
	if value > 0 {
		return value
	}
	return 10 * time.Second
}
