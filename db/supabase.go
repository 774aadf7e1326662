package db

import (
	"context"
	"fmt"
	"time"

	"github.com/supabase-community/postgrest-go"
	"github.com/supabase-community/supabase-go"

	"github.com/mindtek/leadchat/config"
	"github.com/mindtek/leadchat/db/models"
)

// Column names mirror the original Supabase table, which kept the lead fields
// in camelCase.
type supabaseSummaryRow struct {
	ConversationID       string    `json:"conversation_id"`
	CreatedAt            time.Time `json:"created_at"`
	CustomerIndustry     *string   `json:"customerIndustry"`
	CustomerConsultation *bool     `json:"customerConsultation"`
	LeadQuality          *string   `json:"leadQuality"`
}

type supabaseMessagesRow struct {
	Messages []models.Turn `json:"messages"`
}

// SupabaseStore is the default driver, talking to the conversations table
// through PostgREST.
type SupabaseStore struct {
	client *supabase.Client
}

func NewSupabaseStore(cfg config.SupabaseConfig) (*SupabaseStore, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("supabase: url is required")
	}
	if cfg.ServiceRoleKey == "" {
		return nil, fmt.Errorf("supabase: service role key is required")
	}

	client, err := supabase.NewClient(cfg.URL, cfg.ServiceRoleKey, nil)
	if err != nil {
		return nil, fmt.Errorf("supabase: create client: %w", err)
	}

	return &SupabaseStore{client: client}, nil
}

func (s *SupabaseStore) GetTurns(ctx context.Context, conversationID string) ([]models.Turn, error) {
	var rows []supabaseMessagesRow
	_, err := s.client.From("conversations").
		Select("messages", "", false).
		Eq("conversation_id", conversationID).
		ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("supabase: fetch conversation: %w", err)
	}

	if len(rows) == 0 {
		return nil, ErrNotFound
	}

	return rows[0].Messages, nil
}

func (s *SupabaseStore) UpsertTurns(ctx context.Context, conversationID string, turns []models.Turn) error {
	row := map[string]any{
		"conversation_id": conversationID,
		"messages":        turns,
	}

	_, _, err := s.client.From("conversations").
		Upsert(row, "conversation_id", "", "").
		Execute()
	if err != nil {
		return fmt.Errorf("supabase: upsert conversation: %w", err)
	}

	return nil
}

func (s *SupabaseStore) SetLead(ctx context.Context, conversationID string, lead models.LeadRecord) error {
	update := map[string]any{
		"customerName":         lead.CustomerName,
		"customerEmail":        lead.CustomerEmail,
		"customerPhone":        lead.CustomerPhone,
		"customerIndustry":     lead.CustomerIndustry,
		"customerProblem":      lead.CustomerProblem,
		"customerAvailability": lead.CustomerAvailability,
		"customerConsultation": lead.CustomerConsultation,
		"specialNotes":         lead.SpecialNotes,
		"leadQuality":          lead.LeadQuality,
	}

	_, _, err := s.client.From("conversations").
		Update(update, "", "").
		Eq("conversation_id", conversationID).
		Execute()
	if err != nil {
		return fmt.Errorf("supabase: set lead record: %w", err)
	}

	return nil
}

func (s *SupabaseStore) Delete(ctx context.Context, conversationID string) error {
	_, _, err := s.client.From("conversations").
		Delete("", "").
		Eq("conversation_id", conversationID).
		Execute()
	if err != nil {
		return fmt.Errorf("supabase: delete conversation: %w", err)
	}

	return nil
}

func (s *SupabaseStore) List(ctx context.Context) ([]models.ConversationSummary, error) {
	var rows []supabaseSummaryRow
	_, err := s.client.From("conversations").
		Select("conversation_id, created_at, customerIndustry, customerConsultation, leadQuality", "", false).
		Order("created_at", &postgrest.OrderOpts{Ascending: false}).
		ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("supabase: list conversations: %w", err)
	}

	summaries := make([]models.ConversationSummary, 0, len(rows))
	for _, row := range rows {
		summary := models.ConversationSummary{
			ConversationID:       row.ConversationID,
			CreatedAt:            row.CreatedAt,
			CustomerConsultation: row.CustomerConsultation,
		}
		if row.CustomerIndustry != nil {
			summary.CustomerIndustry = *row.CustomerIndustry
		}
		if row.LeadQuality != nil {
			summary.LeadQuality = *row.LeadQuality
		}
		summaries = append(summaries, summary)
	}

	return summaries, nil
}

func (s *SupabaseStore) Close(ctx context.Context) error {
	return nil
}
