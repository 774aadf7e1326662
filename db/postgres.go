package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mindtek/leadchat/config"
	"github.com/mindtek/leadchat/db/models"
)

// PostgresStore keeps one row per conversation with the turn sequence as a
// JSONB column and the lead record flattened into nullable columns.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, cfg config.PostgresConfig) (*PostgresStore, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.BuildDSN())
	if err != nil {
		return nil, fmt.Errorf("postgres: parse dsn: %w", err)
	}

	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns >= 0 {
		poolConfig.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	if cfg.HealthCheckPeriod > 0 {
		poolConfig.HealthCheckPeriod = cfg.HealthCheckPeriod
	}

	dialCtx, cancel := context.WithTimeout(ctx, timeoutOrDefault(cfg.ConnectTimeout))
	defer cancel()

	pool, err := pgxpool.NewWithConfig(dialCtx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}

	store := &PostgresStore{pool: pool}
	if err := store.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return store, nil
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	stmt := strings.Join([]string{
		"CREATE TABLE IF NOT EXISTS conversations (",
		"    conversation_id TEXT PRIMARY KEY,",
		"    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),",
		"    messages JSONB NOT NULL DEFAULT '[]'::jsonb,",
		"    customer_name TEXT,",
		"    customer_email TEXT,",
		"    customer_phone TEXT,",
		"    customer_industry TEXT,",
		"    customer_problem TEXT,",
		"    customer_availability TEXT,",
		"    customer_consultation BOOLEAN,",
		"    special_notes TEXT,",
		"    lead_quality TEXT",
		")",
	}, "\n")

	if _, err := s.pool.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("postgres: ensure schema: %w", err)
	}

	return nil
}

func (s *PostgresStore) GetTurns(ctx context.Context, conversationID string) ([]models.Turn, error) {
	var raw []byte
	query := "SELECT messages FROM conversations WHERE conversation_id = $1"
	err := s.pool.QueryRow(ctx, query, conversationID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: fetch conversation: %w", err)
	}

	var turns []models.Turn
	if err := json.Unmarshal(raw, &turns); err != nil {
		return nil, fmt.Errorf("postgres: decode messages: %w", err)
	}

	return turns, nil
}

func (s *PostgresStore) UpsertTurns(ctx context.Context, conversationID string, turns []models.Turn) error {
	raw, err := json.Marshal(turns)
	if err != nil {
		return fmt.Errorf("postgres: encode messages: %w", err)
	}

	query := strings.Join([]string{
		"INSERT INTO conversations (conversation_id, messages) VALUES ($1, $2)",
		"ON CONFLICT (conversation_id) DO UPDATE SET messages = EXCLUDED.messages",
	}, "\n")

	if _, err := s.pool.Exec(ctx, query, conversationID, raw); err != nil {
		return fmt.Errorf("postgres: upsert conversation: %w", err)
	}

	return nil
}

func (s *PostgresStore) SetLead(ctx context.Context, conversationID string, lead models.LeadRecord) error {
	query := strings.Join([]string{
		"UPDATE conversations SET",
		"    customer_name = $2,",
		"    customer_email = $3,",
		"    customer_phone = $4,",
		"    customer_industry = $5,",
		"    customer_problem = $6,",
		"    customer_availability = $7,",
		"    customer_consultation = $8,",
		"    special_notes = $9,",
		"    lead_quality = $10",
		"WHERE conversation_id = $1",
	}, "\n")

	tag, err := s.pool.Exec(ctx, query, conversationID,
		lead.CustomerName, lead.CustomerEmail, lead.CustomerPhone,
		lead.CustomerIndustry, lead.CustomerProblem, lead.CustomerAvailability,
		lead.CustomerConsultation, lead.SpecialNotes, lead.LeadQuality)
	if err != nil {
		return fmt.Errorf("postgres: set lead record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, conversationID string) error {
	query := "DELETE FROM conversations WHERE conversation_id = $1"
	if _, err := s.pool.Exec(ctx, query, conversationID); err != nil {
		return fmt.Errorf("postgres: delete conversation: %w", err)
	}

	return nil
}

func (s *PostgresStore) List(ctx context.Context) ([]models.ConversationSummary, error) {
	query := strings.Join([]string{
		"SELECT conversation_id, created_at, customer_industry, customer_consultation, lead_quality",
		"FROM conversations ORDER BY created_at DESC",
	}, "\n")

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: list conversations: %w", err)
	}
	defer rows.Close()

	summaries := make([]models.ConversationSummary, 0)
	for rows.Next() {
		var (
			summary      models.ConversationSummary
			createdAt    time.Time
			industry     *string
			consultation *bool
			quality      *string
		)
		if err := rows.Scan(&summary.ConversationID, &createdAt, &industry, &consultation, &quality); err != nil {
			return nil, fmt.Errorf("postgres: scan conversation: %w", err)
		}

		summary.CreatedAt = createdAt
		if industry != nil {
			summary.CustomerIndustry = *industry
		}
		summary.CustomerConsultation = consultation
		if quality != nil {
			summary.LeadQuality = *quality
		}
		summaries = append(summaries, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list conversations: %w", err)
	}

	return summaries, nil
}

func (s *PostgresStore) Close(ctx context.Context) error {
	s.pool.Close()
	return nil
}
