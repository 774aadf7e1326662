package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/mindtek/leadchat/db"
	"github.com/mindtek/leadchat/db/models"
)

// ExtractionService turns a finished transcript into a validated LeadRecord.
// It is the only writer of lead records; re-running extraction replaces the
// previous record wholesale.
type ExtractionService struct {
	store     db.Store
	completer Completer
	logger    *zap.SugaredLogger
}

func NewExtractionService(store db.Store, completer Completer, logger *zap.SugaredLogger) *ExtractionService {
	return &ExtractionService{store: store, completer: completer, logger: logger}
}

// Extract loads the transcript, asks the model for the lead schema, parses
// and validates the result, and persists it. A record that fails parsing or
// validation is never written.
func (s *ExtractionService) Extract(ctx context.Context, conversationID string) (*models.LeadRecord, error) {
	if strings.TrimSpace(conversationID) == "" {
		return nil, ErrConversationIDRequired
	}

	turns, err := s.store.GetTurns(ctx, conversationID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load transcript: %w", err)
	}
	if len(turns) == 0 {
		return nil, db.ErrNotFound
	}

	prompt := []models.Turn{
		{Role: models.RoleSystem, Content: extractionPrompt},
		{Role: models.RoleUser, Content: flattenTranscript(turns)},
	}

	raw, err := s.completer.Complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCompletionFailure, err)
	}

	var lead models.LeadRecord
	if err := json.Unmarshal([]byte(raw), &lead); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedExtraction, err)
	}

	if err := lead.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidationFailure, err)
	}

	if err := s.store.SetLead(ctx, conversationID, lead); err != nil {
		return nil, fmt.Errorf("save lead record: %w", err)
	}

	s.logger.Infow("lead record extracted", "conversation_id", conversationID, "lead_quality", lead.LeadQuality)

	return &lead, nil
}

// flattenTranscript renders each turn as "[role] content", newline-joined in
// stored order.
func flattenTranscript(turns []models.Turn) string {
	lines := make([]string, 0, len(turns))
	for _, turn := range turns {
		lines = append(lines, fmt.Sprintf("[%s] %s", turn.Role, turn.Content))
	}
	return strings.Join(lines, "\n")
}
