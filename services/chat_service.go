package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mindtek/leadchat/db"
	"github.com/mindtek/leadchat/db/models"
)

// ChatService owns the read-append-complete-append-persist cycle for a single
// user turn. It is the only writer of turn sequences.
type ChatService struct {
	store     db.Store
	completer Completer
	logger    *zap.SugaredLogger

	// Per-conversation locks serialize concurrent turns for the same id so a
	// read-modify-write cannot drop a turn. Process-scoped only; a
	// multi-instance deployment still needs a store-level conditional write.
	locks sync.Map
}

func NewChatService(store db.Store, completer Completer, logger *zap.SugaredLogger) *ChatService {
	return &ChatService{store: store, completer: completer, logger: logger}
}

// StartConversation allocates a fresh conversation id. The record itself is
// created lazily on the first turn.
func (s *ChatService) StartConversation() string {
	return uuid.NewString()
}

// HandleTurn appends the user turn to the stored history, obtains the
// assistant reply with the full history as context, persists the updated
// sequence and returns the reply together with it.
//
// A completion failure aborts the turn with nothing persisted. A persistence
// failure after a successful completion is logged and tolerated: the caller
// still gets the reply.
func (s *ChatService) HandleTurn(ctx context.Context, conversationID, message string) (string, []models.Turn, error) {
	if strings.TrimSpace(conversationID) == "" {
		return "", nil, ErrConversationIDRequired
	}
	if strings.TrimSpace(message) == "" {
		return "", nil, ErrMessageRequired
	}

	unlock := s.lockConversation(conversationID)
	defer unlock()

	history, err := s.store.GetTurns(ctx, conversationID)
	if err != nil && !errors.Is(err, db.ErrNotFound) {
		return "", nil, fmt.Errorf("load history: %w", err)
	}

	history = append(history, models.Turn{Role: models.RoleUser, Content: message})

	prompt := make([]models.Turn, 0, len(history)+1)
	prompt = append(prompt, models.Turn{Role: models.RoleSystem, Content: chatSystemPrompt})
	prompt = append(prompt, history...)

	raw, err := s.completer.Complete(ctx, prompt)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrCompletionFailure, err)
	}

	reply := strings.TrimSpace(raw)
	history = append(history, models.Turn{Role: models.RoleAssistant, Content: reply})

	if err := s.store.UpsertTurns(ctx, conversationID, history); err != nil {
		// The reply is already in hand; surface the failure in the logs
		// rather than failing the conversation.
		s.logger.Warnw("failed to persist conversation", "conversation_id", conversationID, "error", err)
	}

	return reply, history, nil
}

func (s *ChatService) lockConversation(conversationID string) func() {
	value, _ := s.locks.LoadOrStore(conversationID, &sync.Mutex{})
	mu := value.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}
