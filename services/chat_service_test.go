package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/mindtek/leadchat/db"
	"github.com/mindtek/leadchat/db/models"
)

type fakeCompleter struct {
	fn func(ctx context.Context, messages []models.Turn) (string, error)
}

func (f *fakeCompleter) Complete(ctx context.Context, messages []models.Turn) (string, error) {
	return f.fn(ctx, messages)
}

func staticCompleter(reply string) *fakeCompleter {
	return &fakeCompleter{fn: func(ctx context.Context, messages []models.Turn) (string, error) {
		return reply, nil
	}}
}

type failingUpsertStore struct {
	db.Store
}

func (s *failingUpsertStore) UpsertTurns(ctx context.Context, conversationID string, turns []models.Turn) error {
	return errors.New("store unavailable")
}

func TestHandleTurnFreshConversation(t *testing.T) {
	store := db.NewMemoryStore()
	service := NewChatService(store, staticCompleter("  Hello! What industry do you work in?  "), zap.NewNop().Sugar())

	reply, history, err := service.HandleTurn(context.Background(), "C1", "Hi")
	if err != nil {
		t.Fatalf("handle turn failed: %v", err)
	}

	if reply != "Hello! What industry do you work in?" {
		t.Fatalf("expected trimmed reply, got %q", reply)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(history))
	}
	if history[0].Role != models.RoleUser || history[0].Content != "Hi" {
		t.Fatalf("unexpected first turn: %+v", history[0])
	}
	if history[1].Role != models.RoleAssistant || history[1].Content != reply {
		t.Fatalf("unexpected second turn: %+v", history[1])
	}

	stored, err := store.GetTurns(context.Background(), "C1")
	if err != nil {
		t.Fatalf("get turns failed: %v", err)
	}
	if len(stored) != 2 {
		t.Fatalf("expected 2 persisted turns, got %d", len(stored))
	}
}

func TestHandleTurnPromptAssembly(t *testing.T) {
	store := db.NewMemoryStore()

	var prompt []models.Turn
	completer := &fakeCompleter{fn: func(ctx context.Context, messages []models.Turn) (string, error) {
		prompt = append([]models.Turn(nil), messages...)
		return "ok", nil
	}}

	service := NewChatService(store, completer, zap.NewNop().Sugar())

	if _, _, err := service.HandleTurn(context.Background(), "C1", "first"); err != nil {
		t.Fatalf("first turn failed: %v", err)
	}
	if _, _, err := service.HandleTurn(context.Background(), "C1", "second"); err != nil {
		t.Fatalf("second turn failed: %v", err)
	}

	if len(prompt) != 4 {
		t.Fatalf("expected system + 3 history turns, got %d", len(prompt))
	}
	if prompt[0].Role != models.RoleSystem || !strings.Contains(prompt[0].Content, "MindTek AI Assistant") {
		t.Fatalf("prompt does not start with the system instruction: %+v", prompt[0])
	}
	if prompt[len(prompt)-1].Role != models.RoleUser || prompt[len(prompt)-1].Content != "second" {
		t.Fatalf("prompt does not end with the new user turn: %+v", prompt[len(prompt)-1])
	}

	// The system turn must never be persisted.
	stored, err := store.GetTurns(context.Background(), "C1")
	if err != nil {
		t.Fatalf("get turns failed: %v", err)
	}
	for _, turn := range stored {
		if turn.Role == models.RoleSystem {
			t.Fatalf("system turn leaked into stored history")
		}
	}
}

func TestHandleTurnAppendOnlyOrdering(t *testing.T) {
	store := db.NewMemoryStore()

	counter := 0
	completer := &fakeCompleter{fn: func(ctx context.Context, messages []models.Turn) (string, error) {
		counter++
		return fmt.Sprintf("reply %d", counter), nil
	}}

	service := NewChatService(store, completer, zap.NewNop().Sugar())

	const n = 3
	for i := 0; i < n; i++ {
		if _, _, err := service.HandleTurn(context.Background(), "C1", fmt.Sprintf("message %d", i)); err != nil {
			t.Fatalf("turn %d failed: %v", i, err)
		}
	}

	stored, err := store.GetTurns(context.Background(), "C1")
	if err != nil {
		t.Fatalf("get turns failed: %v", err)
	}
	if len(stored) != 2*n {
		t.Fatalf("expected %d turns, got %d", 2*n, len(stored))
	}
	for i, turn := range stored {
		want := models.RoleUser
		if i%2 == 1 {
			want = models.RoleAssistant
		}
		if turn.Role != want {
			t.Fatalf("turn %d has role %q, want %q", i, turn.Role, want)
		}
	}
}

func TestHandleTurnCompletionFailureLeavesNothingPersisted(t *testing.T) {
	store := db.NewMemoryStore()
	completer := &fakeCompleter{fn: func(ctx context.Context, messages []models.Turn) (string, error) {
		return "", errors.New("provider unreachable")
	}}

	service := NewChatService(store, completer, zap.NewNop().Sugar())

	_, _, err := service.HandleTurn(context.Background(), "C1", "Hi")
	if !errors.Is(err, ErrCompletionFailure) {
		t.Fatalf("expected ErrCompletionFailure, got %v", err)
	}

	if _, err := store.GetTurns(context.Background(), "C1"); !errors.Is(err, db.ErrNotFound) {
		t.Fatalf("expected no persisted history after completion failure, got %v", err)
	}
}

func TestHandleTurnPersistenceFailureStillReturnsReply(t *testing.T) {
	store := &failingUpsertStore{Store: db.NewMemoryStore()}
	service := NewChatService(store, staticCompleter("Hello!"), zap.NewNop().Sugar())

	reply, history, err := service.HandleTurn(context.Background(), "C1", "Hi")
	if err != nil {
		t.Fatalf("persistence failure should not fail the turn: %v", err)
	}
	if reply != "Hello!" {
		t.Fatalf("expected reply in hand, got %q", reply)
	}
	if len(history) != 2 {
		t.Fatalf("expected full history returned, got %d turns", len(history))
	}
}

func TestHandleTurnInputValidation(t *testing.T) {
	service := NewChatService(db.NewMemoryStore(), staticCompleter("ok"), zap.NewNop().Sugar())

	if _, _, err := service.HandleTurn(context.Background(), "", "Hi"); !errors.Is(err, ErrConversationIDRequired) {
		t.Fatalf("expected ErrConversationIDRequired, got %v", err)
	}
	if _, _, err := service.HandleTurn(context.Background(), "C1", "  "); !errors.Is(err, ErrMessageRequired) {
		t.Fatalf("expected ErrMessageRequired, got %v", err)
	}
}

func TestStartConversationAllocatesUniqueIDs(t *testing.T) {
	service := NewChatService(db.NewMemoryStore(), staticCompleter("ok"), zap.NewNop().Sugar())

	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		id := service.StartConversation()
		if id == "" {
			t.Fatalf("allocated an empty conversation id")
		}
		if _, dup := seen[id]; dup {
			t.Fatalf("allocated duplicate conversation id %q", id)
		}
		seen[id] = struct{}{}
	}
}
