package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/mindtek/leadchat/config"
	"github.com/mindtek/leadchat/db/models"
)

func newTestClient(baseURL string) *OpenAIClient {
	return NewOpenAIClient(config.OpenAIConfig{
		BaseURL: baseURL,
		APIKey:  "test-key",
		Model:   "gpt-4.1-mini",
		Timeout: 5 * time.Second,
	}, zap.NewNop().Sugar())
}

func TestCompleteExtractsChoiceContent(t *testing.T) {
	var gotPath, gotAuth string
	var gotPayload completionAPIRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotPayload); err != nil {
			t.Errorf("decode request payload: %v", err)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"index":0,"message":{"role":"assistant","content":"Hello there!"}}]}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	reply, err := client.Complete(context.Background(), []models.Turn{
		{Role: models.RoleSystem, Content: "Be brief."},
		{Role: models.RoleUser, Content: "Hi"},
	})
	if err != nil {
		t.Fatalf("complete failed: %v", err)
	}

	if reply != "Hello there!" {
		t.Fatalf("expected choice content, got %q", reply)
	}
	if gotPath != "/chat/completions" {
		t.Fatalf("unexpected request path %q", gotPath)
	}
	if gotAuth != "Bearer test-key" {
		t.Fatalf("unexpected authorization header %q", gotAuth)
	}
	if gotPayload.Model != "gpt-4.1-mini" || len(gotPayload.Messages) != 2 {
		t.Fatalf("unexpected request payload: %+v", gotPayload)
	}
}

func TestCompleteAPIErrorEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"code":"invalid_api_key","message":"Incorrect API key provided"}}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	_, err := client.Complete(context.Background(), []models.Turn{{Role: models.RoleUser, Content: "Hi"}})
	if err == nil {
		t.Fatalf("expected error for non-2xx response")
	}
	if !strings.Contains(err.Error(), "Incorrect API key provided") {
		t.Fatalf("expected provider message in error, got %v", err)
	}
}

func TestCompleteEmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	_, err := client.Complete(context.Background(), []models.Turn{{Role: models.RoleUser, Content: "Hi"}})
	if err == nil || !strings.Contains(err.Error(), "no choices") {
		t.Fatalf("expected no-choices error, got %v", err)
	}
}

func TestCompleteRequiresAPIKey(t *testing.T) {
	client := NewOpenAIClient(config.OpenAIConfig{BaseURL: "http://localhost:0"}, zap.NewNop().Sugar())

	_, err := client.Complete(context.Background(), []models.Turn{{Role: models.RoleUser, Content: "Hi"}})
	if err == nil || !strings.Contains(err.Error(), "api key") {
		t.Fatalf("expected api key error, got %v", err)
	}
}
