package db

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mindtek/leadchat/db/models"
)

type memoryRecord struct {
	createdAt time.Time
	turns     []models.Turn
	lead      *models.LeadRecord
}

// MemoryStore keeps conversations in a mutex-guarded map. It backs the unit
// tests and local development without external services.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*memoryRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*memoryRecord)}
}

func (s *MemoryStore) GetTurns(ctx context.Context, conversationID string) ([]models.Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[conversationID]
	if !ok {
		return nil, ErrNotFound
	}

	return append([]models.Turn(nil), rec.turns...), nil
}

func (s *MemoryStore) UpsertTurns(ctx context.Context, conversationID string, turns []models.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[conversationID]
	if !ok {
		rec = &memoryRecord{createdAt: time.Now().UTC()}
		s.records[conversationID] = rec
	}

	rec.turns = append([]models.Turn(nil), turns...)
	return nil
}

func (s *MemoryStore) SetLead(ctx context.Context, conversationID string, lead models.LeadRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[conversationID]
	if !ok {
		return ErrNotFound
	}

	rec.lead = &lead
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records, conversationID)
	return nil
}

func (s *MemoryStore) List(ctx context.Context) ([]models.ConversationSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summaries := make([]models.ConversationSummary, 0, len(s.records))
	for id, rec := range s.records {
		summary := models.ConversationSummary{
			ConversationID: id,
			CreatedAt:      rec.createdAt,
		}
		if rec.lead != nil {
			consultation := rec.lead.CustomerConsultation
			summary.CustomerIndustry = rec.lead.CustomerIndustry
			summary.CustomerConsultation = &consultation
			summary.LeadQuality = rec.lead.LeadQuality
		}
		summaries = append(summaries, summary)
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].CreatedAt.After(summaries[j].CreatedAt)
	})

	return summaries, nil
}

func (s *MemoryStore) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = nil
	return nil
}
