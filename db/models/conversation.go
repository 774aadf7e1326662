package models

import (
	"errors"
	"strings"
	"time"
)

// Roles for conversation turns. The system turn is synthesized at prompt
// assembly time and is never written to the store.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Lead quality classifications. The model assigns the value; the service only
// checks membership.
const (
	LeadQualityGood = "good"
	LeadQualityOK   = "ok"
	LeadQualitySpam = "spam"
)

var (
	ErrMissingCustomerName    = errors.New("customerName is required")
	ErrMissingCustomerEmail   = errors.New("customerEmail is required")
	ErrMissingCustomerProblem = errors.New("customerProblem is required")
	ErrInvalidLeadQuality     = errors.New("leadQuality must be one of good, ok, spam")
)

// Turn is a single role-tagged utterance within a conversation.
type Turn struct {
	Role    string `json:"role" bson:"role"`
	Content string `json:"content" bson:"content"`
}

// LeadRecord is the structured customer information extracted from a finished
// transcript. Field names mirror the extraction schema sent to the model.
type LeadRecord struct {
	CustomerName         string `json:"customerName" bson:"customer_name"`
	CustomerEmail        string `json:"customerEmail" bson:"customer_email"`
	CustomerPhone        string `json:"customerPhone,omitempty" bson:"customer_phone,omitempty"`
	CustomerIndustry     string `json:"customerIndustry,omitempty" bson:"customer_industry,omitempty"`
	CustomerProblem      string `json:"customerProblem" bson:"customer_problem"`
	CustomerAvailability string `json:"customerAvailability,omitempty" bson:"customer_availability,omitempty"`
	CustomerConsultation bool   `json:"customerConsultation" bson:"customer_consultation"`
	SpecialNotes         string `json:"specialNotes,omitempty" bson:"special_notes,omitempty"`
	LeadQuality          string `json:"leadQuality" bson:"lead_quality"`
}

// Validate checks the required subset of the extraction schema. A record that
// fails validation must never be persisted.
func (r *LeadRecord) Validate() error {
	if strings.TrimSpace(r.CustomerName) == "" {
		return ErrMissingCustomerName
	}
	if strings.TrimSpace(r.CustomerEmail) == "" {
		return ErrMissingCustomerEmail
	}
	if strings.TrimSpace(r.CustomerProblem) == "" {
		return ErrMissingCustomerProblem
	}
	switch r.LeadQuality {
	case LeadQualityGood, LeadQualityOK, LeadQualitySpam:
		return nil
	default:
		return ErrInvalidLeadQuality
	}
}

// ConversationSummary is the projection returned by the listing surface. The
// lead fields stay empty until extraction has run for the conversation.
type ConversationSummary struct {
	ConversationID       string    `json:"conversation_id" bson:"_id"`
	CreatedAt            time.Time `json:"created_at" bson:"created_at"`
	CustomerIndustry     string    `json:"customerIndustry,omitempty" bson:"customer_industry,omitempty"`
	CustomerConsultation *bool     `json:"customerConsultation,omitempty" bson:"customer_consultation,omitempty"`
	LeadQuality          string    `json:"leadQuality,omitempty" bson:"lead_quality,omitempty"`
}
