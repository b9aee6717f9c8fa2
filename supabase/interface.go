package supabase

import (
	"context"
	"time"
)

// Store provides access to Supabase data for chat request preparation and
// conversation archiving.
type Store interface {
	// GetAssistantByToken retrieves an assistant by its public token
	GetAssistantByToken(ctx context.Context, publicToken string) (*Assistant, error)

	// GetSourcesByAssistantID retrieves all active knowledge sources for an assistant
	GetSourcesByAssistantID(ctx context.Context, assistantID string) ([]Source, error)

	// ListMessages retrieves the archived messages of a conversation, oldest first
	ListMessages(ctx context.Context, conversationID string) ([]ConversationMessage, error)

	// AppendMessages archives untrimmed conversation turns
	AppendMessages(ctx context.Context, messages []ConversationMessage) error

	// ListMemories retrieves up to limit memories of a conversation, newest first
	ListMemories(ctx context.Context, conversationID string, limit int) ([]Memory, error)

	// AddMemory stores a memory for a conversation
	AddMemory(ctx context.Context, memory Memory) error

	// Close closes the Supabase client and releases resources
	Close() error
}

// Assistant represents an AI assistant from the database
type Assistant struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	PublicToken   string         `json:"public_token"`
	SystemPrompt  string         `json:"system_prompt"`
	Model         string         `json:"model"`
	ContextWindow int            `json:"context_window"`
	Config        map[string]any `json:"config"`
	IsActive      bool           `json:"is_active"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// Source represents a knowledge source attached to an assistant
type Source struct {
	ID          string    `json:"id"`
	AssistantID string    `json:"assistant_id"`
	Name        string    `json:"name"`
	SourceType  string    `json:"source_type"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}

// ConversationMessage represents one archived conversation turn
type ConversationMessage struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	AssistantID    string    `json:"assistant_id,omitempty"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	TokenCount     int       `json:"token_count"`
	CreatedAt      time.Time `json:"created_at"`
}

// Memory is a note kept for a conversation and replayed as system context
type Memory struct {
	ID             string    `json:"id,omitempty"`
	ConversationID string    `json:"conversation_id"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}
