package session

import (
	"slices"
	"time"

	"github.com/creastat/chatcontext"
)

// StoreType represents the type of session store.
type StoreType string

const (
	StoreTypeMemory StoreType = "memory"
	StoreTypeRedis  StoreType = "redis"
)

// Message represents a single stored conversation turn.
type Message struct {
	ID         string           `json:"id"`
	Role       chatcontext.Role `json:"role"`
	Content    string           `json:"content"`
	TokenCount int              `json:"token_count"` // Estimated tokens
	Timestamp  time.Time        `json:"timestamp"`
}

// SessionData represents all serializable state of one conversation.
//
// ConversationHistory is the full, untrimmed history. Budgeting for a model
// request happens on a copy and is never written back.
type SessionData struct {
	ID                  string         `json:"id"`
	AssistantID         string         `json:"assistant_id"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
	Version             int64          `json:"version"` // Monotonically increasing for optimistic locking
	ConversationHistory []Message      `json:"conversation_history"`
	SystemPrompt        string         `json:"system_prompt"`
	Model               string         `json:"model"`
	ContextWindow       int            `json:"context_window"` // Model context window in tokens, 0 when unknown
	Config              map[string]any `json:"config"`
}

// Clone returns a copy that shares no slices with data.
func (data *SessionData) Clone() *SessionData {
	if data == nil {
		return nil
	}
	out := *data
	out.ConversationHistory = slices.Clone(data.ConversationHistory)
	if data.Config != nil {
		out.Config = make(map[string]any, len(data.Config))
		for k, v := range data.Config {
			out.Config[k] = v
		}
	}
	return &out
}
