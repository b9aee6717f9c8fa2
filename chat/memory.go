package chat

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/creastat/chatcontext"
	"github.com/creastat/chatcontext/supabase"
)

// MemoryStore keeps notes about a conversation that are replayed as system
// context on every request.
type MemoryStore interface {
	ListMemories(ctx context.Context, conversationID string, limit int) ([]supabase.Memory, error)
	AddMemory(ctx context.Context, memory supabase.Memory) error
}

// Attachment describes a file sent along with a user message.
type Attachment struct {
	Type string `json:"type"`
	URL  string `json:"url,omitempty"`
	Name string `json:"name,omitempty"`
}

// recall loads the most recent memories of a conversation and returns them
// oldest first.
func (c *Composer) recall(ctx context.Context, conversationID string) ([]supabase.Memory, error) {
	if c.memories == nil || conversationID == "" || c.opts.MemoryLimit <= 0 {
		return nil, nil
	}
	mems, err := c.memories.ListMemories(ctx, conversationID, c.opts.MemoryLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load memories: %w", err)
	}
	mems = slices.Clone(mems)
	slices.Reverse(mems)
	return mems, nil
}

func memoryMessages(mems []supabase.Memory) []chatcontext.Message {
	var out []chatcontext.Message
	for _, m := range mems {
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		out = append(out, chatcontext.NewMessage(chatcontext.RoleSystem, m.Content))
	}
	return out
}

// annotate appends a note naming each attachment to the user text.
func annotate(text string, attachments []Attachment) string {
	if len(attachments) == 0 {
		return text
	}
	notes := make([]string, 0, len(attachments))
	for _, a := range attachments {
		kind := a.Type
		if kind == "" {
			kind = "file"
		}
		notes = append(notes, fmt.Sprintf("[Attachment: %s]", kind))
	}
	return text + "\n\nAttachments: " + strings.Join(notes, " ")
}
