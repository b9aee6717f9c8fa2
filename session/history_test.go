package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/creastat/chatcontext"
)

func TestAppendMessage(t *testing.T) {
	var history []Message
	history = AppendMessage(history, chatcontext.RoleUser, "hello world", nil)
	history = AppendMessage(history, chatcontext.RoleAssistant, "hi", chatcontext.HeuristicEstimator{})

	require.Len(t, history, 2)
	assert.Equal(t, 3, history[0].TokenCount)
	assert.Equal(t, 1, history[1].TokenCount)
	assert.NotEmpty(t, history[0].ID)
	assert.NotEqual(t, history[0].ID, history[1].ID)
	assert.False(t, history[0].Timestamp.IsZero())
	assert.Equal(t, 4, HistoryTokens(history))
}

func TestLimitHistory(t *testing.T) {
	history := []Message{{Content: "a"}, {Content: "b"}, {Content: "c"}}

	assert.Equal(t, history, LimitHistory(history, 0))
	assert.Equal(t, history, LimitHistory(history, 5))
	assert.Equal(t, []Message{{Content: "b"}, {Content: "c"}}, LimitHistory(history, 2))
}

func TestToContext(t *testing.T) {
	history := []Message{
		{Role: chatcontext.RoleUser, Content: "q", TokenCount: 1},
		{Role: chatcontext.RoleAssistant, Content: "a", TokenCount: 1},
	}
	assert.Equal(t, []chatcontext.Message{
		chatcontext.NewMessage(chatcontext.RoleUser, "q"),
		chatcontext.NewMessage(chatcontext.RoleAssistant, "a"),
	}, ToContext(history))
	assert.Empty(t, ToContext(nil))
}

func TestSessionDataClone(t *testing.T) {
	orig := &SessionData{
		ID:                  "s1",
		ConversationHistory: []Message{{Content: "a"}},
		Config:              map[string]any{"k": "v"},
	}
	clone := orig.Clone()
	clone.ConversationHistory[0].Content = "changed"
	clone.Config["k"] = "changed"

	assert.Equal(t, "a", orig.ConversationHistory[0].Content)
	assert.Equal(t, "v", orig.Config["k"])

	var nilData *SessionData
	assert.Nil(t, nilData.Clone())
}
