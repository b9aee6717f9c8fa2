package session

import (
	"time"

	"github.com/google/uuid"

	"github.com/creastat/chatcontext"
)

// AppendMessage appends a turn to history with its estimated token count.
func AppendMessage(history []Message, role chatcontext.Role, content string, est chatcontext.Estimator) []Message {
	if est == nil {
		est = chatcontext.HeuristicEstimator{}
	}
	return append(history, Message{
		ID:         uuid.NewString(),
		Role:       role,
		Content:    content,
		TokenCount: est.Estimate(content),
		Timestamp:  time.Now(),
	})
}

// LimitHistory keeps at most the newest limit messages. A non-positive
// limit disables the cap.
func LimitHistory(history []Message, limit int) []Message {
	if limit <= 0 || len(history) <= limit {
		return history
	}
	return history[len(history)-limit:]
}

// HistoryTokens sums the stored token counts.
func HistoryTokens(history []Message) int {
	total := 0
	for _, msg := range history {
		total += msg.TokenCount
	}
	return total
}

// ToContext converts stored turns into model messages, oldest first.
func ToContext(history []Message) []chatcontext.Message {
	out := make([]chatcontext.Message, 0, len(history))
	for _, msg := range history {
		out = append(out, chatcontext.NewMessage(msg.Role, msg.Content))
	}
	return out
}
