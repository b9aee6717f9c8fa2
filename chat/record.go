package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"github.com/sirupsen/logrus"

	"github.com/creastat/chatcontext"
	"github.com/creastat/chatcontext/session"
	"github.com/creastat/chatcontext/supabase"
)

// Turn is a completed exchange to persist.
type Turn struct {
	SessionID string
	// UserMessage should be Prepared.UserMessage so attachment notes are kept.
	UserMessage string
	Reply       string
	// SaveMemory also stores the reply as a conversation memory.
	SaveMemory bool
}

// Record appends a completed turn to the full, untrimmed history. Blank
// messages are not stored. Every write is retried with exponential backoff;
// an update that loses an optimistic-lock race is retried against a fresh
// copy. The turn is then copied to the archive and, when asked, the reply is
// kept as a memory.
func (c *Composer) Record(ctx context.Context, turn Turn) error {
	est := c.budgeter.Estimator()
	log := c.logger.WithField("session_id", turn.SessionID)

	var pending []chatcontext.Message
	if strings.TrimSpace(turn.UserMessage) != "" {
		pending = append(pending, chatcontext.NewMessage(chatcontext.RoleUser, turn.UserMessage))
	}
	if strings.TrimSpace(turn.Reply) != "" {
		pending = append(pending, chatcontext.NewMessage(chatcontext.RoleAssistant, turn.Reply))
	}
	if len(pending) < 2 {
		log.WithField("kept", len(pending)).Warn("Skipping blank messages in turn")
	}
	if len(pending) == 0 {
		return nil
	}

	var (
		appended    []session.Message
		assistantID string
	)
	err := failsafe.With(c.persistPolicy(log, "session")).WithContext(ctx).Run(func() error {
		data, err := c.sessions.Get(ctx, turn.SessionID)
		if err != nil {
			return err
		}
		if data == nil {
			return session.ErrNotFound
		}

		n := len(data.ConversationHistory)
		for _, msg := range pending {
			data.ConversationHistory = session.AppendMessage(data.ConversationHistory, msg.Role, msg.Content, est)
		}
		if err := c.sessions.Update(ctx, data); err != nil {
			return err
		}

		appended = data.ConversationHistory[n:]
		assistantID = data.AssistantID
		return nil
	})
	if err != nil {
		c.metrics.IncPersist("error")
		return fmt.Errorf("failed to record turn for session %s: %w", turn.SessionID, err)
	}
	c.metrics.IncPersist("success")

	if c.archive != nil {
		rows := make([]supabase.ConversationMessage, 0, len(appended))
		for _, msg := range appended {
			rows = append(rows, supabase.ConversationMessage{
				ID:             msg.ID,
				ConversationID: turn.SessionID,
				AssistantID:    assistantID,
				Role:           string(msg.Role),
				Content:        msg.Content,
				TokenCount:     msg.TokenCount,
				CreatedAt:      msg.Timestamp,
			})
		}
		err := failsafe.With(c.persistPolicy(log, "archive")).WithContext(ctx).Run(func() error {
			return c.archive.AppendMessages(ctx, rows)
		})
		if err != nil {
			c.metrics.IncPersist("archive_error")
			log.WithError(err).Error("Failed to archive conversation turn")
			return fmt.Errorf("failed to archive turn for session %s: %w", turn.SessionID, err)
		}
	}

	if turn.SaveMemory && c.memories != nil && strings.TrimSpace(turn.Reply) != "" {
		memory := supabase.Memory{ConversationID: turn.SessionID, Content: turn.Reply}
		err := failsafe.With(c.persistPolicy(log, "memory")).WithContext(ctx).Run(func() error {
			return c.memories.AddMemory(ctx, memory)
		})
		if err != nil {
			c.metrics.IncPersist("memory_error")
			log.WithError(err).Error("Failed to save conversation memory")
			return fmt.Errorf("failed to save memory for session %s: %w", turn.SessionID, err)
		}
	}
	return nil
}

// persistPolicy retries any failure except a missing session or a finished
// context.
func (c *Composer) persistPolicy(log logrus.FieldLogger, target string) retrypolicy.RetryPolicy[any] {
	retries := c.opts.PersistRetries
	if retries < 0 {
		retries = 0
	}

	builder := retrypolicy.NewBuilder[any]().
		HandleIf(func(_ any, err error) bool {
			return err != nil && !isPermanent(err)
		}).
		WithMaxRetries(retries).
		ReturnLastFailure().
		OnRetry(func(e failsafe.ExecutionEvent[any]) {
			log.WithFields(logrus.Fields{
				"target":  target,
				"attempt": e.Attempts(),
			}).WithError(e.LastError()).Debug("Retrying conversation write")
		})
	if c.opts.RetryDelay > 0 {
		builder = builder.WithBackoff(c.opts.RetryDelay, 10*c.opts.RetryDelay).WithJitterFactor(0.1)
	}
	return builder.Build()
}

func isPermanent(err error) bool {
	return errors.Is(err, session.ErrNotFound) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
