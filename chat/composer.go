// Package chat prepares budgeted model requests from stored conversations
// and records completed turns.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/creastat/chatcontext"
	"github.com/creastat/chatcontext/session"
	"github.com/creastat/chatcontext/supabase"
	"github.com/creastat/chatcontext/vectorstore"
)

// ErrEmptyMessage is returned when a request carries no user text.
var ErrEmptyMessage = errors.New("user message is empty")

// AssistantStore supplies assistant configuration.
type AssistantStore interface {
	GetAssistantByToken(ctx context.Context, publicToken string) (*supabase.Assistant, error)
	GetSourcesByAssistantID(ctx context.Context, assistantID string) ([]supabase.Source, error)
}

// Archive keeps a durable copy of every recorded turn.
type Archive interface {
	AppendMessages(ctx context.Context, messages []supabase.ConversationMessage) error
}

// Options tunes request preparation and persistence.
type Options struct {
	// ContextWindow is the fallback when neither session nor assistant
	// declares a window.
	ContextWindow     int
	BudgetFraction    float64
	KnowledgeTokens   int
	KnowledgeLimit    int
	KnowledgeMinScore float32
	// HistoryLimit caps how many stored messages are considered before
	// budgeting. Zero disables the cap.
	HistoryLimit int
	// MemoryLimit caps how many of the latest memories are replayed.
	MemoryLimit int
	// PersistRetries bounds the retries of each write in Record. RetryDelay
	// is the first backoff step; it doubles per attempt.
	PersistRetries int
	RetryDelay     time.Duration
}

// DefaultOptions returns the options used when none are given.
func DefaultOptions() Options {
	return Options{
		ContextWindow:     8192,
		BudgetFraction:    chatcontext.DefaultBudgetFraction,
		KnowledgeTokens:   1024,
		KnowledgeLimit:    5,
		KnowledgeMinScore: 0.3,
		MemoryLimit:       10,
		PersistRetries:    3,
		RetryDelay:        100 * time.Millisecond,
	}
}

// Composer assembles the message list sent to the completion service.
type Composer struct {
	sessions   session.Store
	assistants AssistantStore
	archive    Archive
	memories   MemoryStore
	vectors    vectorstore.VectorStore
	embedder   Embedder
	budgeter   *chatcontext.Budgeter
	metrics    *Metrics
	logger     logrus.FieldLogger
	opts       Options
}

// ComposerOption configures a Composer.
type ComposerOption func(*Composer)

// WithAssistants sets the assistant configuration source.
func WithAssistants(store AssistantStore) ComposerOption {
	return func(c *Composer) { c.assistants = store }
}

// WithArchive sets where recorded turns are archived.
func WithArchive(archive Archive) ComposerOption {
	return func(c *Composer) { c.archive = archive }
}

// WithMemories enables conversation memories.
func WithMemories(store MemoryStore) ComposerOption {
	return func(c *Composer) { c.memories = store }
}

// WithKnowledge enables retrieval of reference material.
func WithKnowledge(vectors vectorstore.VectorStore, embedder Embedder) ComposerOption {
	return func(c *Composer) {
		c.vectors = vectors
		c.embedder = embedder
	}
}

// WithBudgeter replaces the default budgeter.
func WithBudgeter(b *chatcontext.Budgeter) ComposerOption {
	return func(c *Composer) {
		if b != nil {
			c.budgeter = b
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *Metrics) ComposerOption {
	return func(c *Composer) { c.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(logger logrus.FieldLogger) ComposerOption {
	return func(c *Composer) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithOptions replaces the default options.
func WithOptions(opts Options) ComposerOption {
	return func(c *Composer) { c.opts = opts }
}

// NewComposer creates a Composer over a session store.
func NewComposer(sessions session.Store, opts ...ComposerOption) *Composer {
	c := &Composer{
		sessions: sessions,
		budgeter: chatcontext.NewBudgeter(),
		logger:   logrus.StandardLogger(),
		opts:     DefaultOptions(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Request is one incoming user turn.
type Request struct {
	// SessionID names the conversation; empty starts a new one.
	SessionID      string
	AssistantToken string
	UserMessage    string
	// Attachments are announced at the end of the user message.
	Attachments []Attachment
}

// Prepared is a budgeted request ready for the completion service.
type Prepared struct {
	SessionID   string
	AssistantID string
	Model       string
	Budget      int
	// UserMessage is the user text as sent to the model, attachment notes
	// included. Record it in place of the raw request text.
	UserMessage string
	Memories    int
	Knowledge   []vectorstore.SearchResult
	chatcontext.Result
}

// Prepare loads the conversation, adds the new user message and budgets the
// whole prompt for the model's context window. The stored history is not
// modified; call Record once the reply is known.
func (c *Composer) Prepare(ctx context.Context, req Request) (*Prepared, error) {
	if strings.TrimSpace(req.UserMessage) == "" {
		return nil, ErrEmptyMessage
	}

	var (
		data      *session.SessionData
		assistant *supabase.Assistant
		sources   []supabase.Source
		memories  []supabase.Memory
		memoryErr error
	)

	g, gctx := errgroup.WithContext(ctx)
	if req.SessionID != "" {
		g.Go(func() error {
			d, err := c.sessions.Get(gctx, req.SessionID)
			if err != nil {
				return fmt.Errorf("failed to load session %s: %w", req.SessionID, err)
			}
			data = d
			return nil
		})
	}
	if req.SessionID != "" {
		g.Go(func() error {
			// Memories are optional context; a failure is reported below.
			memories, memoryErr = c.recall(gctx, req.SessionID)
			return nil
		})
	}
	if c.assistants != nil && req.AssistantToken != "" {
		g.Go(func() error {
			a, err := c.assistants.GetAssistantByToken(gctx, req.AssistantToken)
			if err != nil {
				return fmt.Errorf("failed to load assistant: %w", err)
			}
			assistant = a
			if c.vectors == nil {
				return nil
			}
			s, err := c.assistants.GetSourcesByAssistantID(gctx, a.ID)
			if err != nil {
				return fmt.Errorf("failed to load sources for assistant %s: %w", a.ID, err)
			}
			sources = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if data == nil {
		var err error
		data, err = c.startSession(ctx, req.SessionID, assistant)
		if err != nil {
			return nil, err
		}
	}

	log := c.logger.WithField("session_id", data.ID)
	if memoryErr != nil {
		log.WithError(memoryErr).Warn("Memory load failed")
		memories = nil
	}

	results, err := c.retrieve(ctx, req.UserMessage, sources)
	if err != nil {
		// Reference material is optional; answer without it.
		log.WithError(err).Warn("Knowledge retrieval failed")
		results = nil
	}

	user := annotate(req.UserMessage, req.Attachments)
	messages := c.assemble(data, assistant, memories, results, user)
	budget := chatcontext.BudgetForWindow(c.contextWindow(data, assistant), c.opts.BudgetFraction)
	res := c.budgeter.Apply(messages, budget)
	c.metrics.ObserveBudget(res)

	fields := logrus.Fields{
		"budget":    budget,
		"memories":  len(memories),
		"tokens":    res.Tokens,
		"messages":  len(res.Messages),
		"dropped":   res.Dropped,
		"truncated": res.Truncated,
	}
	if res.Overflow {
		log.WithFields(fields).Warn("System context exceeds token budget")
	} else {
		log.WithFields(fields).Debug("Prepared chat context")
	}

	return &Prepared{
		SessionID:   data.ID,
		AssistantID: data.AssistantID,
		Model:       data.Model,
		Budget:      budget,
		UserMessage: user,
		Memories:    len(memories),
		Knowledge:   results,
		Result:      res,
	}, nil
}

// startSession creates a conversation seeded from the assistant. A racing
// creator wins and its session is returned.
func (c *Composer) startSession(ctx context.Context, id string, assistant *supabase.Assistant) (*session.SessionData, error) {
	if id == "" {
		id = uuid.NewString()
	}
	data := &session.SessionData{ID: id}
	if assistant != nil {
		data.AssistantID = assistant.ID
		data.SystemPrompt = assistant.SystemPrompt
		data.Model = assistant.Model
		data.ContextWindow = assistant.ContextWindow
	}

	err := c.sessions.Create(ctx, data)
	if errors.Is(err, session.ErrAlreadyExists) {
		existing, getErr := c.sessions.Get(ctx, id)
		if getErr != nil {
			return nil, fmt.Errorf("failed to load session %s: %w", id, getErr)
		}
		if existing != nil {
			return existing, nil
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create session %s: %w", id, err)
	}

	c.logger.WithFields(logrus.Fields{
		"session_id":   id,
		"assistant_id": data.AssistantID,
	}).Info("Started conversation")
	return data, nil
}

// assemble orders the prompt: instructions, memories, reference material,
// history, then the new user message.
func (c *Composer) assemble(data *session.SessionData, assistant *supabase.Assistant, memories []supabase.Memory, results []vectorstore.SearchResult, user string) []chatcontext.Message {
	history := session.LimitHistory(data.ConversationHistory, c.opts.HistoryLimit)
	messages := make([]chatcontext.Message, 0, len(history)+len(memories)+3)

	prompt := data.SystemPrompt
	if assistant != nil && assistant.SystemPrompt != "" {
		prompt = assistant.SystemPrompt
	}
	if prompt != "" {
		messages = append(messages, chatcontext.NewMessage(chatcontext.RoleSystem, prompt))
	}
	messages = append(messages, memoryMessages(memories)...)
	if msg, ok := knowledgeMessage(c.budgeter.Estimator(), results, c.opts.KnowledgeTokens); ok {
		messages = append(messages, msg)
	}

	messages = append(messages, session.ToContext(history)...)
	return append(messages, chatcontext.NewMessage(chatcontext.RoleUser, user))
}

// contextWindow picks the most specific declared window.
func (c *Composer) contextWindow(data *session.SessionData, assistant *supabase.Assistant) int {
	if data.ContextWindow > 0 {
		return data.ContextWindow
	}
	if assistant != nil && assistant.ContextWindow > 0 {
		return assistant.ContextWindow
	}
	return c.opts.ContextWindow
}
