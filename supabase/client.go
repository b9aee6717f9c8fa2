package supabase

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/supabase-community/postgrest-go"
	"github.com/supabase-community/supabase-go"
)

const (
	assistantsTable = "assistants"
	sourcesTable    = "sources"
	messagesTable   = "conversation_messages"
	memoriesTable   = "conversation_memories"
)

// Config holds Supabase connection configuration
type Config struct {
	URL      string
	APIKey   string
	CacheTTL time.Duration // Default: 5 minutes
}

// Client implements the Store interface using Supabase
type Client struct {
	client   *supabase.Client
	cache    *cache
	cacheTTL time.Duration
}

// cache provides thread-safe caching for assistant configuration
type cache struct {
	mu          sync.RWMutex
	byToken     map[string]*cacheEntry[*Assistant]
	byAssistant map[string]*cacheEntry[[]Source]
}

type cacheEntry[T any] struct {
	value     T
	expiresAt time.Time
}

// New creates a new Supabase client
func New(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("supabase URL is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("supabase API key is required")
	}

	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = 5 * time.Minute
	}

	client, err := supabase.NewClient(cfg.URL, cfg.APIKey, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create supabase client: %w", err)
	}

	return &Client{
		client:   client,
		cacheTTL: cfg.CacheTTL,
		cache: &cache{
			byToken:     make(map[string]*cacheEntry[*Assistant]),
			byAssistant: make(map[string]*cacheEntry[[]Source]),
		},
	}, nil
}

// GetAssistantByToken retrieves an assistant by its public token
func (c *Client) GetAssistantByToken(ctx context.Context, publicToken string) (*Assistant, error) {
	if cached, ok := lookup(c.cache, c.cache.byToken, publicToken); ok {
		return cached, nil
	}

	var assistants []Assistant
	_, err := c.client.From(assistantsTable).
		Select("*", "", false).
		Eq("public_token", publicToken).
		Eq("is_active", "true").
		ExecuteTo(&assistants)
	if err != nil {
		return nil, fmt.Errorf("failed to get assistant by token: %w", err)
	}

	if len(assistants) == 0 {
		return nil, fmt.Errorf("assistant not found")
	}

	assistant := &assistants[0]
	store(c.cache, c.cache.byToken, publicToken, assistant, c.cacheTTL)
	return assistant, nil
}

// GetSourcesByAssistantID retrieves all active sources for an assistant
func (c *Client) GetSourcesByAssistantID(ctx context.Context, assistantID string) ([]Source, error) {
	if cached, ok := lookup(c.cache, c.cache.byAssistant, assistantID); ok {
		return cached, nil
	}

	var sources []Source
	_, err := c.client.From(sourcesTable).
		Select("*", "", false).
		Eq("assistant_id", assistantID).
		Eq("is_active", "true").
		ExecuteTo(&sources)
	if err != nil {
		return nil, fmt.Errorf("failed to get sources by assistant_id: %w", err)
	}

	store(c.cache, c.cache.byAssistant, assistantID, sources, c.cacheTTL)
	return sources, nil
}

// ListMessages retrieves the archived messages of a conversation, oldest first.
// Archived history is never cached.
func (c *Client) ListMessages(ctx context.Context, conversationID string) ([]ConversationMessage, error) {
	var messages []ConversationMessage
	_, err := c.client.From(messagesTable).
		Select("*", "", false).
		Eq("conversation_id", conversationID).
		Order("created_at", &postgrest.OrderOpts{Ascending: true}).
		ExecuteTo(&messages)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversation messages: %w", err)
	}
	return messages, nil
}

// AppendMessages inserts conversation turns
func (c *Client) AppendMessages(ctx context.Context, messages []ConversationMessage) error {
	if len(messages) == 0 {
		return nil
	}

	_, _, err := c.client.From(messagesTable).
		Insert(messages, false, "", "minimal", "").
		Execute()
	if err != nil {
		return fmt.Errorf("failed to append conversation messages: %w", err)
	}
	return nil
}

// ListMemories retrieves the most recent memories of a conversation, newest
// first. A non-positive limit returns nothing.
func (c *Client) ListMemories(ctx context.Context, conversationID string, limit int) ([]Memory, error) {
	if limit <= 0 {
		return nil, nil
	}

	var memories []Memory
	_, err := c.client.From(memoriesTable).
		Select("*", "", false).
		Eq("conversation_id", conversationID).
		Order("created_at", &postgrest.OrderOpts{Ascending: false}).
		Limit(limit, "").
		ExecuteTo(&memories)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversation memories: %w", err)
	}
	return memories, nil
}

// AddMemory inserts a conversation memory
func (c *Client) AddMemory(ctx context.Context, memory Memory) error {
	if strings.TrimSpace(memory.Content) == "" {
		return fmt.Errorf("memory content is required")
	}
	if memory.CreatedAt.IsZero() {
		memory.CreatedAt = time.Now().UTC()
	}

	_, _, err := c.client.From(memoriesTable).
		Insert(memory, false, "", "minimal", "").
		Execute()
	if err != nil {
		return fmt.Errorf("failed to add conversation memory: %w", err)
	}
	return nil
}

// Close closes the Supabase client
func (c *Client) Close() error {
	// Supabase client doesn't require explicit close
	return nil
}

// lookup returns a live cache entry for key
func lookup[T any](c *cache, entries map[string]*cacheEntry[T], key string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var zero T
	e, ok := entries[key]
	if !ok || !time.Now().Before(e.expiresAt) {
		return zero, false
	}
	return e.value, true
}

// store adds a value to cache
func store[T any](c *cache, entries map[string]*cacheEntry[T], key string, value T, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries[key] = &cacheEntry[T]{
		value:     value,
		expiresAt: time.Now().Add(ttl),
	}
}

// Compile-time check that Client implements Store
var _ Store = (*Client)(nil)
