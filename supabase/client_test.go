package supabase

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type restStub struct {
	mu       sync.Mutex
	requests map[string]int
	inserted []ConversationMessage
	memories []Memory
	queries  []string
}

func newRestStub(t *testing.T) (*restStub, *Client) {
	t.Helper()
	stub := &restStub{requests: make(map[string]int)}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		stub.mu.Lock()
		defer stub.mu.Unlock()

		table := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
		stub.requests[r.Method+" "+table]++
		stub.queries = append(stub.queries, r.URL.RawQuery)

		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodGet && table == assistantsTable:
			_ = json.NewEncoder(w).Encode([]Assistant{{
				ID:            "asst-1",
				PublicToken:   "pub-token",
				SystemPrompt:  "You are helpful.",
				Model:         "gpt-4o-mini",
				ContextWindow: 128000,
				IsActive:      true,
			}})
		case r.Method == http.MethodGet && table == sourcesTable:
			_ = json.NewEncoder(w).Encode([]Source{{ID: "src-1", AssistantID: "asst-1", IsActive: true}})
		case r.Method == http.MethodGet && table == messagesTable:
			_ = json.NewEncoder(w).Encode([]ConversationMessage{
				{ID: "m1", ConversationID: "conv-1", Role: "user", Content: "hi"},
				{ID: "m2", ConversationID: "conv-1", Role: "assistant", Content: "hello"},
			})
		case r.Method == http.MethodPost && table == messagesTable:
			var rows []ConversationMessage
			_ = json.NewDecoder(r.Body).Decode(&rows)
			stub.inserted = append(stub.inserted, rows...)
			w.WriteHeader(http.StatusCreated)
		case r.Method == http.MethodGet && table == memoriesTable:
			_ = json.NewEncoder(w).Encode([]Memory{
				{ID: "mem-2", ConversationID: "conv-1", Content: "prefers metric units"},
				{ID: "mem-1", ConversationID: "conv-1", Content: "lives in Lisbon"},
			})
		case r.Method == http.MethodPost && table == memoriesTable:
			var mem Memory
			_ = json.NewDecoder(r.Body).Decode(&mem)
			stub.memories = append(stub.memories, mem)
			w.WriteHeader(http.StatusCreated)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)

	client, err := New(Config{URL: srv.URL, APIKey: "test-key", CacheTTL: time.Minute})
	require.NoError(t, err)
	return stub, client
}

func (s *restStub) count(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[key]
}

func TestNewValidatesConfig(t *testing.T) {
	_, err := New(Config{APIKey: "k"})
	assert.Error(t, err)
	_, err = New(Config{URL: "http://localhost"})
	assert.Error(t, err)
}

func TestGetAssistantByTokenIsCached(t *testing.T) {
	stub, client := newRestStub(t)
	ctx := context.Background()

	a, err := client.GetAssistantByToken(ctx, "pub-token")
	require.NoError(t, err)
	assert.Equal(t, "asst-1", a.ID)
	assert.Equal(t, 128000, a.ContextWindow)
	assert.Equal(t, "You are helpful.", a.SystemPrompt)

	again, err := client.GetAssistantByToken(ctx, "pub-token")
	require.NoError(t, err)
	assert.Same(t, a, again)
	assert.Equal(t, 1, stub.count("GET "+assistantsTable))
}

func TestGetSourcesByAssistantID(t *testing.T) {
	stub, client := newRestStub(t)

	sources, err := client.GetSourcesByAssistantID(context.Background(), "asst-1")
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.Equal(t, "src-1", sources[0].ID)

	_, err = client.GetSourcesByAssistantID(context.Background(), "asst-1")
	require.NoError(t, err)
	assert.Equal(t, 1, stub.count("GET "+sourcesTable))
}

func TestListMessagesIsOrderedAndUncached(t *testing.T) {
	stub, client := newRestStub(t)
	ctx := context.Background()

	msgs, err := client.ListMessages(ctx, "conv-1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "hi", msgs[0].Content)

	_, err = client.ListMessages(ctx, "conv-1")
	require.NoError(t, err)
	assert.Equal(t, 2, stub.count("GET "+messagesTable))

	stub.mu.Lock()
	defer stub.mu.Unlock()
	assert.Contains(t, stub.queries[0], "order=created_at.asc")
}

func TestAppendMessages(t *testing.T) {
	stub, client := newRestStub(t)
	ctx := context.Background()

	require.NoError(t, client.AppendMessages(ctx, nil))
	assert.Equal(t, 0, stub.count("POST "+messagesTable))

	err := client.AppendMessages(ctx, []ConversationMessage{
		{ID: "m3", ConversationID: "conv-1", Role: "user", Content: "more", TokenCount: 1},
		{ID: "m4", ConversationID: "conv-1", Role: "assistant", Content: "sure", TokenCount: 1},
	})
	require.NoError(t, err)

	stub.mu.Lock()
	defer stub.mu.Unlock()
	require.Len(t, stub.inserted, 2)
	assert.Equal(t, "m4", stub.inserted[1].ID)
}

func TestListMemoriesNewestFirst(t *testing.T) {
	stub, client := newRestStub(t)
	ctx := context.Background()

	mems, err := client.ListMemories(ctx, "conv-1", 10)
	require.NoError(t, err)
	require.Len(t, mems, 2)
	assert.Equal(t, "mem-2", mems[0].ID)

	stub.mu.Lock()
	query := stub.queries[len(stub.queries)-1]
	stub.mu.Unlock()
	assert.Contains(t, query, "order=created_at.desc")
	assert.Contains(t, query, "limit=10")

	none, err := client.ListMemories(ctx, "conv-1", 0)
	require.NoError(t, err)
	assert.Empty(t, none)
	assert.Equal(t, 1, stub.count("GET "+memoriesTable))
}

func TestAddMemory(t *testing.T) {
	stub, client := newRestStub(t)
	ctx := context.Background()

	assert.Error(t, client.AddMemory(ctx, Memory{ConversationID: "conv-1", Content: "  "}))
	assert.Equal(t, 0, stub.count("POST "+memoriesTable))

	require.NoError(t, client.AddMemory(ctx, Memory{ConversationID: "conv-1", Content: "likes tea"}))

	stub.mu.Lock()
	defer stub.mu.Unlock()
	require.Len(t, stub.memories, 1)
	assert.Equal(t, "likes tea", stub.memories[0].Content)
	assert.False(t, stub.memories[0].CreatedAt.IsZero())
}
