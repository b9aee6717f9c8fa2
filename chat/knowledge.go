package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/creastat/chatcontext"
	"github.com/creastat/chatcontext/supabase"
	"github.com/creastat/chatcontext/vectorstore"
)

const knowledgeHeader = "Use the following reference material when it is relevant to the user's question."

// Embedder turns text into a query vector for the knowledge store.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// retrieve searches the knowledge store for the user's message, restricted
// to the assistant's active sources when any are known.
func (c *Composer) retrieve(ctx context.Context, query string, sources []supabase.Source) ([]vectorstore.SearchResult, error) {
	if c.vectors == nil || c.embedder == nil || c.opts.KnowledgeLimit <= 0 {
		return nil, nil
	}

	vector, err := c.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	filter := vectorstore.SearchFilter{MinScore: c.opts.KnowledgeMinScore}
	for _, src := range sources {
		filter.SourceIDs = append(filter.SourceIDs, src.ID)
	}

	results, err := c.vectors.Search(ctx, vector, filter, c.opts.KnowledgeLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to search knowledge: %w", err)
	}
	return results, nil
}

// knowledgeMessage renders search results as one system message capped at
// maxTokens. It reports false when there is nothing to add.
func knowledgeMessage(est chatcontext.Estimator, results []vectorstore.SearchResult, maxTokens int) (chatcontext.Message, bool) {
	if maxTokens <= 0 {
		return chatcontext.Message{}, false
	}

	var b strings.Builder
	n := 0
	for _, r := range results {
		content := strings.TrimSpace(r.Content)
		if content == "" {
			continue
		}
		n++
		if n == 1 {
			b.WriteString(knowledgeHeader)
		}
		fmt.Fprintf(&b, "\n\n[%d] %s", n, content)
	}
	if n == 0 {
		return chatcontext.Message{}, false
	}

	text := chatcontext.TruncateWith(est, b.String(), maxTokens, chatcontext.TruncationMarker)
	return chatcontext.NewMessage(chatcontext.RoleSystem, text), true
}
