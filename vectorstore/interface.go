package vectorstore

import "context"

// VectorStore is a technology-agnostic interface for vector similarity search
// over an assistant's knowledge sources.
type VectorStore interface {
	// Search performs vector similarity search with optional filtering.
	Search(ctx context.Context, vector []float32, filter SearchFilter, limit int) ([]SearchResult, error)

	// Close releases any resources held by the vector store.
	Close() error
}

// SearchFilter defines filtering options for vector search.
type SearchFilter struct {
	// SourceID filters results to a single source.
	SourceID string

	// SourceIDs filters results to any of several sources. Takes precedence
	// over SourceID.
	SourceIDs []string

	// Metadata filters results by metadata key-value pairs.
	Metadata map[string]any

	// MinScore filters results below this similarity threshold (0.0-1.0).
	MinScore float32
}

// SearchResult represents a single result from vector similarity search.
type SearchResult struct {
	ID         string
	Score      float32
	Content    string
	SourceID   string
	DocumentID string
	Metadata   map[string]any
}
