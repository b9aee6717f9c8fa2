package config

import (
	"fmt"
	"time"

	"github.com/creastat/chatcontext"
	"github.com/creastat/chatcontext/session"
)

// Config is the runtime configuration for preparing chat requests.
type Config struct {
	StoreType session.StoreType
	RedisURL  string
	RedisTTL  time.Duration
	// KeyPrefix namespaces conversation keys in redis.
	KeyPrefix string

	SupabaseURL      string
	SupabaseKey      string
	SupabaseCacheTTL time.Duration

	QdrantURL        string
	QdrantCollection string
	QdrantAPIKey     string

	// Embedding settings are used only when QdrantURL is set.
	EmbeddingURL   string
	EmbeddingKey   string
	EmbeddingModel string

	MemoryLimit int
	// SaveMemory makes recorded replies conversation memories by default.
	SaveMemory bool

	// ContextWindow is used when neither the session nor the assistant
	// declares one.
	ContextWindow   int
	BudgetFraction  float64
	KnowledgeTokens int
	KnowledgeLimit  int
	KnowledgeScore  float64
	HistoryLimit    int
	Tokenizer       string
	PersistRetries  int
}

// Load reads the configuration from the process environment.
func Load() Config {
	return Config{
		StoreType: session.StoreType(GetEnv("SESSION_STORE", string(session.StoreTypeMemory))),
		RedisURL:  GetEnv("REDIS_URL", "redis://localhost:6379/0"),
		RedisTTL:  GetEnvDuration("SESSION_TTL", 24*time.Hour),
		KeyPrefix: GetEnv("SESSION_KEY_PREFIX", "session:"),

		SupabaseURL:      GetEnv("SUPABASE_URL", ""),
		SupabaseKey:      GetEnv("SUPABASE_API_KEY", ""),
		SupabaseCacheTTL: GetEnvDuration("SUPABASE_CACHE_TTL", 5*time.Minute),

		QdrantURL:        GetEnv("QDRANT_URL", ""),
		QdrantCollection: GetEnv("QDRANT_COLLECTION", "knowledge"),
		QdrantAPIKey:     GetEnv("QDRANT_API_KEY", ""),

		EmbeddingURL:   GetEnv("EMBEDDING_API_URL", "https://api.openai.com/v1"),
		EmbeddingKey:   GetEnv("EMBEDDING_API_KEY", ""),
		EmbeddingModel: GetEnv("EMBEDDING_MODEL", "text-embedding-3-small"),

		MemoryLimit: GetEnvInt("MEMORY_LIMIT", 10),
		SaveMemory:  GetEnvBool("MEMORY_SAVE_REPLIES", false),

		ContextWindow:   GetEnvInt("CONTEXT_WINDOW", 8192),
		BudgetFraction:  GetEnvFloat("CONTEXT_BUDGET_FRACTION", chatcontext.DefaultBudgetFraction),
		KnowledgeTokens: GetEnvInt("KNOWLEDGE_MAX_TOKENS", 1024),
		KnowledgeLimit:  GetEnvInt("KNOWLEDGE_RESULTS", 5),
		KnowledgeScore:  GetEnvFloat("KNOWLEDGE_MIN_SCORE", 0.3),
		HistoryLimit:    GetEnvInt("HISTORY_MESSAGE_LIMIT", 0),
		Tokenizer:       GetEnv("TOKENIZER", "heuristic"),
		PersistRetries:  GetEnvInt("PERSIST_MAX_RETRIES", 3),
	}
}

// Validate reports configuration that cannot work.
func (c Config) Validate() error {
	switch c.StoreType {
	case session.StoreTypeMemory:
	case session.StoreTypeRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("%w: REDIS_URL is required for the redis store", session.ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: %q", session.ErrInvalidStoreType, c.StoreType)
	}
	if c.ContextWindow <= 0 {
		return fmt.Errorf("%w: CONTEXT_WINDOW must be positive", session.ErrInvalidConfig)
	}
	if c.BudgetFraction <= 0 || c.BudgetFraction > 1 {
		return fmt.Errorf("%w: CONTEXT_BUDGET_FRACTION must be in (0, 1]", session.ErrInvalidConfig)
	}
	if c.QdrantURL != "" && c.QdrantCollection == "" {
		return fmt.Errorf("%w: QDRANT_COLLECTION is required with QDRANT_URL", session.ErrInvalidConfig)
	}
	switch c.Tokenizer {
	case "", "heuristic", "tiktoken":
	default:
		return fmt.Errorf("%w: unknown TOKENIZER %q", session.ErrInvalidConfig, c.Tokenizer)
	}
	if (c.SupabaseURL == "") != (c.SupabaseKey == "") {
		return fmt.Errorf("%w: SUPABASE_URL and SUPABASE_API_KEY must be set together", session.ErrInvalidConfig)
	}
	return nil
}

// Budget returns the default prompt budget derived from ContextWindow.
func (c Config) Budget() int {
	return chatcontext.BudgetForWindow(c.ContextWindow, c.BudgetFraction)
}
