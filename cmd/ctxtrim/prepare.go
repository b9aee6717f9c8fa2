package main

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/creastat/chatcontext"
	"github.com/creastat/chatcontext/chat"
	"github.com/creastat/chatcontext/config"
	"github.com/creastat/chatcontext/embedding"
	"github.com/creastat/chatcontext/logging"
	"github.com/creastat/chatcontext/session"
	"github.com/creastat/chatcontext/session/drivers"
	"github.com/creastat/chatcontext/supabase"
	"github.com/creastat/chatcontext/vectorstore/qdrant"
)

func newPrepareCmd() *cobra.Command {
	var (
		req         chat.Request
		attachments []string
	)

	cmd := &cobra.Command{
		Use:   "prepare",
		Short: "Build the budgeted request for a stored conversation",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, kind := range attachments {
				req.Attachments = append(req.Attachments, chat.Attachment{Type: kind})
			}

			composer, closeAll, err := openComposer(cmd, config.Load())
			if err != nil {
				return err
			}
			defer closeAll()

			prepared, err := composer.Prepare(context.Background(), req)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), prepared)
		},
	}

	cmd.Flags().StringVar(&req.SessionID, "session", "", "conversation id; empty starts a new one")
	cmd.Flags().StringVar(&req.AssistantToken, "assistant", "", "assistant public token")
	cmd.Flags().StringVarP(&req.UserMessage, "message", "m", "", "new user message")
	cmd.Flags().StringSliceVar(&attachments, "attach", nil, "attachment types announced with the message")
	_ = cmd.MarkFlagRequired("message")
	return cmd
}

func newRecordCmd() *cobra.Command {
	var turn chat.Turn

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Append a completed turn to a stored conversation",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			composer, closeAll, err := openComposer(cmd, cfg)
			if err != nil {
				return err
			}
			defer closeAll()

			if !cmd.Flags().Changed("save-memory") {
				turn.SaveMemory = cfg.SaveMemory
			}
			if err := composer.Record(context.Background(), turn); err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), map[string]string{"session_id": turn.SessionID})
		},
	}

	cmd.Flags().StringVar(&turn.SessionID, "session", "", "conversation id")
	cmd.Flags().StringVarP(&turn.UserMessage, "message", "m", "", "user message as sent to the model")
	cmd.Flags().StringVarP(&turn.Reply, "reply", "r", "", "assistant reply")
	cmd.Flags().BoolVar(&turn.SaveMemory, "save-memory", false, "keep the reply as a conversation memory (default MEMORY_SAVE_REPLIES)")
	_ = cmd.MarkFlagRequired("session")
	return cmd
}

// openComposer wires a Composer from the environment. The returned function
// releases every client it opened.
func openComposer(cmd *cobra.Command, cfg config.Config) (*chat.Composer, func(), error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	est, err := estimatorFlag(cmd)
	if err != nil {
		return nil, nil, err
	}

	var closers []func() error
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i]()
		}
	}

	store, err := openStore(cfg)
	if err != nil {
		return nil, nil, err
	}
	closers = append(closers, store.Close)

	opts := []chat.ComposerOption{
		chat.WithLogger(logging.NewLoggerWithService("ctxtrim")),
		chat.WithBudgeter(chatcontext.NewBudgeter(chatcontext.WithEstimator(est))),
		chat.WithOptions(composerOptions(cfg)),
	}

	if cfg.SupabaseURL != "" {
		sb, err := supabase.New(supabase.Config{URL: cfg.SupabaseURL, APIKey: cfg.SupabaseKey, CacheTTL: cfg.SupabaseCacheTTL})
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		closers = append(closers, sb.Close)
		opts = append(opts, chat.WithAssistants(sb), chat.WithArchive(sb), chat.WithMemories(sb))
	}

	knowledge, err := openKnowledge(cfg)
	if err != nil {
		closeAll()
		return nil, nil, err
	}
	if knowledge != nil {
		closers = append(closers, knowledge.vectors.Close)
		opts = append(opts, chat.WithKnowledge(knowledge.vectors, knowledge.embedder))
	}

	return chat.NewComposer(store, opts...), closeAll, nil
}

type knowledgeClients struct {
	vectors  *qdrant.Client
	embedder *embedding.Client
}

// openKnowledge connects the vector store and the embedder. Retrieval is
// disabled without QDRANT_URL.
func openKnowledge(cfg config.Config) (*knowledgeClients, error) {
	if cfg.QdrantURL == "" {
		return nil, nil
	}
	embedder, err := embedding.New(embedding.Config{
		BaseURL: cfg.EmbeddingURL,
		APIKey:  cfg.EmbeddingKey,
		Model:   cfg.EmbeddingModel,
	})
	if err != nil {
		return nil, err
	}
	vectors, err := qdrant.New(qdrant.Config{
		URL:            cfg.QdrantURL,
		CollectionName: cfg.QdrantCollection,
		APIKey:         cfg.QdrantAPIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect knowledge store: %w", err)
	}
	return &knowledgeClients{vectors: vectors, embedder: embedder}, nil
}

func openStore(cfg config.Config) (session.Store, error) {
	if cfg.StoreType != session.StoreTypeRedis {
		return drivers.NewStore(cfg.StoreType)
	}
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	return drivers.NewStore(cfg.StoreType,
		drivers.WithRedisClient(redis.NewClient(redisOpts)),
		drivers.WithRedisTTL(cfg.RedisTTL),
		drivers.WithKeyPrefix(cfg.KeyPrefix),
	)
}

func composerOptions(cfg config.Config) chat.Options {
	opts := chat.DefaultOptions()
	opts.ContextWindow = cfg.ContextWindow
	opts.BudgetFraction = cfg.BudgetFraction
	opts.KnowledgeTokens = cfg.KnowledgeTokens
	opts.KnowledgeLimit = cfg.KnowledgeLimit
	opts.KnowledgeMinScore = float32(cfg.KnowledgeScore)
	opts.HistoryLimit = cfg.HistoryLimit
	opts.MemoryLimit = cfg.MemoryLimit
	opts.PersistRetries = cfg.PersistRetries
	return opts
}
