package core

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/bwmarrin/snowflake"

	"github.com/engram-ai/engram-go/pkg/assembler"
	"github.com/engram-ai/engram-go/pkg/classifier"
	"github.com/engram-ai/engram-go/pkg/decay"
	"github.com/engram-ai/engram-go/pkg/embedder"
	openaiEmbedder "github.com/engram-ai/engram-go/pkg/embedder/openai"
	"github.com/engram-ai/engram-go/pkg/retrieval"
	"github.com/engram-ai/engram-go/pkg/storage"
	"github.com/engram-ai/engram-go/pkg/storage/inmemory"
	mysqlStore "github.com/engram-ai/engram-go/pkg/storage/mysql"
	postgresStore "github.com/engram-ai/engram-go/pkg/storage/postgres"
	sqliteStore "github.com/engram-ai/engram-go/pkg/storage/sqlite"
)

// Engine is the main Engram engine for semantic memory management.
//
// It provides a complete interface for storing, searching, and assembling
// memories with support for:
//   - Heuristic classification of incoming text
//   - Vector similarity search with hybrid ranking
//   - Degraded keyword search when embeddings are unavailable
//   - Token-budgeted context assembly
//   - Time-based importance decay
//
// The engine is safe for concurrent use and is meant to be constructed once
// per process and passed by reference to callers.
//
// Example usage:
//
//	config, _ := core.LoadConfigFromEnv()
//	engine, _ := core.NewEngine(config)
//	defer engine.Close()
//
//	record, _ := engine.StoreMemory(ctx, "user_001", "I prefer dark mode",
//	    core.WithSource(core.SourceConversation),
//	)
type Engine struct {
	// config contains the engine configuration.
	config *Config

	// store is the storage backend for memory persistence.
	store storage.Store

	// provider is the embedding provider chain (cache over breaker over
	// the concrete client).
	provider embedder.Provider

	// retrieval scores and ranks memories.
	retrieval *retrieval.Engine

	// assembler builds token-budgeted context blocks.
	assembler *assembler.Assembler

	// scheduler ages importance and deactivates stale memories.
	scheduler *decay.Scheduler

	// node generates unique IDs for memories.
	node *snowflake.Node
}

// NewEngine creates a new Engram engine.
//
// The engine is initialized with:
//   - Storage backend (SQLite, PostgreSQL, MySQL, or in-memory)
//   - Embedding provider wrapped in a circuit breaker and an LRU cache
//   - Retrieval engine, context assembler and decay scheduler
//
// Parameters:
//   - cfg: Configuration containing storage, embedding, and tuning settings
//
// Returns a new Engine instance, or an error if initialization fails.
func NewEngine(cfg *Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	store, err := initStore(cfg.Store)
	if err != nil {
		return nil, NewEngineError("NewEngine", err)
	}

	provider, err := initEmbedder(cfg.Embedder)
	if err != nil {
		return nil, NewEngineError("NewEngine", err)
	}

	return NewEngineWith(cfg, store, provider)
}

// NewEngineWith creates an engine over an already-constructed store and
// embedding provider. Intended for injection and testing with fakes.
func NewEngineWith(cfg *Config, store storage.Store, provider embedder.Provider) (*Engine, error) {
	retrievalCfg := retrieval.Config{
		MinSimilarity: cfg.Retrieval.MinSimilarity,
		Reinforcement: cfg.Retrieval.ReinforcementFactor,
	}
	if cfg.Retrieval.Weights != nil {
		retrievalCfg.Weights = retrieval.Weights{
			Similarity: cfg.Retrieval.Weights.Similarity,
			Importance: cfg.Retrieval.Weights.Importance,
			Recency:    cfg.Retrieval.Weights.Recency,
			Frequency:  cfg.Retrieval.Weights.Frequency,
			Keyword:    cfg.Retrieval.Weights.Keyword,
		}
	}

	retrievalEngine, err := retrieval.NewEngine(store, provider, retrievalCfg)
	if err != nil {
		return nil, NewEngineError("NewEngine", err)
	}

	topK := cfg.Retrieval.TopK
	if topK == 0 {
		topK = 10
	}

	asm := assembler.NewAssembler(store, retrievalEngine, assembler.Config{
		ProfileBudget:  cfg.Context.ProfileBudget,
		MemoriesBudget: cfg.Context.MemoriesBudget,
		HistoryBudget:  cfg.Context.HistoryBudget,
		TopK:           topK,
	})

	scheduler := decay.NewScheduler(store, decay.Config{
		StalenessWindow: time.Duration(cfg.Decay.StalenessWindowHours) * time.Hour,
		Attenuation:     cfg.Decay.Attenuation,
		Floor:           cfg.Decay.Floor,
		DeactivateBelow: cfg.Decay.DeactivateBelow,
		Interval:        time.Duration(cfg.Decay.IntervalMinutes) * time.Minute,
	})

	node, err := snowflake.NewNode(1)
	if err != nil {
		return nil, NewEngineError("NewEngine", err)
	}

	return &Engine{
		config:    cfg,
		store:     store,
		provider:  provider,
		retrieval: retrievalEngine,
		assembler: asm,
		scheduler: scheduler,
		node:      node,
	}, nil
}

// StoreMemory classifies, embeds and persists a new memory.
//
// The method:
//  1. Classifies the content to propose a type, importance and keywords
//  2. Applies explicit option overrides (type, importance, source, context)
//  3. Generates the embedding vector
//  4. Persists the record with a generated ID
//
// A memory cannot exist without its embedding, so an embedding failure here
// propagates as ErrEmbeddingUnavailable rather than degrading.
//
// Parameters:
//   - ctx: Context for cancellation
//   - userID: Owner of the memory (required)
//   - content: Memory content (required)
//   - opts: Optional overrides (WithType, WithImportance, WithSource, ...)
//
// Returns the created MemoryRecord, or an error if the operation fails.
//
// Example:
//
//	record, err := engine.StoreMemory(ctx, "user_001", "I prefer dark mode",
//	    core.WithSource(core.SourceConversation),
//	    core.WithContextRef("session_42", "msg_7"),
//	)
func (e *Engine) StoreMemory(ctx context.Context, userID, content string, opts ...StoreOption) (*MemoryRecord, error) {
	if userID == "" || content == "" {
		return nil, NewEngineError("StoreMemory", ErrInvalidRecord)
	}

	options := applyStoreOptions(opts)
	if err := options.validate(); err != nil {
		return nil, NewEngineError("StoreMemory", err)
	}

	cls := classifier.Classify(content)
	memoryType := cls.Category
	importance := cls.Importance
	if options.Type != "" {
		memoryType = options.Type
		importance = classifier.DefaultImportance(options.Type)
	}
	if options.Importance != nil {
		importance = *options.Importance
	}

	embedding, err := e.provider.Embed(ctx, content)
	if err != nil {
		return nil, NewEngineError("StoreMemory", errors.Join(ErrEmbeddingUnavailable, err))
	}

	record := &MemoryRecord{
		ID:          e.node.Generate().Int64(),
		UserID:      userID,
		Type:        memoryType,
		Content:     content,
		Summary:     options.Summary,
		Keywords:    cls.Keywords,
		Embedding:   embedding,
		Importance:  importance,
		Confidence:  confidenceFor(options.Source),
		Source:      options.Source,
		Context:     options.Context,
		CreatedAt:   time.Now(),
		DecayFactor: 1.0,
		IsActive:    true,
	}

	if err := e.store.Create(ctx, toStorageRecord(record)); err != nil {
		return nil, NewEngineError("StoreMemory", mapStoreError(err))
	}

	return record, nil
}

// StoreMemoryBatch stores several memories for one user in a single
// embedding round trip.
//
// Each content is classified independently; the shared options apply to all
// of them. Embedding the whole batch fails or succeeds as one unit.
func (e *Engine) StoreMemoryBatch(ctx context.Context, userID string, contents []string, opts ...StoreOption) ([]*MemoryRecord, error) {
	if userID == "" || len(contents) == 0 {
		return nil, NewEngineError("StoreMemoryBatch", ErrInvalidRecord)
	}
	for _, content := range contents {
		if content == "" {
			return nil, NewEngineError("StoreMemoryBatch", ErrInvalidRecord)
		}
	}

	options := applyStoreOptions(opts)
	if err := options.validate(); err != nil {
		return nil, NewEngineError("StoreMemoryBatch", err)
	}

	embeddings, err := e.provider.EmbedBatch(ctx, contents)
	if err != nil {
		return nil, NewEngineError("StoreMemoryBatch", errors.Join(ErrEmbeddingUnavailable, err))
	}

	records := make([]*MemoryRecord, 0, len(contents))
	for i, content := range contents {
		cls := classifier.Classify(content)
		memoryType := cls.Category
		importance := cls.Importance
		if options.Type != "" {
			memoryType = options.Type
			importance = classifier.DefaultImportance(options.Type)
		}
		if options.Importance != nil {
			importance = *options.Importance
		}

		record := &MemoryRecord{
			ID:          e.node.Generate().Int64(),
			UserID:      userID,
			Type:        memoryType,
			Content:     content,
			Keywords:    cls.Keywords,
			Embedding:   embeddings[i],
			Importance:  importance,
			Confidence:  confidenceFor(options.Source),
			Source:      options.Source,
			Context:     options.Context,
			CreatedAt:   time.Now(),
			DecayFactor: 1.0,
			IsActive:    true,
		}

		if err := e.store.Create(ctx, toStorageRecord(record)); err != nil {
			return records, NewEngineError("StoreMemoryBatch", mapStoreError(err))
		}
		records = append(records, record)
	}

	return records, nil
}

// SearchMemories returns the user's memories ranked against query.
//
// Embedding failures never fail the call: the search degrades to keyword
// matching. Use SearchMemoriesResult to observe the Degraded flag.
//
// Parameters:
//   - ctx: Context for cancellation
//   - userID: Owner whose memories are searched
//   - query: Search query text
//   - opts: Optional parameters (WithTopK)
//
// Returns ranked memories, best match first.
func (e *Engine) SearchMemories(ctx context.Context, userID, query string, opts ...SearchOption) ([]*MemoryRecord, error) {
	result, err := e.SearchMemoriesResult(ctx, userID, query, opts...)
	if err != nil {
		return nil, err
	}
	return result.Records, nil
}

// SearchMemoriesResult is SearchMemories with access to the Degraded flag.
func (e *Engine) SearchMemoriesResult(ctx context.Context, userID, query string, opts ...SearchOption) (*SearchResult, error) {
	options := applySearchOptions(opts)
	topK := options.TopK
	if topK == 0 {
		topK = e.config.Retrieval.TopK
	}
	if topK == 0 {
		topK = 10
	}

	result, err := e.retrieval.Search(ctx, userID, query, topK)
	if err != nil {
		return nil, NewEngineError("SearchMemories", mapStoreError(err))
	}

	records := make([]*MemoryRecord, len(result.Matches))
	for i, m := range result.Matches {
		record := fromStorageRecord(m.Record)
		record.Score = m.Score
		records[i] = record
	}

	return &SearchResult{Records: records, Degraded: result.Degraded}, nil
}

// BuildContext assembles a token-budgeted context block for userID's query.
//
// The block contains up to three tiers: high-importance profile facts,
// relevant memories, and recent conversation turns. Degraded retrieval still
// produces a context.
func (e *Engine) BuildContext(ctx context.Context, userID, query string, history []Turn) (string, error) {
	text, err := e.assembler.BuildContext(ctx, userID, query, history)
	if err != nil {
		return "", NewEngineError("BuildContext", mapStoreError(err))
	}
	return text, nil
}

// RunDecayPass executes one decay pass and returns its statistics.
func (e *Engine) RunDecayPass(ctx context.Context) (*decay.PassStats, error) {
	stats, err := e.scheduler.RunPass(ctx)
	if err != nil {
		return nil, NewEngineError("RunDecayPass", mapStoreError(err))
	}
	return stats, nil
}

// StartDecay runs periodic decay passes in the background until ctx ends.
func (e *Engine) StartDecay(ctx context.Context) {
	go e.scheduler.Run(ctx)
	log.Printf("[engine] background decay started")
}

// Get retrieves a memory by ID, active or not.
func (e *Engine) Get(ctx context.Context, id int64) (*MemoryRecord, error) {
	record, err := e.store.Get(ctx, id)
	if err != nil {
		return nil, NewEngineError("Get", mapStoreError(err))
	}
	return fromStorageRecord(record), nil
}

// SetActive flips a memory's active flag. Deactivated memories stay stored
// for audit/export until explicitly purged.
func (e *Engine) SetActive(ctx context.Context, id int64, active bool) error {
	if err := e.store.SetActive(ctx, id, active); err != nil {
		return NewEngineError("SetActive", mapStoreError(err))
	}
	return nil
}

// Purge physically deletes a memory. This is the only operation that
// removes data.
func (e *Engine) Purge(ctx context.Context, id int64) error {
	if err := e.store.Purge(ctx, id); err != nil {
		return NewEngineError("Purge", mapStoreError(err))
	}
	return nil
}

// Close releases the engine's resources: the retrieval toucher is drained,
// then the embedding provider and the store are closed.
func (e *Engine) Close() error {
	var firstErr error
	if err := e.retrieval.Close(); err != nil {
		firstErr = err
	}
	if err := e.provider.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := e.store.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return NewEngineError("Close", firstErr)
}

// initStore creates the storage backend named by the configuration.
func initStore(cfg StoreConfig) (storage.Store, error) {
	switch cfg.Provider {
	case "sqlite":
		return sqliteStore.NewClient(&sqliteStore.Config{
			DBPath:    getStringConfig(cfg.Config, "db_path", "./engram.db"),
			TableName: getStringConfig(cfg.Config, "table_name", "memories"),
		})
	case "postgres":
		return postgresStore.NewClient(&postgresStore.Config{
			Host:       getStringConfig(cfg.Config, "host", "localhost"),
			Port:       getIntConfig(cfg.Config, "port", 5432),
			User:       getStringConfig(cfg.Config, "user", "postgres"),
			Password:   getStringConfig(cfg.Config, "password", ""),
			DBName:     getStringConfig(cfg.Config, "db_name", "engram"),
			TableName:  getStringConfig(cfg.Config, "table_name", "memories"),
			Dimensions: getIntConfig(cfg.Config, "dimensions", 1536),
			SSLMode:    getStringConfig(cfg.Config, "ssl_mode", "disable"),
		})
	case "mysql":
		return mysqlStore.NewClient(&mysqlStore.Config{
			Host:      getStringConfig(cfg.Config, "host", "127.0.0.1"),
			Port:      getIntConfig(cfg.Config, "port", 3306),
			User:      getStringConfig(cfg.Config, "user", "root"),
			Password:  getStringConfig(cfg.Config, "password", ""),
			DBName:    getStringConfig(cfg.Config, "db_name", "engram"),
			TableName: getStringConfig(cfg.Config, "table_name", "memories"),
		})
	case "memory":
		return inmemory.NewStore(), nil
	default:
		return nil, ErrInvalidConfig
	}
}

// initEmbedder creates the embedding provider chain: the concrete client,
// wrapped in a circuit breaker, wrapped in the LRU cache.
func initEmbedder(cfg EmbedderConfig) (embedder.Provider, error) {
	var base embedder.Provider

	switch cfg.Provider {
	case "openai":
		client, err := openaiEmbedder.NewClient(&openaiEmbedder.Config{
			APIKey:            cfg.APIKey,
			Model:             cfg.Model,
			BaseURL:           cfg.BaseURL,
			Dimensions:        cfg.Dimensions,
			RequestsPerSecond: cfg.RequestsPerSecond,
		})
		if err != nil {
			return nil, err
		}
		base = client
	default:
		return nil, ErrInvalidConfig
	}

	breaker := embedder.NewBreakerProvider(base, embedder.BreakerConfig{})
	return embedder.NewCachedProvider(breaker, cfg.CacheSize)
}

// confidenceFor derives the extraction confidence from the memory source.
func confidenceFor(source Source) float64 {
	if source == SourceExplicit {
		return 1.0
	}
	return 0.8
}

// mapStoreError translates storage sentinels into the engine's error kinds.
func mapStoreError(err error) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return errors.Join(ErrNotFound, err)
	case errors.Is(err, storage.ErrInvalidRecord):
		return errors.Join(ErrInvalidRecord, err)
	default:
		return errors.Join(ErrStoreUnavailable, err)
	}
}

// getStringConfig extracts a string value from a provider config map.
func getStringConfig(m map[string]interface{}, key, defaultValue string) string {
	if v, ok := m[key].(string); ok && v != "" {
		return v
	}
	return defaultValue
}

// getIntConfig extracts an int value from a provider config map.
func getIntConfig(m map[string]interface{}, key string, defaultValue int) int {
	switch v := m[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return defaultValue
}
