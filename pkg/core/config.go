// Package core provides the main Engram engine and memory management functionality.
package core

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config contains the complete configuration for an Engram engine.
//
// It includes settings for:
//   - Embedding provider (for vector generation)
//   - Store (for memory persistence)
//   - Retrieval (ranking weights and thresholds)
//   - Context assembly (per-tier token budgets)
//   - Decay (staleness and attenuation tuning)
//
// Example:
//
//	config := &core.Config{
//	    Embedder: core.EmbedderConfig{
//	        Provider:   "openai",
//	        APIKey:     "sk-...",
//	        Model:      "text-embedding-3-small",
//	        Dimensions: 1536,
//	    },
//	    Store: core.StoreConfig{
//	        Provider: "sqlite",
//	        Config: map[string]interface{}{
//	            "db_path": "./engram.db",
//	        },
//	    },
//	}
type Config struct {
	// Embedder contains embedding provider configuration.
	Embedder EmbedderConfig `json:"embedder" yaml:"embedder"`

	// Store contains storage backend configuration.
	Store StoreConfig `json:"store" yaml:"store"`

	// Retrieval contains retrieval tuning (optional).
	Retrieval RetrievalConfig `json:"retrieval,omitempty" yaml:"retrieval,omitempty"`

	// Context contains context assembly budgets (optional).
	Context ContextConfig `json:"context,omitempty" yaml:"context,omitempty"`

	// Decay contains decay scheduler tuning (optional).
	Decay DecayConfig `json:"decay,omitempty" yaml:"decay,omitempty"`
}

// EmbedderConfig contains configuration for the embedding provider.
type EmbedderConfig struct {
	// Provider is the embedding provider name. Currently "openai" covers
	// any OpenAI-compatible embeddings API via BaseURL.
	Provider string `json:"provider" yaml:"provider"`

	// APIKey is the API key for the embedding provider.
	APIKey string `json:"api_key" yaml:"api_key"`

	// Model is the embedding model name (e.g., "text-embedding-3-small").
	Model string `json:"model" yaml:"model"`

	// BaseURL is the base URL for the API (optional).
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`

	// Dimensions is the dimension of the embedding vectors (e.g., 1536).
	Dimensions int `json:"dimensions,omitempty" yaml:"dimensions,omitempty"`

	// CacheSize bounds the embedding LRU cache (0 = default).
	CacheSize int `json:"cache_size,omitempty" yaml:"cache_size,omitempty"`

	// RequestsPerSecond caps the client-side request rate (0 = unlimited).
	RequestsPerSecond float64 `json:"requests_per_second,omitempty" yaml:"requests_per_second,omitempty"`
}

// StoreConfig contains configuration for the storage backend.
//
// Supported providers: sqlite, postgres, mysql, memory
type StoreConfig struct {
	// Provider is the storage backend name.
	Provider string `json:"provider" yaml:"provider"`

	// Config contains provider-specific configuration.
	// For SQLite: db_path, table_name
	// For PostgreSQL: host, port, user, password, db_name, table_name, ssl_mode
	// For MySQL: host, port, user, password, db_name, table_name
	Config map[string]interface{} `json:"config" yaml:"config"`
}

// RetrievalConfig contains retrieval tuning.
type RetrievalConfig struct {
	// TopK is the default number of memories returned per search.
	TopK int `json:"top_k,omitempty" yaml:"top_k,omitempty"`

	// MinSimilarity is the raw-cosine cutoff below which candidates are
	// discarded (0 = default 0.3).
	MinSimilarity float64 `json:"min_similarity,omitempty" yaml:"min_similarity,omitempty"`

	// Weights override the default ranking weights. All five must be set
	// together; they must sum to 1.0 with similarity dominant.
	Weights *WeightsConfig `json:"weights,omitempty" yaml:"weights,omitempty"`

	// ReinforcementFactor, when > 0, strengthens importance on each
	// retrieval hit with a saturating step.
	ReinforcementFactor float64 `json:"reinforcement_factor,omitempty" yaml:"reinforcement_factor,omitempty"`
}

// WeightsConfig mirrors retrieval.Weights for configuration files.
type WeightsConfig struct {
	Similarity float64 `json:"similarity" yaml:"similarity"`
	Importance float64 `json:"importance" yaml:"importance"`
	Recency    float64 `json:"recency" yaml:"recency"`
	Frequency  float64 `json:"frequency" yaml:"frequency"`
	Keyword    float64 `json:"keyword" yaml:"keyword"`
}

// ContextConfig contains per-tier token budgets for context assembly.
type ContextConfig struct {
	ProfileBudget  int `json:"profile_budget,omitempty" yaml:"profile_budget,omitempty"`
	MemoriesBudget int `json:"memories_budget,omitempty" yaml:"memories_budget,omitempty"`
	HistoryBudget  int `json:"history_budget,omitempty" yaml:"history_budget,omitempty"`
}

// DecayConfig contains decay scheduler tuning.
type DecayConfig struct {
	// StalenessWindowHours is how many hours a memory may go unaccessed
	// before it starts decaying (0 = default 72).
	StalenessWindowHours int `json:"staleness_window_hours,omitempty" yaml:"staleness_window_hours,omitempty"`

	// Attenuation multiplies the decay factor of each stale record per
	// pass (0 = default 0.95).
	Attenuation float64 `json:"attenuation,omitempty" yaml:"attenuation,omitempty"`

	// Floor is the minimum decay factor (0 = default 0.05).
	Floor float64 `json:"floor,omitempty" yaml:"floor,omitempty"`

	// DeactivateBelow is the effective-importance threshold under which a
	// memory is deactivated (0 = default 0.1).
	DeactivateBelow float64 `json:"deactivate_below,omitempty" yaml:"deactivate_below,omitempty"`

	// IntervalMinutes is the period of the background decay loop
	// (0 = default 60).
	IntervalMinutes int `json:"interval_minutes,omitempty" yaml:"interval_minutes,omitempty"`
}

// LoadConfigFromEnv loads configuration from environment variables.
//
// The function:
//  1. Searches for .env or .env.example files (up to 5 directory levels up)
//  2. Loads environment variables from the found file
//  3. Parses environment variables into a Config struct
//
// Supported environment variables:
//   - DATABASE_PROVIDER (sqlite, postgres, mysql, memory)
//   - SQLITE_PATH, SQLITE_TABLE
//   - POSTGRES_HOST, POSTGRES_PORT, POSTGRES_USER, POSTGRES_PASSWORD, etc.
//   - MYSQL_HOST, MYSQL_PORT, MYSQL_USER, MYSQL_PASSWORD, etc.
//   - EMBEDDING_PROVIDER, EMBEDDING_API_KEY, EMBEDDING_MODEL,
//     EMBEDDING_BASE_URL, EMBEDDING_DIMENSIONS
//
// Returns a Config instance, or an error if loading fails.
//
// Example:
//
//	config, err := core.LoadConfigFromEnv()
//	if err != nil {
//	    log.Fatal(err)
//	}
func LoadConfigFromEnv() (*Config, error) {
	// Use FindEnvFile to locate .env file (supports upward search)
	envPath, found := FindEnvFile()
	if found {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	provider := getEnvOrDefault("DATABASE_PROVIDER", "sqlite")

	storeConfig := make(map[string]interface{})
	switch provider {
	case "sqlite":
		storeConfig = map[string]interface{}{
			"db_path":    getEnvOrDefault("SQLITE_PATH", "./engram.db"),
			"table_name": getEnvOrDefault("SQLITE_TABLE", "memories"),
		}
	case "postgres":
		port, _ := strconv.Atoi(getEnvOrDefault("POSTGRES_PORT", "5432"))
		storeConfig = map[string]interface{}{
			"host":       getEnvOrDefault("POSTGRES_HOST", "localhost"),
			"port":       port,
			"user":       getEnvOrDefault("POSTGRES_USER", "postgres"),
			"password":   os.Getenv("POSTGRES_PASSWORD"),
			"db_name":    getEnvOrDefault("POSTGRES_DATABASE", "engram"),
			"table_name": getEnvOrDefault("POSTGRES_TABLE", "memories"),
			"ssl_mode":   getEnvOrDefault("POSTGRES_SSLMODE", "disable"),
		}
	case "mysql":
		port, _ := strconv.Atoi(getEnvOrDefault("MYSQL_PORT", "3306"))
		storeConfig = map[string]interface{}{
			"host":       getEnvOrDefault("MYSQL_HOST", "127.0.0.1"),
			"port":       port,
			"user":       getEnvOrDefault("MYSQL_USER", "root"),
			"password":   os.Getenv("MYSQL_PASSWORD"),
			"db_name":    getEnvOrDefault("MYSQL_DATABASE", "engram"),
			"table_name": getEnvOrDefault("MYSQL_TABLE", "memories"),
		}
	}

	dims, _ := strconv.Atoi(getEnvOrDefault("EMBEDDING_DIMENSIONS", "1536"))

	config := &Config{
		Embedder: EmbedderConfig{
			Provider:   getEnvOrDefault("EMBEDDING_PROVIDER", "openai"),
			APIKey:     os.Getenv("EMBEDDING_API_KEY"),
			Model:      getEnvOrDefault("EMBEDDING_MODEL", "text-embedding-3-small"),
			BaseURL:    os.Getenv("EMBEDDING_BASE_URL"),
			Dimensions: dims,
		},
		Store: StoreConfig{
			Provider: provider,
			Config:   storeConfig,
		},
	}

	return config, nil
}

// LoadConfigFromEnvFile loads configuration from a specific .env file.
//
// Parameters:
//   - envPath: Path to the .env file
//
// Returns a Config instance, or an error if loading fails.
func LoadConfigFromEnvFile(envPath string) (*Config, error) {
	if err := godotenv.Load(envPath); err != nil {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}
	return LoadConfigFromEnv()
}

// LoadConfigFromJSON loads configuration from a JSON file.
//
// Parameters:
//   - path: Path to the JSON configuration file
//
// Returns a Config instance, or an error if loading or parsing fails.
func LoadConfigFromJSON(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, NewEngineError("LoadConfigFromJSON", err)
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, NewEngineError("LoadConfigFromJSON", err)
	}

	return &config, nil
}

// LoadConfigFromYAML loads configuration from a YAML file.
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns a Config instance, or an error if loading or parsing fails.
func LoadConfigFromYAML(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, NewEngineError("LoadConfigFromYAML", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, NewEngineError("LoadConfigFromYAML", err)
	}

	return &config, nil
}

// Validate validates the configuration.
//
// Checks that all required fields are set:
//   - Embedder provider must be specified
//   - Store provider must be specified
//
// Returns an error if validation fails, nil otherwise.
func (c *Config) Validate() error {
	if c.Embedder.Provider == "" {
		return NewEngineError("Validate", ErrInvalidConfig)
	}
	if c.Store.Provider == "" {
		return NewEngineError("Validate", ErrInvalidConfig)
	}
	return nil
}

// getEnvOrDefault gets an environment variable or returns the default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// FindEnvFile searches for .env or .env.example files.
//
// The search:
//  1. Checks the current directory
//  2. Searches up to 5 directory levels up
//  3. Returns the first .env or .env.example file found
//
// Returns:
//   - path: Path to the found file (empty if not found)
//   - found: True if a file was found, false otherwise
func FindEnvFile() (string, bool) {
	if _, err := os.Stat(".env"); err == nil {
		return ".env", true
	}
	if _, err := os.Stat(".env.example"); err == nil {
		return ".env.example", true
	}

	dir, _ := os.Getwd()
	for i := 0; i < 5; i++ {
		envPath := filepath.Join(dir, ".env")
		envExamplePath := filepath.Join(dir, ".env.example")

		if _, err := os.Stat(envPath); err == nil {
			return envPath, true
		}
		if _, err := os.Stat(envExamplePath); err == nil {
			return envExamplePath, true
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", false
}
