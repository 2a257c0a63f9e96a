package provado

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the provado engine.
type Config struct {
	// DBPath is the full path to the SQLite database file.
	// If empty, defaults to ~/.provado/<DBName>.db
	DBPath string `json:"db_path" yaml:"db_path" mapstructure:"db_path"`

	// DBName is the name for the database (used when DBPath is empty).
	// One named database per document set; ingestion and query both
	// operate on the database this config points at.
	DBName string `json:"db_name" yaml:"db_name" mapstructure:"db_name"`

	// StorageDir controls where the database is created when DBPath is not
	// explicitly set: "home" (default) uses ~/.provado/, "local" uses the
	// current working directory.
	StorageDir string `json:"storage_dir" yaml:"storage_dir" mapstructure:"storage_dir"`

	// LLM providers
	Chat      LLMConfig `json:"chat" yaml:"chat" mapstructure:"chat"`
	Embedding LLMConfig `json:"embedding" yaml:"embedding" mapstructure:"embedding"`

	// Retrieval
	VectorTopK         int     `json:"vector_top_k" yaml:"vector_top_k" mapstructure:"vector_top_k"`                            // K nearest chunks per vector query
	EvidenceTopN       int     `json:"evidence_top_n" yaml:"evidence_top_n" mapstructure:"evidence_top_n"`                      // fused evidence items passed to decision
	CorroborationBonus float64 `json:"corroboration_bonus" yaml:"corroboration_bonus" mapstructure:"corroboration_bonus"`       // score bonus when a chunk is backed by an explicit fact

	// Chunking
	MaxChunkTokens int `json:"max_chunk_tokens" yaml:"max_chunk_tokens" mapstructure:"max_chunk_tokens"`
	ChunkOverlap   int `json:"chunk_overlap" yaml:"chunk_overlap" mapstructure:"chunk_overlap"`

	// Ingestion
	ExtractConcurrency int  `json:"extract_concurrency" yaml:"extract_concurrency" mapstructure:"extract_concurrency"` // parallel LLM calls for fact extraction
	SkipFacts          bool `json:"skip_facts" yaml:"skip_facts" mapstructure:"skip_facts"`                            // skip fact extraction during ingest (vector-only)

	// Decision
	DecideTimeout time.Duration `json:"decide_timeout" yaml:"decide_timeout" mapstructure:"decide_timeout"`

	// Embedding dimensions (must match model)
	EmbeddingDim int `json:"embedding_dim" yaml:"embedding_dim" mapstructure:"embedding_dim"`
}

// LLMConfig configures a single LLM provider endpoint.
type LLMConfig struct {
	Provider string `json:"provider" yaml:"provider" mapstructure:"provider"` // ollama, openai, custom
	Model    string `json:"model" yaml:"model" mapstructure:"model"`
	BaseURL  string `json:"base_url" yaml:"base_url" mapstructure:"base_url"`
	APIKey   string `json:"api_key" yaml:"api_key" mapstructure:"api_key"`
}

// DefaultConfig returns a Config with sensible defaults for local inference.
// Database is stored in ~/.provado/provado.db by default.
func DefaultConfig() Config {
	return Config{
		DBName:     "provado",
		StorageDir: "home",
		Chat: LLMConfig{
			Provider: "ollama",
			Model:    "llama3.1:8b",
			BaseURL:  "http://localhost:11434",
		},
		Embedding: LLMConfig{
			Provider: "ollama",
			Model:    "nomic-embed-text",
			BaseURL:  "http://localhost:11434",
		},
		VectorTopK:         8,
		EvidenceTopN:       5,
		CorroborationBonus: 0.25,
		MaxChunkTokens:     512,
		ChunkOverlap:       64,
		ExtractConcurrency: 8,
		DecideTimeout:      90 * time.Second,
		EmbeddingDim:       768,
	}
}

// LoadConfig reads configuration from an optional file (JSON or YAML) and
// the PROVADO_* environment (PROVADO_CHAT_API_KEY overrides chat.api_key,
// and so on), layered over DefaultConfig.
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("provado")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := DefaultConfig()
	setConfigDefaults(v, cfg)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return cfg, err
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, err
	}

	// Well-known provider env vars as a last resort for API keys.
	if cfg.Chat.APIKey == "" && cfg.Chat.Provider == "openai" {
		cfg.Chat.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.Embedding.APIKey == "" && cfg.Embedding.Provider == "openai" {
		cfg.Embedding.APIKey = os.Getenv("OPENAI_API_KEY")
	}

	return cfg, nil
}

// setConfigDefaults registers defaults so AutomaticEnv picks up keys that
// never appear in a config file.
func setConfigDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("db_path", cfg.DBPath)
	v.SetDefault("db_name", cfg.DBName)
	v.SetDefault("storage_dir", cfg.StorageDir)
	v.SetDefault("chat.provider", cfg.Chat.Provider)
	v.SetDefault("chat.model", cfg.Chat.Model)
	v.SetDefault("chat.base_url", cfg.Chat.BaseURL)
	v.SetDefault("chat.api_key", cfg.Chat.APIKey)
	v.SetDefault("embedding.provider", cfg.Embedding.Provider)
	v.SetDefault("embedding.model", cfg.Embedding.Model)
	v.SetDefault("embedding.base_url", cfg.Embedding.BaseURL)
	v.SetDefault("embedding.api_key", cfg.Embedding.APIKey)
	v.SetDefault("vector_top_k", cfg.VectorTopK)
	v.SetDefault("evidence_top_n", cfg.EvidenceTopN)
	v.SetDefault("corroboration_bonus", cfg.CorroborationBonus)
	v.SetDefault("max_chunk_tokens", cfg.MaxChunkTokens)
	v.SetDefault("chunk_overlap", cfg.ChunkOverlap)
	v.SetDefault("extract_concurrency", cfg.ExtractConcurrency)
	v.SetDefault("skip_facts", cfg.SkipFacts)
	v.SetDefault("decide_timeout", cfg.DecideTimeout)
	v.SetDefault("embedding_dim", cfg.EmbeddingDim)
}

// resolveDBPath computes the final database path from config fields.
func (c *Config) resolveDBPath() string {
	if c.DBPath != "" {
		return c.DBPath
	}

	name := c.DBName
	if name == "" {
		name = "provado"
	}

	switch c.StorageDir {
	case "local", "cwd":
		return name + ".db"
	default: // "home" or empty
		home, err := os.UserHomeDir()
		if err != nil {
			return name + ".db" // fallback to cwd
		}
		return filepath.Join(home, ".provado", name+".db")
	}
}
