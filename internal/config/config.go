// Package config loads application configuration from an optional YAML file
// with environment-variable overrides. Every field has a default, so the
// pipeline works with no config file at all.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// RedditConfig configures the comment fetcher.
type RedditConfig struct {
	UserAgent          string  `yaml:"user_agent"`
	MaxCommentsPerUser int     `yaml:"max_comments_per_user"`
	RequestsPerSecond  float64 `yaml:"requests_per_second"`
}

// OllamaConfig configures the generation model endpoint.
type OllamaConfig struct {
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	TimeoutSecs int     `yaml:"timeout_secs"`
}

// EmbeddingConfig configures the embedding model endpoint.
type EmbeddingConfig struct {
	BaseURL     string `yaml:"base_url"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// QdrantConfig configures the vector store connection and collections.
type QdrantConfig struct {
	Host               string `yaml:"host"`
	Port               int    `yaml:"port"`
	VectorSize         int    `yaml:"vector_size"`
	CommentsCollection string `yaml:"comments_collection"`
	PersonasCollection string `yaml:"personas_collection"`
}

// IngestConfig configures the ingestion pipeline.
type IngestConfig struct {
	BatchSize        int `yaml:"batch_size"`
	Workers          int `yaml:"workers"`
	MaxRetries       int `yaml:"max_retries"`
	MinCommentLength int `yaml:"min_comment_length"`
}

// RAGConfig configures retrieval-augmented answering.
type RAGConfig struct {
	TopKPerCollection int `yaml:"top_k_per_collection"`
	SearchLimit       int `yaml:"search_limit"`
	MaxContextChars   int `yaml:"max_context_chars"`
}

// Config is the root application configuration.
type Config struct {
	Reddit    RedditConfig    `yaml:"reddit"`
	Ollama    OllamaConfig    `yaml:"ollama"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Qdrant    QdrantConfig    `yaml:"qdrant"`
	Ingest    IngestConfig    `yaml:"ingest"`
	RAG       RAGConfig       `yaml:"rag"`
	DataDir   string          `yaml:"data_dir"`
	DBPath    string          `yaml:"db_path"`
	APIPort   string          `yaml:"api_port"`
	LogFormat string          `yaml:"log_format"` // "text" or "json"
}

// Load reads the config file at path (if it exists), applies defaults for
// every unset field, and then applies environment overrides. A .env file in
// the working directory is loaded first; variables already set in the
// environment take precedence over .env values.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyDefaults(cfg)
	applyEnvOverrides(cfg)

	if cfg.Qdrant.VectorSize <= 0 {
		return nil, fmt.Errorf("qdrant.vector_size must be greater than 0, got %d", cfg.Qdrant.VectorSize)
	}
	return cfg, nil
}

// Default returns the fully-defaulted configuration.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// OllamaTimeout returns the generation call timeout as a duration.
func (c *Config) OllamaTimeout() time.Duration {
	return time.Duration(c.Ollama.TimeoutSecs) * time.Second
}

// EmbeddingTimeout returns the embedding call timeout as a duration.
func (c *Config) EmbeddingTimeout() time.Duration {
	return time.Duration(c.Embedding.TimeoutSecs) * time.Second
}

func applyDefaults(cfg *Config) {
	if cfg.Reddit.UserAgent == "" {
		cfg.Reddit.UserAgent = "personna/1.0 (audience research)"
	}
	if cfg.Reddit.MaxCommentsPerUser == 0 {
		cfg.Reddit.MaxCommentsPerUser = 100
	}
	if cfg.Reddit.RequestsPerSecond == 0 {
		cfg.Reddit.RequestsPerSecond = 0.5
	}
	if cfg.Ollama.BaseURL == "" {
		cfg.Ollama.BaseURL = "http://localhost:11434"
	}
	if cfg.Ollama.Model == "" {
		cfg.Ollama.Model = "qwen3:8b"
	}
	if cfg.Ollama.Temperature == 0 {
		cfg.Ollama.Temperature = 0.3
	}
	if cfg.Ollama.TimeoutSecs == 0 {
		cfg.Ollama.TimeoutSecs = 120
	}
	if cfg.Embedding.BaseURL == "" {
		cfg.Embedding.BaseURL = cfg.Ollama.BaseURL
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "nomic-embed-text"
	}
	if cfg.Embedding.TimeoutSecs == 0 {
		cfg.Embedding.TimeoutSecs = 30
	}
	if cfg.Qdrant.Host == "" {
		cfg.Qdrant.Host = "localhost"
	}
	if cfg.Qdrant.Port == 0 {
		cfg.Qdrant.Port = 6334
	}
	if cfg.Qdrant.VectorSize == 0 {
		cfg.Qdrant.VectorSize = 768
	}
	if cfg.Qdrant.CommentsCollection == "" {
		cfg.Qdrant.CommentsCollection = "reddit_comments"
	}
	if cfg.Qdrant.PersonasCollection == "" {
		cfg.Qdrant.PersonasCollection = "user_personas"
	}
	if cfg.Ingest.BatchSize == 0 {
		cfg.Ingest.BatchSize = 32
	}
	if cfg.Ingest.Workers == 0 {
		cfg.Ingest.Workers = 4
	}
	if cfg.Ingest.MaxRetries == 0 {
		cfg.Ingest.MaxRetries = 3
	}
	if cfg.Ingest.MinCommentLength == 0 {
		cfg.Ingest.MinCommentLength = 10
	}
	if cfg.RAG.TopKPerCollection == 0 {
		cfg.RAG.TopKPerCollection = 5
	}
	if cfg.RAG.SearchLimit == 0 {
		cfg.RAG.SearchLimit = 10
	}
	if cfg.RAG.MaxContextChars == 0 {
		cfg.RAG.MaxContextChars = 8000
	}
	if cfg.DataDir == "" {
		cfg.DataDir = "data/output"
	}
	if cfg.DBPath == "" {
		cfg.DBPath = "data/personna.db"
	}
	if cfg.APIPort == "" {
		cfg.APIPort = "9000"
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "text"
	}
}

func applyEnvOverrides(cfg *Config) {
	setString(&cfg.Reddit.UserAgent, "REDDIT_USER_AGENT")
	setString(&cfg.Ollama.BaseURL, "OLLAMA_BASE_URL")
	setString(&cfg.Ollama.Model, "OLLAMA_MODEL")
	setString(&cfg.Embedding.BaseURL, "EMBEDDING_BASE_URL")
	setString(&cfg.Embedding.Model, "EMBEDDING_MODEL")
	setString(&cfg.Qdrant.Host, "QDRANT_HOST")
	setInt(&cfg.Qdrant.Port, "QDRANT_PORT")
	setInt(&cfg.Qdrant.VectorSize, "QDRANT_VECTOR_SIZE")
	setString(&cfg.DataDir, "PERSONNA_DATA_DIR")
	setString(&cfg.DBPath, "PERSONNA_DB_PATH")
	setString(&cfg.APIPort, "API_PORT")
	setString(&cfg.LogFormat, "LOG_FORMAT")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}
