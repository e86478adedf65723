// Package config provides application configuration.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultPath is read when Load is given an empty path. A missing default
// file is not an error.
const DefaultPath = "config.yaml"

// Provider names accepted by Validate.
const (
	ProviderHuggingFace = "huggingface"
	ProviderOllama      = "ollama"
	ProviderGemini      = "gemini"
	ProviderSQLite      = "sqlite"
	ProviderQdrant      = "qdrant"
	ProviderMemory      = "memory"
)

// Config holds all application configuration.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	DataDir     string            `yaml:"data_dir"`
	Log         LogConfig         `yaml:"log"`
	LLM         LLMConfig         `yaml:"llm"`
	Embeddings  EmbeddingsConfig  `yaml:"embeddings"`
	VectorStore VectorStoreConfig `yaml:"vectorstore"`
	Splitter    SplitterConfig    `yaml:"splitter"`
	History     HistoryConfig     `yaml:"history"`
}

type ServerConfig struct {
	Port            string        `yaml:"port"`
	CORSOrigins     []string      `yaml:"cors_origins"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type LogConfig struct {
	Dir   string `yaml:"dir"`
	Level string `yaml:"level"`
}

type LLMConfig struct {
	Provider     string        `yaml:"provider"`
	Model        string        `yaml:"model"`
	Token        string        `yaml:"-"`
	Temperature  float64       `yaml:"temperature"`
	MaxTokens    int           `yaml:"max_tokens"`
	Timeout      time.Duration `yaml:"timeout"`
	MaxFailures  uint32        `yaml:"max_failures"`
	OllamaURL    string        `yaml:"ollama_url"`
	GeminiAPIKey string        `yaml:"-"`

	// ValidateContext asks the model whether retrieved context is relevant
	// before answering from it.
	ValidateContext bool `yaml:"validate_context"`
	// PullMissing downloads absent Ollama models at startup.
	PullMissing bool `yaml:"pull_missing"`
}

type EmbeddingsConfig struct {
	Provider    string `yaml:"provider"`
	Model       string `yaml:"model"`
	BatchSize   int    `yaml:"batch_size"`
	Concurrency int    `yaml:"concurrency"`
}

type VectorStoreConfig struct {
	Provider       string  `yaml:"provider"`
	Dir            string  `yaml:"dir"`
	Collection     string  `yaml:"collection"`
	TopK           int     `yaml:"top_k"`
	ScoreThreshold float32 `yaml:"score_threshold"`
	QdrantURL      string  `yaml:"qdrant_url"`
	QdrantAPIKey   string  `yaml:"-"`
}

type SplitterConfig struct {
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
}

type HistoryConfig struct {
	Provider string `yaml:"provider"`
	Path     string `yaml:"path"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	cfg := defaults()
	cfg.applyModelDefaults()
	return cfg
}

// defaults leaves model names empty so Load can pick them per provider.
func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "8080",
			CORSOrigins:     []string{"*"},
			ReadTimeout:     30 * time.Second,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		DataDir: "data",
		Log: LogConfig{
			Dir:   "logs",
			Level: "info",
		},
		LLM: LLMConfig{
			Provider:    ProviderHuggingFace,
			Temperature: 0.5,
			MaxTokens:   512,
			Timeout:     60 * time.Second,
			MaxFailures: 5,
			OllamaURL:   "http://127.0.0.1:11434",
			PullMissing: true,
		},
		Embeddings: EmbeddingsConfig{
			Provider:    ProviderHuggingFace,
			BatchSize:   32,
			Concurrency: 8,
		},
		VectorStore: VectorStoreConfig{
			Provider:   ProviderSQLite,
			Dir:        "vectorstore",
			Collection: "medical_documents",
			TopK:       3,
			QdrantURL:  "http://localhost:6334",
		},
		Splitter: SplitterConfig{
			ChunkSize:    500,
			ChunkOverlap: 50,
		},
		History: HistoryConfig{
			Provider: ProviderSQLite,
			Path:     "db/chat_history.db",
		},
	}
}

// Load builds the configuration from defaults, the YAML file at path, a .env
// file and the environment, in that order, and validates the result.
func Load(path string) (*Config, error) {
	cfg := defaults()

	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}
	if err := cfg.loadFile(path); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	// .env never overrides variables that are already set.
	_ = godotenv.Load()

	cfg.applyEnv()
	cfg.applyModelDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.LLM.Token = getEnv("HF_TOKEN", c.LLM.Token)
	c.Server.Port = getEnv("PORT", c.Server.Port)
	c.DataDir = getEnv("DATA_DIR", c.DataDir)
	c.VectorStore.Dir = getEnv("VECTORSTORE_DIR", c.VectorStore.Dir)
	c.Log.Dir = getEnv("LOG_DIR", c.Log.Dir)
	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.LLM.Provider = getEnv("LLM_PROVIDER", c.LLM.Provider)
	c.LLM.Model = getEnv("LLM_MODEL", c.LLM.Model)
	c.LLM.OllamaURL = getEnv("OLLAMA_URL", c.LLM.OllamaURL)
	c.LLM.GeminiAPIKey = getEnv("GEMINI_API_KEY", c.LLM.GeminiAPIKey)
	c.Embeddings.Provider = getEnv("EMBEDDINGS_PROVIDER", c.Embeddings.Provider)
	c.Embeddings.Model = getEnv("EMBEDDINGS_MODEL", c.Embeddings.Model)
	c.VectorStore.Provider = getEnv("VECTORSTORE_PROVIDER", c.VectorStore.Provider)
	c.VectorStore.QdrantURL = getEnv("QDRANT_URL", c.VectorStore.QdrantURL)
	c.VectorStore.QdrantAPIKey = getEnv("QDRANT_API_KEY", c.VectorStore.QdrantAPIKey)
	c.VectorStore.TopK = getEnvInt("TOP_K", c.VectorStore.TopK)
	c.History.Path = getEnv("HISTORY_PATH", c.History.Path)
	c.History.Provider = getEnv("HISTORY_PROVIDER", c.History.Provider)
	if v, ok := os.LookupEnv("VALIDATE_CONTEXT"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			c.LLM.ValidateContext = b
		}
	}
	if v, ok := os.LookupEnv("OLLAMA_PULL"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			c.LLM.PullMissing = b
		}
	}

	if origins := getEnv("CORS_ORIGINS", ""); origins != "" {
		c.Server.CORSOrigins = splitList(origins)
	}
}

// Default model names per provider, used when no model is configured.
var (
	DefaultLLMModels = map[string]string{
		ProviderHuggingFace: "mistralai/Mistral-7B-Instruct-v0.1",
		ProviderOllama:      "llama3.2",
		ProviderGemini:      "gemini-2.5-flash",
	}
	DefaultEmbeddingModels = map[string]string{
		ProviderHuggingFace: "sentence-transformers/all-MiniLM-L6-v2",
		ProviderOllama:      "nomic-embed-text",
		ProviderGemini:      "text-embedding-004",
	}
)

// applyModelDefaults fills unset model names from the selected providers.
func (c *Config) applyModelDefaults() {
	if c.LLM.Model == "" {
		c.LLM.Model = DefaultLLMModels[c.LLM.Provider]
	}
	if c.Embeddings.Model == "" {
		c.Embeddings.Model = DefaultEmbeddingModels[c.Embeddings.Provider]
	}
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return errors.New("PORT cannot be empty")
	}
	if _, err := strconv.Atoi(c.Server.Port); err != nil {
		return fmt.Errorf("PORT must be numeric, got %q", c.Server.Port)
	}
	if c.DataDir == "" {
		return errors.New("DATA_DIR cannot be empty")
	}
	if c.Log.Dir == "" {
		return errors.New("LOG_DIR cannot be empty")
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("LOG_LEVEL %q is not one of debug, info, warning, error", c.Log.Level)
	}
	if err := oneOf("LLM_PROVIDER", c.LLM.Provider, ProviderHuggingFace, ProviderOllama, ProviderGemini); err != nil {
		return err
	}
	if err := oneOf("EMBEDDINGS_PROVIDER", c.Embeddings.Provider, ProviderHuggingFace, ProviderOllama, ProviderGemini); err != nil {
		return err
	}
	if err := oneOf("VECTORSTORE_PROVIDER", c.VectorStore.Provider, ProviderSQLite, ProviderQdrant); err != nil {
		return err
	}
	if err := oneOf("HISTORY_PROVIDER", c.History.Provider, ProviderSQLite, ProviderMemory); err != nil {
		return err
	}
	if c.VectorStore.Provider == ProviderSQLite && c.VectorStore.Dir == "" {
		return errors.New("VECTORSTORE_DIR cannot be empty")
	}
	if c.VectorStore.Provider == ProviderQdrant && c.VectorStore.QdrantURL == "" {
		return errors.New("QDRANT_URL cannot be empty when the qdrant vector store is selected")
	}
	if c.History.Provider == ProviderSQLite && c.History.Path == "" {
		return errors.New("HISTORY_PATH cannot be empty")
	}
	if c.VectorStore.TopK <= 0 {
		return errors.New("vectorstore.top_k must be > 0")
	}
	if c.VectorStore.ScoreThreshold < 0 || c.VectorStore.ScoreThreshold > 1 {
		return errors.New("vectorstore.score_threshold must be within [0, 1]")
	}
	if c.Splitter.ChunkSize <= 0 || c.Splitter.ChunkOverlap < 0 || c.Splitter.ChunkOverlap >= c.Splitter.ChunkSize {
		return fmt.Errorf("splitter chunk_size=%d chunk_overlap=%d: overlap must be smaller than size",
			c.Splitter.ChunkSize, c.Splitter.ChunkOverlap)
	}
	return nil
}

// HasToken reports whether a Hugging Face token is configured.
func (c *Config) HasToken() bool {
	return strings.TrimSpace(c.LLM.Token) != ""
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return ":" + c.Server.Port
}

func oneOf(name, value string, allowed ...string) error {
	if slices.Contains(allowed, value) {
		return nil
	}
	return fmt.Errorf("%s %q is not one of %s", name, value, strings.Join(allowed, ", "))
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
