package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultAddr              = ":8000"
	defaultProvider          = ProviderOpenAI
	defaultChunkSize         = 1000
	defaultChunkOverlap      = 200
	defaultTopK              = 3
	defaultSplitter          = "window"
	defaultLanguage          = "en"
	defaultTranscriptTimeout = 30 * time.Second
	defaultLogLevel          = "info"
)

// LLM providers understood by llmservice and embedding.
const (
	ProviderOpenAI = "openai"
	ProviderAzure  = "azure"
	ProviderOllama = "ollama"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	LLM        LLMConfig        `yaml:"llm"`
	EmbedLLM   LLMConfig        `yaml:"embed_llm"`
	RAG        RAGConfig        `yaml:"rag"`
	Transcript TranscriptConfig `yaml:"transcript"`
	Database   DatabaseConfig   `yaml:"database"`
	Log        LogConfig        `yaml:"log"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// LLMConfig describes one model endpoint. It is used for both the chat model and the embedder.
type LLMConfig struct {
	Provider   string `yaml:"provider"`
	BaseURL    string `yaml:"base_url"`
	Key        string `yaml:"key"`
	Model      string `yaml:"model"`
	APIVersion string `yaml:"api_version"`
}

type RAGConfig struct {
	ChunkSize int `yaml:"chunk_size"`
	// ChunkOverlap left unset means the default; an explicit 0 disables overlap.
	ChunkOverlap *int `yaml:"chunk_overlap"`
	// TopK 0 means the default.
	TopK     int    `yaml:"top_k"`
	Splitter string `yaml:"splitter"`
	// MaxHistoryTurns caps the conversation memory, 0 keeps every turn.
	MaxHistoryTurns int `yaml:"max_history_turns"`
}

type TranscriptConfig struct {
	Language string        `yaml:"language"`
	Timeout  time.Duration `yaml:"timeout"`
}

// DatabaseConfig points at the optional Postgres exchange archive. An empty DSN disables it.
type DatabaseConfig struct {
	DSN      string `yaml:"dsn"`
	Password string `yaml:"password"`
	Debug    bool   `yaml:"debug"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// LoadConfig reads the yaml file at path, expanding ${VAR} references from the environment.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyDefaults fills every zero value that has a sensible default.
func (c *Config) ApplyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = defaultAddr
	}
	if c.LLM.Provider == "" {
		c.LLM.Provider = defaultProvider
	}
	if c.EmbedLLM.Provider == "" {
		c.EmbedLLM.Provider = c.LLM.Provider
	}
	if c.EmbedLLM.BaseURL == "" {
		c.EmbedLLM.BaseURL = c.LLM.BaseURL
	}
	if c.EmbedLLM.Key == "" {
		c.EmbedLLM.Key = c.LLM.Key
	}
	if c.EmbedLLM.APIVersion == "" {
		c.EmbedLLM.APIVersion = c.LLM.APIVersion
	}
	if c.RAG.ChunkSize == 0 {
		c.RAG.ChunkSize = defaultChunkSize
	}
	if c.RAG.ChunkOverlap == nil {
		overlap := defaultChunkOverlap
		c.RAG.ChunkOverlap = &overlap
	}
	if c.RAG.TopK == 0 {
		c.RAG.TopK = defaultTopK
	}
	if c.RAG.Splitter == "" {
		c.RAG.Splitter = defaultSplitter
	}
	if c.Transcript.Language == "" {
		c.Transcript.Language = defaultLanguage
	}
	if c.Transcript.Timeout == 0 {
		c.Transcript.Timeout = defaultTranscriptTimeout
	}
	if c.Log.Level == "" {
		c.Log.Level = defaultLogLevel
	}
}

// Overlap returns the configured chunk overlap, or the default when unset.
func (r *RAGConfig) Overlap() int {
	if r.ChunkOverlap == nil {
		return defaultChunkOverlap
	}
	return *r.ChunkOverlap
}

func (c *Config) Validate() error {
	overlap := c.RAG.Overlap()
	if c.RAG.ChunkSize < 0 || overlap < 0 {
		return fmt.Errorf("chunk size and overlap must not be negative")
	}
	if overlap >= c.RAG.ChunkSize {
		return fmt.Errorf("chunk overlap (%d) must be smaller than chunk size (%d)", overlap, c.RAG.ChunkSize)
	}
	if c.RAG.TopK < 0 {
		return fmt.Errorf("top_k must not be negative")
	}
	if c.RAG.MaxHistoryTurns < 0 || c.RAG.MaxHistoryTurns%2 != 0 {
		return fmt.Errorf("max_history_turns must be a non-negative even number, got %d", c.RAG.MaxHistoryTurns)
	}
	switch c.RAG.Splitter {
	case "window", "recursive":
	default:
		return fmt.Errorf("unknown splitter %q", c.RAG.Splitter)
	}
	for _, p := range []string{c.LLM.Provider, c.EmbedLLM.Provider} {
		switch p {
		case ProviderOpenAI, ProviderAzure, ProviderOllama:
		default:
			return fmt.Errorf("unknown llm provider %q", p)
		}
	}
	return nil
}
