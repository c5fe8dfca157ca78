package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte("llm:\n  model: gpt-4o-mini\n"))
	require.NoError(t, err)

	assert.Equal(t, ":8000", cfg.Server.Addr)
	assert.Equal(t, ProviderOpenAI, cfg.LLM.Provider)
	assert.Equal(t, ProviderOpenAI, cfg.EmbedLLM.Provider)
	assert.Equal(t, 1000, cfg.RAG.ChunkSize)
	assert.Equal(t, 200, cfg.RAG.Overlap())
	assert.Equal(t, 3, cfg.RAG.TopK)
	assert.Equal(t, "window", cfg.RAG.Splitter)
	assert.Equal(t, 0, cfg.RAG.MaxHistoryTurns)
	assert.Equal(t, "en", cfg.Transcript.Language)
	assert.Equal(t, 30*time.Second, cfg.Transcript.Timeout)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestParse_ExplicitZeroOverlap(t *testing.T) {
	cfg, err := Parse([]byte("rag:\n  chunk_size: 500\n  chunk_overlap: 0\n"))
	require.NoError(t, err)
	require.NotNil(t, cfg.RAG.ChunkOverlap)
	assert.Equal(t, 0, cfg.RAG.Overlap())
	assert.Equal(t, 500, cfg.RAG.ChunkSize)

	cfg, err = Parse([]byte("rag:\n  chunk_size: 500\n  chunk_overlap: 50\n"))
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.RAG.Overlap())
}

func TestParse_EmbedderInheritsEndpoint(t *testing.T) {
	cfg, err := Parse([]byte(`
llm:
  provider: azure
  base_url: https://example.openai.azure.com
  key: secret
  api_version: 2024-12-01-preview
embed_llm:
  model: text-embedding-ada-002
`))
	require.NoError(t, err)

	assert.Equal(t, ProviderAzure, cfg.EmbedLLM.Provider)
	assert.Equal(t, "https://example.openai.azure.com", cfg.EmbedLLM.BaseURL)
	assert.Equal(t, "secret", cfg.EmbedLLM.Key)
	assert.Equal(t, "2024-12-01-preview", cfg.EmbedLLM.APIVersion)
	assert.Equal(t, "text-embedding-ada-002", cfg.EmbedLLM.Model)
}

func TestParse_ExpandsEnvironment(t *testing.T) {
	t.Setenv("YTRAG_TEST_KEY", "from-env")

	cfg, err := Parse([]byte("llm:\n  key: ${YTRAG_TEST_KEY}\ntranscript:\n  timeout: 5s\n"))
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.LLM.Key)
	assert.Equal(t, 5*time.Second, cfg.Transcript.Timeout)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"overlap not smaller than size", "rag:\n  chunk_size: 100\n  chunk_overlap: 100\n"},
		{"odd history cap", "rag:\n  max_history_turns: 3\n"},
		{"unknown splitter", "rag:\n  splitter: sentences\n"},
		{"unknown provider", "llm:\n  provider: bard\n"},
		{"broken yaml", "llm: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  addr: \":9000\"\n"), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Server.Addr)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
