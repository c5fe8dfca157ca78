package llmservice

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"youtube-rag/internal/config"
)

func TestNewClient(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.LLMConfig
	}{
		{"openai chat", config.LLMConfig{Provider: config.ProviderOpenAI, Key: "Bearer sk-test", Model: "gpt-4o-mini"}},
		{"openai embeddings", config.LLMConfig{Provider: config.ProviderOpenAI, Key: "sk-test", Model: "text-embedding-3-small", BaseURL: "http://localhost:1234/v1"}},
		{"ollama", config.LLMConfig{Provider: config.ProviderOllama, BaseURL: "http://localhost:11434", Model: "llama3"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewClient(&tt.cfg, tt.name == "openai embeddings")
			require.NoError(t, err)
			assert.NotNil(t, client)
		})
	}
}

func TestNewClient_UnknownProvider(t *testing.T) {
	_, err := NewClient(&config.LLMConfig{Provider: "bard"}, false)
	assert.Error(t, err)
}
