package llmservice

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"youtube-rag/internal/config"
)

// Client is a language model that can also produce embeddings.
type Client interface {
	llms.Model
	embeddings.EmbedderClient
}

// NewClient builds the model described by llmConfig. With forEmbedding the configured model
// is used as the embedding model instead of the chat model.
func NewClient(llmConfig *config.LLMConfig, forEmbedding bool) (Client, error) {
	log.Debug().
		Str("provider", llmConfig.Provider).
		Str("base_url", llmConfig.BaseURL).
		Str("model", llmConfig.Model).
		Bool("embedding", forEmbedding).
		Msg("Creating llm client")

	switch llmConfig.Provider {
	case config.ProviderOllama:
		llm, err := ollama.New(
			ollama.WithServerURL(llmConfig.BaseURL),
			ollama.WithModel(llmConfig.Model),
		)
		if err != nil {
			return nil, err
		}
		return llm, nil
	case config.ProviderOpenAI, config.ProviderAzure, "":
		opts := []openai.Option{
			openai.WithToken(strings.TrimPrefix(llmConfig.Key, "Bearer ")),
		}
		if llmConfig.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(llmConfig.BaseURL))
		}
		if llmConfig.Provider == config.ProviderAzure {
			opts = append(opts, openai.WithAPIType(openai.APITypeAzure), openai.WithAPIVersion(llmConfig.APIVersion))
		}
		if forEmbedding {
			opts = append(opts, openai.WithEmbeddingModel(llmConfig.Model))
		} else {
			opts = append(opts, openai.WithModel(llmConfig.Model))
		}
		llm, err := openai.New(opts...)
		if err != nil {
			return nil, err
		}
		return llm, nil
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", llmConfig.Provider)
	}
}
