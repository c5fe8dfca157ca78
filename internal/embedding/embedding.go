package embedding

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"

	"youtube-rag/internal/config"
	"youtube-rag/internal/llmservice"
	"youtube-rag/internal/models"
)

const defaultBatchSize = 64

// NewEmbedder creates the embedding service described by the embed_llm config section.
func NewEmbedder(llmConfig *config.LLMConfig) (*embeddings.EmbedderImpl, error) {
	client, err := llmservice.NewClient(llmConfig, true)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding client: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(client, embeddings.WithBatchSize(defaultBatchSize))
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	return embedder, nil
}

// EmbedPassages embeds every passage in one batch call and stores the vector on the passage.
func EmbedPassages(ctx context.Context, embedder embeddings.Embedder, passages []models.Passage) error {
	if len(passages) == 0 {
		log.Info().Msg("No passages to embed")
		return nil
	}

	texts := make([]string, len(passages))
	for i, p := range passages {
		texts[i] = p.Content
	}

	vectors, err := embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to embed passages: %w", err)
	}
	if len(vectors) != len(passages) {
		return fmt.Errorf("embedder returned %d vectors for %d passages", len(vectors), len(passages))
	}
	for i := range passages {
		if len(vectors[i]) == 0 {
			return fmt.Errorf("empty embedding for passage %d", passages[i].Index)
		}
		passages[i].Embedding = vectors[i]
	}

	log.Debug().Int("passages", len(passages)).Int("dims", len(vectors[0])).Msg("Embedded passages")
	return nil
}
