package embedding

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"youtube-rag/internal/models"
	"youtube-rag/internal/testutil"
)

type shortEmbedder struct {
	testutil.FakeEmbedder
	vectors [][]float32
}

func (s *shortEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	return s.vectors, nil
}

func TestEmbedPassages(t *testing.T) {
	passages := []models.Passage{{Index: 0, Content: "go go"}, {Index: 1, Content: "rust"}}
	require.NoError(t, EmbedPassages(context.Background(), &testutil.FakeEmbedder{}, passages))
	assert.Equal(t, testutil.Vector("go go"), passages[0].Embedding)
	assert.Equal(t, testutil.Vector("rust"), passages[1].Embedding)
}

func TestEmbedPassages_OneBatchCall(t *testing.T) {
	embedder := &testutil.FakeEmbedder{}
	passages := make([]models.Passage, 10)
	for i := range passages {
		passages[i] = models.Passage{Index: i, Content: "music"}
	}
	require.NoError(t, EmbedPassages(context.Background(), embedder, passages))
	assert.Equal(t, 1, embedder.Calls)
}

func TestEmbedPassages_Errors(t *testing.T) {
	ctx := context.Background()
	passages := func() []models.Passage {
		return []models.Passage{{Index: 0, Content: "a"}, {Index: 1, Content: "b"}}
	}

	embedErr := errors.New("rate limited")
	err := EmbedPassages(ctx, &testutil.FakeEmbedder{Err: embedErr}, passages())
	assert.ErrorIs(t, err, embedErr)

	err = EmbedPassages(ctx, &shortEmbedder{vectors: [][]float32{{1}}}, passages())
	assert.ErrorContains(t, err, "1 vectors for 2 passages")

	err = EmbedPassages(ctx, &shortEmbedder{vectors: [][]float32{{1}, {}}}, passages())
	assert.ErrorContains(t, err, "empty embedding for passage 1")

	assert.NoError(t, EmbedPassages(ctx, &testutil.FakeEmbedder{}, nil))
}
