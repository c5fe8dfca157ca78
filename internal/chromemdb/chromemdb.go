package chromemdb

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"strconv"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"

	"youtube-rag/internal/embedding"
	"youtube-rag/internal/models"
)

const (
	DefaultTopK = 3

	metaIndex = "index"
)

// VectorIndex is the similarity index of one session's transcript. It owns a private
// in-memory chromem-go database and is never shared between sessions.
type VectorIndex struct {
	db         *chromem.DB
	collection *chromem.Collection
	embedder   embeddings.Embedder
	name       string
}

// NewVectorIndex embeds passages and stores them in a fresh in-memory collection.
func NewVectorIndex(ctx context.Context, name string, embedder embeddings.Embedder, passages []models.Passage) (*VectorIndex, error) {
	if len(passages) == 0 {
		return nil, fmt.Errorf("no passages to index")
	}

	// passages are embedded once here, the copy keeps the caller's slice untouched
	docsIn := make([]models.Passage, len(passages))
	copy(docsIn, passages)
	if err := embedding.EmbedPassages(ctx, embedder, docsIn); err != nil {
		return nil, err
	}

	db := chromem.NewDB()
	embedFunc := func(ctx context.Context, text string) ([]float32, error) {
		return embedder.EmbedQuery(ctx, text)
	}
	collection, err := db.CreateCollection(name, map[string]string{"kind": "transcript"}, embedFunc)
	if err != nil {
		return nil, fmt.Errorf("failed to create collection: %w", err)
	}

	docs := make([]chromem.Document, len(docsIn))
	for i, p := range docsIn {
		docs[i] = chromem.Document{
			ID:        fmt.Sprintf("%s-%d", name, p.Index),
			Content:   p.Content,
			Metadata:  map[string]string{metaIndex: strconv.Itoa(p.Index)},
			Embedding: p.Embedding,
		}
	}
	if err := collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return nil, fmt.Errorf("failed to add documents: %w", err)
	}

	log.Debug().Str("collection", name).Int("documents", collection.Count()).Msg("Built vector index")
	return &VectorIndex{db: db, collection: collection, embedder: embedder, name: name}, nil
}

func (v *VectorIndex) Count() int {
	return v.collection.Count()
}

// Retrieve returns the k passages most similar to query in descending similarity.
// Ties are broken by passage index, also at the k-th place. k <= 0 means DefaultTopK.
func (v *VectorIndex) Retrieve(ctx context.Context, query string, k int) ([]models.Passage, error) {
	if k <= 0 {
		k = DefaultTopK
	}
	count := v.collection.Count()
	k = min(k, count)

	queryEmbedding, err := v.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	results, err := v.collection.QueryWithOptions(ctx, chromem.QueryOptions{
		QueryEmbedding: queryEmbedding,
		// chromem keeps an arbitrary subset of tied documents, so rank all and cut below
		NResults: count,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %w", err)
	}

	passages := make([]models.Passage, 0, len(results))
	for _, r := range results {
		idx, err := strconv.Atoi(r.Metadata[metaIndex])
		if err != nil {
			return nil, fmt.Errorf("document %s has a bad index: %w", r.ID, err)
		}
		passages = append(passages, models.Passage{
			Index:      idx,
			Content:    r.Content,
			Similarity: r.Similarity,
		})
	}
	sort.SliceStable(passages, func(i, j int) bool {
		if passages[i].Similarity != passages[j].Similarity {
			return passages[i].Similarity > passages[j].Similarity
		}
		return passages[i].Index < passages[j].Index
	})
	return passages[:min(k, len(passages))], nil
}

// Close drops the collection.
func (v *VectorIndex) Close() error {
	if err := v.db.DeleteCollection(v.name); err != nil {
		return fmt.Errorf("failed to drop collection: %w", err)
	}
	return nil
}
