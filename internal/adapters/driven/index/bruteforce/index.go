// Package bruteforce provides an exact cosine-similarity vector index.
//
// Exact brute-force ranking is acceptable at moderate corpus sizes; an
// approximate nearest-neighbour backend can replace it behind the same
// driven.VectorIndex port when the corpus outgrows it.
package bruteforce

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/lexdata-bo/normadex/internal/core/domain"
	"github.com/lexdata-bo/normadex/internal/core/ports/driven"
)

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

type vectorEntry struct {
	articleID string
	vector    []float32
	norm      float64
}

// Index is an in-memory exact cosine index, partitioned per model.
// The first vector added for a model fixes that model's dimensionality.
type Index struct {
	mu         sync.RWMutex
	vectors    map[string][]vectorEntry // model -> entries
	dimensions map[string]int           // model -> dimension
}

// New creates an empty index.
func New() *Index {
	return &Index{
		vectors:    make(map[string][]vectorEntry),
		dimensions: make(map[string]int),
	}
}

// Load populates the index for one model from the embedding store.
// Used at startup to rebuild the in-memory index from the authoritative rows.
func (ix *Index) Load(ctx context.Context, store driven.EmbeddingStore, model string) error {
	embs, err := store.ListByModel(ctx, model)
	if err != nil {
		return fmt.Errorf("loading embeddings for %s: %w", model, err)
	}
	for _, e := range embs {
		if err := ix.Add(ctx, e.Model, e.ArticleID, e.Vector); err != nil {
			return err
		}
	}
	return nil
}

// Add inserts or replaces the vector for (model, article).
func (ix *Index) Add(_ context.Context, model, articleID string, vector []float32) error {
	if len(vector) == 0 {
		return fmt.Errorf("index add %s: %w: empty vector", articleID, domain.ErrInvalidInput)
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	if dim, ok := ix.dimensions[model]; ok && dim != len(vector) {
		return fmt.Errorf("model %s expects %d dimensions, got %d: %w",
			model, dim, len(vector), domain.ErrDimensionMismatch)
	}
	ix.dimensions[model] = len(vector)

	entry := vectorEntry{
		articleID: articleID,
		vector:    append([]float32(nil), vector...),
		norm:      norm(vector),
	}

	entries := ix.vectors[model]
	for i := range entries {
		if entries[i].articleID == articleID {
			entries[i] = entry
			return nil
		}
	}
	ix.vectors[model] = append(entries, entry)
	return nil
}

// Delete removes an article's vectors across all models.
func (ix *Index) Delete(_ context.Context, articleID string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	for model, entries := range ix.vectors {
		for i := range entries {
			if entries[i].articleID == articleID {
				ix.vectors[model] = append(entries[:i], entries[i+1:]...)
				break
			}
		}
	}
	return nil
}

// Search finds the k most similar articles to the query vector.
// An empty index yields an empty slice: pre-vectorisation emptiness is a
// legitimate state, not a fault.
func (ix *Index) Search(_ context.Context, model string, query []float32, k int) ([]driven.VectorHit, error) {
	if k <= 0 {
		k = 10
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	entries := ix.vectors[model]
	if len(entries) == 0 {
		return []driven.VectorHit{}, nil
	}
	if dim := ix.dimensions[model]; dim != len(query) {
		return nil, fmt.Errorf("model %s expects %d dimensions, got %d: %w",
			model, dim, len(query), domain.ErrDimensionMismatch)
	}

	queryNorm := norm(query)
	hits := make([]driven.VectorHit, 0, len(entries))
	for _, e := range entries {
		hits = append(hits, driven.VectorHit{
			ArticleID:  e.articleID,
			Similarity: cosine(e.vector, query, e.norm, queryNorm),
		})
	}

	// Secondary order on article ID keeps equal similarities deterministic
	// across repeated calls.
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Similarity != hits[j].Similarity {
			return hits[i].Similarity > hits[j].Similarity
		}
		return hits[i].ArticleID < hits[j].ArticleID
	})

	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Close releases resources. A no-op for the in-memory index.
func (ix *Index) Close() error {
	return nil
}

// cosine computes the cosine similarity (1 − cosine distance) of two vectors
// with precomputed norms. Zero-norm vectors have no direction and score 0.
func cosine(a, b []float32, normA, normB float64) float64 {
	if normA == 0 || normB == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot / (normA * normB)
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}
