package driven

import "context"

// VectorIndex provides semantic similarity search operations.
// The default backend is exact brute-force cosine ranking; approximate
// nearest-neighbour backends satisfy the same contract, so the indexing
// strategy stays an implementation detail behind this port.
type VectorIndex interface {
	// Add inserts or replaces the vector for (model, article).
	Add(ctx context.Context, model, articleID string, vector []float32) error

	// Delete removes an article's vectors from the index across all models.
	Delete(ctx context.Context, articleID string) error

	// Search finds the k most similar articles to the query vector within
	// one model's vectors. An empty index yields an empty slice, not an
	// error: pre-vectorisation emptiness is a legitimate state.
	Search(ctx context.Context, model string, query []float32, k int) ([]VectorHit, error)

	// Close releases resources.
	Close() error
}

// VectorHit represents a similarity search result.
type VectorHit struct {
	// ArticleID is the matched article.
	ArticleID string

	// Similarity is the cosine similarity score (1 − cosine distance).
	Similarity float64
}
