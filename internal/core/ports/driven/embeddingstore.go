package driven

import (
	"context"

	"github.com/lexdata-bo/normadex/internal/core/domain"
)

// EmbeddingStore persists article embeddings, one row per (article, model).
type EmbeddingStore interface {
	// Upsert stores or replaces the embedding for (article, model).
	// The first vector seen for a model fixes that model's dimensionality;
	// later vectors of a different length fail with
	// domain.ErrDimensionMismatch. Unknown articles fail with
	// domain.ErrOrphanArticle.
	Upsert(ctx context.Context, emb domain.Embedding) error

	// Get retrieves the embedding for (article, model).
	Get(ctx context.Context, articleID, model string) (*domain.Embedding, error)

	// ModelDimension returns the declared dimensionality for a model.
	// Returns domain.ErrNotFound for a model with no embeddings yet.
	ModelDimension(ctx context.Context, model string) (int, error)

	// MissingForDocument returns the IDs of a document's articles that
	// lack an embedding for the given model, in article order.
	MissingForDocument(ctx context.Context, documentID, model string) ([]string, error)

	// ListByModel returns all embeddings for a model. Used to feed the
	// vector index.
	ListByModel(ctx context.Context, model string) ([]domain.Embedding, error)
}
