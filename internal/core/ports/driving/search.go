package driving

import (
	"context"

	"github.com/lexdata-bo/normadex/internal/core/domain"
)

// SearchService answers retrieval queries over indexed articles.
// Search never fails because embeddings are missing: it degrades to
// empty or text-only results.
type SearchService interface {
	// Search runs a text, vector or hybrid query per the request mode and
	// returns ranked results joined with article, document and source
	// context.
	Search(ctx context.Context, req domain.SearchRequest) ([]domain.SearchResult, error)

	// SearchVector ranks articles by cosine similarity against the query
	// vector for one model. Candidates below threshold are dropped; order
	// is similarity descending, then document recency descending, then
	// article order ascending; the result is truncated to limit.
	SearchVector(ctx context.Context, queryVector []float32, model string, limit int, threshold float64) ([]domain.SearchResult, error)
}
