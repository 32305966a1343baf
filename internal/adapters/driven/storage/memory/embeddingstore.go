package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/lexdata-bo/normadex/internal/core/domain"
	"github.com/lexdata-bo/normadex/internal/core/ports/driven"
)

// Ensure EmbeddingStore implements the interface.
var _ driven.EmbeddingStore = (*EmbeddingStore)(nil)

type embeddingKey struct {
	articleID string
	model     string
}

// EmbeddingStore is an in-memory implementation of driven.EmbeddingStore.
type EmbeddingStore struct {
	mu         sync.RWMutex
	embeddings map[embeddingKey]domain.Embedding
	dimensions map[string]int

	docs *DocumentStore // optional, for article existence checks
}

// NewEmbeddingStore creates a new in-memory embedding store.
func NewEmbeddingStore() *EmbeddingStore {
	return &EmbeddingStore{
		embeddings: make(map[embeddingKey]domain.Embedding),
		dimensions: make(map[string]int),
	}
}

// SetDocumentStore wires the document store used for orphan checks.
func (s *EmbeddingStore) SetDocumentStore(ds *DocumentStore) {
	s.docs = ds
}

// Upsert stores or replaces the embedding for (article, model).
func (s *EmbeddingStore) Upsert(ctx context.Context, emb domain.Embedding) error {
	if len(emb.Vector) == 0 {
		return fmt.Errorf("%w: empty vector", domain.ErrInvalidInput)
	}

	if s.docs != nil {
		if _, err := s.docs.GetArticle(ctx, emb.ArticleID); err != nil {
			return domain.ErrOrphanArticle
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if dim, ok := s.dimensions[emb.Model]; ok && dim != len(emb.Vector) {
		return fmt.Errorf("model %s expects %d dimensions, got %d: %w",
			emb.Model, dim, len(emb.Vector), domain.ErrDimensionMismatch)
	}
	s.dimensions[emb.Model] = len(emb.Vector)

	if emb.CreatedAt.IsZero() {
		emb.CreatedAt = time.Now().UTC()
	}
	emb.Vector = append([]float32(nil), emb.Vector...)
	s.embeddings[embeddingKey{emb.ArticleID, emb.Model}] = emb
	return nil
}

// Get retrieves the embedding for (article, model).
func (s *EmbeddingStore) Get(_ context.Context, articleID, model string) (*domain.Embedding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	emb, ok := s.embeddings[embeddingKey{articleID, model}]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &emb, nil
}

// ModelDimension returns the declared dimensionality for a model.
func (s *EmbeddingStore) ModelDimension(_ context.Context, model string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dim, ok := s.dimensions[model]
	if !ok {
		return 0, domain.ErrNotFound
	}
	return dim, nil
}

// MissingForDocument returns the IDs of a document's articles lacking an
// embedding for the model, in article order.
func (s *EmbeddingStore) MissingForDocument(ctx context.Context, documentID, model string) ([]string, error) {
	if s.docs == nil {
		return nil, nil
	}
	articles, err := s.docs.GetArticles(ctx, documentID)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var missing []string //nolint:prealloc // filtered below
	for _, a := range articles {
		if _, ok := s.embeddings[embeddingKey{a.ID, model}]; !ok {
			missing = append(missing, a.ID)
		}
	}
	return missing, nil
}

// ListByModel returns all embeddings for a model in article ID order.
func (s *EmbeddingStore) ListByModel(_ context.Context, model string) ([]domain.Embedding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var embs []domain.Embedding //nolint:prealloc // filtered below
	for key, emb := range s.embeddings {
		if key.model == model {
			embs = append(embs, emb)
		}
	}
	sort.Slice(embs, func(i, j int) bool { return embs[i].ArticleID < embs[j].ArticleID })
	return embs, nil
}

// deleteForArticle removes all of an article's embeddings. Called by the
// document store's cascade.
func (s *EmbeddingStore) deleteForArticle(articleID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key := range s.embeddings {
		if key.articleID == articleID {
			delete(s.embeddings, key)
		}
	}
}
