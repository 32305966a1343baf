package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/lexdata-bo/normadex/internal/core/domain"
	"github.com/lexdata-bo/normadex/internal/core/ports/driven"
)

// Ensure DocumentStore implements the interface.
var _ driven.DocumentStore = (*DocumentStore)(nil)

// DocumentStore is an in-memory implementation of driven.DocumentStore.
// Full-text search is approximated with case-insensitive term counting,
// which is ranking-compatible enough for tests.
type DocumentStore struct {
	mu        sync.RWMutex
	documents map[string]domain.Document
	articles  map[string][]domain.Article // document ID -> ordered articles

	embeddings *EmbeddingStore // optional, for cascade deletes
}

// NewDocumentStore creates a new in-memory document store.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		documents: make(map[string]domain.Document),
		articles:  make(map[string][]domain.Article),
	}
}

// SetEmbeddingStore wires the embedding store articles cascade into.
func (s *DocumentStore) SetEmbeddingStore(es *EmbeddingStore) {
	s.embeddings = es
}

// HasDocumentsForSite reports whether any document references a site.
// Plugged into SourceStore.SetInUse.
func (s *DocumentStore) HasDocumentsForSite(site string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, doc := range s.documents {
		if doc.Site == site {
			return true
		}
	}
	return false
}

// CreateDocument atomically stores a new document with its article batch.
func (s *DocumentStore) CreateDocument(_ context.Context, doc *domain.Document, articles []domain.Article) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.documents[doc.ID]; ok {
		return domain.ErrDuplicateKey
	}
	s.storeLocked(doc, articles)
	return nil
}

// ReplaceDocument atomically replaces a document and its whole article set.
func (s *DocumentStore) ReplaceDocument(_ context.Context, doc *domain.Document, articles []domain.Article) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cascadeArticlesLocked(doc.ID)
	s.storeLocked(doc, articles)
	return nil
}

func (s *DocumentStore) storeLocked(doc *domain.Document, articles []domain.Article) {
	now := time.Now().UTC()
	if doc.ExtractedAt.IsZero() {
		doc.ExtractedAt = now
	}
	doc.UpdatedAt = now

	s.documents[doc.ID] = *doc
	s.articles[doc.ID] = append([]domain.Article(nil), articles...)
}

func (s *DocumentStore) cascadeArticlesLocked(documentID string) {
	if s.embeddings != nil {
		for _, a := range s.articles[documentID] {
			s.embeddings.deleteForArticle(a.ID)
		}
	}
	delete(s.articles, documentID)
}

// GetDocument retrieves a document by ID.
func (s *DocumentStore) GetDocument(_ context.Context, id string) (*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.documents[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &doc, nil
}

// ListDocuments returns documents for a site, or all when site is empty.
func (s *DocumentStore) ListDocuments(_ context.Context, site string) ([]domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var docs []domain.Document //nolint:prealloc // filtered below
	for _, doc := range s.documents {
		if site == "" || doc.Site == site {
			docs = append(docs, doc)
		}
	}
	sort.Slice(docs, func(i, j int) bool {
		if !docs[i].ExtractedAt.Equal(docs[j].ExtractedAt) {
			return docs[i].ExtractedAt.After(docs[j].ExtractedAt)
		}
		return docs[i].ID < docs[j].ID
	})
	return docs, nil
}

// TransitionState conditionally moves a document between lifecycle states.
func (s *DocumentStore) TransitionState(
	_ context.Context, id string, from, to domain.DocumentState, errStage domain.Stage,
) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.documents[id]
	if !ok {
		return false, domain.ErrNotFound
	}
	if doc.State != from {
		return false, nil
	}

	doc.State = to
	doc.ErrorStage = errStage
	doc.UpdatedAt = time.Now().UTC()
	s.documents[id] = doc
	return true, nil
}

// DeleteDocument removes a document, its articles and their embeddings.
func (s *DocumentStore) DeleteDocument(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.documents[id]; !ok {
		return domain.ErrNotFound
	}
	s.cascadeArticlesLocked(id)
	delete(s.documents, id)
	return nil
}

// PutArticles performs a set-replacing diff upsert keyed on (document, order).
func (s *DocumentStore) PutArticles(_ context.Context, documentID string, articles []domain.Article) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.documents[documentID]; !ok {
		return domain.ErrOrphanDocument
	}

	keep := make(map[int]bool, len(articles))
	for _, a := range articles {
		keep[a.Order] = true
	}
	if s.embeddings != nil {
		for _, old := range s.articles[documentID] {
			if !keep[old.Order] {
				s.embeddings.deleteForArticle(old.ID)
			}
		}
	}

	s.articles[documentID] = append([]domain.Article(nil), articles...)

	doc := s.documents[documentID]
	doc.UpdatedAt = time.Now().UTC()
	s.documents[documentID] = doc
	return nil
}

// GetArticles returns all articles of a document ordered by position.
func (s *DocumentStore) GetArticles(_ context.Context, documentID string) ([]domain.Article, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	articles := append([]domain.Article(nil), s.articles[documentID]...)
	sort.Slice(articles, func(i, j int) bool { return articles[i].Order < articles[j].Order })
	return articles, nil
}

// GetArticle retrieves a specific article by ID.
func (s *DocumentStore) GetArticle(_ context.Context, id string) (*domain.Article, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, articles := range s.articles {
		for _, a := range articles {
			if a.ID == id {
				article := a
				return &article, nil
			}
		}
	}
	return nil, domain.ErrNotFound
}

// CountArticles returns the persisted article count of a document.
func (s *DocumentStore) CountArticles(_ context.Context, documentID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.articles[documentID]), nil
}

// SearchText performs term-count ranked search over article content.
func (s *DocumentStore) SearchText(
	_ context.Context, query string, filters domain.SearchFilters, limit int,
) ([]driven.TextHit, error) {
	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return []driven.TextHit{}, nil
	}
	if limit <= 0 {
		limit = 10
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	type scored struct {
		hit driven.TextHit
		ord int
	}
	var matches []scored
	for _, articles := range s.articles {
		for _, a := range articles {
			if !articleMatches(a, filters) {
				continue
			}
			content := strings.ToLower(a.Content)
			score := 0.0
			for _, term := range terms {
				score += float64(strings.Count(content, term))
			}
			if score > 0 {
				matches = append(matches, scored{
					hit: driven.TextHit{ArticleID: a.ID, Score: score},
					ord: a.Order,
				})
			}
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].hit.Score != matches[j].hit.Score {
			return matches[i].hit.Score > matches[j].hit.Score
		}
		if matches[i].ord != matches[j].ord {
			return matches[i].ord < matches[j].ord
		}
		return matches[i].hit.ArticleID < matches[j].hit.ArticleID
	})

	hits := make([]driven.TextHit, 0, limit)
	for _, m := range matches {
		hits = append(hits, m.hit)
		if len(hits) == limit {
			break
		}
	}
	return hits, nil
}

func articleMatches(a domain.Article, f domain.SearchFilters) bool {
	if len(f.Sites) > 0 {
		found := false
		for _, site := range f.Sites {
			if strings.EqualFold(site, a.Site) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(f.NormTypes) > 0 {
		found := false
		for _, nt := range f.NormTypes {
			if strings.EqualFold(nt, a.NormType) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if !f.DateFrom.IsZero() && a.NormDate.Before(f.DateFrom) {
		return false
	}
	if !f.DateTo.IsZero() && a.NormDate.After(f.DateTo) {
		return false
	}
	return true
}
