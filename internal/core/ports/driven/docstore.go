package driven

import (
	"context"

	"github.com/lexdata-bo/normadex/internal/core/domain"
)

// DocumentStore persists documents and their articles.
// Backed by SQLite for metadata storage and full-text search.
type DocumentStore interface {
	// CreateDocument atomically stores a new document with its article
	// batch. Returns domain.ErrDuplicateKey when the document ID already
	// exists and domain.ErrNotFound when the site is unknown.
	CreateDocument(ctx context.Context, doc *domain.Document, articles []domain.Article) error

	// ReplaceDocument atomically replaces an existing document and its
	// whole article set (cascading to embeddings). Creates the document
	// when absent. Readers never observe a mixed article set.
	ReplaceDocument(ctx context.Context, doc *domain.Document, articles []domain.Article) error

	// GetDocument retrieves a document by ID.
	GetDocument(ctx context.Context, id string) (*domain.Document, error)

	// ListDocuments returns documents for a site, or all when site is empty.
	ListDocuments(ctx context.Context, site string) ([]domain.Document, error)

	// TransitionState conditionally moves a document from one state to
	// another. Returns false without error when the document was not in
	// the expected state, so racing writers lose cleanly instead of
	// clobbering each other. errStage records the failed stage when the
	// target state is error, and is cleared otherwise.
	TransitionState(ctx context.Context, id string, from, to domain.DocumentState, errStage domain.Stage) (bool, error)

	// DeleteDocument removes a document, its articles and their embeddings
	// inside one transaction.
	DeleteDocument(ctx context.Context, id string) error

	// PutArticles performs a set-replacing diff upsert of one document's
	// articles keyed on (document, order): new entries inserted, changed
	// content updated, removed entries deleted. Returns
	// domain.ErrOrphanDocument when the document is absent.
	PutArticles(ctx context.Context, documentID string, articles []domain.Article) error

	// GetArticles returns all articles of a document ordered by position.
	GetArticles(ctx context.Context, documentID string) ([]domain.Article, error)

	// GetArticle retrieves a specific article by ID.
	GetArticle(ctx context.Context, id string) (*domain.Article, error)

	// CountArticles returns the persisted article count of a document.
	CountArticles(ctx context.Context, documentID string) (int, error)

	// SearchText performs ranked full-text search over normalised article
	// content. Results are ordered by relevance descending, ties broken by
	// article order ascending.
	SearchText(ctx context.Context, query string, filters domain.SearchFilters, limit int) ([]TextHit, error)
}

// TextHit is one full-text search result.
type TextHit struct {
	// ArticleID is the matched article.
	ArticleID string

	// Score is the text relevance score, higher is better.
	Score float64
}
