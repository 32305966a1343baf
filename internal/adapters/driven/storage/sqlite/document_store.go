package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lexdata-bo/normadex/internal/core/domain"
	"github.com/lexdata-bo/normadex/internal/core/ports/driven"
)

// documentStore implements driven.DocumentStore.
type documentStore struct {
	store *Store
}

var _ driven.DocumentStore = (*documentStore)(nil)

const documentColumns = `id, site, norm_type, norm_number, norm_date, title,
	source_url, source_file, method, page_count, char_count, declared_articles,
	metadata, state, error_stage, extracted_at, updated_at`

const articleColumns = `id, document_id, number, title, content, raw_text,
	ord, norm_type, norm_date, site`

// CreateDocument atomically stores a new document with its article batch.
func (s *documentStore) CreateDocument(ctx context.Context, doc *domain.Document, articles []domain.Article) error {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := insertDocument(ctx, tx, doc); err != nil {
		return err
	}
	if err := insertArticles(ctx, tx, articles); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// ReplaceDocument atomically replaces a document and its whole article set.
// Deleting the old articles cascades to their embeddings.
func (s *documentStore) ReplaceDocument(ctx context.Context, doc *domain.Document, articles []domain.Article) error {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, "DELETE FROM articles WHERE document_id = ?", doc.ID); err != nil {
		return fmt.Errorf("deleting previous articles: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", doc.ID); err != nil {
		return fmt.Errorf("deleting previous document: %w", err)
	}

	if err := insertDocument(ctx, tx, doc); err != nil {
		return err
	}
	if err := insertArticles(ctx, tx, articles); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// GetDocument retrieves a document by ID.
func (s *documentStore) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	row := s.store.db.QueryRowContext(ctx,
		"SELECT "+documentColumns+" FROM documents WHERE id = ?", id)
	return scanDocument(row.Scan)
}

// ListDocuments returns documents for a site, or all when site is empty.
func (s *documentStore) ListDocuments(ctx context.Context, site string) ([]domain.Document, error) {
	query := "SELECT " + documentColumns + " FROM documents"
	var args []any
	if site != "" {
		query += " WHERE site = ?"
		args = append(args, site)
	}
	query += " ORDER BY extracted_at DESC, id"

	rows, err := s.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document //nolint:prealloc // size unknown from query
	for rows.Next() {
		doc, err := scanDocument(rows.Scan)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}
	return docs, nil
}

// TransitionState conditionally moves a document between lifecycle states.
// The WHERE clause on the current state makes this a compare-and-swap:
// exactly one of two racing writers observes rows affected.
func (s *documentStore) TransitionState(
	ctx context.Context, id string, from, to domain.DocumentState, errStage domain.Stage,
) (bool, error) {
	res, err := s.store.db.ExecContext(ctx, `
		UPDATE documents SET state = ?, error_stage = ?, updated_at = ?
		WHERE id = ? AND state = ?
	`, string(to), string(errStage), time.Now().UTC(), id, string(from))
	if err != nil {
		return false, fmt.Errorf("updating state: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("updating state: %w", err)
	}
	if n > 0 {
		return true, nil
	}

	// Distinguish a lost race from a missing document.
	var exists int
	if err := s.store.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM documents WHERE id = ?", id).Scan(&exists); err != nil {
		return false, fmt.Errorf("checking document: %w", err)
	}
	if exists == 0 {
		return false, domain.ErrNotFound
	}
	return false, nil
}

// DeleteDocument removes a document, its articles and their embeddings
// inside one transaction. Article and embedding rows go first so the
// cascade is explicit even though the schema also declares it.
func (s *documentStore) DeleteDocument(ctx context.Context, id string) error {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM embeddings WHERE article_id IN
			(SELECT id FROM articles WHERE document_id = ?)
	`, id); err != nil {
		return fmt.Errorf("deleting embeddings: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM articles WHERE document_id = ?", id); err != nil {
		return fmt.Errorf("deleting articles: %w", err)
	}

	res, err := tx.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// PutArticles performs a set-replacing diff upsert keyed on (document, ord).
func (s *documentStore) PutArticles(ctx context.Context, documentID string, articles []domain.Article) error {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var exists int
	if err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM documents WHERE id = ?", documentID).Scan(&exists); err != nil {
		return fmt.Errorf("checking document: %w", err)
	}
	if exists == 0 {
		return domain.ErrOrphanDocument
	}

	// Remove articles whose order is no longer present; embeddings cascade.
	keep := make([]string, 0, len(articles))
	args := make([]any, 0, len(articles)+1)
	args = append(args, documentID)
	for _, a := range articles {
		keep = append(keep, "?")
		args = append(args, a.Order)
	}
	delQuery := "DELETE FROM articles WHERE document_id = ?"
	if len(keep) > 0 {
		delQuery += " AND ord NOT IN (" + strings.Join(keep, ", ") + ")"
	}
	if _, err := tx.ExecContext(ctx, delQuery, args...); err != nil {
		return fmt.Errorf("deleting removed articles: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO articles (`+articleColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(document_id, ord) DO UPDATE SET
			number = excluded.number,
			title = excluded.title,
			content = excluded.content,
			raw_text = excluded.raw_text,
			norm_type = excluded.norm_type,
			norm_date = excluded.norm_date,
			site = excluded.site
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, a := range articles {
		if _, err := stmt.ExecContext(ctx, a.ID, a.DocumentID, a.Number, a.Title,
			a.Content, a.RawText, a.Order, a.NormType, a.NormDate, a.Site); err != nil {
			return fmt.Errorf("upserting article %s: %w", a.ID, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE documents SET updated_at = ? WHERE id = ?",
		time.Now().UTC(), documentID); err != nil {
		return fmt.Errorf("touching document: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// GetArticles returns all articles of a document ordered by position.
func (s *documentStore) GetArticles(ctx context.Context, documentID string) ([]domain.Article, error) {
	rows, err := s.store.db.QueryContext(ctx,
		"SELECT "+articleColumns+" FROM articles WHERE document_id = ? ORDER BY ord", documentID)
	if err != nil {
		return nil, fmt.Errorf("querying articles: %w", err)
	}
	defer rows.Close()

	var articles []domain.Article //nolint:prealloc // size unknown from query
	for rows.Next() {
		article, err := scanArticle(rows.Scan)
		if err != nil {
			return nil, err
		}
		articles = append(articles, *article)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating articles: %w", err)
	}
	return articles, nil
}

// GetArticle retrieves a specific article by ID.
func (s *documentStore) GetArticle(ctx context.Context, id string) (*domain.Article, error) {
	row := s.store.db.QueryRowContext(ctx,
		"SELECT "+articleColumns+" FROM articles WHERE id = ?", id)
	return scanArticle(row.Scan)
}

// CountArticles returns the persisted article count of a document.
func (s *documentStore) CountArticles(ctx context.Context, documentID string) (int, error) {
	var count int
	err := s.store.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM articles WHERE document_id = ?", documentID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting articles: %w", err)
	}
	return count, nil
}

// SearchText performs FTS5-ranked full-text search over article content.
// bm25 ranks ascending (more negative is better), so the relevance score
// surfaced to callers is its negation.
func (s *documentStore) SearchText(
	ctx context.Context, query string, filters domain.SearchFilters, limit int,
) ([]driven.TextHit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []driven.TextHit{}, nil
	}
	if limit <= 0 {
		limit = 10
	}

	sqlQuery := `
		SELECT a.id, bm25(articles_fts) AS rank
		FROM articles_fts
		JOIN articles a ON a.rowid = articles_fts.rowid
		WHERE articles_fts MATCH ?`
	args := []any{ftsQuery(query)}

	if len(filters.Sites) > 0 {
		sqlQuery += " AND a.site IN (" + placeholders(len(filters.Sites)) + ")"
		for _, site := range filters.Sites {
			args = append(args, site)
		}
	}
	if len(filters.NormTypes) > 0 {
		sqlQuery += " AND a.norm_type IN (" + placeholders(len(filters.NormTypes)) + ")"
		for _, nt := range filters.NormTypes {
			args = append(args, nt)
		}
	}
	if !filters.DateFrom.IsZero() {
		sqlQuery += " AND a.norm_date >= ?"
		args = append(args, filters.DateFrom)
	}
	if !filters.DateTo.IsZero() {
		sqlQuery += " AND a.norm_date <= ?"
		args = append(args, filters.DateTo)
	}

	sqlQuery += " ORDER BY rank, a.ord LIMIT ?"
	args = append(args, limit)

	rows, err := s.store.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("querying full-text index: %w", err)
	}
	defer rows.Close()

	var hits []driven.TextHit //nolint:prealloc // size unknown from query
	for rows.Next() {
		var hit driven.TextHit
		var rank float64
		if err := rows.Scan(&hit.ArticleID, &rank); err != nil {
			return nil, fmt.Errorf("scanning hit: %w", err)
		}
		hit.Score = -rank
		hits = append(hits, hit)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating hits: %w", err)
	}
	return hits, nil
}

// ftsQuery quotes each term so user input cannot inject FTS5 query syntax.
func ftsQuery(query string) string {
	terms := strings.Fields(query)
	quoted := make([]string, len(terms))
	for i, t := range terms {
		quoted[i] = `"` + strings.ReplaceAll(t, `"`, `""`) + `"`
	}
	return strings.Join(quoted, " ")
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// insertDocument inserts one document row inside a transaction.
func insertDocument(ctx context.Context, tx *sql.Tx, doc *domain.Document) error {
	metadataJSON, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("marshalling metadata: %w", err)
	}

	now := time.Now().UTC()
	if doc.ExtractedAt.IsZero() {
		doc.ExtractedAt = now
	}
	doc.UpdatedAt = now

	_, err = tx.ExecContext(ctx, `
		INSERT INTO documents (`+documentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, doc.ID, doc.Site, doc.NormType, doc.NormNumber, doc.NormDate, doc.Title,
		doc.SourceURL, doc.SourceFile, string(doc.Method), doc.PageCount, doc.CharCount,
		doc.DeclaredArticles, string(metadataJSON), string(doc.State), string(doc.ErrorStage),
		doc.ExtractedAt, doc.UpdatedAt)

	if err != nil {
		switch {
		case isUniqueViolation(err):
			return domain.ErrDuplicateKey
		case isForeignKeyViolation(err):
			return fmt.Errorf("source %q: %w", doc.Site, domain.ErrNotFound)
		}
		return fmt.Errorf("inserting document: %w", err)
	}
	return nil
}

// insertArticles inserts an article batch inside a transaction with one
// prepared statement.
func insertArticles(ctx context.Context, tx *sql.Tx, articles []domain.Article) error {
	if len(articles) == 0 {
		return nil
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO articles (`+articleColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, a := range articles {
		if _, err := stmt.ExecContext(ctx, a.ID, a.DocumentID, a.Number, a.Title,
			a.Content, a.RawText, a.Order, a.NormType, a.NormDate, a.Site); err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("article order %d: %w", a.Order, domain.ErrInvalidOrder)
			}
			return fmt.Errorf("inserting article %s: %w", a.ID, err)
		}
	}
	return nil
}

// scanDocument scans one document row through a Scan function.
func scanDocument(scan func(dest ...any) error) (*domain.Document, error) {
	var doc domain.Document
	var method, state, errStage, metadataJSON string
	var extractedAt, updatedAt sql.NullTime

	if err := scan(&doc.ID, &doc.Site, &doc.NormType, &doc.NormNumber, &doc.NormDate,
		&doc.Title, &doc.SourceURL, &doc.SourceFile, &method, &doc.PageCount,
		&doc.CharCount, &doc.DeclaredArticles, &metadataJSON, &state, &errStage,
		&extractedAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning document: %w", err)
	}

	doc.Method = domain.ExtractionMethod(method)
	doc.State = domain.DocumentState(state)
	doc.ErrorStage = domain.Stage(errStage)
	if metadataJSON != "" && metadataJSON != jsonNull {
		if err := json.Unmarshal([]byte(metadataJSON), &doc.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshaling metadata: %w", err)
		}
	}
	if extractedAt.Valid {
		doc.ExtractedAt = extractedAt.Time
	}
	if updatedAt.Valid {
		doc.UpdatedAt = updatedAt.Time
	}

	return &doc, nil
}

// scanArticle scans one article row through a Scan function.
func scanArticle(scan func(dest ...any) error) (*domain.Article, error) {
	var a domain.Article
	if err := scan(&a.ID, &a.DocumentID, &a.Number, &a.Title, &a.Content,
		&a.RawText, &a.Order, &a.NormType, &a.NormDate, &a.Site); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning article: %w", err)
	}
	return &a, nil
}
