package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lexdata-bo/normadex/internal/core/domain"
	"github.com/lexdata-bo/normadex/internal/core/ports/driven"
)

// embeddingStore implements driven.EmbeddingStore.
type embeddingStore struct {
	store *Store
}

var _ driven.EmbeddingStore = (*embeddingStore)(nil)

// Upsert stores or replaces the embedding for (article, model).
// The first vector seen for a model fixes that model's dimensionality.
func (s *embeddingStore) Upsert(ctx context.Context, emb domain.Embedding) error {
	if len(emb.Vector) == 0 {
		return fmt.Errorf("%w: empty vector", domain.ErrInvalidInput)
	}

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var exists int
	if err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM articles WHERE id = ?", emb.ArticleID).Scan(&exists); err != nil {
		return fmt.Errorf("checking article: %w", err)
	}
	if exists == 0 {
		return domain.ErrOrphanArticle
	}

	var dimension int
	err = tx.QueryRowContext(ctx,
		"SELECT dimension FROM embedding_models WHERE model = ?", emb.Model).Scan(&dimension)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO embedding_models (model, dimension) VALUES (?, ?)",
			emb.Model, len(emb.Vector)); err != nil {
			return fmt.Errorf("registering model: %w", err)
		}
	case err != nil:
		return fmt.Errorf("looking up model dimension: %w", err)
	case dimension != len(emb.Vector):
		return fmt.Errorf("model %s expects %d dimensions, got %d: %w",
			emb.Model, dimension, len(emb.Vector), domain.ErrDimensionMismatch)
	}

	if emb.CreatedAt.IsZero() {
		emb.CreatedAt = time.Now().UTC()
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO embeddings (article_id, model, vector, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(article_id, model) DO UPDATE SET
			vector = excluded.vector,
			created_at = excluded.created_at
	`, emb.ArticleID, emb.Model, float32SliceToBytes(emb.Vector), emb.CreatedAt)
	if err != nil {
		return fmt.Errorf("upserting embedding: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Get retrieves the embedding for (article, model).
func (s *embeddingStore) Get(ctx context.Context, articleID, model string) (*domain.Embedding, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT article_id, model, vector, created_at
		FROM embeddings WHERE article_id = ? AND model = ?
	`, articleID, model)

	var emb domain.Embedding
	var blob []byte
	var createdAt sql.NullTime
	if err := row.Scan(&emb.ArticleID, &emb.Model, &blob, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning embedding: %w", err)
	}

	emb.Vector = bytesToFloat32Slice(blob)
	if createdAt.Valid {
		emb.CreatedAt = createdAt.Time
	}
	return &emb, nil
}

// ModelDimension returns the declared dimensionality for a model.
func (s *embeddingStore) ModelDimension(ctx context.Context, model string) (int, error) {
	var dimension int
	err := s.store.db.QueryRowContext(ctx,
		"SELECT dimension FROM embedding_models WHERE model = ?", model).Scan(&dimension)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, domain.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("looking up model dimension: %w", err)
	}
	return dimension, nil
}

// MissingForDocument returns the IDs of a document's articles lacking an
// embedding for the model, in article order.
func (s *embeddingStore) MissingForDocument(ctx context.Context, documentID, model string) ([]string, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT a.id
		FROM articles a
		LEFT JOIN embeddings e ON e.article_id = a.id AND e.model = ?
		WHERE a.document_id = ? AND e.article_id IS NULL
		ORDER BY a.ord
	`, model, documentID)
	if err != nil {
		return nil, fmt.Errorf("querying missing embeddings: %w", err)
	}
	defer rows.Close()

	var missing []string //nolint:prealloc // size unknown from query
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning article id: %w", err)
		}
		missing = append(missing, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating missing embeddings: %w", err)
	}
	return missing, nil
}

// ListByModel returns all embeddings for a model, used to feed the vector
// index.
func (s *embeddingStore) ListByModel(ctx context.Context, model string) ([]domain.Embedding, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT article_id, model, vector, created_at
		FROM embeddings WHERE model = ?
	`, model)
	if err != nil {
		return nil, fmt.Errorf("querying embeddings: %w", err)
	}
	defer rows.Close()

	var embs []domain.Embedding //nolint:prealloc // size unknown from query
	for rows.Next() {
		var emb domain.Embedding
		var blob []byte
		var createdAt sql.NullTime
		if err := rows.Scan(&emb.ArticleID, &emb.Model, &blob, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning embedding: %w", err)
		}
		emb.Vector = bytesToFloat32Slice(blob)
		if createdAt.Valid {
			emb.CreatedAt = createdAt.Time
		}
		embs = append(embs, emb)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating embeddings: %w", err)
	}
	return embs, nil
}
