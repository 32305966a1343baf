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

// sourceStore implements driven.SourceStore.
type sourceStore struct {
	store *Store
}

var _ driven.SourceStore = (*sourceStore)(nil)

// Create stores a new source. The position column preserves registration
// order for listing.
func (s *sourceStore) Create(ctx context.Context, source domain.Source) error {
	configJSON, err := json.Marshal(source.Config)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}

	now := time.Now().UTC()
	if source.CreatedAt.IsZero() {
		source.CreatedAt = now
	}
	source.UpdatedAt = now

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO sources (site, name, url, description, config, position, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, (SELECT COALESCE(MAX(position), 0) + 1 FROM sources), ?, ?)
	`, source.Site, source.Name, source.URL, source.Description, string(configJSON),
		source.CreatedAt, source.UpdatedAt)

	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateKey
		}
		return fmt.Errorf("creating source: %w", err)
	}
	return nil
}

// Update overwrites the non-key fields of an existing source.
func (s *sourceStore) Update(ctx context.Context, source domain.Source) error {
	configJSON, err := json.Marshal(source.Config)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}

	res, err := s.store.db.ExecContext(ctx, `
		UPDATE sources
		SET name = ?, url = ?, description = ?, config = ?, updated_at = ?
		WHERE site = ?
	`, source.Name, source.URL, source.Description, string(configJSON),
		time.Now().UTC(), source.Site)
	if err != nil {
		return fmt.Errorf("updating source: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating source: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Get retrieves a source by site key.
func (s *sourceStore) Get(ctx context.Context, site string) (*domain.Source, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT site, name, url, description, config, position, created_at, updated_at
		FROM sources WHERE site = ?
	`, site)

	return scanSource(row.Scan)
}

// List returns all sources in registration order.
func (s *sourceStore) List(ctx context.Context) ([]domain.Source, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT site, name, url, description, config, position, created_at, updated_at
		FROM sources ORDER BY position
	`)
	if err != nil {
		return nil, fmt.Errorf("querying sources: %w", err)
	}
	defer rows.Close()

	var sources []domain.Source //nolint:prealloc // size unknown from query
	for rows.Next() {
		source, err := scanSource(rows.Scan)
		if err != nil {
			return nil, err
		}
		sources = append(sources, *source)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sources: %w", err)
	}

	return sources, nil
}

// Delete removes a source with no referencing documents.
func (s *sourceStore) Delete(ctx context.Context, site string) error {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var refs int
	if err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM documents WHERE site = ?", site).Scan(&refs); err != nil {
		return fmt.Errorf("counting referencing documents: %w", err)
	}
	if refs > 0 {
		return domain.ErrSourceInUse
	}

	res, err := tx.ExecContext(ctx, "DELETE FROM sources WHERE site = ?", site)
	if err != nil {
		return fmt.Errorf("deleting source: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting source: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// scanSource scans one source row through a Scan function, so it works for
// both *sql.Row and *sql.Rows.
func scanSource(scan func(dest ...any) error) (*domain.Source, error) {
	var source domain.Source
	var configJSON string
	var createdAt, updatedAt sql.NullTime

	if err := scan(&source.Site, &source.Name, &source.URL, &source.Description,
		&configJSON, &source.Position, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning source: %w", err)
	}

	if err := json.Unmarshal([]byte(configJSON), &source.Config); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if createdAt.Valid {
		source.CreatedAt = createdAt.Time
	}
	if updatedAt.Valid {
		source.UpdatedAt = updatedAt.Time
	}

	return &source, nil
}

// isUniqueViolation reports whether err is a SQLite uniqueness violation.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// isForeignKeyViolation reports whether err is a SQLite foreign key violation.
func isForeignKeyViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}
