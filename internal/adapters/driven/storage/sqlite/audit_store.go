package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lexdata-bo/normadex/internal/core/domain"
	"github.com/lexdata-bo/normadex/internal/core/ports/driven"
)

// auditLog implements driven.AuditLog. The table is append-only: no update
// or delete statements exist in this adapter.
type auditLog struct {
	store *Store
}

var _ driven.AuditLog = (*auditLog)(nil)

// Append stores an entry, assigning its sequence number and timestamp.
func (s *auditLog) Append(ctx context.Context, entry *domain.AuditEntry) error {
	detailJSON, err := json.Marshal(entry.Detail)
	if err != nil {
		return fmt.Errorf("marshalling detail: %w", err)
	}

	if entry.At.IsZero() {
		entry.At = time.Now().UTC()
	}

	res, err := s.store.db.ExecContext(ctx, `
		INSERT INTO audit_log (document_id, site, operation, status, message, detail, correlation_id, at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, nullString(entry.DocumentID), nullString(entry.Site), string(entry.Operation),
		string(entry.Status), entry.Message, string(detailJSON), entry.CorrelationID, entry.At)
	if err != nil {
		return fmt.Errorf("appending audit entry: %w", err)
	}

	seq, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading sequence: %w", err)
	}
	entry.Seq = seq
	return nil
}

// Recent returns the newest entries, most recent first.
func (s *auditLog) Recent(ctx context.Context, limit int) ([]domain.AuditEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT seq, document_id, site, operation, status, message, detail, correlation_id, at
		FROM audit_log ORDER BY seq DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying audit log: %w", err)
	}
	defer rows.Close()

	return scanAuditEntries(rows)
}

// ForDocument returns all entries referencing a document, oldest first.
func (s *auditLog) ForDocument(ctx context.Context, documentID string) ([]domain.AuditEntry, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT seq, document_id, site, operation, status, message, detail, correlation_id, at
		FROM audit_log WHERE document_id = ? ORDER BY seq
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("querying audit log: %w", err)
	}
	defer rows.Close()

	return scanAuditEntries(rows)
}

func scanAuditEntries(rows *sql.Rows) ([]domain.AuditEntry, error) {
	var entries []domain.AuditEntry //nolint:prealloc // size unknown from query
	for rows.Next() {
		var e domain.AuditEntry
		var docID, site sql.NullString
		var operation, status, detailJSON string
		var at sql.NullTime
		if err := rows.Scan(&e.Seq, &docID, &site, &operation, &status,
			&e.Message, &detailJSON, &e.CorrelationID, &at); err != nil {
			return nil, fmt.Errorf("scanning audit entry: %w", err)
		}

		e.DocumentID = docID.String
		e.Site = site.String
		e.Operation = domain.Operation(operation)
		e.Status = domain.AuditStatus(status)
		if detailJSON != "" && detailJSON != jsonNull {
			if err := json.Unmarshal([]byte(detailJSON), &e.Detail); err != nil {
				return nil, fmt.Errorf("unmarshaling detail: %w", err)
			}
		}
		if at.Valid {
			e.At = at.Time
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audit entries: %w", err)
	}
	return entries, nil
}

// nullString converts an empty string to a SQL NULL.
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
