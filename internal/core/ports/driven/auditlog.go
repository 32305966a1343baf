package driven

import (
	"context"

	"github.com/lexdata-bo/normadex/internal/core/domain"
)

// AuditLog persists append-only pipeline operation records.
// Entries are never updated or deleted by normal operation.
type AuditLog interface {
	// Append stores an entry, assigning its sequence number and timestamp.
	Append(ctx context.Context, entry *domain.AuditEntry) error

	// Recent returns the newest entries, most recent first.
	Recent(ctx context.Context, limit int) ([]domain.AuditEntry, error)

	// ForDocument returns all entries referencing a document, oldest first.
	ForDocument(ctx context.Context, documentID string) ([]domain.AuditEntry, error)
}
