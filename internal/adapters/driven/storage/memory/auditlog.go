package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/lexdata-bo/normadex/internal/core/domain"
	"github.com/lexdata-bo/normadex/internal/core/ports/driven"
)

// Ensure AuditLog implements the interface.
var _ driven.AuditLog = (*AuditLog)(nil)

// AuditLog is an in-memory implementation of driven.AuditLog.
// FailNext makes the next append fail, for testing the recorder's
// swallow-and-count behaviour.
type AuditLog struct {
	mu       sync.RWMutex
	entries  []domain.AuditEntry
	failNext bool
}

// NewAuditLog creates a new in-memory audit log.
func NewAuditLog() *AuditLog {
	return &AuditLog{}
}

// FailNext forces the next Append to fail.
func (l *AuditLog) FailNext() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failNext = true
}

// Append stores an entry, assigning its sequence number and timestamp.
func (l *AuditLog) Append(_ context.Context, entry *domain.AuditEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.failNext {
		l.failNext = false
		return errors.New("audit sink unavailable")
	}

	entry.Seq = int64(len(l.entries) + 1)
	if entry.At.IsZero() {
		entry.At = time.Now().UTC()
	}
	l.entries = append(l.entries, *entry)
	return nil
}

// Recent returns the newest entries, most recent first.
func (l *AuditLog) Recent(_ context.Context, limit int) ([]domain.AuditEntry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if limit <= 0 || limit > len(l.entries) {
		limit = len(l.entries)
	}
	recent := make([]domain.AuditEntry, 0, limit)
	for i := len(l.entries) - 1; i >= 0 && len(recent) < limit; i-- {
		recent = append(recent, l.entries[i])
	}
	return recent, nil
}

// ForDocument returns all entries referencing a document, oldest first.
func (l *AuditLog) ForDocument(_ context.Context, documentID string) ([]domain.AuditEntry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var entries []domain.AuditEntry //nolint:prealloc // filtered below
	for _, e := range l.entries {
		if e.DocumentID == documentID {
			entries = append(entries, e)
		}
	}
	return entries, nil
}

// All returns every entry, oldest first. Test helper.
func (l *AuditLog) All() []domain.AuditEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]domain.AuditEntry(nil), l.entries...)
}
