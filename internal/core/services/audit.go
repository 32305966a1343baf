package services

import (
	"context"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/lexdata-bo/normadex/internal/core/domain"
	"github.com/lexdata-bo/normadex/internal/core/ports/driven"
	"github.com/lexdata-bo/normadex/internal/logger"
)

// AuditRecorder writes pipeline operation records to the audit log.
// Recording never fails and never aborts the caller's primary operation:
// persistence errors are swallowed, surfaced via the Dropped counter and
// echoed to the error log as a fallback channel.
type AuditRecorder struct {
	log           driven.AuditLog
	correlationID string
	dropped       atomic.Int64
}

// NewAuditRecorder creates a recorder whose entries share one correlation ID,
// grouping everything written during a single pipeline run.
func NewAuditRecorder(log driven.AuditLog) *AuditRecorder {
	return &AuditRecorder{
		log:           log,
		correlationID: uuid.NewString(),
	}
}

// CorrelationID returns the ID shared by all entries of this recorder.
func (r *AuditRecorder) CorrelationID() string {
	return r.correlationID
}

// Record appends one audit entry. documentID and site may be empty.
func (r *AuditRecorder) Record(
	ctx context.Context,
	op domain.Operation,
	status domain.AuditStatus,
	message string,
	detail map[string]any,
	documentID, site string,
) {
	entry := domain.AuditEntry{
		DocumentID:    documentID,
		Site:          site,
		Operation:     op,
		Status:        status,
		Message:       message,
		Detail:        detail,
		CorrelationID: r.correlationID,
	}

	if r.log == nil {
		r.dropped.Add(1)
		return
	}

	if err := r.log.Append(ctx, &entry); err != nil {
		r.dropped.Add(1)
		logger.Error("audit entry dropped (%s/%s on %q): %v", op, status, documentID, err)
	}
}

// Dropped returns how many entries failed to persist.
func (r *AuditRecorder) Dropped() int64 {
	return r.dropped.Load()
}
