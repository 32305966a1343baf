package domain

import "time"

// Operation is the pipeline operation kind recorded in the audit log.
type Operation string

const (
	// OpScrape is a fetch of source material by the crawler.
	OpScrape Operation = "scrape"
	// OpExtract is text extraction and segmentation into articles.
	OpExtract Operation = "extract"
	// OpVectorize is embedding generation for articles.
	OpVectorize Operation = "vectorize"
	// OpExport is report or dataset export.
	OpExport Operation = "export"
)

// AuditStatus is the outcome recorded for an audit entry.
type AuditStatus string

const (
	// AuditOK marks a successful step.
	AuditOK AuditStatus = "ok"
	// AuditError marks a failed step. The failure reason lives in Message/Detail.
	AuditError AuditStatus = "error"
	// AuditSkipped marks a step that was a no-op (e.g., idempotent re-run).
	AuditSkipped AuditStatus = "skipped"
)

// AuditEntry is one append-only record of a pipeline operation.
// Entries are never updated or deleted by normal operation.
type AuditEntry struct {
	// Seq is the auto-incrementing sequence number, assigned by the store.
	Seq int64

	// DocumentID optionally links the entry to a document.
	DocumentID string

	// Site optionally links the entry to a source.
	Site string

	// Operation is the pipeline operation kind.
	Operation Operation

	// Status is the outcome.
	Status AuditStatus

	// Message is a free-text description.
	Message string

	// Detail is a structured blob with stage-specific context.
	Detail map[string]any

	// CorrelationID groups entries belonging to one pipeline run.
	CorrelationID string

	// At is when the entry was recorded.
	At time.Time
}
