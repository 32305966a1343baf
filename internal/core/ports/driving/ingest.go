package driving

import (
	"context"

	"github.com/lexdata-bo/normadex/internal/core/domain"
)

// IngestService accepts results from the external extraction and embedding
// collaborators and drives the document lifecycle state machine.
//
// Every operation is idempotent: external stages are retried by their own
// callers without coordination, so re-running a stage on a document already
// in or past its target state is a no-op success.
type IngestService interface {
	// ExtractionComplete creates a document in state extracted together
	// with its ordered article batch, atomically. When the document already
	// exists the configured conflict policy decides between
	// domain.ErrDuplicateKey and a full replace; a mixed article set is
	// never produced. A document in state error on the extract stage is
	// always replaced (successful retry).
	ExtractionComplete(ctx context.Context, doc domain.Document, articles []domain.Article) error

	// MarkProcessed transitions extracted → processed after validating the
	// persisted article set against the declared count. Fails with
	// domain.ErrIncompleteSegmentation beyond the configured tolerance.
	MarkProcessed(ctx context.Context, documentID string) error

	// VectorizationComplete upserts one article's embedding and extends the
	// vector index. Vector length must match the model's dimensionality.
	VectorizationComplete(ctx context.Context, articleID, model string, vector []float32) error

	// MarkVectorized transitions processed → vectorized once every article
	// has an embedding for the active model. Fails with
	// domain.ErrPartialVectorization while any article lacks one; the
	// document stays processed and missing articles retry independently.
	MarkVectorized(ctx context.Context, documentID string) error

	// FailStage moves a document into the error state, recording the failed
	// stage and persisting the reason in the audit log.
	FailStage(ctx context.Context, documentID string, stage domain.Stage, reason string, detail map[string]any) error

	// Retry returns the stage a document in state error should re-run, and
	// restores the document to the state preceding that stage so the stage
	// guards apply again. Calling it on a non-error document returns the
	// empty stage and no error.
	Retry(ctx context.Context, documentID string) (domain.Stage, error)

	// DeleteDocument removes a document, cascading to its articles and
	// their embeddings, atomically as observed by readers.
	DeleteDocument(ctx context.Context, documentID string) error

	// ReplaceArticles performs a corrective re-extraction of one document's
	// article set (diff upsert keyed on order).
	ReplaceArticles(ctx context.Context, documentID string, articles []domain.Article) error
}
