package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lexdata-bo/normadex/internal/core/domain"
	"github.com/lexdata-bo/normadex/internal/core/ports/driven"
	"github.com/lexdata-bo/normadex/internal/core/ports/driving"
	"github.com/lexdata-bo/normadex/internal/logger"
)

// Ensure Ingestor implements the interface.
var _ driving.IngestService = (*Ingestor)(nil)

// Ingestor accepts extraction and vectorisation results and drives the
// document lifecycle state machine. All transitions for one document are
// serialised through a per-document lock plus a state-conditional update
// in the store, so racing retries lose cleanly instead of clobbering
// each other.
type Ingestor struct {
	sources    driven.SourceStore
	docs       driven.DocumentStore
	embeddings driven.EmbeddingStore
	index      driven.VectorIndex
	config     driven.ConfigStore
	audit      *AuditRecorder
	locks      *keyedMutex
}

// NewIngestor creates a new ingest service.
// The vector index, config store and audit recorder are optional (can be nil).
func NewIngestor(
	sources driven.SourceStore,
	docs driven.DocumentStore,
	embeddings driven.EmbeddingStore,
	index driven.VectorIndex,
	config driven.ConfigStore,
	audit *AuditRecorder,
) *Ingestor {
	if audit == nil {
		audit = NewAuditRecorder(nil)
	}
	return &Ingestor{
		sources:    sources,
		docs:       docs,
		embeddings: embeddings,
		index:      index,
		config:     config,
		audit:      audit,
		locks:      newKeyedMutex(),
	}
}

// ActiveModel returns the embedding model the vectorize stage targets.
func (g *Ingestor) ActiveModel() string {
	return cfgString(g.config, keyActiveModel, defaultModel)
}

// ExtractionComplete creates a document in state extracted together with its
// ordered article batch, atomically.
func (g *Ingestor) ExtractionComplete(ctx context.Context, doc domain.Document, articles []domain.Article) error {
	if doc.ID == "" {
		doc.ID = domain.DocumentID(doc.Site, doc.NormType, doc.NormNumber, doc.NormDate)
	}

	logger.Section("Extraction Complete")
	logger.Debug("Document %s with %d articles", doc.ID, len(articles))

	if _, err := g.sources.Get(ctx, doc.Site); err != nil {
		return fmt.Errorf("extraction for %s: source %q: %w", doc.ID, doc.Site, err)
	}

	prepared, err := prepareArticles(&doc, articles)
	if err != nil {
		return fmt.Errorf("extraction for %s: %w", doc.ID, err)
	}

	doc.State = domain.StateExtracted
	doc.ErrorStage = ""
	if doc.ExtractedAt.IsZero() {
		doc.ExtractedAt = time.Now().UTC()
	}

	unlock := g.locks.Lock(doc.ID)
	defer unlock()

	existing, err := g.docs.GetDocument(ctx, doc.ID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		if err := g.docs.CreateDocument(ctx, &doc, prepared); err != nil {
			// A concurrent creator may have won between the read and the
			// insert; surface its duplicate as such.
			return fmt.Errorf("create document %s: %w", doc.ID, err)
		}
	case err != nil:
		return fmt.Errorf("get document %s: %w", doc.ID, err)
	default:
		retryingExtract := existing.State == domain.StateError && existing.ErrorStage == domain.StageExtract
		if !retryingExtract && !cfgBool(g.config, keyReplaceOnConflict, false) {
			return fmt.Errorf("document %s: %w", doc.ID, domain.ErrDuplicateKey)
		}
		if err := g.docs.ReplaceDocument(ctx, &doc, prepared); err != nil {
			return fmt.Errorf("replace document %s: %w", doc.ID, err)
		}
	}

	g.audit.Record(ctx, domain.OpExtract, domain.AuditOK,
		fmt.Sprintf("extracted %d articles", len(prepared)),
		map[string]any{"articles": len(prepared), "declared": doc.DeclaredArticles, "method": string(doc.Method)},
		doc.ID, doc.Site)

	logger.Info("Document %s entered state %s", doc.ID, domain.StateExtracted)
	return nil
}

// MarkProcessed transitions extracted → processed after validating the
// persisted article count against the declared count.
func (g *Ingestor) MarkProcessed(ctx context.Context, documentID string) error {
	unlock := g.locks.Lock(documentID)
	defer unlock()

	doc, err := g.docs.GetDocument(ctx, documentID)
	if err != nil {
		return fmt.Errorf("get document %s: %w", documentID, err)
	}

	if doc.State.AtOrPast(domain.StateProcessed) {
		logger.Debug("Document %s already %s, process is a no-op", documentID, doc.State)
		g.audit.Record(ctx, domain.OpExtract, domain.AuditSkipped, "already processed", nil, documentID, doc.Site)
		return nil
	}
	if doc.State != domain.StateExtracted {
		return fmt.Errorf("process document %s in state %s: %w", documentID, doc.State, domain.ErrInvalidTransition)
	}

	count, err := g.docs.CountArticles(ctx, documentID)
	if err != nil {
		return fmt.Errorf("count articles of %s: %w", documentID, err)
	}

	// Source pagination text is unreliable, so the declared count only has
	// to match within the configured tolerance. A declared count of zero
	// means the source announced nothing and the check is skipped.
	tolerance := cfgInt(g.config, keySegmentationTolerance, defaultTolerance)
	if doc.DeclaredArticles > 0 && abs(doc.DeclaredArticles-count) > tolerance {
		g.audit.Record(ctx, domain.OpExtract, domain.AuditError,
			"segmentation incomplete",
			map[string]any{"declared": doc.DeclaredArticles, "persisted": count, "tolerance": tolerance},
			documentID, doc.Site)
		return fmt.Errorf("document %s declared %d articles, persisted %d: %w",
			documentID, doc.DeclaredArticles, count, domain.ErrIncompleteSegmentation)
	}

	moved, err := g.docs.TransitionState(ctx, documentID, domain.StateExtracted, domain.StateProcessed, "")
	if err != nil {
		return fmt.Errorf("transition %s to processed: %w", documentID, err)
	}
	if !moved {
		// Lost the conditional update: a concurrent caller completed the
		// same stage first. Idempotent success as long as the document is
		// at or past the target now.
		return g.verifyReached(ctx, documentID, domain.StateProcessed)
	}

	g.audit.Record(ctx, domain.OpExtract, domain.AuditOK,
		fmt.Sprintf("processed with %d articles", count),
		map[string]any{"articles": count}, documentID, doc.Site)

	logger.Info("Document %s entered state %s", documentID, domain.StateProcessed)
	return nil
}

// VectorizationComplete upserts one article's embedding and extends the
// vector index. Independent per (article, model): callers may submit results
// for different articles fully in parallel.
func (g *Ingestor) VectorizationComplete(ctx context.Context, articleID, model string, vector []float32) error {
	if model == "" {
		return fmt.Errorf("vectorization of %s: %w: empty model", articleID, domain.ErrInvalidInput)
	}
	if len(vector) == 0 {
		return fmt.Errorf("vectorization of %s: %w: empty vector", articleID, domain.ErrInvalidInput)
	}

	article, err := g.docs.GetArticle(ctx, articleID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("vectorization of %s: %w", articleID, domain.ErrOrphanArticle)
		}
		return fmt.Errorf("get article %s: %w", articleID, err)
	}

	emb := domain.Embedding{
		ArticleID: articleID,
		Model:     model,
		Vector:    vector,
		CreatedAt: time.Now().UTC(),
	}
	if err := g.embeddings.Upsert(ctx, emb); err != nil {
		return fmt.Errorf("upsert embedding (%s, %s): %w", articleID, model, err)
	}

	if g.index != nil {
		if err := g.index.Add(ctx, model, articleID, vector); err != nil {
			// The store row is authoritative; the index catches up on rebuild.
			logger.Warn("Vector index add failed for %s: %v", articleID, err)
		}
	}

	g.audit.Record(ctx, domain.OpVectorize, domain.AuditOK,
		fmt.Sprintf("embedded article %s", articleID),
		map[string]any{"model": model, "dimension": len(vector)},
		article.DocumentID, article.Site)

	return nil
}

// MarkVectorized transitions processed → vectorized once every article of
// the document has an embedding for the active model.
func (g *Ingestor) MarkVectorized(ctx context.Context, documentID string) error {
	unlock := g.locks.Lock(documentID)
	defer unlock()

	doc, err := g.docs.GetDocument(ctx, documentID)
	if err != nil {
		return fmt.Errorf("get document %s: %w", documentID, err)
	}

	if doc.State.AtOrPast(domain.StateVectorized) {
		logger.Debug("Document %s already %s, vectorize is a no-op", documentID, doc.State)
		g.audit.Record(ctx, domain.OpVectorize, domain.AuditSkipped, "already vectorized", nil, documentID, doc.Site)
		return nil
	}
	if doc.State != domain.StateProcessed {
		return fmt.Errorf("vectorize document %s in state %s: %w", documentID, doc.State, domain.ErrInvalidTransition)
	}

	model := g.ActiveModel()
	missing, err := g.embeddings.MissingForDocument(ctx, documentID, model)
	if err != nil {
		return fmt.Errorf("find missing embeddings of %s: %w", documentID, err)
	}
	if len(missing) > 0 {
		// Partial failure does not regress already vectorised articles:
		// the document stays processed and only the missing ones retry.
		g.audit.Record(ctx, domain.OpVectorize, domain.AuditError,
			fmt.Sprintf("%d articles missing embeddings", len(missing)),
			map[string]any{"model": model, "missing": missing},
			documentID, doc.Site)
		return fmt.Errorf("document %s missing %d embeddings for model %s (%s): %w",
			documentID, len(missing), model, strings.Join(missing, ", "), domain.ErrPartialVectorization)
	}

	moved, err := g.docs.TransitionState(ctx, documentID, domain.StateProcessed, domain.StateVectorized, "")
	if err != nil {
		return fmt.Errorf("transition %s to vectorized: %w", documentID, err)
	}
	if !moved {
		return g.verifyReached(ctx, documentID, domain.StateVectorized)
	}

	g.audit.Record(ctx, domain.OpVectorize, domain.AuditOK, "fully vectorized",
		map[string]any{"model": model}, documentID, doc.Site)

	logger.Info("Document %s entered state %s", documentID, domain.StateVectorized)
	return nil
}

// FailStage moves a document into the error state, recording the failed
// stage so a retry can re-attempt it. The failure reason is persisted in the
// audit log, not lost.
func (g *Ingestor) FailStage(ctx context.Context, documentID string, stage domain.Stage, reason string, detail map[string]any) error {
	unlock := g.locks.Lock(documentID)
	defer unlock()

	doc, err := g.docs.GetDocument(ctx, documentID)
	if err != nil {
		return fmt.Errorf("get document %s: %w", documentID, err)
	}
	if doc.State == domain.StateError {
		logger.Debug("Document %s already in error state", documentID)
		return nil
	}

	moved, err := g.docs.TransitionState(ctx, documentID, doc.State, domain.StateError, stage)
	if err != nil {
		return fmt.Errorf("fail document %s: %w", documentID, err)
	}
	if !moved {
		return fmt.Errorf("fail document %s: %w: state changed concurrently", documentID, domain.ErrInvalidTransition)
	}

	op := stageOperation(stage)
	g.audit.Record(ctx, op, domain.AuditError, reason, detail, documentID, doc.Site)

	logger.Warn("Document %s failed at stage %s: %s", documentID, stage, reason)
	return nil
}

// Retry restores a document in state error to the state preceding its failed
// stage and returns that stage so the caller resubmits the right work.
// The extract stage has no preceding persisted state; its retry happens
// through ExtractionComplete, which replaces a document failed on extract.
func (g *Ingestor) Retry(ctx context.Context, documentID string) (domain.Stage, error) {
	unlock := g.locks.Lock(documentID)
	defer unlock()

	doc, err := g.docs.GetDocument(ctx, documentID)
	if err != nil {
		return "", fmt.Errorf("get document %s: %w", documentID, err)
	}
	if doc.State != domain.StateError {
		return "", nil
	}

	stage := doc.ErrorStage
	if stage == "" {
		stage = domain.StageExtract
	}

	var previous domain.DocumentState
	switch stage {
	case domain.StageProcess:
		previous = domain.StateExtracted
	case domain.StageVectorize:
		previous = domain.StateProcessed
	default:
		// Extract failures keep the error state until the collaborator
		// resubmits the whole document.
		return domain.StageExtract, nil
	}

	moved, err := g.docs.TransitionState(ctx, documentID, domain.StateError, previous, "")
	if err != nil {
		return "", fmt.Errorf("retry document %s: %w", documentID, err)
	}
	if !moved {
		return "", fmt.Errorf("retry document %s: %w: state changed concurrently", documentID, domain.ErrInvalidTransition)
	}

	logger.Info("Document %s restored to %s for retry of stage %s", documentID, previous, stage)
	return stage, nil
}

// DeleteDocument removes a document, cascading to its articles and their
// embeddings inside one transactional boundary, then prunes the vector index.
func (g *Ingestor) DeleteDocument(ctx context.Context, documentID string) error {
	unlock := g.locks.Lock(documentID)
	defer unlock()

	articles, err := g.docs.GetArticles(ctx, documentID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("list articles of %s: %w", documentID, err)
	}

	if err := g.docs.DeleteDocument(ctx, documentID); err != nil {
		return fmt.Errorf("delete document %s: %w", documentID, err)
	}

	// Index pruning happens after the transactional cascade: the search
	// service tolerates index entries whose article no longer hydrates.
	if g.index != nil {
		for _, a := range articles {
			if err := g.index.Delete(ctx, a.ID); err != nil {
				logger.Warn("Vector index delete failed for %s: %v", a.ID, err)
			}
		}
	}

	logger.Info("Deleted document %s with %d articles", documentID, len(articles))
	return nil
}

// ReplaceArticles performs a corrective re-extraction of one document's
// article set.
func (g *Ingestor) ReplaceArticles(ctx context.Context, documentID string, articles []domain.Article) error {
	unlock := g.locks.Lock(documentID)
	defer unlock()

	doc, err := g.docs.GetDocument(ctx, documentID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("replace articles of %s: %w", documentID, domain.ErrOrphanDocument)
		}
		return fmt.Errorf("get document %s: %w", documentID, err)
	}

	prepared, err := prepareArticles(doc, articles)
	if err != nil {
		return fmt.Errorf("replace articles of %s: %w", documentID, err)
	}

	if err := g.docs.PutArticles(ctx, documentID, prepared); err != nil {
		return fmt.Errorf("put articles of %s: %w", documentID, err)
	}

	g.audit.Record(ctx, domain.OpExtract, domain.AuditOK,
		fmt.Sprintf("re-extracted %d articles", len(prepared)),
		map[string]any{"articles": len(prepared)}, documentID, doc.Site)

	return nil
}

// verifyReached re-reads a document after a lost conditional update and
// treats the race as success when the winner reached the same target.
func (g *Ingestor) verifyReached(ctx context.Context, documentID string, target domain.DocumentState) error {
	doc, err := g.docs.GetDocument(ctx, documentID)
	if err != nil {
		return fmt.Errorf("get document %s: %w", documentID, err)
	}
	if doc.State.AtOrPast(target) {
		return nil
	}
	return fmt.Errorf("document %s moved to %s concurrently: %w", documentID, doc.State, domain.ErrInvalidTransition)
}

// prepareArticles validates a batch and fills the derived fields: article
// IDs, ownership and the denormalised norm columns used on the search path.
func prepareArticles(doc *domain.Document, articles []domain.Article) ([]domain.Article, error) {
	prepared := make([]domain.Article, len(articles))
	lastOrder := 0
	for i, a := range articles {
		if strings.TrimSpace(a.Content) == "" {
			return nil, fmt.Errorf("article at index %d: %w", i, domain.ErrEmptyContent)
		}
		if a.Order <= lastOrder {
			return nil, fmt.Errorf("article at index %d (order %d after %d): %w", i, a.Order, lastOrder, domain.ErrInvalidOrder)
		}
		lastOrder = a.Order

		a.DocumentID = doc.ID
		a.ID = domain.ArticleID(doc.ID, a.Order)
		a.NormType = doc.NormType
		a.NormDate = doc.NormDate
		a.Site = doc.Site
		prepared[i] = a
	}
	return prepared, nil
}

func stageOperation(stage domain.Stage) domain.Operation {
	switch stage {
	case domain.StageVectorize:
		return domain.OpVectorize
	case domain.StageExtract, domain.StageProcess:
		return domain.OpExtract
	default:
		return domain.OpScrape
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
