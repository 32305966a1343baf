package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexdata-bo/normadex/internal/adapters/driven/index/bruteforce"
	"github.com/lexdata-bo/normadex/internal/adapters/driven/storage/memory"
	"github.com/lexdata-bo/normadex/internal/core/domain"
)

type ingestFixture struct {
	sources    *memory.SourceStore
	docs       *memory.DocumentStore
	embeddings *memory.EmbeddingStore
	index      *bruteforce.Index
	config     *memory.ConfigStore
	audit      *memory.AuditLog
	ingest     *Ingestor
}

func newIngestFixture(t *testing.T) *ingestFixture {
	t.Helper()

	f := &ingestFixture{
		sources:    memory.NewSourceStore(),
		docs:       memory.NewDocumentStore(),
		embeddings: memory.NewEmbeddingStore(),
		index:      bruteforce.New(),
		config:     memory.NewConfigStore(),
		audit:      memory.NewAuditLog(),
	}
	f.docs.SetEmbeddingStore(f.embeddings)
	f.embeddings.SetDocumentStore(f.docs)
	f.sources.SetInUse(f.docs.HasDocumentsForSite)

	require.NoError(t, f.sources.Create(context.Background(), domain.Source{
		Site: "gaceta",
		Name: "Gaceta Oficial de Bolivia",
		URL:  "https://gacetaoficialdebolivia.gob.bo",
	}))

	f.ingest = NewIngestor(f.sources, f.docs, f.embeddings, f.index, f.config, NewAuditRecorder(f.audit))
	return f
}

func testDocument(declared int) domain.Document {
	return domain.Document{
		Site:             "gaceta",
		NormType:         "ley",
		NormNumber:       "1178",
		NormDate:         time.Date(1990, 7, 20, 0, 0, 0, 0, time.UTC),
		Title:            "Ley de Administración y Control Gubernamentales",
		Method:           domain.ExtractionDirect,
		DeclaredArticles: declared,
	}
}

func testArticles(n int) []domain.Article {
	articles := make([]domain.Article, n)
	for i := range articles {
		articles[i] = domain.Article{
			Number:  fmt.Sprintf("Artículo %d", i+1),
			Content: fmt.Sprintf("Contenido del artículo %d sobre administración gubernamental.", i+1),
			Order:   i + 1,
		}
	}
	return articles
}

func (f *ingestFixture) extract(t *testing.T, declared, articles int) string {
	t.Helper()

	doc := testDocument(declared)
	require.NoError(t, f.ingest.ExtractionComplete(context.Background(), doc, testArticles(articles)))
	return domain.DocumentID(doc.Site, doc.NormType, doc.NormNumber, doc.NormDate)
}

func TestIngestor_ExtractionComplete(t *testing.T) {
	f := newIngestFixture(t)
	ctx := context.Background()

	id := f.extract(t, 3, 3)

	doc, err := f.docs.GetDocument(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.StateExtracted, doc.State)
	assert.False(t, doc.ExtractedAt.IsZero())

	articles, err := f.docs.GetArticles(ctx, id)
	require.NoError(t, err)
	require.Len(t, articles, 3)

	// Derived fields are filled from the owning document.
	assert.Equal(t, domain.ArticleID(id, 1), articles[0].ID)
	assert.Equal(t, id, articles[0].DocumentID)
	assert.Equal(t, "ley", articles[0].NormType)
	assert.Equal(t, "gaceta", articles[0].Site)
}

func TestIngestor_ExtractionComplete_UnknownSource(t *testing.T) {
	f := newIngestFixture(t)

	doc := testDocument(1)
	doc.Site = "tribunal"
	err := f.ingest.ExtractionComplete(context.Background(), doc, testArticles(1))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestIngestor_ExtractionComplete_RejectsEmptyContent(t *testing.T) {
	f := newIngestFixture(t)

	articles := testArticles(2)
	articles[1].Content = "   "
	err := f.ingest.ExtractionComplete(context.Background(), testDocument(2), articles)
	assert.ErrorIs(t, err, domain.ErrEmptyContent)
}

func TestIngestor_ExtractionComplete_RejectsNonIncreasingOrder(t *testing.T) {
	f := newIngestFixture(t)

	articles := testArticles(3)
	articles[2].Order = 2 // duplicate of articles[1]
	err := f.ingest.ExtractionComplete(context.Background(), testDocument(3), articles)
	assert.ErrorIs(t, err, domain.ErrInvalidOrder)

	articles = testArticles(1)
	articles[0].Order = 0
	err = f.ingest.ExtractionComplete(context.Background(), testDocument(1), articles)
	assert.ErrorIs(t, err, domain.ErrInvalidOrder)
}

func TestIngestor_ExtractionComplete_DuplicateWithoutReplace(t *testing.T) {
	f := newIngestFixture(t)

	f.extract(t, 2, 2)
	err := f.ingest.ExtractionComplete(context.Background(), testDocument(2), testArticles(2))
	assert.ErrorIs(t, err, domain.ErrDuplicateKey)
}

func TestIngestor_ExtractionComplete_ReplaceOnConflict(t *testing.T) {
	f := newIngestFixture(t)
	ctx := context.Background()
	require.NoError(t, f.config.Set("replace_on_conflict", true))

	id := f.extract(t, 2, 2)
	f.extract(t, 3, 3)

	articles, err := f.docs.GetArticles(ctx, id)
	require.NoError(t, err)
	assert.Len(t, articles, 3)

	doc, err := f.docs.GetDocument(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 3, doc.DeclaredArticles)
}

func TestIngestor_ExtractionComplete_RetriesFailedExtract(t *testing.T) {
	f := newIngestFixture(t)
	ctx := context.Background()

	id := f.extract(t, 2, 2)
	require.NoError(t, f.ingest.FailStage(ctx, id, domain.StageExtract, "truncated source file", nil))

	// Resubmission replaces a document failed on extract even without the
	// replace_on_conflict setting.
	require.NoError(t, f.ingest.ExtractionComplete(ctx, testDocument(2), testArticles(2)))

	doc, err := f.docs.GetDocument(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.StateExtracted, doc.State)
	assert.Empty(t, doc.ErrorStage)
}

func TestIngestor_MarkProcessed(t *testing.T) {
	f := newIngestFixture(t)
	ctx := context.Background()

	id := f.extract(t, 3, 3)
	require.NoError(t, f.ingest.MarkProcessed(ctx, id))

	doc, err := f.docs.GetDocument(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.StateProcessed, doc.State)
}

func TestIngestor_MarkProcessed_SegmentationMismatch(t *testing.T) {
	f := newIngestFixture(t)
	ctx := context.Background()

	id := f.extract(t, 5, 3)
	err := f.ingest.MarkProcessed(ctx, id)
	assert.ErrorIs(t, err, domain.ErrIncompleteSegmentation)

	// The document stays extracted, not errored: the caller decides
	// whether to fail the stage or re-extract.
	doc, getErr := f.docs.GetDocument(ctx, id)
	require.NoError(t, getErr)
	assert.Equal(t, domain.StateExtracted, doc.State)
}

func TestIngestor_MarkProcessed_ToleratedMismatch(t *testing.T) {
	f := newIngestFixture(t)
	ctx := context.Background()
	require.NoError(t, f.config.Set("segmentation_tolerance", 2))

	id := f.extract(t, 5, 3)
	require.NoError(t, f.ingest.MarkProcessed(ctx, id))

	doc, err := f.docs.GetDocument(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.StateProcessed, doc.State)
}

func TestIngestor_MarkProcessed_SkipsCheckWithoutDeclaredCount(t *testing.T) {
	f := newIngestFixture(t)
	ctx := context.Background()

	id := f.extract(t, 0, 3)
	require.NoError(t, f.ingest.MarkProcessed(ctx, id))
}

func TestIngestor_MarkProcessed_Idempotent(t *testing.T) {
	f := newIngestFixture(t)
	ctx := context.Background()

	id := f.extract(t, 2, 2)
	require.NoError(t, f.ingest.MarkProcessed(ctx, id))
	require.NoError(t, f.ingest.MarkProcessed(ctx, id))

	doc, err := f.docs.GetDocument(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.StateProcessed, doc.State)
}

func TestIngestor_MarkProcessed_FromErrorState(t *testing.T) {
	f := newIngestFixture(t)
	ctx := context.Background()

	id := f.extract(t, 2, 2)
	require.NoError(t, f.ingest.FailStage(ctx, id, domain.StageProcess, "validator crashed", nil))

	err := f.ingest.MarkProcessed(ctx, id)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestIngestor_VectorizationComplete(t *testing.T) {
	f := newIngestFixture(t)
	ctx := context.Background()

	id := f.extract(t, 1, 1)
	articleID := domain.ArticleID(id, 1)

	require.NoError(t, f.ingest.VectorizationComplete(ctx, articleID, "text-embedding-3-small", []float32{1, 0, 0}))

	emb, err := f.embeddings.Get(ctx, articleID, "text-embedding-3-small")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0, 0}, emb.Vector)

	hits, err := f.index.Search(ctx, "text-embedding-3-small", []float32{1, 0, 0}, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, articleID, hits[0].ArticleID)
}

func TestIngestor_VectorizationComplete_Validation(t *testing.T) {
	f := newIngestFixture(t)
	ctx := context.Background()

	id := f.extract(t, 1, 1)
	articleID := domain.ArticleID(id, 1)

	err := f.ingest.VectorizationComplete(ctx, articleID, "", []float32{1})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	err = f.ingest.VectorizationComplete(ctx, articleID, "m", nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	err = f.ingest.VectorizationComplete(ctx, "gaceta:ley:999:2000-01-01#1", "m", []float32{1})
	assert.ErrorIs(t, err, domain.ErrOrphanArticle)
}

func TestIngestor_VectorizationComplete_DimensionMismatch(t *testing.T) {
	f := newIngestFixture(t)
	ctx := context.Background()

	id := f.extract(t, 2, 2)

	require.NoError(t, f.ingest.VectorizationComplete(ctx, domain.ArticleID(id, 1), "m", []float32{1, 0, 0}))
	err := f.ingest.VectorizationComplete(ctx, domain.ArticleID(id, 2), "m", []float32{1, 0})
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}

func TestIngestor_MarkVectorized_PartialFailure(t *testing.T) {
	f := newIngestFixture(t)
	ctx := context.Background()

	id := f.extract(t, 3, 3)
	require.NoError(t, f.ingest.MarkProcessed(ctx, id))

	model := f.ingest.ActiveModel()
	require.NoError(t, f.ingest.VectorizationComplete(ctx, domain.ArticleID(id, 1), model, []float32{1, 0}))
	require.NoError(t, f.ingest.VectorizationComplete(ctx, domain.ArticleID(id, 3), model, []float32{0, 1}))

	// Article 2 has no embedding yet: the document must stay processed and
	// the already embedded articles keep their vectors.
	err := f.ingest.MarkVectorized(ctx, id)
	assert.ErrorIs(t, err, domain.ErrPartialVectorization)

	doc, getErr := f.docs.GetDocument(ctx, id)
	require.NoError(t, getErr)
	assert.Equal(t, domain.StateProcessed, doc.State)

	_, err = f.embeddings.Get(ctx, domain.ArticleID(id, 1), model)
	assert.NoError(t, err, "embedded articles survive a partial vectorization")

	// Supplying the missing embedding completes the document.
	require.NoError(t, f.ingest.VectorizationComplete(ctx, domain.ArticleID(id, 2), model, []float32{1, 1}))
	require.NoError(t, f.ingest.MarkVectorized(ctx, id))

	doc, err = f.docs.GetDocument(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.StateVectorized, doc.State)
}

func TestIngestor_MarkVectorized_Idempotent(t *testing.T) {
	f := newIngestFixture(t)
	ctx := context.Background()

	id := f.extract(t, 1, 1)
	require.NoError(t, f.ingest.MarkProcessed(ctx, id))
	require.NoError(t, f.ingest.VectorizationComplete(ctx, domain.ArticleID(id, 1), f.ingest.ActiveModel(), []float32{1}))
	require.NoError(t, f.ingest.MarkVectorized(ctx, id))
	require.NoError(t, f.ingest.MarkVectorized(ctx, id))
}

func TestIngestor_MarkVectorized_RequiresProcessed(t *testing.T) {
	f := newIngestFixture(t)
	ctx := context.Background()

	id := f.extract(t, 1, 1)
	err := f.ingest.MarkVectorized(ctx, id)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestIngestor_FailStageAndRetry(t *testing.T) {
	f := newIngestFixture(t)
	ctx := context.Background()

	id := f.extract(t, 2, 2)
	require.NoError(t, f.ingest.FailStage(ctx, id, domain.StageProcess, "validation crashed", map[string]any{"panic": true}))

	doc, err := f.docs.GetDocument(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.StateError, doc.State)
	assert.Equal(t, domain.StageProcess, doc.ErrorStage)

	// The failure reason is preserved in the audit trail.
	entries, err := f.audit.ForDocument(ctx, id)
	require.NoError(t, err)
	var found bool
	for _, e := range entries {
		if e.Status == domain.AuditError && e.Message == "validation crashed" {
			found = true
		}
	}
	assert.True(t, found, "failure reason must reach the audit log")

	stage, err := f.ingest.Retry(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.StageProcess, stage)

	doc, err = f.docs.GetDocument(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.StateExtracted, doc.State)

	// The restored document walks the normal chain again.
	require.NoError(t, f.ingest.MarkProcessed(ctx, id))
}

func TestIngestor_Retry_VectorizeStage(t *testing.T) {
	f := newIngestFixture(t)
	ctx := context.Background()

	id := f.extract(t, 1, 1)
	require.NoError(t, f.ingest.MarkProcessed(ctx, id))
	require.NoError(t, f.ingest.FailStage(ctx, id, domain.StageVectorize, "embedding API unavailable", nil))

	stage, err := f.ingest.Retry(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.StageVectorize, stage)

	doc, err := f.docs.GetDocument(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.StateProcessed, doc.State)
}

func TestIngestor_Retry_ExtractStageKeepsError(t *testing.T) {
	f := newIngestFixture(t)
	ctx := context.Background()

	id := f.extract(t, 1, 1)
	require.NoError(t, f.ingest.FailStage(ctx, id, domain.StageExtract, "corrupt pdf", nil))

	stage, err := f.ingest.Retry(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.StageExtract, stage)

	doc, err := f.docs.GetDocument(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.StateError, doc.State)
}

func TestIngestor_Retry_NoOpOutsideError(t *testing.T) {
	f := newIngestFixture(t)

	id := f.extract(t, 1, 1)
	stage, err := f.ingest.Retry(context.Background(), id)
	require.NoError(t, err)
	assert.Empty(t, stage)
}

func TestIngestor_DeleteDocument(t *testing.T) {
	f := newIngestFixture(t)
	ctx := context.Background()

	id := f.extract(t, 2, 2)
	model := f.ingest.ActiveModel()
	require.NoError(t, f.ingest.VectorizationComplete(ctx, domain.ArticleID(id, 1), model, []float32{1, 0}))
	require.NoError(t, f.ingest.VectorizationComplete(ctx, domain.ArticleID(id, 2), model, []float32{0, 1}))

	require.NoError(t, f.ingest.DeleteDocument(ctx, id))

	_, err := f.docs.GetDocument(ctx, id)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.embeddings.Get(ctx, domain.ArticleID(id, 1), model)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	hits, err := f.index.Search(ctx, model, []float32{1, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, hits, "index entries must be pruned")
}

func TestIngestor_ReplaceArticles(t *testing.T) {
	f := newIngestFixture(t)
	ctx := context.Background()

	id := f.extract(t, 3, 3)
	model := f.ingest.ActiveModel()
	require.NoError(t, f.ingest.VectorizationComplete(ctx, domain.ArticleID(id, 3), model, []float32{1}))

	// Corrective re-extraction drops the third article.
	require.NoError(t, f.ingest.ReplaceArticles(ctx, id, testArticles(2)))

	articles, err := f.docs.GetArticles(ctx, id)
	require.NoError(t, err)
	assert.Len(t, articles, 2)

	// The removed article's embedding went with it.
	_, err = f.embeddings.Get(ctx, domain.ArticleID(id, 3), model)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestIngestor_ReplaceArticles_MissingDocument(t *testing.T) {
	f := newIngestFixture(t)

	err := f.ingest.ReplaceArticles(context.Background(), "gaceta:ley:999:2000-01-01", testArticles(1))
	assert.ErrorIs(t, err, domain.ErrOrphanDocument)
}

func TestIngestor_FullLifecycleWalk(t *testing.T) {
	f := newIngestFixture(t)
	ctx := context.Background()

	id := f.extract(t, 3, 3)
	require.NoError(t, f.ingest.MarkProcessed(ctx, id))

	model := f.ingest.ActiveModel()
	for i := 1; i <= 3; i++ {
		vec := []float32{float32(i), 1, 0}
		require.NoError(t, f.ingest.VectorizationComplete(ctx, domain.ArticleID(id, i), model, vec))
	}
	require.NoError(t, f.ingest.MarkVectorized(ctx, id))

	doc, err := f.docs.GetDocument(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.StateVectorized, doc.State)

	entries, err := f.audit.ForDocument(ctx, id)
	require.NoError(t, err)
	assert.NotEmpty(t, entries)
	for _, e := range entries {
		assert.NotEmpty(t, e.CorrelationID)
	}
}

func TestIngestor_ConcurrentExtraction(t *testing.T) {
	f := newIngestFixture(t)
	ctx := context.Background()

	const racers = 8
	var wg sync.WaitGroup
	errs := make([]error, racers)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = f.ingest.ExtractionComplete(ctx, testDocument(3), testArticles(3))
		}(i)
	}
	wg.Wait()

	// Exactly one submission creates the document; the rest observe the
	// duplicate.
	var created, duplicate int
	for _, err := range errs {
		switch {
		case err == nil:
			created++
		case errors.Is(err, domain.ErrDuplicateKey):
			duplicate++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, created)
	assert.Equal(t, racers-1, duplicate)

	// The stored article batch is one racer's complete set, never mixed.
	doc := testDocument(3)
	id := domain.DocumentID(doc.Site, doc.NormType, doc.NormNumber, doc.NormDate)
	articles, err := f.docs.GetArticles(ctx, id)
	require.NoError(t, err)
	assert.Len(t, articles, 3)
}

func TestIngestor_ConcurrentMarkProcessed(t *testing.T) {
	f := newIngestFixture(t)
	ctx := context.Background()

	id := f.extract(t, 4, 4)

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = f.ingest.MarkProcessed(ctx, id)
		}(i)
	}
	wg.Wait()

	// Every racing caller observes success: one wins the transition, the
	// rest see the no-op or the verified lost race.
	for i, err := range errs {
		assert.NoError(t, err, "caller %d", i)
	}

	doc, err := f.docs.GetDocument(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.StateProcessed, doc.State)
}

func TestIngestor_ConcurrentVectorization(t *testing.T) {
	f := newIngestFixture(t)
	ctx := context.Background()

	const n = 10
	id := f.extract(t, n, n)
	require.NoError(t, f.ingest.MarkProcessed(ctx, id))

	model := f.ingest.ActiveModel()
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = f.ingest.VectorizationComplete(ctx, domain.ArticleID(id, i+1), model, []float32{float32(i), 1})
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "article %d", i+1)
	}
	require.NoError(t, f.ingest.MarkVectorized(ctx, id))
}
