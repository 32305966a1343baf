package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/lexdata-bo/normadex/internal/core/domain"
	"github.com/lexdata-bo/normadex/internal/core/ports/driven"
	"github.com/lexdata-bo/normadex/internal/core/ports/driving"
	"github.com/lexdata-bo/normadex/internal/logger"
)

// Ensure Searcher implements the interface.
var _ driving.SearchService = (*Searcher)(nil)

// Searcher answers retrieval queries by combining vector index ranking with
// joins across the article, document and source relations. The read path
// takes no locks and tolerates concurrent writers extending the index:
// hits whose article no longer hydrates are skipped.
type Searcher struct {
	docs    driven.DocumentStore
	sources driven.SourceStore
	index   driven.VectorIndex
	config  driven.ConfigStore
}

// NewSearcher creates a new search service.
// The vector index and config store are optional (can be nil); without an
// index, vector queries degrade to empty results.
func NewSearcher(
	docs driven.DocumentStore,
	sources driven.SourceStore,
	index driven.VectorIndex,
	config driven.ConfigStore,
) *Searcher {
	return &Searcher{docs: docs, sources: sources, index: index, config: config}
}

// SearchVector ranks articles by cosine similarity against the query vector.
func (s *Searcher) SearchVector(
	ctx context.Context, queryVector []float32, model string, limit int, threshold float64,
) ([]domain.SearchResult, error) {
	return s.vectorLeg(ctx, queryVector, model, limit, threshold, domain.SearchFilters{})
}

// Search runs a text, vector or hybrid query per the request mode.
func (s *Searcher) Search(ctx context.Context, req domain.SearchRequest) ([]domain.SearchResult, error) {
	logger.Section("Search Execution")

	limit := req.Limit
	if limit <= 0 {
		limit = cfgInt(s.config, keySearchLimit, defaultLimit)
	}
	threshold := req.Threshold
	if threshold == 0 {
		threshold = cfgFloat(s.config, keySimilarityThreshold, defaultThreshold)
	}

	hasText := strings.TrimSpace(req.QueryText) != ""
	hasVector := len(req.QueryVector) > 0

	mode := req.Mode
	if mode == domain.SearchModeAuto {
		switch {
		case hasText && hasVector:
			mode = domain.SearchModeHybrid
		case hasVector:
			mode = domain.SearchModeVector
		default:
			mode = domain.SearchModeText
		}
	}

	switch mode {
	case domain.SearchModeText:
		if !hasText {
			return []domain.SearchResult{}, nil
		}
		return s.textLeg(ctx, req.QueryText, limit, req.Filters)

	case domain.SearchModeVector:
		if !hasVector {
			return []domain.SearchResult{}, nil
		}
		return s.vectorLeg(ctx, req.QueryVector, req.Model, limit, threshold, req.Filters)

	case domain.SearchModeHybrid:
		if !hasText {
			return s.vectorLeg(ctx, req.QueryVector, req.Model, limit, threshold, req.Filters)
		}
		if !hasVector {
			return s.textLeg(ctx, req.QueryText, limit, req.Filters)
		}
		return s.hybrid(ctx, req, limit, threshold)

	default:
		return []domain.SearchResult{}, nil
	}
}

// vectorLeg is the similarity leg: index ranking, threshold filter,
// deterministic ordering and hydration.
func (s *Searcher) vectorLeg(
	ctx context.Context, query []float32, model string, limit int, threshold float64, filters domain.SearchFilters,
) ([]domain.SearchResult, error) {
	if s.index == nil || len(query) == 0 {
		logger.Debug("Vector leg unavailable, returning empty")
		return []domain.SearchResult{}, nil
	}
	if limit <= 0 {
		limit = cfgInt(s.config, keySearchLimit, defaultLimit)
	}
	if threshold == 0 {
		threshold = cfgFloat(s.config, keySimilarityThreshold, defaultThreshold)
	}
	if model == "" {
		model = cfgString(s.config, keyActiveModel, defaultModel)
	}

	// Over-fetch so the threshold and metadata filters do not starve the
	// final page.
	k := limit * 4
	hits, err := s.index.Search(ctx, model, query, k)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	logger.Debug("Vector leg: %d raw hits for model %s", len(hits), model)

	results := make([]domain.SearchResult, 0, len(hits))
	for _, hit := range hits {
		if hit.Similarity < threshold {
			continue
		}
		res, err := s.hydrate(ctx, hit.ArticleID, hit.Similarity, filters)
		if err != nil {
			return nil, err
		}
		if res != nil {
			results = append(results, *res)
		}
	}

	sortVectorResults(results)
	if len(results) > limit {
		results = results[:limit]
	}
	logger.Info("Vector leg: %d results", len(results))
	return results, nil
}

// textLeg is the full-text leg: ranked match with scores normalised to 0..1.
// The store orders by relevance with ties broken by article order, and
// normalisation preserves that order.
func (s *Searcher) textLeg(
	ctx context.Context, query string, limit int, filters domain.SearchFilters,
) ([]domain.SearchResult, error) {
	hits, err := s.docs.SearchText(ctx, query, filters, limit)
	if err != nil {
		return nil, fmt.Errorf("text search: %w", err)
	}
	logger.Debug("Text leg: %d hits", len(hits))

	maxScore := 0.0
	for _, h := range hits {
		if h.Score > maxScore {
			maxScore = h.Score
		}
	}

	results := make([]domain.SearchResult, 0, len(hits))
	for _, hit := range hits {
		score := hit.Score
		if maxScore > 0 {
			score = hit.Score / maxScore
		}
		res, err := s.hydrate(ctx, hit.ArticleID, score, domain.SearchFilters{})
		if err != nil {
			return nil, err
		}
		if res != nil {
			results = append(results, *res)
		}
	}
	return results, nil
}

// hybrid runs both legs in parallel and merges them by article with the
// configured weights. A failing leg degrades the query to the surviving leg
// rather than failing the whole search.
func (s *Searcher) hybrid(
	ctx context.Context, req domain.SearchRequest, limit int, threshold float64,
) ([]domain.SearchResult, error) {
	// Each leg over-fetches so the merged page is not starved.
	legLimit := limit * 2

	var textResults, vectorResults []domain.SearchResult
	var textErr, vectorErr error

	var eg errgroup.Group
	eg.Go(func() error {
		textResults, textErr = s.textLeg(ctx, req.QueryText, legLimit, req.Filters)
		return nil
	})
	eg.Go(func() error {
		vectorResults, vectorErr = s.vectorLeg(ctx, req.QueryVector, req.Model, legLimit, threshold, req.Filters)
		return nil
	})
	_ = eg.Wait()

	if textErr != nil && vectorErr != nil {
		return nil, fmt.Errorf("hybrid search: text=%w, vector=%w", textErr, vectorErr)
	}
	if textErr != nil {
		logger.Warn("Hybrid search: text leg failed, using vector results only: %v", textErr)
		return truncate(vectorResults, limit), nil
	}
	if vectorErr != nil {
		logger.Warn("Hybrid search: vector leg failed, using text results only: %v", vectorErr)
		return truncate(textResults, limit), nil
	}

	textW := cfgFloat(s.config, keyHybridTextWeight, defaultTextW)
	vectorW := cfgFloat(s.config, keyHybridVectorWeight, defaultVectorW)

	merged := make(map[string]domain.SearchResult, len(textResults)+len(vectorResults))
	for _, r := range textResults {
		r.Score *= textW
		merged[r.ArticleID] = r
	}
	for _, r := range vectorResults {
		if prev, ok := merged[r.ArticleID]; ok {
			prev.Score += r.Score * vectorW
			merged[prev.ArticleID] = prev
			continue
		}
		r.Score *= vectorW
		merged[r.ArticleID] = r
	}

	results := make([]domain.SearchResult, 0, len(merged))
	for _, r := range merged {
		results = append(results, r)
	}
	sortVectorResults(results)

	logger.Info("Hybrid search: %d merged results", len(results))
	return truncate(results, limit), nil
}

// hydrate joins a hit with its article, document and source. Returns nil
// when the article vanished under a concurrent delete or the filters reject
// it.
func (s *Searcher) hydrate(
	ctx context.Context, articleID string, score float64, filters domain.SearchFilters,
) (*domain.SearchResult, error) {
	article, err := s.docs.GetArticle(ctx, articleID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get article %s: %w", articleID, err)
	}

	if !matchesFilters(article, filters) {
		return nil, nil
	}

	doc, err := s.docs.GetDocument(ctx, article.DocumentID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get document %s: %w", article.DocumentID, err)
	}

	sourceName := ""
	if s.sources != nil {
		if src, err := s.sources.Get(ctx, doc.Site); err == nil {
			sourceName = src.Name
		}
	}

	return &domain.SearchResult{
		ArticleID:   article.ID,
		Number:      article.Number,
		Content:     article.Content,
		NormType:    doc.NormType,
		NormNumber:  doc.NormNumber,
		NormDate:    doc.NormDate,
		Site:        doc.Site,
		SourceName:  sourceName,
		Score:       score,
		ExtractedAt: doc.ExtractedAt,
		Order:       article.Order,
	}, nil
}

// matchesFilters applies the metadata filters to a hydrated article.
func matchesFilters(a *domain.Article, f domain.SearchFilters) bool {
	if len(f.Sites) > 0 && !containsFold(f.Sites, a.Site) {
		return false
	}
	if len(f.NormTypes) > 0 && !containsFold(f.NormTypes, a.NormType) {
		return false
	}
	if !f.DateFrom.IsZero() && a.NormDate.Before(f.DateFrom) {
		return false
	}
	if !f.DateTo.IsZero() && a.NormDate.After(f.DateTo) {
		return false
	}
	return true
}

func containsFold(haystack []string, needle string) bool {
	for _, h := range haystack {
		if strings.EqualFold(h, needle) {
			return true
		}
	}
	return false
}

// sortVectorResults applies the deterministic ranking order: score
// descending, then document recency descending, then article order
// ascending.
func sortVectorResults(results []domain.SearchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if !results[i].ExtractedAt.Equal(results[j].ExtractedAt) {
			return results[i].ExtractedAt.After(results[j].ExtractedAt)
		}
		return results[i].Order < results[j].Order
	})
}

func truncate(results []domain.SearchResult, limit int) []domain.SearchResult {
	if len(results) > limit {
		return results[:limit]
	}
	return results
}
