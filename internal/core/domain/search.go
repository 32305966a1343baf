package domain

import "time"

// SearchMode selects which ranking legs a search runs.
type SearchMode int

const (
	// SearchModeAuto picks the best mode for the request: vector when a
	// query vector is present, text when only text is, hybrid when both are.
	SearchModeAuto SearchMode = iota
	// SearchModeText ranks by full-text relevance only.
	SearchModeText
	// SearchModeVector ranks by cosine similarity only.
	SearchModeVector
	// SearchModeHybrid merges both legs with configured weights.
	SearchModeHybrid
)

// SearchFilters restricts search candidates before ranking.
type SearchFilters struct {
	// Sites filters to specific source site keys.
	Sites []string

	// NormTypes filters to specific norm kinds.
	NormTypes []string

	// DateFrom and DateTo bound the norm date, inclusive. Zero means open.
	DateFrom time.Time
	DateTo   time.Time
}

// SearchRequest configures a retrieval query.
type SearchRequest struct {
	// QueryText is the full-text query. Empty disables the text leg.
	QueryText string

	// QueryVector is the query embedding. Nil disables the vector leg.
	QueryVector []float32

	// Model names the embedding model the query vector belongs to.
	Model string

	// Filters restricts candidates.
	Filters SearchFilters

	// Limit caps the result count. Zero means the configured default.
	Limit int

	// Threshold is the minimum cosine similarity for vector hits.
	// Zero means the configured default.
	Threshold float64

	// Mode selects text, vector or hybrid ranking.
	Mode SearchMode
}

// SearchResult is one ranked article joined with its document and source
// context.
type SearchResult struct {
	// ArticleID identifies the matched article.
	ArticleID string

	// Number is the article number as printed.
	Number string

	// Content is the normalised article text.
	Content string

	// NormType, NormNumber and NormDate identify the owning norm.
	NormType   string
	NormNumber string
	NormDate   time.Time

	// Site is the owning source's site key.
	Site string

	// SourceName is the source's display name.
	SourceName string

	// Score is the ranking score: cosine similarity for vector results,
	// normalised text relevance for text results, weighted merge for hybrid.
	Score float64

	// ExtractedAt is the owning document's extraction time, used in
	// deterministic tie-breaking.
	ExtractedAt time.Time

	// Order is the article's position within its document.
	Order int
}
