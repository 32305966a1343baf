package domain

import (
	"fmt"
	"strings"
	"time"
)

// ExtractionMethod describes how a document's text was obtained.
type ExtractionMethod string

const (
	// ExtractionDirect is direct text extraction from a digital original.
	ExtractionDirect ExtractionMethod = "direct-text"
	// ExtractionOCR is optical character recognition over a scan.
	ExtractionOCR ExtractionMethod = "ocr"
	// ExtractionMarkup is extraction from structured HTML/XML markup.
	ExtractionMarkup ExtractionMethod = "structured-markup"
	// ExtractionAPI is retrieval through a publisher API.
	ExtractionAPI ExtractionMethod = "api"
)

// Document represents one complete norm as extracted from a source.
type Document struct {
	// ID is the deterministic composite identifier,
	// derived from (site, norm type, norm number, norm date).
	ID string

	// Site links to the Source that published this norm.
	Site string

	// NormType is the kind of norm (e.g., "ley", "decreto supremo").
	NormType string

	// NormNumber is the official number as printed (e.g., "1178").
	NormNumber string

	// NormDate is the promulgation date of the norm.
	NormDate time.Time

	// Title is the official title.
	Title string

	// SourceURL is where the document was fetched from.
	SourceURL string

	// SourceFile references the fetched file (path or object key).
	SourceFile string

	// Method records how the text was extracted.
	Method ExtractionMethod

	// PageCount is the page count of the source file.
	PageCount int

	// CharCount is the character count of the extracted text.
	CharCount int

	// DeclaredArticles is the article count announced by the source text.
	// Source pagination text is unreliable, so this may disagree with the
	// persisted count within a configured tolerance.
	DeclaredArticles int

	// Metadata holds the original metadata blob from the publisher.
	Metadata map[string]any

	// State is the lifecycle state (extracted, processed, vectorized, error).
	State DocumentState

	// ErrorStage remembers which stage failed when State is StateError,
	// so a retry can re-attempt that stage.
	ErrorStage Stage

	// ExtractedAt is when extraction completed and the document entered the store.
	ExtractedAt time.Time

	// UpdatedAt is when the document was last mutated.
	UpdatedAt time.Time
}

// DocumentID derives the deterministic composite identifier for a norm.
// Components are lower-cased and internal whitespace collapsed to single
// dashes so repeated extractions of the same norm converge on one ID.
func DocumentID(site, normType, normNumber string, normDate time.Time) string {
	return fmt.Sprintf("%s:%s:%s:%s",
		slugComponent(site),
		slugComponent(normType),
		slugComponent(normNumber),
		normDate.Format("2006-01-02"))
}

func slugComponent(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(s))), "-")
}
