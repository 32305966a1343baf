package domain

import (
	"fmt"
	"time"
)

// Article represents one numbered subdivision of a Document's text.
// Content is immutable after persistence except for corrective re-extraction.
type Article struct {
	// ID is the composite identifier, derived from (document ID, order).
	ID string

	// DocumentID links to the owning Document.
	DocumentID string

	// Number is the article number as printed in the source ("Artículo 5").
	Number string

	// Title is the article heading, when the source prints one.
	Title string

	// Content is the normalised article text. Never empty once persisted.
	Content string

	// RawText is the unprocessed text before normalisation.
	RawText string

	// Order is the position within the document, strictly increasing.
	Order int

	// NormType, NormDate and Site are denormalised from the owning
	// Document for query locality on the search path.
	NormType string
	NormDate time.Time
	Site     string
}

// ArticleID derives the composite identifier for an article.
func ArticleID(documentID string, order int) string {
	return fmt.Sprintf("%s#%d", documentID, order)
}
