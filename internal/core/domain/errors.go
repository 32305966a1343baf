package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey indicates a uniqueness violation on a non-upsert path.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrSourceInUse indicates a source cannot be removed because documents reference it.
	ErrSourceInUse = errors.New("source is referenced by one or more documents")

	// ErrOrphanDocument indicates an article batch targets a document that does not exist.
	ErrOrphanDocument = errors.New("document does not exist")

	// ErrOrphanArticle indicates an embedding targets an article that does not exist.
	ErrOrphanArticle = errors.New("article does not exist")

	// ErrEmptyContent indicates an article was submitted without normalised content.
	// Persisted articles must never have empty content.
	ErrEmptyContent = errors.New("article content is empty")

	// ErrInvalidOrder indicates duplicate or non-monotonic article ordering
	// within a document batch.
	ErrInvalidOrder = errors.New("article order is not strictly increasing")

	// ErrDimensionMismatch indicates a vector's length disagrees with the
	// model's declared dimensionality.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrIncompleteSegmentation indicates the persisted article count differs
	// from the declared count beyond the configured tolerance. The document
	// stays in its current state; re-extraction resolves it.
	ErrIncompleteSegmentation = errors.New("persisted article count does not match declared count")

	// ErrPartialVectorization indicates some articles of a document lack an
	// embedding for the active model. The document stays processed; missing
	// articles are retried independently.
	ErrPartialVectorization = errors.New("not all articles have embeddings")

	// ErrInvalidTransition indicates a lifecycle transition the state machine
	// does not permit.
	ErrInvalidTransition = errors.New("invalid lifecycle transition")
)
