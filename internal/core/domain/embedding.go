package domain

import "time"

// Embedding is a fixed-dimension vector representation of an Article's
// content for one embedding model. At most one embedding exists per
// (article, model); re-vectorising with the same model replaces the vector.
type Embedding struct {
	// ArticleID links to the embedded Article.
	ArticleID string

	// Model is the generating model's name (e.g., "text-embedding-3-small").
	Model string

	// Vector is the embedding. Its length is fixed per model.
	Vector []float32

	// CreatedAt is when this vector was (re)generated.
	CreatedAt time.Time
}
