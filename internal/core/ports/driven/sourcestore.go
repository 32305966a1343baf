package driven

import (
	"context"

	"github.com/lexdata-bo/normadex/internal/core/domain"
)

// SourceStore persists the source catalog.
type SourceStore interface {
	// Create stores a new source. Returns domain.ErrDuplicateKey when the
	// site key already exists.
	Create(ctx context.Context, source domain.Source) error

	// Update overwrites the non-key fields of an existing source.
	// Returns domain.ErrNotFound when the site is unknown.
	Update(ctx context.Context, source domain.Source) error

	// Get retrieves a source by site key.
	Get(ctx context.Context, site string) (*domain.Source, error)

	// List returns all sources in registration order.
	List(ctx context.Context) ([]domain.Source, error)

	// Delete removes a source. Returns domain.ErrSourceInUse while any
	// document references it.
	Delete(ctx context.Context, site string) error
}
