package driving

import (
	"context"

	"github.com/lexdata-bo/normadex/internal/core/domain"
)

// RegistryService manages the source catalog.
type RegistryService interface {
	// Register stores a source. Without upsert, an existing site key fails
	// with domain.ErrDuplicateKey; with upsert, non-key fields are
	// overwritten and UpdatedAt refreshed.
	Register(ctx context.Context, source domain.Source, upsert bool) error

	// Get retrieves a source by site key.
	Get(ctx context.Context, site string) (*domain.Source, error)

	// List returns all sources in registration order.
	List(ctx context.Context) ([]domain.Source, error)

	// ListEnabled returns scraping-enabled sources in registration order.
	ListEnabled(ctx context.Context) ([]domain.Source, error)

	// Remove deletes a source with no referencing documents.
	// Returns domain.ErrSourceInUse otherwise.
	Remove(ctx context.Context, site string) error
}
