package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/lexdata-bo/normadex/internal/core/domain"
	"github.com/lexdata-bo/normadex/internal/core/ports/driven"
	"github.com/lexdata-bo/normadex/internal/core/ports/driving"
	"github.com/lexdata-bo/normadex/internal/logger"
)

// Ensure Registry implements the interface.
var _ driving.RegistryService = (*Registry)(nil)

// Registry manages the source catalog.
type Registry struct {
	sources driven.SourceStore
	audit   *AuditRecorder
}

// NewRegistry creates a new source registry service.
// The audit recorder is optional (can be nil).
func NewRegistry(sources driven.SourceStore, audit *AuditRecorder) *Registry {
	if audit == nil {
		audit = NewAuditRecorder(nil)
	}
	return &Registry{sources: sources, audit: audit}
}

// Register stores a source. Without upsert an existing site key fails with
// domain.ErrDuplicateKey; with upsert the non-key fields are overwritten.
func (r *Registry) Register(ctx context.Context, source domain.Source, upsert bool) error {
	source.Site = strings.TrimSpace(source.Site)
	if source.Site == "" {
		return fmt.Errorf("%w: empty site key", domain.ErrInvalidInput)
	}
	if source.Name == "" {
		return fmt.Errorf("%w: empty source name", domain.ErrInvalidInput)
	}

	err := r.sources.Create(ctx, source)
	if err == nil {
		logger.Info("Registered source %q", source.Site)
		return nil
	}
	if !errors.Is(err, domain.ErrDuplicateKey) {
		return fmt.Errorf("register source %q: %w", source.Site, err)
	}
	if !upsert {
		return fmt.Errorf("register source %q: %w", source.Site, domain.ErrDuplicateKey)
	}

	if err := r.sources.Update(ctx, source); err != nil {
		return fmt.Errorf("update source %q: %w", source.Site, err)
	}
	logger.Info("Updated source %q", source.Site)
	return nil
}

// Get retrieves a source by site key.
func (r *Registry) Get(ctx context.Context, site string) (*domain.Source, error) {
	src, err := r.sources.Get(ctx, site)
	if err != nil {
		return nil, fmt.Errorf("get source %q: %w", site, err)
	}
	return src, nil
}

// List returns all sources in registration order.
func (r *Registry) List(ctx context.Context) ([]domain.Source, error) {
	srcs, err := r.sources.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	return srcs, nil
}

// ListEnabled returns scraping-enabled sources in registration order.
func (r *Registry) ListEnabled(ctx context.Context) ([]domain.Source, error) {
	srcs, err := r.sources.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}

	enabled := make([]domain.Source, 0, len(srcs))
	for _, s := range srcs {
		if s.Config.ScrapingEnabled {
			enabled = append(enabled, s)
		}
	}
	return enabled, nil
}

// Remove deletes a source with no referencing documents.
func (r *Registry) Remove(ctx context.Context, site string) error {
	if err := r.sources.Delete(ctx, site); err != nil {
		return fmt.Errorf("remove source %q: %w", site, err)
	}
	logger.Info("Removed source %q", site)
	return nil
}
