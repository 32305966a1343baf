package memory

import (
	"context"
	"sync"
	"time"

	"github.com/lexdata-bo/normadex/internal/core/domain"
	"github.com/lexdata-bo/normadex/internal/core/ports/driven"
)

// Ensure SourceStore implements the interface.
var _ driven.SourceStore = (*SourceStore)(nil)

// SourceStore is an in-memory implementation of driven.SourceStore.
type SourceStore struct {
	mu      sync.RWMutex
	sources map[string]domain.Source
	order   []string
	inUse   func(site string) bool
}

// NewSourceStore creates a new in-memory source store.
func NewSourceStore() *SourceStore {
	return &SourceStore{sources: make(map[string]domain.Source)}
}

// SetInUse installs the referential check used by Delete. The sqlite store
// enforces this with a count over documents; in memory the document store
// provides the closure.
func (s *SourceStore) SetInUse(fn func(site string) bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inUse = fn
}

// Create stores a new source.
func (s *SourceStore) Create(_ context.Context, source domain.Source) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sources[source.Site]; ok {
		return domain.ErrDuplicateKey
	}

	now := time.Now().UTC()
	if source.CreatedAt.IsZero() {
		source.CreatedAt = now
	}
	source.UpdatedAt = now
	source.Position = len(s.order) + 1

	s.sources[source.Site] = source
	s.order = append(s.order, source.Site)
	return nil
}

// Update overwrites the non-key fields of an existing source.
func (s *SourceStore) Update(_ context.Context, source domain.Source) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.sources[source.Site]
	if !ok {
		return domain.ErrNotFound
	}

	existing.Name = source.Name
	existing.URL = source.URL
	existing.Description = source.Description
	existing.Config = source.Config
	existing.UpdatedAt = time.Now().UTC()
	s.sources[source.Site] = existing
	return nil
}

// Get retrieves a source by site key.
func (s *SourceStore) Get(_ context.Context, site string) (*domain.Source, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	source, ok := s.sources[site]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &source, nil
}

// List returns all sources in registration order.
func (s *SourceStore) List(_ context.Context) ([]domain.Source, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sources := make([]domain.Source, 0, len(s.order))
	for _, site := range s.order {
		if src, ok := s.sources[site]; ok {
			sources = append(sources, src)
		}
	}
	return sources, nil
}

// Delete removes a source with no referencing documents.
func (s *SourceStore) Delete(_ context.Context, site string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sources[site]; !ok {
		return domain.ErrNotFound
	}
	if s.inUse != nil && s.inUse(site) {
		return domain.ErrSourceInUse
	}

	delete(s.sources, site)
	for i, key := range s.order {
		if key == site {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}
