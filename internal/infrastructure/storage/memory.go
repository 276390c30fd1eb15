package storage

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"NewsAtlas/internal/domain"
	"NewsAtlas/internal/ports"
)

// MemoryRawStore is an in-memory ports.RawArticleStore used for tests and
// DSN-less single-shot runs.
type MemoryRawStore struct {
	mu    sync.Mutex
	items map[string]domain.RawArticle
	order []string
}

var _ ports.RawArticleStore = (*MemoryRawStore)(nil)

// NewMemoryRawStore builds an empty store.
func NewMemoryRawStore() *MemoryRawStore {
	return &MemoryRawStore{items: map[string]domain.RawArticle{}}
}

// Upsert inserts or refreshes the article keyed by source URL. The
// consolidated marker survives refreshes.
func (s *MemoryRawStore) Upsert(ctx context.Context, article domain.RawArticle) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.items[article.SourceURL]
	if ok {
		article.Consolidated = existing.Consolidated
		s.items[article.SourceURL] = article
		return false, nil
	}
	s.items[article.SourceURL] = article
	s.order = append(s.order, article.SourceURL)
	return true, nil
}

// ListUnconsolidated returns unabsorbed articles in insertion order.
func (s *MemoryRawStore) ListUnconsolidated(ctx context.Context, limit int) ([]domain.RawArticle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.RawArticle
	for _, url := range s.order {
		item := s.items[url]
		if item.Consolidated {
			continue
		}
		out = append(out, item)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// MarkConsolidated sets the consolidated marker on the given URLs.
func (s *MemoryRawStore) MarkConsolidated(ctx context.Context, sourceURLs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, url := range sourceURLs {
		if item, ok := s.items[url]; ok {
			item.Consolidated = true
			s.items[url] = item
		}
	}
	return nil
}

// MemoryCanonicalStore is an in-memory ports.CanonicalArticleStore.
type MemoryCanonicalStore struct {
	mu    sync.Mutex
	items map[uuid.UUID]domain.CanonicalArticle
	order []uuid.UUID
}

var _ ports.CanonicalArticleStore = (*MemoryCanonicalStore)(nil)

// NewMemoryCanonicalStore builds an empty store.
func NewMemoryCanonicalStore() *MemoryCanonicalStore {
	return &MemoryCanonicalStore{items: map[uuid.UUID]domain.CanonicalArticle{}}
}

// Upsert stores the article by ID, preserving previously set coordinates.
func (s *MemoryCanonicalStore) Upsert(ctx context.Context, article domain.CanonicalArticle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.items[article.ID]
	if ok {
		if article.Lat == nil {
			article.Lat = existing.Lat
			article.Lng = existing.Lng
		}
	} else {
		s.order = append(s.order, article.ID)
	}
	s.items[article.ID] = article
	return nil
}

// FindByFingerprint returns the canonical with the given content fingerprint.
func (s *MemoryCanonicalStore) FindByFingerprint(ctx context.Context, fingerprint string) (*domain.CanonicalArticle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range s.order {
		if s.items[id].ContentFingerprint == fingerprint {
			item := s.items[id]
			return &item, nil
		}
	}
	return nil, nil
}

// FindByMemberURL returns the canonical claiming the given source URL.
func (s *MemoryCanonicalStore) FindByMemberURL(ctx context.Context, sourceURL string) (*domain.CanonicalArticle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range s.order {
		if s.items[id].HasMember(sourceURL) {
			item := s.items[id]
			return &item, nil
		}
	}
	return nil, nil
}

// ListPublishedBetween returns canonicals published within [from, to].
func (s *MemoryCanonicalStore) ListPublishedBetween(ctx context.Context, from, to time.Time) ([]domain.CanonicalArticle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.CanonicalArticle
	for _, id := range s.order {
		item := s.items[id]
		at := item.PublishedAt
		if at.IsZero() {
			at = item.FetchedAt
		}
		if !at.Before(from) && !at.After(to) {
			out = append(out, item)
		}
	}
	return out, nil
}

// ListMissingCoordinates returns canonicals without coordinates in insertion order.
func (s *MemoryCanonicalStore) ListMissingCoordinates(ctx context.Context, limit int) ([]domain.CanonicalArticle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.CanonicalArticle
	for _, id := range s.order {
		item := s.items[id]
		if item.HasCoordinates() {
			continue
		}
		out = append(out, item)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// SetCoordinates updates only the coordinate fields of one record.
func (s *MemoryCanonicalStore) SetCoordinates(ctx context.Context, id uuid.UUID, coord domain.Coordinate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[id]
	if !ok {
		return nil
	}
	lat, lng := coord.Lat, coord.Lng
	item.Lat = &lat
	item.Lng = &lng
	s.items[id] = item
	return nil
}

// All returns every canonical in insertion order, for tests and reports.
func (s *MemoryCanonicalStore) All() []domain.CanonicalArticle {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.CanonicalArticle, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.items[id])
	}
	return out
}

// MemoryGeoCache is an in-memory ports.GeoCacheStore. Writes are
// last-write-wins, matching the cache's idempotence contract.
type MemoryGeoCache struct {
	mu    sync.Mutex
	items map[string]domain.GeoCacheEntry
}

var _ ports.GeoCacheStore = (*MemoryGeoCache)(nil)

// NewMemoryGeoCache builds an empty cache store.
func NewMemoryGeoCache() *MemoryGeoCache {
	return &MemoryGeoCache{items: map[string]domain.GeoCacheEntry{}}
}

// Get returns the entry for the place key, or nil when absent.
func (s *MemoryGeoCache) Get(ctx context.Context, placeKey string) (*domain.GeoCacheEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, ok := s.items[placeKey]; ok {
		return &entry, nil
	}
	return nil, nil
}

// Put stores the entry under its place key.
func (s *MemoryGeoCache) Put(ctx context.Context, entry domain.GeoCacheEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items[entry.PlaceKey] = entry
	return nil
}
