package ports

import (
	"context"
	"time"

	"github.com/google/uuid"

	"NewsAtlas/internal/domain"
)

// RawArticleStore persists articles exactly as fetched. Upserts are keyed by
// source URL; re-fetching a known URL must not create a second record.
type RawArticleStore interface {
	Upsert(ctx context.Context, article domain.RawArticle) (inserted bool, err error)
	ListUnconsolidated(ctx context.Context, limit int) ([]domain.RawArticle, error)
	MarkConsolidated(ctx context.Context, sourceURLs []string) error
}

// CanonicalArticleStore persists merged articles. Content fields are written by
// the deduplication engine only; coordinates by SetCoordinates only.
type CanonicalArticleStore interface {
	Upsert(ctx context.Context, article domain.CanonicalArticle) error
	FindByFingerprint(ctx context.Context, fingerprint string) (*domain.CanonicalArticle, error)
	FindByMemberURL(ctx context.Context, sourceURL string) (*domain.CanonicalArticle, error)
	ListPublishedBetween(ctx context.Context, from, to time.Time) ([]domain.CanonicalArticle, error)
	ListMissingCoordinates(ctx context.Context, limit int) ([]domain.CanonicalArticle, error)
	SetCoordinates(ctx context.Context, id uuid.UUID, coord domain.Coordinate) error
}

// GeoCacheStore persists resolved place lookups across process restarts.
// Put is last-write-wins; concurrent writers for the same key are acceptable.
type GeoCacheStore interface {
	Get(ctx context.Context, placeKey string) (*domain.GeoCacheEntry, error)
	Put(ctx context.Context, entry domain.GeoCacheEntry) error
}

// Geocoder resolves a free-text place name to coordinates. A nil result with a
// nil error means the provider answered but knows no such place.
type Geocoder interface {
	Name() string
	Geocode(ctx context.Context, place string) (*domain.Coordinate, error)
}

// Scheduler drives a recurring job. Start returns immediately; the job runs
// in the background until Stop or context cancellation.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
