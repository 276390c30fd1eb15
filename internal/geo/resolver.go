package geo

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"NewsAtlas/internal/config"
	"NewsAtlas/internal/domain"
	"NewsAtlas/internal/ports"
)

// Resolver attaches coordinates to canonical articles. Place names are found
// by the gazetteer, then resolved through the configured geocoding providers
// with a persistent read-through cache in front of them.
type Resolver struct {
	canonical ports.CanonicalArticleStore
	cache     ports.GeoCacheStore
	providers []ports.Geocoder
	cfg       config.GeoConfig
	gazetteer *Gazetteer
	logger    *slog.Logger

	mu       sync.Mutex
	lastCall map[string]time.Time
	// places every provider failed to resolve this process; retried on restart
	misses map[string]struct{}
}

// NewResolver orders providers per cfg.ProviderOrder. Providers named in the
// order but not supplied are skipped.
func NewResolver(canonical ports.CanonicalArticleStore, cache ports.GeoCacheStore, providers []ports.Geocoder, cfg config.GeoConfig, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	byName := map[string]ports.Geocoder{}
	for _, p := range providers {
		byName[p.Name()] = p
	}
	var ordered []ports.Geocoder
	for _, name := range cfg.ProviderOrder {
		if p, ok := byName[name]; ok {
			ordered = append(ordered, p)
		}
	}
	return &Resolver{
		canonical: canonical,
		cache:     cache,
		providers: ordered,
		cfg:       cfg,
		gazetteer: NewGazetteer(),
		logger:    logger,
		lastCall:  map[string]time.Time{},
		misses:    map[string]struct{}{},
	}
}

// Resolve finds the first place mentioned in text that geocodes successfully.
// A nil coordinate with a nil error means no mentioned place could be
// resolved, which is a valid terminal state for an article.
func (r *Resolver) Resolve(ctx context.Context, text string) (*domain.Coordinate, error) {
	for _, key := range r.gazetteer.Extract(text) {
		coord, err := r.resolvePlace(ctx, key)
		if err != nil {
			return nil, err
		}
		if coord != nil {
			return coord, nil
		}
	}
	return nil, nil
}

// EnrichPending resolves coordinates for canonical articles that have none.
// batch zero means all pending. Provider trouble marks the article unresolved
// and moves on; store failures abort the pass.
func (r *Resolver) EnrichPending(ctx context.Context, batch int) (domain.EnrichReport, error) {
	report := domain.EnrichReport{StartedAt: time.Now().UTC()}
	defer func() { report.Duration = time.Since(report.StartedAt) }()

	pending, err := r.canonical.ListMissingCoordinates(ctx, batch)
	if err != nil {
		return report, fmt.Errorf("list missing coordinates: %w", err)
	}

	for _, article := range pending {
		report.Scanned++
		coord, err := r.Resolve(ctx, article.Title+"\n"+article.BodyText)
		if err != nil {
			return report, err
		}
		if coord == nil {
			report.Unresolved++
			continue
		}
		if err := r.canonical.SetCoordinates(ctx, article.ID, *coord); err != nil {
			return report, fmt.Errorf("set coordinates: %w", err)
		}
		report.Resolved++
	}

	r.logger.Info("geolocation pass done",
		"scanned", report.Scanned,
		"resolved", report.Resolved,
		"unresolved", report.Unresolved)

	return report, nil
}

// resolvePlace answers from the cache when possible, otherwise walks the
// provider order until one answers or attempts run out. Successful lookups are
// written back to the cache.
func (r *Resolver) resolvePlace(ctx context.Context, placeKey string) (*domain.Coordinate, error) {
	entry, err := r.cache.Get(ctx, placeKey)
	if err != nil {
		return nil, fmt.Errorf("geo cache get: %w", err)
	}
	if entry != nil {
		return &domain.Coordinate{Lat: entry.Lat, Lng: entry.Lng}, nil
	}

	r.mu.Lock()
	_, missed := r.misses[placeKey]
	r.mu.Unlock()
	if missed {
		return nil, nil
	}

	attempts := r.cfg.MaxAttempts
	if attempts <= 0 || attempts > len(r.providers) {
		attempts = len(r.providers)
	}

	for _, provider := range r.providers[:attempts] {
		if err := r.waitTurn(ctx, provider.Name()); err != nil {
			return nil, err
		}
		coord, err := provider.Geocode(ctx, placeQuery(placeKey))
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			r.logger.Warn("provider failed", "provider", provider.Name(), "place", placeKey, "error", err)
			continue
		}
		if coord == nil {
			r.logger.Debug("provider has no result", "provider", provider.Name(), "place", placeKey)
			continue
		}
		put := domain.GeoCacheEntry{
			PlaceKey:   placeKey,
			Lat:        coord.Lat,
			Lng:        coord.Lng,
			Provider:   provider.Name(),
			ResolvedAt: time.Now().UTC(),
		}
		if err := r.cache.Put(ctx, put); err != nil {
			return nil, fmt.Errorf("geo cache put: %w", err)
		}
		return coord, nil
	}

	r.mu.Lock()
	r.misses[placeKey] = struct{}{}
	r.mu.Unlock()
	return nil, nil
}

// placeQuery turns a place key into the free-text form providers expect.
func placeQuery(key string) string {
	return strings.ReplaceAll(key, "_", " ")
}

// waitTurn enforces the configured minimum spacing between calls to one
// provider. Public Nominatim requires at least a second between requests.
func (r *Resolver) waitTurn(ctx context.Context, providerName string) error {
	interval := r.cfg.MinRequestInterval()
	if interval <= 0 {
		return nil
	}

	r.mu.Lock()
	last := r.lastCall[providerName]
	now := time.Now()
	wait := interval - now.Sub(last)
	if wait < 0 {
		wait = 0
	}
	r.lastCall[providerName] = now.Add(wait)
	r.mu.Unlock()

	if wait == 0 {
		return nil
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
