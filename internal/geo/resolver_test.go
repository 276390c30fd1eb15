package geo

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NewsAtlas/internal/config"
	"NewsAtlas/internal/domain"
	"NewsAtlas/internal/infrastructure/storage"
	"NewsAtlas/internal/ports"
)

// stubGeocoder records calls and answers from a fixed table.
type stubGeocoder struct {
	name   string
	coords map[string]domain.Coordinate
	err    error

	mu    sync.Mutex
	calls []string
}

var _ ports.Geocoder = (*stubGeocoder)(nil)

func (s *stubGeocoder) Name() string { return s.name }

func (s *stubGeocoder) Geocode(ctx context.Context, place string) (*domain.Coordinate, error) {
	s.mu.Lock()
	s.calls = append(s.calls, place)
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	if c, ok := s.coords[place]; ok {
		return &c, nil
	}
	return nil, nil
}

func (s *stubGeocoder) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func testGeoConfig() config.GeoConfig {
	return config.GeoConfig{
		ProviderOrder:        []string{"nominatim", "pelias"},
		MinRequestIntervalMS: 0,
		MaxAttempts:          2,
	}
}

func TestResolver_CacheMeansOneProviderCallPerPlace(t *testing.T) {
	nominatim := &stubGeocoder{name: "nominatim", coords: map[string]domain.Coordinate{
		"sylhet": {Lat: 24.89, Lng: 91.87},
	}}
	cache := storage.NewMemoryGeoCache()
	r := NewResolver(storage.NewMemoryCanonicalStore(), cache, []ports.Geocoder{nominatim}, testGeoConfig(), nil)

	for i := 0; i < 3; i++ {
		coord, err := r.Resolve(context.Background(), "Flooding in Sylhet continues")
		require.NoError(t, err)
		require.NotNil(t, coord)
		assert.InDelta(t, 24.89, coord.Lat, 0.001)
	}

	assert.Equal(t, 1, nominatim.callCount())

	entry, err := cache.Get(context.Background(), "sylhet")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, "nominatim", entry.Provider)
}

func TestResolver_FallsBackWhenPrimaryFails(t *testing.T) {
	nominatim := &stubGeocoder{name: "nominatim", err: errors.New("upstream 503")}
	pelias := &stubGeocoder{name: "pelias", coords: map[string]domain.Coordinate{
		"dhaka": {Lat: 23.81, Lng: 90.41},
	}}
	r := NewResolver(storage.NewMemoryCanonicalStore(), storage.NewMemoryGeoCache(),
		[]ports.Geocoder{nominatim, pelias}, testGeoConfig(), nil)

	coord, err := r.Resolve(context.Background(), "Protest in Dhaka today")
	require.NoError(t, err)
	require.NotNil(t, coord)
	assert.InDelta(t, 23.81, coord.Lat, 0.001)
	assert.Equal(t, 1, nominatim.callCount())
	assert.Equal(t, 1, pelias.callCount())
}

func TestResolver_ExhaustionYieldsNoCoordinateNoError(t *testing.T) {
	nominatim := &stubGeocoder{name: "nominatim"}
	pelias := &stubGeocoder{name: "pelias"}
	r := NewResolver(storage.NewMemoryCanonicalStore(), storage.NewMemoryGeoCache(),
		[]ports.Geocoder{nominatim, pelias}, testGeoConfig(), nil)

	coord, err := r.Resolve(context.Background(), "Fire at a Savar factory")
	require.NoError(t, err)
	assert.Nil(t, coord)

	// The miss is remembered for the rest of the run.
	_, err = r.Resolve(context.Background(), "Savar update")
	require.NoError(t, err)
	assert.Equal(t, 1, nominatim.callCount())
	assert.Equal(t, 1, pelias.callCount())
}

func TestResolver_NoPlaceMentioned(t *testing.T) {
	nominatim := &stubGeocoder{name: "nominatim"}
	r := NewResolver(storage.NewMemoryCanonicalStore(), storage.NewMemoryGeoCache(),
		[]ports.Geocoder{nominatim}, testGeoConfig(), nil)

	coord, err := r.Resolve(context.Background(), "Budget debate continues in parliament")
	require.NoError(t, err)
	assert.Nil(t, coord)
	assert.Equal(t, 0, nominatim.callCount())
}

func TestResolver_ProviderOrderFromConfig(t *testing.T) {
	nominatim := &stubGeocoder{name: "nominatim", coords: map[string]domain.Coordinate{
		"khulna": {Lat: 1, Lng: 1},
	}}
	pelias := &stubGeocoder{name: "pelias", coords: map[string]domain.Coordinate{
		"khulna": {Lat: 2, Lng: 2},
	}}
	cfg := testGeoConfig()
	cfg.ProviderOrder = []string{"pelias", "nominatim"}
	r := NewResolver(storage.NewMemoryCanonicalStore(), storage.NewMemoryGeoCache(),
		[]ports.Geocoder{nominatim, pelias}, cfg, nil)

	coord, err := r.Resolve(context.Background(), "Storm over Khulna")
	require.NoError(t, err)
	require.NotNil(t, coord)
	assert.InDelta(t, 2, coord.Lat, 0.001)
	assert.Equal(t, 0, nominatim.callCount())
}

func TestEnrichPending(t *testing.T) {
	canonical := storage.NewMemoryCanonicalStore()
	withPlace := domain.CanonicalArticle{
		ID:                 uuid.MustParse("11111111-1111-1111-1111-111111111111"),
		ContentFingerprint: "fp1",
		Title:              "Flooding in Sylhet worsens",
		BodyText:           "Rivers kept rising through the night.",
	}
	noPlace := domain.CanonicalArticle{
		ID:                 uuid.MustParse("22222222-2222-2222-2222-222222222222"),
		ContentFingerprint: "fp2",
		Title:              "Cabinet reshuffle announced",
		BodyText:           "Three ministries changed hands.",
	}
	require.NoError(t, canonical.Upsert(context.Background(), withPlace))
	require.NoError(t, canonical.Upsert(context.Background(), noPlace))

	nominatim := &stubGeocoder{name: "nominatim", coords: map[string]domain.Coordinate{
		"sylhet": {Lat: 24.89, Lng: 91.87},
	}}
	r := NewResolver(canonical, storage.NewMemoryGeoCache(), []ports.Geocoder{nominatim}, testGeoConfig(), nil)

	report, err := r.EnrichPending(context.Background(), 0)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Scanned)
	assert.Equal(t, 1, report.Resolved)
	assert.Equal(t, 1, report.Unresolved)

	remaining, err := canonical.ListMissingCoordinates(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "fp2", remaining[0].ContentFingerprint)
}

func TestWaitTurn_SpacesProviderCalls(t *testing.T) {
	cfg := testGeoConfig()
	cfg.MinRequestIntervalMS = 30
	nominatim := &stubGeocoder{name: "nominatim", coords: map[string]domain.Coordinate{
		"sylhet": {Lat: 1, Lng: 1},
		"khulna": {Lat: 2, Lng: 2},
	}}
	r := NewResolver(storage.NewMemoryCanonicalStore(), storage.NewMemoryGeoCache(),
		[]ports.Geocoder{nominatim}, cfg, nil)

	start := time.Now()
	_, err := r.Resolve(context.Background(), "From Sylhet to Khulna")
	require.NoError(t, err)
	_, err = r.Resolve(context.Background(), "Khulna again")
	require.NoError(t, err)
	elapsed := time.Since(start)

	assert.Equal(t, 2, nominatim.callCount())
	assert.GreaterOrEqual(t, elapsed, 30*time.Millisecond)
}
