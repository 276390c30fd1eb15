package domain

import (
	"time"

	"github.com/google/uuid"
)

// RawArticle is a single item as fetched from one source, before deduplication.
type RawArticle struct {
	SourceKey    string
	SourceURL    string
	Title        string
	BodyText     string
	ImageURL     string
	CategoryHint string
	Tags         []string
	PublishedAt  time.Time
	FetchedAt    time.Time
	Consolidated bool
}

// HasPublishDate reports whether a publish date was extracted rather than
// falling back to fetch time.
func (a RawArticle) HasPublishDate() bool {
	return !a.PublishedAt.IsZero()
}

// Coordinate is a resolved geographic point.
type Coordinate struct {
	Lat float64
	Lng float64
}

// CanonicalArticle is the merged record representing one story across sources.
// Content fields are written only by the deduplication engine; Lat/Lng only by
// the geolocation resolver.
type CanonicalArticle struct {
	ID                 uuid.UUID
	ContentFingerprint string
	SourceKey          string
	SourceURL          string
	Title              string
	BodyText           string
	ImageURL           string
	Category           string
	Tags               []string
	MemberURLs         []string
	PublishedAt        time.Time
	FetchedAt          time.Time
	Lat                *float64
	Lng                *float64
}

// HasCoordinates reports whether the article has been geolocated.
func (a CanonicalArticle) HasCoordinates() bool {
	return a.Lat != nil && a.Lng != nil
}

// HasMember reports whether the given source URL was already absorbed.
func (a CanonicalArticle) HasMember(url string) bool {
	for _, m := range a.MemberURLs {
		if m == url {
			return true
		}
	}
	return false
}

// GeoCacheEntry is one resolved place lookup, keyed uniquely by PlaceKey.
type GeoCacheEntry struct {
	PlaceKey   string
	Lat        float64
	Lng        float64
	Provider   string
	ResolvedAt time.Time
}

// SourceReport holds per-source counters for one ingestion pass.
type SourceReport struct {
	Fetched  int
	Inserted int
	Failed   int
	Err      string
}

// FetchReport aggregates the outcome of a full ingestion pass.
type FetchReport struct {
	Sources   map[string]SourceReport
	Fetched   int
	Inserted  int
	Failed    int
	StartedAt time.Time
	Duration  time.Duration
}

// DedupReport aggregates the outcome of one deduplication pass.
type DedupReport struct {
	Processed        int
	ExactMerged      int
	NearDupMerged    int
	NewCanonical     int
	UpdatedCanonical int
	StartedAt        time.Time
	Duration         time.Duration
}

// EnrichReport aggregates the outcome of one geolocation pass.
type EnrichReport struct {
	Scanned    int
	Resolved   int
	Unresolved int
	StartedAt  time.Time
	Duration   time.Duration
}
