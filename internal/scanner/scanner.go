package scanner

import (
	"context"
	"fmt"
	"time"

	"NewsAtlas/internal/domain"
)

// Selectors holds the CSS selectors used to pull structured fields out of one
// source's article pages.
type Selectors struct {
	Title string
	Body  string
	Image string
	Date  string
}

// Source describes one configured news origin with its feed endpoints and
// extraction rules.
type Source struct {
	Key       string
	Name      string
	BaseURL   string
	Feeds     []string
	Selectors Selectors
	Priority  int
}

// FeedItem is one article reference pulled from a source's feed list, before
// the full page has been fetched.
type FeedItem struct {
	Title       string
	URL         string
	Summary     string
	Category    string
	Tags        []string
	PublishedAt time.Time
}

// Scanner captures a single feed-scanning strategy. ListItems returns the
// source's current feed entries; FetchItem fetches and extracts one full
// article. The split lets the orchestrator own concurrency and rate limits.
type Scanner interface {
	Name() string
	ListItems(ctx context.Context, src Source) ([]FeedItem, error)
	FetchItem(ctx context.Context, src Source, item FeedItem) (domain.RawArticle, error)
}

// Registry keeps a mapping from scanner names to their implementations.
type Registry struct {
	scanners map[string]Scanner
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{scanners: map[string]Scanner{}}
}

// Register adds or replaces a scanner implementation.
func (r *Registry) Register(scanner Scanner) {
	if r.scanners == nil {
		r.scanners = map[string]Scanner{}
	}
	r.scanners[scanner.Name()] = scanner
}

// Resolve returns a scanner by name or an error if it is absent.
func (r *Registry) Resolve(name string) (Scanner, error) {
	if scanner, ok := r.scanners[name]; ok {
		return scanner, nil
	}
	return nil, fmt.Errorf("scanner %s is not registered", name)
}
