package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NewsAtlas/internal/config"
	"NewsAtlas/internal/domain"
	"NewsAtlas/internal/infrastructure/storage"
	"NewsAtlas/internal/scanner"
)

// fakeScanner serves canned feed items and articles, with optional failures.
type fakeScanner struct {
	mu           sync.Mutex
	items        map[string][]scanner.FeedItem
	listErr      map[string]error
	failURLs     map[string]error
	fetchConcur  int
	maxConcur    int
	fetchedCount int
}

var _ scanner.Scanner = (*fakeScanner)(nil)

func newFakeScanner() *fakeScanner {
	return &fakeScanner{
		items:    map[string][]scanner.FeedItem{},
		listErr:  map[string]error{},
		failURLs: map[string]error{},
	}
}

func (f *fakeScanner) Name() string { return "rss" }

func (f *fakeScanner) ListItems(ctx context.Context, src scanner.Source) ([]scanner.FeedItem, error) {
	if err := f.listErr[src.Key]; err != nil {
		return nil, err
	}
	return f.items[src.Key], nil
}

func (f *fakeScanner) FetchItem(ctx context.Context, src scanner.Source, item scanner.FeedItem) (domain.RawArticle, error) {
	f.mu.Lock()
	f.fetchConcur++
	if f.fetchConcur > f.maxConcur {
		f.maxConcur = f.fetchConcur
	}
	f.fetchedCount++
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.fetchConcur--
		f.mu.Unlock()
	}()

	if err := f.failURLs[item.URL]; err != nil {
		return domain.RawArticle{}, err
	}
	return domain.RawArticle{
		SourceKey:   src.Key,
		SourceURL:   item.URL,
		Title:       item.Title,
		BodyText:    "body for " + item.Title,
		PublishedAt: item.PublishedAt,
		FetchedAt:   time.Now().UTC(),
	}, nil
}

func testScraperConfig() config.ScraperConfig {
	return config.ScraperConfig{
		MaxConcurrentRequests: 3,
		RequestTimeoutSec:     5,
		ScrapeDelayMS:         0,
		Retry:                 config.RetryConfig{MaxAttempts: 1},
	}
}

func testSources(keys ...string) []config.SourceConfig {
	var sources []config.SourceConfig
	for i, key := range keys {
		sources = append(sources, config.SourceConfig{
			Key:      key,
			Name:     key,
			Scanner:  "rss",
			Priority: i + 1,
			Feeds:    []string{"https://" + key + ".example/feed/"},
		})
	}
	return sources
}

func newTestOrchestrator(fs *fakeScanner, sources []config.SourceConfig, cfg config.ScraperConfig) (*Orchestrator, *storage.MemoryRawStore) {
	registry := scanner.NewRegistry()
	registry.Register(fs)
	raw := storage.NewMemoryRawStore()
	return NewOrchestrator(registry, raw, sources, cfg, nil), raw
}

func feedItems(source string, n int) []scanner.FeedItem {
	var items []scanner.FeedItem
	for i := 0; i < n; i++ {
		items = append(items, scanner.FeedItem{
			Title:       fmt.Sprintf("%s story %d", source, i),
			URL:         fmt.Sprintf("https://%s.example/story-%d", source, i),
			PublishedAt: time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC),
		})
	}
	return items
}

func TestFetchAll(t *testing.T) {
	fs := newFakeScanner()
	fs.items["alpha"] = feedItems("alpha", 3)
	fs.items["beta"] = feedItems("beta", 2)

	o, raw := newTestOrchestrator(fs, testSources("alpha", "beta"), testScraperConfig())
	report, err := o.FetchAll(context.Background(), 0)
	require.NoError(t, err)

	assert.Equal(t, 5, report.Fetched)
	assert.Equal(t, 5, report.Inserted)
	assert.Equal(t, 0, report.Failed)
	assert.Equal(t, 3, report.Sources["alpha"].Fetched)
	assert.Equal(t, 2, report.Sources["beta"].Fetched)

	pending, err := raw.ListUnconsolidated(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, pending, 5)
}

func TestFetchAll_ItemFailureDoesNotAbortSource(t *testing.T) {
	fs := newFakeScanner()
	fs.items["alpha"] = feedItems("alpha", 3)
	fs.failURLs["https://alpha.example/story-1"] = errors.New("page timeout")

	o, _ := newTestOrchestrator(fs, testSources("alpha"), testScraperConfig())
	report, err := o.FetchAll(context.Background(), 0)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Fetched)
	assert.Equal(t, 1, report.Failed)
	assert.Empty(t, report.Sources["alpha"].Err)
}

func TestFetchAll_SourceFailureDoesNotAbortOthers(t *testing.T) {
	fs := newFakeScanner()
	fs.items["beta"] = feedItems("beta", 2)
	fs.listErr["alpha"] = errors.New("all feeds down")

	o, _ := newTestOrchestrator(fs, testSources("alpha", "beta"), testScraperConfig())
	report, err := o.FetchAll(context.Background(), 0)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Fetched)
	assert.Contains(t, report.Sources["alpha"].Err, "all feeds down")
	assert.Empty(t, report.Sources["beta"].Err)
}

func TestFetchAll_RefetchIsIdempotent(t *testing.T) {
	fs := newFakeScanner()
	fs.items["alpha"] = feedItems("alpha", 2)

	o, raw := newTestOrchestrator(fs, testSources("alpha"), testScraperConfig())

	first, err := o.FetchAll(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Inserted)

	second, err := o.FetchAll(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 2, second.Fetched)
	assert.Equal(t, 0, second.Inserted)

	pending, err := raw.ListUnconsolidated(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, pending, 2)
}

func TestFetchSource(t *testing.T) {
	fs := newFakeScanner()
	fs.items["alpha"] = feedItems("alpha", 2)
	fs.items["beta"] = feedItems("beta", 2)

	o, _ := newTestOrchestrator(fs, testSources("alpha", "beta"), testScraperConfig())
	report, err := o.FetchSource(context.Background(), "alpha", 0)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Fetched)
	assert.NotContains(t, report.Sources, "beta")
}

func TestFetchSource_UnknownKey(t *testing.T) {
	o, _ := newTestOrchestrator(newFakeScanner(), testSources("alpha"), testScraperConfig())
	_, err := o.FetchSource(context.Background(), "missing", 0)
	assert.ErrorIs(t, err, ErrUnknownSource)
}

func TestFetchAll_LimitPerSource(t *testing.T) {
	fs := newFakeScanner()
	fs.items["alpha"] = feedItems("alpha", 10)

	o, _ := newTestOrchestrator(fs, testSources("alpha"), testScraperConfig())
	report, err := o.FetchAll(context.Background(), 4)
	require.NoError(t, err)

	assert.Equal(t, 4, report.Fetched)
}

func TestFetchAll_GlobalConcurrencyBound(t *testing.T) {
	fs := newFakeScanner()
	for _, key := range []string{"a", "b", "c", "d"} {
		fs.items[key] = feedItems(key, 3)
	}

	cfg := testScraperConfig()
	cfg.MaxConcurrentRequests = 2
	o, _ := newTestOrchestrator(fs, testSources("a", "b", "c", "d"), cfg)

	_, err := o.FetchAll(context.Background(), 0)
	require.NoError(t, err)

	assert.LessOrEqual(t, fs.maxConcur, 2)
	assert.Equal(t, 12, fs.fetchedCount)
}

func TestFetchItem_RetriesTransientFailure(t *testing.T) {
	fs := &flakyScanner{failuresLeft: 2}
	cfg := testScraperConfig()
	cfg.Retry = config.RetryConfig{MaxAttempts: 3, InitialDelayMS: 1}

	registry := scanner.NewRegistry()
	registry.Register(fs)
	o := NewOrchestrator(registry, storage.NewMemoryRawStore(), testSources("alpha"), cfg, nil)

	article, err := o.fetchItem(context.Background(), fs, scanner.Source{Key: "alpha"}, scanner.FeedItem{
		Title: "story", URL: "https://alpha.example/story",
	})
	require.NoError(t, err)
	assert.Equal(t, "story", article.Title)
	assert.Equal(t, 3, fs.calls)
}

// flakyScanner fails a fixed number of times before succeeding.
type flakyScanner struct {
	failuresLeft int
	calls        int
}

var _ scanner.Scanner = (*flakyScanner)(nil)

func (f *flakyScanner) Name() string { return "rss" }

func (f *flakyScanner) ListItems(ctx context.Context, src scanner.Source) ([]scanner.FeedItem, error) {
	return nil, nil
}

func (f *flakyScanner) FetchItem(ctx context.Context, src scanner.Source, item scanner.FeedItem) (domain.RawArticle, error) {
	f.calls++
	if f.failuresLeft > 0 {
		f.failuresLeft--
		return domain.RawArticle{}, errors.New("connection reset")
	}
	return domain.RawArticle{SourceKey: src.Key, SourceURL: item.URL, Title: item.Title}, nil
}
