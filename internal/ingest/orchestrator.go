package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"NewsAtlas/internal/config"
	"NewsAtlas/internal/domain"
	"NewsAtlas/internal/ports"
	"NewsAtlas/internal/scanner"
)

// ErrUnknownSource is returned when a requested source key is not configured.
var ErrUnknownSource = errors.New("unknown source")

// Orchestrator runs ingestion passes over the configured sources. Sources are
// scraped concurrently; a weighted semaphore caps in-flight page fetches
// across all of them, and each source paces its own requests.
type Orchestrator struct {
	registry *scanner.Registry
	raw      ports.RawArticleStore
	sources  []config.SourceConfig
	cfg      config.ScraperConfig
	logger   *slog.Logger
	sem      *semaphore.Weighted
}

// NewOrchestrator wires the scanner registry, the raw store and the source
// catalog.
func NewOrchestrator(registry *scanner.Registry, raw ports.RawArticleStore, sources []config.SourceConfig, cfg config.ScraperConfig, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	limit := int64(cfg.MaxConcurrentRequests)
	if limit < 1 {
		limit = 1
	}
	return &Orchestrator{
		registry: registry,
		raw:      raw,
		sources:  sources,
		cfg:      cfg,
		logger:   logger,
		sem:      semaphore.NewWeighted(limit),
	}
}

// FetchAll scrapes every configured source. A failing source is reported and
// does not abort the others; only context cancellation stops the pass early.
func (o *Orchestrator) FetchAll(ctx context.Context, limitPerSource int) (domain.FetchReport, error) {
	return o.fetch(ctx, o.sources, limitPerSource)
}

// FetchSource scrapes a single source by key.
func (o *Orchestrator) FetchSource(ctx context.Context, key string, limitPerSource int) (domain.FetchReport, error) {
	for _, src := range o.sources {
		if src.Key == key {
			return o.fetch(ctx, []config.SourceConfig{src}, limitPerSource)
		}
	}
	return domain.FetchReport{}, fmt.Errorf("%w: %s", ErrUnknownSource, key)
}

func (o *Orchestrator) fetch(ctx context.Context, sources []config.SourceConfig, limitPerSource int) (domain.FetchReport, error) {
	report := domain.FetchReport{
		Sources:   map[string]domain.SourceReport{},
		StartedAt: time.Now().UTC(),
	}
	defer func() { report.Duration = time.Since(report.StartedAt) }()

	if limitPerSource == 0 {
		limitPerSource = o.cfg.LimitPerSource
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)

	for _, src := range sources {
		src := src
		g.Go(func() error {
			sourceReport := o.fetchSource(gctx, src, limitPerSource)

			mu.Lock()
			report.Sources[src.Key] = sourceReport
			report.Fetched += sourceReport.Fetched
			report.Inserted += sourceReport.Inserted
			report.Failed += sourceReport.Failed
			mu.Unlock()

			return gctx.Err()
		})
	}

	if err := g.Wait(); err != nil {
		return report, err
	}

	o.logger.Info("ingestion pass done",
		"sources", len(sources),
		"fetched", report.Fetched,
		"inserted", report.Inserted,
		"failed", report.Failed)

	return report, nil
}

// fetchSource scrapes one source. Item failures increment the counter and
// move on; a source-level failure (all feeds down, unknown scanner) lands in
// the report's Err field.
func (o *Orchestrator) fetchSource(ctx context.Context, src config.SourceConfig, limit int) domain.SourceReport {
	var report domain.SourceReport

	strategy, err := o.registry.Resolve(src.Scanner)
	if err != nil {
		report.Err = err.Error()
		return report
	}
	scanSrc := toScannerSource(src)

	items, err := o.listItems(ctx, strategy, scanSrc)
	if err != nil {
		report.Err = err.Error()
		return report
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}

	delay := o.cfg.ScrapeDelay()
	for i, item := range items {
		if ctx.Err() != nil {
			report.Err = ctx.Err().Error()
			return report
		}
		if i > 0 && delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				report.Err = ctx.Err().Error()
				return report
			case <-timer.C:
			}
		}

		article, err := o.fetchItem(ctx, strategy, scanSrc, item)
		if err != nil {
			report.Failed++
			o.logger.Warn("item fetch failed", "source", src.Key, "url", item.URL, "error", err)
			continue
		}
		report.Fetched++

		inserted, err := o.raw.Upsert(ctx, article)
		if err != nil {
			report.Failed++
			o.logger.Error("raw upsert failed", "source", src.Key, "url", item.URL, "error", err)
			continue
		}
		if inserted {
			report.Inserted++
		}
	}

	return report
}

func (o *Orchestrator) listItems(ctx context.Context, strategy scanner.Scanner, src scanner.Source) ([]scanner.FeedItem, error) {
	if err := o.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer o.sem.Release(1)

	ctx, cancel := context.WithTimeout(ctx, o.cfg.RequestTimeout())
	defer cancel()
	return strategy.ListItems(ctx, src)
}

// fetchItem fetches one article under the global semaphore with bounded
// retries for transient failures.
func (o *Orchestrator) fetchItem(ctx context.Context, strategy scanner.Scanner, src scanner.Source, item scanner.FeedItem) (domain.RawArticle, error) {
	var lastErr error

	attempts := o.cfg.Retry.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	backoff := o.cfg.Retry.InitialDelay()

	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 && backoff > 0 {
			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return domain.RawArticle{}, ctx.Err()
			case <-timer.C:
			}
			backoff *= 2
		}

		article, err := o.tryFetchItem(ctx, strategy, src, item)
		if err == nil {
			return article, nil
		}
		lastErr = err
		if !retryable(err) || ctx.Err() != nil {
			break
		}
	}
	return domain.RawArticle{}, lastErr
}

func (o *Orchestrator) tryFetchItem(ctx context.Context, strategy scanner.Scanner, src scanner.Source, item scanner.FeedItem) (domain.RawArticle, error) {
	if err := o.sem.Acquire(ctx, 1); err != nil {
		return domain.RawArticle{}, err
	}
	defer o.sem.Release(1)

	ctx, cancel := context.WithTimeout(ctx, o.cfg.RequestTimeout())
	defer cancel()
	return strategy.FetchItem(ctx, src, item)
}

// retryable asks the error itself when it knows, and defaults to retrying.
func retryable(err error) bool {
	var r interface{ Retryable() bool }
	if errors.As(err, &r) {
		return r.Retryable()
	}
	return true
}

func toScannerSource(src config.SourceConfig) scanner.Source {
	return scanner.Source{
		Key:     src.Key,
		Name:    src.Name,
		BaseURL: src.BaseURL,
		Feeds:   src.Feeds,
		Selectors: scanner.Selectors{
			Title: src.Selectors.Title,
			Body:  src.Selectors.Body,
			Image: src.Selectors.Image,
			Date:  src.Selectors.Date,
		},
		Priority: src.Priority,
	}
}
