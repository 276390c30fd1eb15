package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"NewsAtlas/internal/config"
	"NewsAtlas/internal/dedup"
	"NewsAtlas/internal/geo"
	"NewsAtlas/internal/infrastructure/geocode"
	"NewsAtlas/internal/infrastructure/parser"
	"NewsAtlas/internal/infrastructure/scheduler"
	"NewsAtlas/internal/infrastructure/storage"
	"NewsAtlas/internal/ingest"
	"NewsAtlas/internal/logging"
	"NewsAtlas/internal/ports"
	"NewsAtlas/internal/scanner"
	"NewsAtlas/internal/usecase"
)

// Application wires configuration to stores, stages and the pipeline. An
// empty database DSN switches to in-memory stores, which is what the tests
// and ad-hoc runs use.
type Application struct {
	cfg      config.Config
	pipeline *usecase.Pipeline
	pool     *pgxpool.Pool
	logger   *slog.Logger
}

// New builds a runnable application instance.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	var (
		pool      *pgxpool.Pool
		raw       ports.RawArticleStore
		canonical ports.CanonicalArticleStore
		geoCache  ports.GeoCacheStore
	)
	if cfg.Database.DSN != "" {
		var err error
		pool, err = storage.Connect(ctx, cfg.Database.DSN)
		if err != nil {
			return nil, fmt.Errorf("open storage: %w", err)
		}
		raw = storage.NewPostgresRawStore(pool)
		canonical = storage.NewPostgresCanonicalStore(pool)
		geoCache = storage.NewPostgresGeoCache(pool)
	} else {
		baseLogger.Warn("no database DSN configured, using in-memory stores")
		raw = storage.NewMemoryRawStore()
		canonical = storage.NewMemoryCanonicalStore()
		geoCache = storage.NewMemoryGeoCache()
	}

	httpClient := &http.Client{Timeout: cfg.Scraper.RequestTimeout()}

	registry := scanner.NewRegistry()
	registry.Register(parser.NewFeedScanner(httpClient, cfg.Scraper.UserAgent,
		baseLogger.With("component", "scanner.rss")))

	orchestrator := ingest.NewOrchestrator(registry, raw, cfg.Sources, cfg.Scraper,
		baseLogger.With("component", "ingest"))

	policy := &dedup.LongestWins{
		SourcePriority:  sourcePriorities(cfg.Sources),
		BodyPrefixRunes: cfg.Dedup.BodyPrefixLength,
	}
	engine := dedup.NewEngine(raw, canonical, cfg.Dedup, policy,
		baseLogger.With("component", "dedup"))

	providers := []ports.Geocoder{
		geocode.NewNominatimClient(cfg.Geo.NominatimURL, cfg.Geo.UserAgent, httpClient),
		geocode.NewPeliasClient(cfg.Geo.PeliasURL, cfg.Geo.UserAgent, httpClient),
	}
	resolver := geo.NewResolver(canonical, geoCache, providers, cfg.Geo,
		baseLogger.With("component", "geo"))

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Orchestrator: orchestrator,
		Dedup:        engine,
		Resolver:     resolver,
		Logger:       baseLogger.With("component", "pipeline"),
	})

	return &Application{cfg: cfg, pipeline: pipeline, pool: pool, logger: baseLogger}, nil
}

// Pipeline exposes the stage runner for the CLI subcommands.
func (a *Application) Pipeline() *usecase.Pipeline {
	return a.pipeline
}

// Config returns the effective configuration.
func (a *Application) Config() config.Config {
	return a.cfg
}

// RunOnce executes one full scrape, dedup, enrich pass.
func (a *Application) RunOnce(ctx context.Context) (usecase.PipelineReport, error) {
	return a.pipeline.RunOnce(ctx)
}

// Watch runs the pipeline on the configured interval until the context ends.
func (a *Application) Watch(ctx context.Context) error {
	driver := scheduler.NewIntervalScheduler(a.cfg.Schedule.Interval())
	sched := usecase.NewScheduler(driver, a.pipeline, a.logger.With("component", "scheduler"))
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	<-ctx.Done()
	return sched.Stop(context.Background())
}

// Close releases the storage pool.
func (a *Application) Close() {
	if a.pool != nil {
		a.pool.Close()
	}
}

func sourcePriorities(sources []config.SourceConfig) map[string]int {
	priorities := make(map[string]int, len(sources))
	for _, src := range sources {
		priorities[src.Key] = src.Priority
	}
	return priorities
}
