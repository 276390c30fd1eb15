package usecase

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"NewsAtlas/internal/dedup"
	"NewsAtlas/internal/domain"
	"NewsAtlas/internal/geo"
	"NewsAtlas/internal/ingest"
)

// PipelineReport collects the stage reports of one full pass.
type PipelineReport struct {
	Fetch  domain.FetchReport
	Dedup  domain.DedupReport
	Enrich domain.EnrichReport
}

// PipelineDeps wires the three stage components into the pipeline.
type PipelineDeps struct {
	Orchestrator *ingest.Orchestrator
	Dedup        *dedup.Engine
	Resolver     *geo.Resolver
	Logger       *slog.Logger
}

// Pipeline runs the scrape, deduplicate and enrich stages. Each stage is also
// callable on its own, which is what the CLI subcommands do.
type Pipeline struct {
	orchestrator *ingest.Orchestrator
	dedup        *dedup.Engine
	resolver     *geo.Resolver
	logger       *slog.Logger
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Pipeline{
		orchestrator: deps.Orchestrator,
		dedup:        deps.Dedup,
		resolver:     deps.Resolver,
		logger:       logger,
	}
}

// Scrape runs the ingestion stage across all sources.
func (p *Pipeline) Scrape(ctx context.Context, limitPerSource int) (domain.FetchReport, error) {
	return p.orchestrator.FetchAll(ctx, limitPerSource)
}

// ScrapeSource runs the ingestion stage for a single source key.
func (p *Pipeline) ScrapeSource(ctx context.Context, key string, limitPerSource int) (domain.FetchReport, error) {
	return p.orchestrator.FetchSource(ctx, key, limitPerSource)
}

// Deduplicate consolidates pending raw articles into canonical records.
func (p *Pipeline) Deduplicate(ctx context.Context, batch int) (domain.DedupReport, error) {
	return p.dedup.Deduplicate(ctx, batch)
}

// Enrich resolves coordinates for canonical articles that lack them.
func (p *Pipeline) Enrich(ctx context.Context, batch int) (domain.EnrichReport, error) {
	return p.resolver.EnrichPending(ctx, batch)
}

// RunOnce executes a full scrape, deduplicate, enrich pass. A scrape pass
// with partial source failures still proceeds to the later stages; only hard
// errors stop the run.
func (p *Pipeline) RunOnce(ctx context.Context) (PipelineReport, error) {
	var report PipelineReport
	started := time.Now()

	fetchReport, err := p.orchestrator.FetchAll(ctx, 0)
	report.Fetch = fetchReport
	if err != nil {
		return report, fmt.Errorf("scrape stage: %w", err)
	}

	dedupReport, err := p.dedup.Deduplicate(ctx, 0)
	report.Dedup = dedupReport
	if err != nil {
		return report, fmt.Errorf("dedup stage: %w", err)
	}

	enrichReport, err := p.resolver.EnrichPending(ctx, 0)
	report.Enrich = enrichReport
	if err != nil {
		return report, fmt.Errorf("enrich stage: %w", err)
	}

	p.logger.Info("pipeline pass done",
		"fetched", report.Fetch.Fetched,
		"new_canonical", report.Dedup.NewCanonical,
		"resolved", report.Enrich.Resolved,
		"took", time.Since(started))

	return report, nil
}
