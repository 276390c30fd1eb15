package dedup

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"NewsAtlas/internal/config"
	"NewsAtlas/internal/domain"
	"NewsAtlas/internal/ports"
)

// Engine transforms the accumulating raw pool into the deduplicated canonical
// pool. Deduplicate is safely re-entrant: repeated runs over the same raw set
// converge to the same canonical set.
type Engine struct {
	raw       ports.RawArticleStore
	canonical ports.CanonicalArticleStore
	cfg       config.DedupConfig
	policy    MergePolicy
	logger    *slog.Logger
}

// NewEngine wires stores and the merge policy. A nil policy falls back to
// LongestWins without source priorities.
func NewEngine(raw ports.RawArticleStore, canonical ports.CanonicalArticleStore, cfg config.DedupConfig, policy MergePolicy, logger *slog.Logger) *Engine {
	if policy == nil {
		policy = &LongestWins{BodyPrefixRunes: cfg.BodyPrefixLength}
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Engine{
		raw:       raw,
		canonical: canonical,
		cfg:       cfg,
		policy:    policy,
		logger:    logger,
	}
}

// Deduplicate processes unconsolidated raw articles (all of them when batch is
// zero) and merges exact and near duplicates into canonical records. Storage
// failures abort the pass; merge decisions never do.
func (e *Engine) Deduplicate(ctx context.Context, batch int) (domain.DedupReport, error) {
	report := domain.DedupReport{StartedAt: time.Now().UTC()}
	defer func() { report.Duration = time.Since(report.StartedAt) }()

	raws, err := e.raw.ListUnconsolidated(ctx, batch)
	if err != nil {
		return report, fmt.Errorf("list unconsolidated: %w", err)
	}
	if len(raws) == 0 {
		return report, nil
	}

	// Raw articles whose URL is already claimed by a canonical only need their
	// marker set; their content was absorbed on a previous pass.
	pending := make([]domain.RawArticle, 0, len(raws))
	var alreadyClaimed []string
	for _, r := range raws {
		report.Processed++
		claimed, err := e.canonical.FindByMemberURL(ctx, r.SourceURL)
		if err != nil {
			return report, fmt.Errorf("find by member url: %w", err)
		}
		if claimed != nil {
			alreadyClaimed = append(alreadyClaimed, r.SourceURL)
			continue
		}
		pending = append(pending, r)
	}
	if len(alreadyClaimed) > 0 {
		if err := e.raw.MarkConsolidated(ctx, alreadyClaimed); err != nil {
			return report, fmt.Errorf("mark consolidated: %w", err)
		}
	}
	if len(pending) == 0 {
		return report, nil
	}

	fingerprints := make([]string, len(pending))
	for i, r := range pending {
		fingerprints[i] = Fingerprint(r.Title, r.BodyText, e.cfg.BodyPrefixLength)
	}

	for _, cluster := range e.clusterBatch(pending, fingerprints) {
		if err := e.mergeCluster(ctx, pending, fingerprints, cluster, &report); err != nil {
			return report, err
		}
	}

	e.logger.Info("deduplication pass done",
		"processed", report.Processed,
		"exact_merged", report.ExactMerged,
		"near_dup_merged", report.NearDupMerged,
		"new_canonical", report.NewCanonical,
		"updated_canonical", report.UpdatedCanonical)

	return report, nil
}

// clusterBatch groups batch indices with union-find: identical fingerprints
// link unconditionally, near-duplicate similarity links within the time
// proximity window.
func (e *Engine) clusterBatch(pending []domain.RawArticle, fingerprints []string) [][]int {
	uf := newUnionFind(len(pending))

	byFingerprint := map[string]int{}
	for i, fp := range fingerprints {
		if first, ok := byFingerprint[fp]; ok {
			uf.union(first, i)
		} else {
			byFingerprint[fp] = i
		}
	}

	window := e.cfg.TimeProximityWindow()
	for i := 0; i < len(pending); i++ {
		for j := i + 1; j < len(pending); j++ {
			if uf.find(i) == uf.find(j) {
				continue
			}
			if !withinWindow(pending[i], pending[j], window) {
				continue
			}
			if e.similar(pending[i], pending[j]) {
				uf.union(i, j)
			}
		}
	}

	return uf.clusters()
}

// nearTitleFloor is the lower title bar admitted when bodies also agree.
const nearTitleFloor = 0.70

func (e *Engine) similar(a, b domain.RawArticle) bool {
	return e.similarTexts(a.Title, a.BodyText, b.Title, b.BodyText)
}

// similarTexts links a pair either on title similarity alone or on moderate
// title similarity backed by body similarity.
func (e *Engine) similarTexts(titleA, bodyA, titleB, bodyB string) bool {
	titleSim := Similarity(titleA, titleB)
	if titleSim >= e.cfg.TitleSimilarityThreshold {
		return true
	}
	if titleSim >= nearTitleFloor {
		return Similarity(bodyA, bodyB) >= e.cfg.SimilarityThreshold
	}
	return false
}

func (e *Engine) mergeCluster(ctx context.Context, pending []domain.RawArticle, fingerprints []string, cluster []int, report *domain.DedupReport) error {
	members := make([]domain.RawArticle, 0, len(cluster))
	for _, idx := range cluster {
		members = append(members, pending[idx])
	}

	target, exactTarget, err := e.findTarget(ctx, members, fingerprints, cluster)
	if err != nil {
		return err
	}

	merged := e.policy.Merge(target, members)
	if err := e.canonical.Upsert(ctx, merged); err != nil {
		return fmt.Errorf("upsert canonical: %w", err)
	}

	urls := make([]string, 0, len(members))
	for _, m := range members {
		urls = append(urls, m.SourceURL)
	}
	if err := e.raw.MarkConsolidated(ctx, urls); err != nil {
		return fmt.Errorf("mark consolidated: %w", err)
	}

	e.countCluster(target, exactTarget, fingerprints, cluster, report)
	return nil
}

// findTarget locates the canonical record this cluster belongs to: first by
// exact fingerprint, then by best similarity among canonicals published within
// the proximity window. Returns nil when the cluster starts a new canonical.
func (e *Engine) findTarget(ctx context.Context, members []domain.RawArticle, fingerprints []string, cluster []int) (target *domain.CanonicalArticle, exactFingerprint string, err error) {
	seen := map[string]struct{}{}
	for _, idx := range cluster {
		fp := fingerprints[idx]
		if _, dup := seen[fp]; dup {
			continue
		}
		seen[fp] = struct{}{}
		found, err := e.canonical.FindByFingerprint(ctx, fp)
		if err != nil {
			return nil, "", fmt.Errorf("find by fingerprint: %w", err)
		}
		if found != nil {
			return found, fp, nil
		}
	}

	window := e.cfg.TimeProximityWindow()
	from, to := clusterWindow(members)
	candidates, err := e.canonical.ListPublishedBetween(ctx, from.Add(-window), to.Add(window))
	if err != nil {
		return nil, "", fmt.Errorf("list candidates: %w", err)
	}

	var best *domain.CanonicalArticle
	bestScore := 0.0
	for i := range candidates {
		cand := candidates[i]
		for _, m := range members {
			if !e.similarTexts(m.Title, m.BodyText, cand.Title, cand.BodyText) {
				continue
			}
			score := Similarity(m.Title, cand.Title)
			if score > bestScore || (score == bestScore && best != nil && cand.ID.String() < best.ID.String()) {
				bestScore = score
				best = &cand
			}
		}
	}
	return best, "", nil
}

func (e *Engine) countCluster(target *domain.CanonicalArticle, exactFingerprint string, fingerprints []string, cluster []int, report *domain.DedupReport) {
	if target == nil {
		report.NewCanonical++
		// The first member seeds the canonical; the rest merged into it.
		seedFP := fingerprints[cluster[0]]
		for _, idx := range cluster[1:] {
			if fingerprints[idx] == seedFP {
				report.ExactMerged++
			} else {
				report.NearDupMerged++
			}
		}
		return
	}

	report.UpdatedCanonical++
	for _, idx := range cluster {
		if exactFingerprint != "" && fingerprints[idx] == exactFingerprint {
			report.ExactMerged++
		} else {
			report.NearDupMerged++
		}
	}
}

func withinWindow(a, b domain.RawArticle, window time.Duration) bool {
	ta, tb := a.PublishedAt, b.PublishedAt
	if ta.IsZero() {
		ta = a.FetchedAt
	}
	if tb.IsZero() {
		tb = b.FetchedAt
	}
	diff := ta.Sub(tb)
	if diff < 0 {
		diff = -diff
	}
	return diff <= window
}
