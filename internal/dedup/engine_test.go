package dedup

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NewsAtlas/internal/config"
	"NewsAtlas/internal/domain"
	"NewsAtlas/internal/infrastructure/storage"
)

func testDedupConfig() config.DedupConfig {
	return config.DedupConfig{
		SimilarityThreshold:      0.85,
		TitleSimilarityThreshold: 0.90,
		TimeProximityWindowMin:   2880,
		BodyPrefixLength:         400,
	}
}

func newTestEngine(t *testing.T, cfg config.DedupConfig) (*Engine, *storage.MemoryRawStore, *storage.MemoryCanonicalStore) {
	t.Helper()
	raw := storage.NewMemoryRawStore()
	canonical := storage.NewMemoryCanonicalStore()
	engine := NewEngine(raw, canonical, cfg, nil, nil)
	return engine, raw, canonical
}

func seedRaw(t *testing.T, store *storage.MemoryRawStore, articles ...domain.RawArticle) {
	t.Helper()
	for _, a := range articles {
		_, err := store.Upsert(context.Background(), a)
		require.NoError(t, err)
	}
}

func TestDeduplicate_ExactDuplicatesAcrossSources(t *testing.T) {
	engine, raw, canonical := newTestEngine(t, testDedupConfig())
	at := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

	seedRaw(t, raw,
		domain.RawArticle{SourceKey: "s1", SourceURL: "u1", Title: "Flood hits Sylhet region", BodyText: "Water levels rose sharply overnight", PublishedAt: at},
		domain.RawArticle{SourceKey: "s2", SourceURL: "u2", Title: "Flood hits Sylhet region", BodyText: "Water levels rose sharply overnight", PublishedAt: at.Add(time.Hour)},
	)

	report, err := engine.Deduplicate(context.Background(), 0)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Processed)
	assert.Equal(t, 1, report.NewCanonical)
	assert.Equal(t, 1, report.ExactMerged)
	assert.Equal(t, 0, report.NearDupMerged)

	all := canonical.All()
	require.Len(t, all, 1)
	assert.ElementsMatch(t, []string{"u1", "u2"}, all[0].MemberURLs)
}

func TestDeduplicate_Idempotent(t *testing.T) {
	engine, raw, canonical := newTestEngine(t, testDedupConfig())
	at := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

	seedRaw(t, raw,
		domain.RawArticle{SourceKey: "s1", SourceURL: "u1", Title: "Flood hits Sylhet region", BodyText: "Water levels rose sharply", PublishedAt: at},
		domain.RawArticle{SourceKey: "s2", SourceURL: "u2", Title: "Flood hits Sylhet region", BodyText: "Water levels rose sharply", PublishedAt: at},
	)

	first, err := engine.Deduplicate(context.Background(), 0)
	require.NoError(t, err)
	require.Equal(t, 1, first.NewCanonical)
	snapshot := canonical.All()

	second, err := engine.Deduplicate(context.Background(), 0)
	require.NoError(t, err)

	assert.Equal(t, 0, second.Processed)
	assert.Equal(t, 0, second.NewCanonical)
	assert.Equal(t, snapshot, canonical.All())
}

func TestDeduplicate_LateArrivalMergesIntoExisting(t *testing.T) {
	engine, raw, canonical := newTestEngine(t, testDedupConfig())
	at := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

	seedRaw(t, raw, domain.RawArticle{
		SourceKey: "s1", SourceURL: "u1",
		Title: "Flood hits Sylhet region", BodyText: "Water levels rose sharply",
		PublishedAt: at,
	})
	_, err := engine.Deduplicate(context.Background(), 0)
	require.NoError(t, err)

	// Same story arrives later from another source with identical content.
	seedRaw(t, raw, domain.RawArticle{
		SourceKey: "s2", SourceURL: "u2",
		Title: "Flood hits Sylhet region", BodyText: "Water levels rose sharply",
		PublishedAt: at.Add(30 * time.Minute),
	})
	report, err := engine.Deduplicate(context.Background(), 0)
	require.NoError(t, err)

	assert.Equal(t, 0, report.NewCanonical)
	assert.Equal(t, 1, report.UpdatedCanonical)
	assert.Equal(t, 1, report.ExactMerged)

	all := canonical.All()
	require.Len(t, all, 1)
	assert.ElementsMatch(t, []string{"u1", "u2"}, all[0].MemberURLs)
}

func TestDeduplicate_UnionFindTransitivity(t *testing.T) {
	engine, raw, canonical := newTestEngine(t, testDedupConfig())
	at := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

	// A~B and B~C pass the title threshold; A~C alone would not. Union-find
	// still places all three in one cluster.
	seedRaw(t, raw,
		domain.RawArticle{SourceKey: "s1", SourceURL: "uA", Title: "Severe flooding reported across Sylhet region on Friday", BodyText: "Water levels rose sharply overnight", PublishedAt: at},
		domain.RawArticle{SourceKey: "s2", SourceURL: "uB", Title: "Severe flooding reported across Sylhet region on Saturday", BodyText: "Thousands stranded as rivers overflow", PublishedAt: at.Add(time.Hour)},
		domain.RawArticle{SourceKey: "s3", SourceURL: "uC", Title: "Severe flooding reported across Sylhet area on Saturday", BodyText: "Rescue teams deployed across the district", PublishedAt: at.Add(2 * time.Hour)},
	)

	report, err := engine.Deduplicate(context.Background(), 0)
	require.NoError(t, err)

	assert.Equal(t, 1, report.NewCanonical)
	assert.Equal(t, 2, report.NearDupMerged)

	all := canonical.All()
	require.Len(t, all, 1)
	assert.ElementsMatch(t, []string{"uA", "uB", "uC"}, all[0].MemberURLs)
}

func TestDeduplicate_DistantPublishDatesStaySeparate(t *testing.T) {
	cfg := testDedupConfig()
	cfg.TimeProximityWindowMin = 60
	engine, raw, canonical := newTestEngine(t, cfg)
	at := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

	// Similar titles but published far apart: different stories.
	seedRaw(t, raw,
		domain.RawArticle{SourceKey: "s1", SourceURL: "u1", Title: "Severe flooding reported across Sylhet region on Friday", BodyText: "first", PublishedAt: at},
		domain.RawArticle{SourceKey: "s2", SourceURL: "u2", Title: "Severe flooding reported across Sylhet region on Saturday", BodyText: "second", PublishedAt: at.Add(30 * 24 * time.Hour)},
	)

	report, err := engine.Deduplicate(context.Background(), 0)
	require.NoError(t, err)

	assert.Equal(t, 2, report.NewCanonical)
	assert.Len(t, canonical.All(), 2)
}

func TestDeduplicate_NoMemberURLInTwoCanonicals(t *testing.T) {
	engine, raw, canonical := newTestEngine(t, testDedupConfig())
	at := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

	seedRaw(t, raw,
		domain.RawArticle{SourceKey: "s1", SourceURL: "u1", Title: "Flood hits Sylhet region", BodyText: "Water levels rose", PublishedAt: at},
		domain.RawArticle{SourceKey: "s2", SourceURL: "u2", Title: "Flood hits Sylhet region", BodyText: "Water levels rose", PublishedAt: at},
		domain.RawArticle{SourceKey: "s3", SourceURL: "u3", Title: "Cricket match postponed in Dhaka", BodyText: "Rain stopped play", PublishedAt: at},
	)

	_, err := engine.Deduplicate(context.Background(), 0)
	require.NoError(t, err)
	_, err = engine.Deduplicate(context.Background(), 0)
	require.NoError(t, err)

	claimed := map[string]int{}
	for _, c := range canonical.All() {
		for _, m := range c.MemberURLs {
			claimed[m]++
		}
	}
	for url, n := range claimed {
		assert.Equal(t, 1, n, "url %s claimed by %d canonicals", url, n)
	}
}

func TestDeduplicate_EndToEndSpecScenario(t *testing.T) {
	cfg := testDedupConfig()
	// The two headlines phrase the story differently; a looser threshold is
	// what a deployment tuned for cross-outlet matching would run.
	cfg.TitleSimilarityThreshold = 0.55
	cfg.SimilarityThreshold = 0.5
	engine, raw, canonical := newTestEngine(t, cfg)
	at := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

	seedRaw(t, raw,
		domain.RawArticle{SourceKey: "prothom_alo", SourceURL: "https://a.example/1", Title: "Flood hits Sylhet region", BodyText: "Heavy rain flooded large parts of Sylhet on Friday", PublishedAt: at},
		domain.RawArticle{SourceKey: "daily_star", SourceURL: "https://b.example/2", Title: "Flooding reported in Sylhet", BodyText: "Heavy rain flooded large parts of Sylhet on Friday morning", PublishedAt: at.Add(45 * time.Minute)},
	)

	report, err := engine.Deduplicate(context.Background(), 0)
	require.NoError(t, err)

	assert.Equal(t, 1, report.NewCanonical)
	all := canonical.All()
	require.Len(t, all, 1)
	assert.ElementsMatch(t,
		[]string{"https://a.example/1", "https://b.example/2"},
		all[0].MemberURLs)
}
