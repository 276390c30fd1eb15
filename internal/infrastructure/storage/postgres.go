package storage

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"NewsAtlas/internal/domain"
	"NewsAtlas/internal/ports"
)

// Schema holds the DDL for all three tables. Applied out of band.
//
//go:embed schema.sql
var Schema string

var builder = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Connect opens a pgx pool and verifies the connection.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

// PostgresRawStore persists raw articles keyed by source URL.
type PostgresRawStore struct {
	pool *pgxpool.Pool
}

var _ ports.RawArticleStore = (*PostgresRawStore)(nil)

// NewPostgresRawStore wires a connection pool.
func NewPostgresRawStore(pool *pgxpool.Pool) *PostgresRawStore {
	return &PostgresRawStore{pool: pool}
}

// Upsert inserts or refreshes the article. A refresh keeps the consolidated
// marker so re-fetched articles are not re-deduplicated.
func (s *PostgresRawStore) Upsert(ctx context.Context, article domain.RawArticle) (bool, error) {
	query, args, err := builder.
		Insert("raw_articles").
		Columns("source_url", "source_key", "title", "body_text", "image_url",
			"category_hint", "tags", "published_at", "fetched_at").
		Values(article.SourceURL, article.SourceKey, article.Title, article.BodyText,
			article.ImageURL, article.CategoryHint, article.Tags,
			nullableTime(article.PublishedAt), article.FetchedAt).
		Suffix(`ON CONFLICT (source_url) DO UPDATE SET
			title = EXCLUDED.title,
			body_text = EXCLUDED.body_text,
			image_url = EXCLUDED.image_url,
			category_hint = EXCLUDED.category_hint,
			tags = EXCLUDED.tags,
			published_at = EXCLUDED.published_at,
			fetched_at = EXCLUDED.fetched_at
			RETURNING (xmax = 0)`).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build upsert: %w", err)
	}

	var inserted bool
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&inserted); err != nil {
		return false, fmt.Errorf("upsert raw article: %w", err)
	}
	return inserted, nil
}

// ListUnconsolidated returns articles awaiting deduplication, in fetch order.
// limit zero means no bound.
func (s *PostgresRawStore) ListUnconsolidated(ctx context.Context, limit int) ([]domain.RawArticle, error) {
	q := builder.
		Select("source_url", "source_key", "title", "body_text", "image_url",
			"category_hint", "tags", "published_at", "fetched_at", "consolidated").
		From("raw_articles").
		Where(sq.Eq{"consolidated": false}).
		OrderBy("fetched_at", "source_url")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list: %w", err)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list unconsolidated: %w", err)
	}
	defer rows.Close()

	var articles []domain.RawArticle
	for rows.Next() {
		var (
			a         domain.RawArticle
			published *time.Time
		)
		if err := rows.Scan(&a.SourceURL, &a.SourceKey, &a.Title, &a.BodyText, &a.ImageURL,
			&a.CategoryHint, &a.Tags, &published, &a.FetchedAt, &a.Consolidated); err != nil {
			return nil, fmt.Errorf("scan raw article: %w", err)
		}
		if published != nil {
			a.PublishedAt = *published
		}
		articles = append(articles, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return articles, nil
}

// MarkConsolidated flags the given source URLs as absorbed.
func (s *PostgresRawStore) MarkConsolidated(ctx context.Context, sourceURLs []string) error {
	if len(sourceURLs) == 0 {
		return nil
	}
	query, args, err := builder.
		Update("raw_articles").
		Set("consolidated", true).
		Where(sq.Eq{"source_url": sourceURLs}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build mark: %w", err)
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("mark consolidated: %w", err)
	}
	return nil
}

// PostgresCanonicalStore persists merged canonical articles.
type PostgresCanonicalStore struct {
	pool *pgxpool.Pool
}

var _ ports.CanonicalArticleStore = (*PostgresCanonicalStore)(nil)

// NewPostgresCanonicalStore wires a connection pool.
func NewPostgresCanonicalStore(pool *pgxpool.Pool) *PostgresCanonicalStore {
	return &PostgresCanonicalStore{pool: pool}
}

const canonicalColumns = "id, content_fingerprint, source_key, source_url, title, body_text, " +
	"image_url, category, tags, member_urls, published_at, fetched_at, lat, lng"

// Upsert writes the canonical record. The update path keeps existing
// coordinates when the incoming record carries none, so geolocation survives
// subsequent merges.
func (s *PostgresCanonicalStore) Upsert(ctx context.Context, article domain.CanonicalArticle) error {
	query, args, err := builder.
		Insert("canonical_articles").
		Columns("id", "content_fingerprint", "source_key", "source_url", "title", "body_text",
			"image_url", "category", "tags", "member_urls", "published_at", "fetched_at", "lat", "lng").
		Values(article.ID, article.ContentFingerprint, article.SourceKey, article.SourceURL,
			article.Title, article.BodyText, article.ImageURL, article.Category,
			article.Tags, article.MemberURLs, nullableTime(article.PublishedAt),
			article.FetchedAt, article.Lat, article.Lng).
		Suffix(`ON CONFLICT (id) DO UPDATE SET
			content_fingerprint = EXCLUDED.content_fingerprint,
			source_key = EXCLUDED.source_key,
			source_url = EXCLUDED.source_url,
			title = EXCLUDED.title,
			body_text = EXCLUDED.body_text,
			image_url = EXCLUDED.image_url,
			category = EXCLUDED.category,
			tags = EXCLUDED.tags,
			member_urls = EXCLUDED.member_urls,
			published_at = EXCLUDED.published_at,
			fetched_at = EXCLUDED.fetched_at,
			lat = COALESCE(EXCLUDED.lat, canonical_articles.lat),
			lng = COALESCE(EXCLUDED.lng, canonical_articles.lng)`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert canonical article: %w", err)
	}
	return nil
}

// FindByFingerprint returns the article with the given content fingerprint,
// or nil when absent.
func (s *PostgresCanonicalStore) FindByFingerprint(ctx context.Context, fingerprint string) (*domain.CanonicalArticle, error) {
	return s.findOne(ctx, sq.Eq{"content_fingerprint": fingerprint})
}

// FindByMemberURL returns the article that has absorbed the given source URL,
// or nil when none has.
func (s *PostgresCanonicalStore) FindByMemberURL(ctx context.Context, sourceURL string) (*domain.CanonicalArticle, error) {
	return s.findOne(ctx, sq.Expr("member_urls @> ARRAY[?]::text[]", sourceURL))
}

func (s *PostgresCanonicalStore) findOne(ctx context.Context, cond sq.Sqlizer) (*domain.CanonicalArticle, error) {
	query, args, err := builder.
		Select(canonicalColumns).
		From("canonical_articles").
		Where(cond).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build find: %w", err)
	}

	row := s.pool.QueryRow(ctx, query, args...)
	article, err := scanCanonical(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find canonical article: %w", err)
	}
	return &article, nil
}

// ListPublishedBetween returns articles published in [from, to], inclusive.
func (s *PostgresCanonicalStore) ListPublishedBetween(ctx context.Context, from, to time.Time) ([]domain.CanonicalArticle, error) {
	query, args, err := builder.
		Select(canonicalColumns).
		From("canonical_articles").
		Where(sq.GtOrEq{"published_at": from}).
		Where(sq.LtOrEq{"published_at": to}).
		OrderBy("published_at").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list: %w", err)
	}
	return s.list(ctx, query, args)
}

// ListMissingCoordinates returns articles awaiting geolocation, newest first.
// limit zero means no bound.
func (s *PostgresCanonicalStore) ListMissingCoordinates(ctx context.Context, limit int) ([]domain.CanonicalArticle, error) {
	q := builder.
		Select(canonicalColumns).
		From("canonical_articles").
		Where(sq.Eq{"lat": nil}).
		OrderBy("published_at DESC NULLS LAST")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list: %w", err)
	}
	return s.list(ctx, query, args)
}

// SetCoordinates writes the resolved coordinate for one article.
func (s *PostgresCanonicalStore) SetCoordinates(ctx context.Context, id uuid.UUID, coord domain.Coordinate) error {
	query, args, err := builder.
		Update("canonical_articles").
		Set("lat", coord.Lat).
		Set("lng", coord.Lng).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("set coordinates: %w", err)
	}
	return nil
}

func (s *PostgresCanonicalStore) list(ctx context.Context, query string, args []any) ([]domain.CanonicalArticle, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list canonical articles: %w", err)
	}
	defer rows.Close()

	var articles []domain.CanonicalArticle
	for rows.Next() {
		article, err := scanCanonical(rows)
		if err != nil {
			return nil, fmt.Errorf("scan canonical article: %w", err)
		}
		articles = append(articles, article)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return articles, nil
}

func scanCanonical(row pgx.Row) (domain.CanonicalArticle, error) {
	var (
		a         domain.CanonicalArticle
		published *time.Time
	)
	err := row.Scan(&a.ID, &a.ContentFingerprint, &a.SourceKey, &a.SourceURL, &a.Title,
		&a.BodyText, &a.ImageURL, &a.Category, &a.Tags, &a.MemberURLs,
		&published, &a.FetchedAt, &a.Lat, &a.Lng)
	if err != nil {
		return domain.CanonicalArticle{}, err
	}
	if published != nil {
		a.PublishedAt = *published
	}
	return a, nil
}

// PostgresGeoCache persists resolved place lookups.
type PostgresGeoCache struct {
	pool *pgxpool.Pool
}

var _ ports.GeoCacheStore = (*PostgresGeoCache)(nil)

// NewPostgresGeoCache wires a connection pool.
func NewPostgresGeoCache(pool *pgxpool.Pool) *PostgresGeoCache {
	return &PostgresGeoCache{pool: pool}
}

// Get returns the entry for the place key, or nil when absent.
func (s *PostgresGeoCache) Get(ctx context.Context, placeKey string) (*domain.GeoCacheEntry, error) {
	query, args, err := builder.
		Select("place_key", "lat", "lng", "provider", "resolved_at").
		From("geo_cache").
		Where(sq.Eq{"place_key": placeKey}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get: %w", err)
	}

	var entry domain.GeoCacheEntry
	err = s.pool.QueryRow(ctx, query, args...).
		Scan(&entry.PlaceKey, &entry.Lat, &entry.Lng, &entry.Provider, &entry.ResolvedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get geo cache entry: %w", err)
	}
	return &entry, nil
}

// Put stores the entry, last write wins.
func (s *PostgresGeoCache) Put(ctx context.Context, entry domain.GeoCacheEntry) error {
	query, args, err := builder.
		Insert("geo_cache").
		Columns("place_key", "lat", "lng", "provider", "resolved_at").
		Values(entry.PlaceKey, entry.Lat, entry.Lng, entry.Provider, entry.ResolvedAt).
		Suffix(`ON CONFLICT (place_key) DO UPDATE SET
			lat = EXCLUDED.lat,
			lng = EXCLUDED.lng,
			provider = EXCLUDED.provider,
			resolved_at = EXCLUDED.resolved_at`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build put: %w", err)
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("put geo cache entry: %w", err)
	}
	return nil
}

// nullableTime maps the zero time to NULL so "no publish date" is queryable.
func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
