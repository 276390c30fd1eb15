package parser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"NewsAtlas/internal/domain"
	"NewsAtlas/internal/scanner"
)

const (
	// maxParagraphs bounds how much of an article page ends up in the body.
	maxParagraphs = 5
	// minParagraphLength filters out captions, bylines and share widgets.
	minParagraphLength = 20
	// maxItemsPerFeed guards against feeds that list their whole archive.
	maxItemsPerFeed = 100
)

// FetchError reports a failed HTTP fetch with the status that caused it.
// Status is zero for transport-level failures.
type FetchError struct {
	URL    string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.Status)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Retryable reports whether the failure is worth another attempt. Client
// errors are final; blocks do not lift on retry.
func (e *FetchError) Retryable() bool {
	return e.Status == 0 || e.Status >= 500
}

// FeedScanner lists articles from RSS feeds and extracts full article pages
// with each source's CSS selectors.
type FeedScanner struct {
	client    *http.Client
	userAgent string
	logger    *slog.Logger
}

var _ scanner.Scanner = (*FeedScanner)(nil)

// NewFeedScanner wires an HTTP client; nil gets a 20 second timeout default.
func NewFeedScanner(client *http.Client, userAgent string, logger *slog.Logger) *FeedScanner {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &FeedScanner{client: client, userAgent: userAgent, logger: logger}
}

// Name identifies the strategy inside the registry.
func (s *FeedScanner) Name() string {
	return "rss"
}

// ListItems aggregates entries across the source's feeds. A broken feed is
// logged and skipped; the error return fires only when every feed failed.
func (s *FeedScanner) ListItems(ctx context.Context, src scanner.Source) ([]scanner.FeedItem, error) {
	var (
		items   []scanner.FeedItem
		lastErr error
		failed  int
	)
	seen := map[string]struct{}{}

	for _, feedURL := range src.Feeds {
		entries, err := s.fetchFeed(ctx, feedURL)
		if err != nil {
			s.logger.Warn("feed fetch failed", "source", src.Key, "feed", feedURL, "error", err)
			failed++
			lastErr = err
			continue
		}
		if len(entries) > maxItemsPerFeed {
			entries = entries[:maxItemsPerFeed]
		}
		for _, entry := range entries {
			link := strings.TrimSpace(entry.Link)
			title := strings.TrimSpace(entry.Title)
			if link == "" || title == "" {
				continue
			}
			if _, dup := seen[link]; dup {
				continue
			}
			seen[link] = struct{}{}
			items = append(items, scanner.FeedItem{
				Title:       title,
				URL:         link,
				Summary:     strings.TrimSpace(entry.Description),
				Category:    categoryFromURL(link),
				Tags:        cleanTags(entry.Categories),
				PublishedAt: parseFeedTime(entry.PubDate),
			})
		}
	}

	if len(src.Feeds) > 0 && failed == len(src.Feeds) {
		return nil, fmt.Errorf("all %d feeds failed: %w", failed, lastErr)
	}
	return items, nil
}

// FetchItem downloads the article page and extracts body, image and date with
// the source's selectors. Feed-provided fields win over page extraction for
// title and publish date.
func (s *FeedScanner) FetchItem(ctx context.Context, src scanner.Source, item scanner.FeedItem) (domain.RawArticle, error) {
	article := domain.RawArticle{
		SourceKey:    src.Key,
		SourceURL:    item.URL,
		Title:        item.Title,
		CategoryHint: firstNonEmpty(item.Category, categoryFromURL(item.URL)),
		Tags:         item.Tags,
		PublishedAt:  item.PublishedAt,
		FetchedAt:    time.Now().UTC(),
	}

	body, err := s.fetch(ctx, item.URL)
	if err != nil {
		return domain.RawArticle{}, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return domain.RawArticle{}, fmt.Errorf("parse article page: %w", err)
	}

	if article.Title == "" {
		article.Title = cleanText(doc.Find(firstNonEmpty(src.Selectors.Title, "h1")).First().Text())
	}

	article.BodyText = extractBody(doc, firstNonEmpty(src.Selectors.Body, "p"))
	if article.BodyText == "" && item.Summary != "" {
		article.BodyText = cleanText(item.Summary)
	}

	if img := doc.Find(firstNonEmpty(src.Selectors.Image, "img")).First(); img.Length() > 0 {
		imgSrc, ok := img.Attr("src")
		if !ok || imgSrc == "" {
			imgSrc, _ = img.Attr("data-src")
		}
		article.ImageURL = absoluteURL(item.URL, imgSrc)
	}

	if article.PublishedAt.IsZero() && src.Selectors.Date != "" {
		article.PublishedAt = parseFeedTime(cleanText(doc.Find(src.Selectors.Date).First().Text()))
	}

	return article, nil
}

func (s *FeedScanner) fetchFeed(ctx context.Context, feedURL string) ([]rssItem, error) {
	body, err := s.fetch(ctx, feedURL)
	if err != nil {
		return nil, err
	}
	return parseFeed([]byte(body))
}

func (s *FeedScanner) fetch(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/xml, text/xml, text/html, */*")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", &FetchError{URL: pageURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &FetchError{URL: pageURL, Status: resp.StatusCode, Err: errors.New(http.StatusText(resp.StatusCode))}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &FetchError{URL: pageURL, Err: err}
	}
	return string(raw), nil
}

// extractBody joins the first meaningful paragraphs matched by the selector.
func extractBody(doc *goquery.Document, selector string) string {
	var parts []string
	doc.Find(selector).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		text := cleanText(sel.Text())
		if len([]rune(text)) >= minParagraphLength {
			parts = append(parts, text)
		}
		return len(parts) < maxParagraphs
	})
	return strings.Join(parts, " ")
}

// cleanTags lowercases feed-provided category tags and drops empties.
func cleanTags(raw []string) []string {
	var tags []string
	for _, tag := range raw {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

// cleanText collapses runs of whitespace into single spaces.
func cleanText(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// absoluteURL resolves src against the article page URL.
func absoluteURL(pageURL, src string) string {
	if src == "" {
		return ""
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return src
	}
	ref, err := url.Parse(src)
	if err != nil {
		return src
	}
	return base.ResolveReference(ref).String()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
