package parser

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"net/url"
	"strings"
	"time"
)

type rssFeed struct {
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Items []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string   `xml:"title"`
	Link        string   `xml:"link"`
	Description string   `xml:"description"`
	Categories  []string `xml:"category"`
	PubDate     string   `xml:"pubDate"`
}

// parseFeed decodes an RSS payload. Broken feeds are common among the
// upstream outlets, so a failed strict parse retries with a lenient decoder.
func parseFeed(data []byte) ([]rssItem, error) {
	data = fixEntities(data)

	var feed rssFeed
	if err := xml.Unmarshal(data, &feed); err != nil {
		decoder := xml.NewDecoder(bytes.NewReader(data))
		decoder.Strict = false
		if err := decoder.Decode(&feed); err != nil {
			return nil, fmt.Errorf("parse feed xml: %w", err)
		}
	}
	return feed.Channel.Items, nil
}

// fixEntities patches bare ampersands that some outlets emit in titles.
func fixEntities(data []byte) []byte {
	data = bytes.ReplaceAll(data, []byte("& "), []byte("&amp; "))
	data = bytes.ReplaceAll(data, []byte("&,"), []byte("&amp;,"))
	data = bytes.ReplaceAll(data, []byte("&."), []byte("&amp;."))
	return data
}

var feedTimeFormats = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC822Z,
	time.RFC822,
	time.RFC3339,
	"Mon, 02 Jan 2006 15:04:05 MST",
	"02 Jan 2006 15:04:05 MST",
	"2006-01-02 15:04:05",
	"2 January 2006",
	"January 2, 2006",
}

// parseFeedTime tries the publish-date formats seen across the sources. A
// zero time means the value was absent or unreadable; callers fall back to
// the fetch time.
func parseFeedTime(value string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}
	}
	for _, format := range feedTimeFormats {
		if t, err := time.Parse(format, value); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// knownCategories are the URL path segments the outlets use as sections.
var knownCategories = map[string]struct{}{
	"national": {}, "international": {}, "sports": {}, "entertainment": {},
	"business": {}, "technology": {}, "politics": {}, "world": {},
	"bangladesh": {}, "economy": {}, "opinion": {}, "lifestyle": {}, "health": {},
}

// categoryFromURL derives a category hint from the article URL path, e.g.
// /bangladesh/article-slug yields "bangladesh". Empty when no segment is a
// known section name.
func categoryFromURL(articleURL string) string {
	parsed, err := url.Parse(articleURL)
	if err != nil {
		return ""
	}
	for _, part := range strings.Split(parsed.Path, "/") {
		part = strings.ToLower(part)
		if _, ok := knownCategories[part]; ok {
			return part
		}
	}
	return ""
}
