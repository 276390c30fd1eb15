package dedup

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"NewsAtlas/internal/domain"
)

// MergePolicy folds a cluster of raw articles into a canonical record. base is
// nil when the cluster starts a new canonical. Implementations must be
// deterministic and order-independent over members, and may only extend
// (never shrink) text fields and member sets on re-runs.
type MergePolicy interface {
	Merge(base *domain.CanonicalArticle, members []domain.RawArticle) domain.CanonicalArticle
}

// LongestWins is the default merge policy: longest non-empty title and body,
// first non-empty image and category by source priority, earliest publish
// date, union of tags and member URLs.
type LongestWins struct {
	// SourcePriority maps source keys to their rank; lower ranks win
	// first-non-empty fields. Unknown sources sort last.
	SourcePriority map[string]int

	// BodyPrefixRunes bounds the body prefix hashed into fingerprints of
	// newly created canonicals.
	BodyPrefixRunes int
}

var _ MergePolicy = (*LongestWins)(nil)

// Merge implements MergePolicy.
func (p *LongestWins) Merge(base *domain.CanonicalArticle, members []domain.RawArticle) domain.CanonicalArticle {
	ordered := make([]domain.RawArticle, len(members))
	copy(ordered, members)
	sort.SliceStable(ordered, func(i, j int) bool {
		pi, pj := p.rank(ordered[i].SourceKey), p.rank(ordered[j].SourceKey)
		if pi != pj {
			return pi < pj
		}
		return ordered[i].SourceURL < ordered[j].SourceURL
	})

	var merged domain.CanonicalArticle
	if base != nil {
		merged = *base
	} else {
		merged = domain.CanonicalArticle{ID: uuid.New()}
	}

	for _, m := range ordered {
		merged.Title = longerText(merged.Title, m.Title)
		merged.BodyText = longerText(merged.BodyText, m.BodyText)
		if merged.ImageURL == "" {
			merged.ImageURL = m.ImageURL
		}
		if merged.Category == "" {
			merged.Category = m.CategoryHint
		}
		if merged.SourceKey == "" {
			merged.SourceKey = m.SourceKey
			merged.SourceURL = m.SourceURL
		}
		if m.HasPublishDate() && (merged.PublishedAt.IsZero() || m.PublishedAt.Before(merged.PublishedAt)) {
			merged.PublishedAt = m.PublishedAt
		}
		if m.FetchedAt.After(merged.FetchedAt) {
			merged.FetchedAt = m.FetchedAt
		}
		merged.Tags = unionSorted(merged.Tags, m.Tags)
		merged.MemberURLs = appendMember(merged.MemberURLs, m.SourceURL)
	}

	if merged.ContentFingerprint == "" {
		merged.ContentFingerprint = Fingerprint(merged.Title, merged.BodyText, p.BodyPrefixRunes)
	}

	return merged
}

func (p *LongestWins) rank(sourceKey string) int {
	if r, ok := p.SourcePriority[sourceKey]; ok {
		return r
	}
	return int(^uint(0) >> 1)
}

// longerText keeps the longer candidate; equal lengths keep the current value
// so re-runs cannot flip fields.
func longerText(current, candidate string) string {
	if len([]rune(candidate)) > len([]rune(current)) {
		return candidate
	}
	return current
}

func unionSorted(existing, extra []string) []string {
	if len(extra) == 0 {
		return existing
	}
	seen := make(map[string]struct{}, len(existing)+len(extra))
	out := make([]string, 0, len(existing)+len(extra))
	for _, t := range existing {
		if _, ok := seen[t]; !ok {
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}
	added := false
	for _, t := range extra {
		if t == "" {
			continue
		}
		if _, ok := seen[t]; !ok {
			seen[t] = struct{}{}
			out = append(out, t)
			added = true
		}
	}
	if added {
		sort.Strings(out)
	}
	return out
}

// appendMember adds url to the member set. Existing members are never removed.
func appendMember(members []string, url string) []string {
	if url == "" {
		return members
	}
	for _, m := range members {
		if m == url {
			return members
		}
	}
	return append(members, url)
}

// clusterWindow returns the publish-time extent of a cluster, used to bound
// the near-duplicate candidate search.
func clusterWindow(members []domain.RawArticle) (from, to time.Time) {
	for _, m := range members {
		at := m.PublishedAt
		if at.IsZero() {
			at = m.FetchedAt
		}
		if from.IsZero() || at.Before(from) {
			from = at
		}
		if to.IsZero() || at.After(to) {
			to = at
		}
	}
	return from, to
}
