// Package normalize merges raw provider output into the final ordered item
// list: canonical UTC timestamps, extracted domains, duplicates collapsed,
// newest first, truncated to the requested size.
package normalize

import (
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/akudrin/epiwatch/backend/internal/models"
)

// Merge normalizes items in their given order (provider-iteration order),
// which is also the tie-break order: the first occurrence of a dedup key
// wins and later duplicates are dropped, not reconciled.
//
// start is the aggregation start time, substituted for timestamps the
// provider did not supply or that failed to parse. Truncation to limit
// happens globally after the sort so no single provider can starve the
// others out of the final slice.
func Merge(items []models.NewsItem, limit int, start time.Time) []models.NewsItem {
	start = start.UTC()

	seen := make(map[string]struct{}, len(items))
	deduped := make([]models.NewsItem, 0, len(items))
	for _, it := range items {
		key := dedupKey(it)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		if it.Timestamp.IsZero() {
			it.Timestamp = start
		} else {
			it.Timestamp = it.Timestamp.UTC()
		}
		if it.ID == "" {
			it.ID = key
		}
		it.Domain = domainOf(it.Link)

		deduped = append(deduped, it)
	}

	sort.SliceStable(deduped, func(i, j int) bool {
		return deduped[i].Timestamp.After(deduped[j].Timestamp)
	})

	if limit > 0 && len(deduped) > limit {
		deduped = deduped[:limit]
	}
	return deduped
}

// dedupKey is the link when present, otherwise the case-folded trimmed
// title. An empty key means the item has no usable identity.
func dedupKey(it models.NewsItem) string {
	if it.Link != "" {
		return it.Link
	}
	return strings.ToLower(strings.TrimSpace(it.Title))
}

func domainOf(link string) string {
	if link == "" {
		return ""
	}
	u, err := url.Parse(link)
	if err != nil {
		return ""
	}
	return u.Host
}
