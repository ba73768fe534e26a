package normalize_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/akudrin/epiwatch/backend/internal/models"
	"github.com/akudrin/epiwatch/backend/internal/normalize"
)

var start = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

func item(id, title, link string, ts time.Time) models.NewsItem {
	return models.NewsItem{ID: id, Title: title, Link: link, Timestamp: ts}
}

func TestMergeDedupesByLinkFirstSeenWins(t *testing.T) {
	items := []models.NewsItem{
		item("u1", "Flu spike", "https://example.com/u1", time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)),
		item("u1", "flu spike", "https://example.com/u1", time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)),
	}

	got := normalize.Merge(items, 10, start)
	require.Len(t, got, 1)
	require.Equal(t, "Flu spike", got[0].Title)
	require.Equal(t, time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC), got[0].Timestamp)
}

func TestMergeDedupesByNormalizedTitleWhenLinkAbsent(t *testing.T) {
	items := []models.NewsItem{
		item("a", "  Dengue Advisory  ", "", start),
		item("b", "dengue advisory", "", start),
		item("c", "different headline", "", start),
	}

	got := normalize.Merge(items, 10, start)
	require.Len(t, got, 2)
	require.Equal(t, "a", got[0].ID)
}

func TestMergeDropsItemsWithNoIdentity(t *testing.T) {
	items := []models.NewsItem{
		item("", "   ", "", start),
		item("", "real title", "", start),
	}

	got := normalize.Merge(items, 10, start)
	require.Len(t, got, 1)
	require.Equal(t, "real title", got[0].Title)
	// Identity derived from the title so the id is never empty.
	require.NotEmpty(t, got[0].ID)
}

func TestMergeSortsByTimestampDescending(t *testing.T) {
	items := []models.NewsItem{
		item("old", "old", "https://example.com/old", start.Add(-2*time.Hour)),
		item("new", "new", "https://example.com/new", start.Add(-time.Hour)),
		item("tie-a", "tie a", "https://example.com/ta", start),
		item("tie-b", "tie b", "https://example.com/tb", start),
	}

	got := normalize.Merge(items, 10, start)
	require.Equal(t, []string{"tie-a", "tie-b", "new", "old"}, ids(got))
}

func TestMergeTruncatesGloballyAfterSort(t *testing.T) {
	// Two providers each contribute `limit` items; the final slice must hold
	// the globally most recent ones, not `limit` per provider.
	var items []models.NewsItem
	for i := range 3 {
		items = append(items, item("a", "a", "https://a.example.com/"+string(rune('0'+i)),
			start.Add(time.Duration(i)*time.Minute)))
	}
	for i := range 3 {
		items = append(items, item("b", "b", "https://b.example.com/"+string(rune('0'+i)),
			start.Add(time.Duration(i+10)*time.Minute)))
	}

	got := normalize.Merge(items, 3, start)
	require.Len(t, got, 3)
	for _, it := range got {
		require.Equal(t, "b.example.com", it.Domain)
	}
}

func TestMergeAssignsStartTimeToUnparseableTimestamps(t *testing.T) {
	items := []models.NewsItem{
		item("x", "no timestamp", "https://example.com/x", time.Time{}),
	}

	got := normalize.Merge(items, 10, start)
	require.Len(t, got, 1)
	require.Equal(t, start, got[0].Timestamp)
}

func TestMergeNormalizesTimestampsToUTC(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)
	items := []models.NewsItem{
		item("x", "local time", "https://example.com/x", time.Date(2024, 1, 1, 15, 30, 0, 0, loc)),
	}

	got := normalize.Merge(items, 10, start)
	require.Equal(t, time.UTC, got[0].Timestamp.Location())
	require.Equal(t, time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC), got[0].Timestamp)
}

func TestMergeIsIdempotent(t *testing.T) {
	items := []models.NewsItem{
		item("u1", "Flu spike", "https://example.com/u1", start.Add(-time.Hour)),
		item("u2", "Hospitals warn", "https://example.com/u2", start),
		item("u1", "Flu spike again", "https://example.com/u1", start.Add(-2*time.Hour)),
		item("", "title only", "", time.Time{}),
	}

	once := normalize.Merge(items, 10, start)
	twice := normalize.Merge(once, 10, start)
	require.Equal(t, once, twice)
}

func ids(items []models.NewsItem) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.ID)
	}
	return out
}
