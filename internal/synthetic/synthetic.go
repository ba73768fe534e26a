// Package synthetic generates offline news-like items from a seeded trend
// curve. It is the degraded-but-successful fallback when no external
// provider can serve a topic.
package synthetic

import (
	"fmt"
	"hash/fnv"
	"math"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/akudrin/epiwatch/backend/internal/models"
	"github.com/akudrin/epiwatch/backend/internal/sentiment"
)

// Items builds limit items for the city/disease pair, one per day counting
// back from now, newest first. The curve is seeded from the pair so repeated
// calls for the same topic describe the same outbreak.
func Items(city, disease string, limit int, now time.Time) []models.NewsItem {
	if limit <= 0 {
		limit = 10
	}

	h := fnv.New64a()
	h.Write([]byte(strings.ToLower(city) + "|" + strings.ToLower(disease)))
	rng := rand.New(rand.NewPCG(h.Sum64(), 0))

	day := now.UTC().Truncate(24 * time.Hour)
	items := make([]models.NewsItem, 0, limit)
	for i := range limit {
		ts := day.AddDate(0, 0, -i)
		cases := caseCount(ts, i, rng)
		items = append(items, models.NewsItem{
			ID:        fmt.Sprintf("synthetic-%s-%s-%d", strings.ToLower(city), strings.ToLower(disease), i),
			Title:     fmt.Sprintf("%s cases in %s: %d", disease, city, cases),
			Source:    "synthetic",
			Sentiment: sentiment.Neutral,
			Timestamp: ts,
		})
	}
	return items
}

// caseCount follows the same shape as the historical trend model: a slight
// upward trend plus a seasonal component peaking post-monsoon, with noise.
func caseCount(ts time.Time, offset int, rng *rand.Rand) int {
	trend := 50.0 + 0.5*float64(offset)
	doy := float64(ts.YearDay())
	seasonal := 30*math.Sin(2*math.Pi*doy/365.25-math.Pi/2) + 20
	noise := rng.NormFloat64() * 10

	cases := trend + seasonal + noise
	if cases < 0 {
		return 0
	}
	return int(cases)
}
