// Package aggregate fans out to every configured provider, tolerates
// partial failure, and returns one merged, deduplicated, time-ordered,
// sentiment-annotated item list.
package aggregate

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/akudrin/epiwatch/backend/internal/health"
	"github.com/akudrin/epiwatch/backend/internal/models"
	"github.com/akudrin/epiwatch/backend/internal/normalize"
	"github.com/akudrin/epiwatch/backend/internal/provider"
	"github.com/akudrin/epiwatch/backend/internal/sentiment"
)

// ErrNoProviders means zero adapters are configured at all. Callers treat
// it as the signal to fall back to synthetic items.
var ErrNoProviders = errors.New("no news providers configured")

// Aggregator coordinates the fetch pipeline. It is safe for concurrent use;
// the tracker is the only mutable state and carries its own locking.
type Aggregator struct {
	providers  []provider.Provider
	tracker    *health.Tracker
	classifier *sentiment.Classifier
	timeout    time.Duration
	log        *slog.Logger
	now        func() time.Time
}

// New wires the aggregator. timeout bounds each individual provider call.
func New(providers []provider.Provider, tracker *health.Tracker, classifier *sentiment.Classifier, timeout time.Duration, log *slog.Logger) *Aggregator {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Aggregator{
		providers:  providers,
		tracker:    tracker,
		classifier: classifier,
		timeout:    timeout,
		log:        log,
		now:        time.Now,
	}
}

// WithClock replaces the time source. Intended for tests.
func (a *Aggregator) WithClock(now func() time.Time) *Aggregator {
	a.now = now
	return a
}

// FetchCombined queries all currently eligible providers concurrently and
// merges whatever succeeds. A provider failure only removes that provider's
// contribution; the call itself fails only when no providers are configured
// at all. Results keep provider-iteration order going into dedup so
// first-seen-wins is deterministic.
func (a *Aggregator) FetchCombined(ctx context.Context, query string, limit int) ([]models.NewsItem, error) {
	if len(a.providers) == 0 {
		return nil, ErrNoProviders
	}

	start := a.now()
	results := make([][]models.NewsItem, len(a.providers))

	var wg sync.WaitGroup
	for i, p := range a.providers {
		wg.Add(1)
		go func(i int, p provider.Provider) {
			defer wg.Done()

			// Eligibility is read right before the call, never cached.
			if !a.tracker.Eligible(p.Name()) {
				a.log.Debug("provider skipped",
					slog.String("provider", p.Name()),
					slog.Any("err", provider.ErrInBackoff),
				)
				return
			}

			opCtx, cancel := context.WithTimeout(ctx, a.timeout)
			defer cancel()

			items, err := p.Fetch(opCtx, query, limit)
			if err != nil {
				var reqErr *provider.RequestError
				if errors.As(err, &reqErr) {
					a.tracker.Failure(p.Name())
				}
				a.log.Warn("provider fetch failed",
					slog.String("provider", p.Name()),
					slog.Any("err", err),
				)
				return
			}

			a.tracker.Success(p.Name())
			results[i] = items
		}(i, p)
	}
	wg.Wait()

	merged := make([]models.NewsItem, 0)
	for _, r := range results {
		merged = append(merged, r...)
	}

	out := normalize.Merge(merged, limit, start)
	for i := range out {
		out[i].Sentiment = a.classifier.Classify(out[i].Title)
	}
	return out, nil
}

// Providers returns the configured adapter names, in invocation order.
func (a *Aggregator) Providers() []string {
	names := make([]string, 0, len(a.providers))
	for _, p := range a.providers {
		names = append(names, p.Name())
	}
	return names
}
