// Package scheduler drives the aggregation pipeline on a timer for a fixed
// set of city/disease topics and writes the results into the cache and the
// persistent store.
package scheduler

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/akudrin/epiwatch/backend/internal/cache"
	"github.com/akudrin/epiwatch/backend/internal/metrics"
	"github.com/akudrin/epiwatch/backend/internal/models"
	"github.com/akudrin/epiwatch/backend/internal/synthetic"
)

// Fetcher is the aggregation entry point (satisfied by aggregate.Aggregator).
type Fetcher interface {
	FetchCombined(ctx context.Context, query string, limit int) ([]models.NewsItem, error)
}

// ItemStore persists items by id (satisfied by elasticsearch.Client).
type ItemStore interface {
	UpsertItem(ctx context.Context, item models.NewsItem) error
}

// Publisher emits saved items to the event stream (satisfied by stream.Publisher).
type Publisher interface {
	PublishItems(ctx context.Context, city, disease, origin string, items []models.NewsItem) error
}

// Scheduler is the long-lived refresh loop. Store and publisher may be nil;
// the loop then only refreshes the cache.
type Scheduler struct {
	fetcher   Fetcher
	cache     cache.Store
	store     ItemStore
	publisher Publisher
	cities    []string
	diseases  []string
	limit     int
	interval  time.Duration
	ttl       time.Duration
	log       *slog.Logger
}

// New wires the scheduler.
func New(fetcher Fetcher, cacheStore cache.Store, store ItemStore, publisher Publisher,
	cities, diseases []string, limit int, interval, ttl time.Duration, log *slog.Logger) *Scheduler {
	return &Scheduler{
		fetcher:   fetcher,
		cache:     cacheStore,
		store:     store,
		publisher: publisher,
		cities:    cities,
		diseases:  diseases,
		limit:     limit,
		interval:  interval,
		ttl:       ttl,
		log:       log,
	}
}

// Run executes one pass immediately, then one per interval until the
// context is cancelled. The wait between passes observes cancellation, so
// shutdown never has to sit out a full interval. In-flight provider calls
// are not interrupted mid-pass; the loop exits at the next topic boundary.
func (s *Scheduler) Run(ctx context.Context) {
	s.log.Info("ingest loop started",
		slog.Duration("interval", s.interval),
		slog.Int("cities", len(s.cities)),
		slog.Int("diseases", len(s.diseases)),
	)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.runPass(ctx)
	for {
		select {
		case <-ctx.Done():
			s.log.Info("ingest loop stopping")
			return
		case <-ticker.C:
			s.runPass(ctx)
		}
	}
}

func (s *Scheduler) runPass(ctx context.Context) {
	start := time.Now()
	topics := 0
	for _, city := range s.cities {
		for _, disease := range s.diseases {
			if ctx.Err() != nil {
				return
			}
			s.refreshTopic(ctx, city, disease)
			topics++
		}
	}
	s.log.Info("ingest pass completed",
		slog.Int("topics", topics),
		slog.Duration("duration", time.Since(start)),
	)
}

// refreshTopic runs the full pipeline for one city/disease pair. Failures
// degrade to synthetic items and never abort the pass.
func (s *Scheduler) refreshTopic(ctx context.Context, city, disease string) {
	query := disease + " " + city

	origin := "external"
	items, err := s.fetcher.FetchCombined(ctx, query, s.limit)
	if err != nil {
		s.log.Debug("external providers unavailable, generating synthetic items",
			slog.String("city", city),
			slog.String("disease", disease),
			slog.Any("err", err),
		)
		items = synthetic.Items(city, disease, s.limit, time.Now())
		origin = "synthetic"
	}

	payload, err := json.Marshal(models.CachedNews{Items: items, Source: origin})
	if err != nil {
		s.log.Error("marshal cached news", slog.Any("err", err))
		return
	}
	if err := s.cache.Set(ctx, cache.Key(city, disease, s.limit), payload, s.ttl); err != nil {
		s.log.Warn("cache write failed",
			slog.String("city", city),
			slog.String("disease", disease),
			slog.Any("err", err),
		)
	}

	if s.store != nil {
		saved := 0
		for _, item := range items {
			if err := s.store.UpsertItem(ctx, item); err != nil {
				s.log.Warn("item upsert failed",
					slog.String("id", item.ID),
					slog.Any("err", err),
				)
				continue
			}
			metrics.ItemsSaved.Inc()
			saved++
		}
		s.log.Debug("items saved",
			slog.String("city", city),
			slog.String("disease", disease),
			slog.Int("saved", saved),
		)
	}

	if s.publisher != nil {
		if err := s.publisher.PublishItems(ctx, city, disease, origin, items); err != nil {
			s.log.Warn("item publish failed",
				slog.String("city", city),
				slog.String("disease", disease),
				slog.Any("err", err),
			)
		}
	}
}
