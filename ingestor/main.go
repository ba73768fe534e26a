package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/akudrin/epiwatch/backend/internal/aggregate"
	"github.com/akudrin/epiwatch/backend/internal/cache"
	"github.com/akudrin/epiwatch/backend/internal/cities"
	"github.com/akudrin/epiwatch/backend/internal/config"
	"github.com/akudrin/epiwatch/backend/internal/elasticsearch"
	"github.com/akudrin/epiwatch/backend/internal/health"
	"github.com/akudrin/epiwatch/backend/internal/logger"
	"github.com/akudrin/epiwatch/backend/internal/provider"
	"github.com/akudrin/epiwatch/backend/internal/scheduler"
	"github.com/akudrin/epiwatch/backend/internal/sentiment"
	"github.com/akudrin/epiwatch/backend/internal/stream"
)

// defaultCityCount limits ingestion to the biggest cities when INGEST_CITIES
// is not set.
const defaultCityCount = 5

func main() {
	log := logger.New("ingestor")
	cfg, err := config.LoadIngestor()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	cacheStore := newCacheStore(ctx, log, cfg.RedisAddr)
	itemStore := newItemStore(ctx, log, cfg)

	// Keep the interface nil when publishing is disabled; a typed nil
	// pointer would pass the scheduler's nil check.
	var publisher scheduler.Publisher
	if kafkaPublisher := newPublisher(log, cfg); kafkaPublisher != nil {
		defer kafkaPublisher.Close()
		publisher = kafkaPublisher
	}

	providers := buildProviders(log, cfg.Providers)
	tracker := health.NewTracker(cfg.FailThreshold, cfg.BackoffBase)
	classifier := sentiment.NewClassifier(sentiment.NewVADERScorer())
	aggregator := aggregate.New(providers, tracker, classifier, cfg.FetchTimeout, log)

	ingestCities := cfg.Cities
	if len(ingestCities) == 0 {
		ingestCities = cities.Default(defaultCityCount)
	}

	log.Info("ingestor starting",
		slog.Any("providers", aggregator.Providers()),
		slog.Any("cities", ingestCities),
		slog.Any("diseases", cfg.Diseases),
	)

	go serveMetrics(log)

	sched := scheduler.New(aggregator, cacheStore, itemStore, publisher,
		ingestCities, cfg.Diseases, cfg.ItemLimit, cfg.Interval, cfg.CacheTTL, log)
	sched.Run(ctx)

	log.Info("ingestor stopped")
}

// buildProviders returns only the adapters whose credentials are present.
func buildProviders(log *slog.Logger, cfg config.Providers) []provider.Provider {
	var providers []provider.Provider
	if cfg.NewsAPIKey != "" {
		providers = append(providers, provider.NewNewsAPI(cfg.NewsAPIKey, cfg.FetchTimeout, cfg.RequestsPerSecond, log))
	}
	if cfg.TwitterBearerToken != "" {
		providers = append(providers, provider.NewTwitter(cfg.TwitterBearerToken, cfg.FetchTimeout, cfg.RequestsPerSecond, log))
	}
	return providers
}

func newCacheStore(ctx context.Context, log *slog.Logger, redisAddr string) cache.Store {
	if redisAddr == "" {
		log.Info("REDIS_ADDR not set, using in-memory cache")
		return cache.NewMemory(1000)
	}

	dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	store, err := cache.NewRedis(dialCtx, redisAddr)
	if err != nil {
		log.Warn("redis unavailable, using in-memory cache", slog.Any("err", err))
		return cache.NewMemory(1000)
	}
	log.Info("connected to redis", slog.String("addr", redisAddr))
	return store
}

// newItemStore returns nil when Elasticsearch is unreachable; the loop then
// runs cache-only.
func newItemStore(ctx context.Context, log *slog.Logger, cfg *config.Ingestor) scheduler.ItemStore {
	esClient, err := elasticsearch.New(cfg.ElasticsearchAddr, cfg.ElasticsearchIndex, log)
	if err != nil {
		log.Warn("init elasticsearch failed, persistence disabled", slog.Any("err", err))
		return nil
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := esClient.Ping(pingCtx); err != nil {
		log.Warn("elasticsearch unreachable, persistence disabled", slog.Any("err", err))
		return nil
	}
	log.Info("connected to elasticsearch", slog.String("addr", cfg.ElasticsearchAddr))
	return esClient
}

func newPublisher(log *slog.Logger, cfg *config.Ingestor) *stream.Publisher {
	if len(cfg.KafkaBrokers) == 0 {
		log.Info("KAFKA_BROKERS not set, event publishing disabled")
		return nil
	}
	log.Info("publishing item events", slog.String("topic", cfg.KafkaTopic))
	return stream.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, log)
}

func serveMetrics(log *slog.Logger) {
	addr := os.Getenv("INGESTOR_METRICS_ADDR")
	if addr == "" {
		addr = ":9100"
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Warn("metrics server stopped", slog.Any("err", err))
	}
}
