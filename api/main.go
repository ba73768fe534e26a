package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/akudrin/epiwatch/backend/internal/aggregate"
	"github.com/akudrin/epiwatch/backend/internal/cache"
	"github.com/akudrin/epiwatch/backend/internal/config"
	"github.com/akudrin/epiwatch/backend/internal/elasticsearch"
	"github.com/akudrin/epiwatch/backend/internal/health"
	"github.com/akudrin/epiwatch/backend/internal/logger"
	"github.com/akudrin/epiwatch/backend/internal/models"
	"github.com/akudrin/epiwatch/backend/internal/provider"
	"github.com/akudrin/epiwatch/backend/internal/sentiment"
	"github.com/akudrin/epiwatch/backend/internal/synthetic"
)

func main() {
	log := logger.New("api")
	cfg, err := config.LoadAPI()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	esClient, err := elasticsearch.New(cfg.ElasticsearchAddr, cfg.ElasticsearchIndex, log)
	if err != nil {
		log.Error("init elasticsearch", slog.Any("err", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	var providers []provider.Provider
	if cfg.NewsAPIKey != "" {
		providers = append(providers, provider.NewNewsAPI(cfg.NewsAPIKey, cfg.FetchTimeout, cfg.RequestsPerSecond, log))
	}
	if cfg.TwitterBearerToken != "" {
		providers = append(providers, provider.NewTwitter(cfg.TwitterBearerToken, cfg.FetchTimeout, cfg.RequestsPerSecond, log))
	}

	tracker := health.NewTracker(cfg.FailThreshold, cfg.BackoffBase)
	classifier := sentiment.NewClassifier(sentiment.NewVADERScorer())
	aggregator := aggregate.New(providers, tracker, classifier, cfg.FetchTimeout, log)

	srv := &server{
		log:     log,
		cfg:     cfg,
		es:      esClient,
		cache:   newCacheStore(ctx, log, cfg.RedisAddr),
		agg:     aggregator,
		tracker: tracker,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", srv.handleHealth)
	r.Get("/api/news", srv.handleNews)
	r.Get("/api/news/search", srv.handleSearch)
	r.Handle("/metrics", promhttp.Handler())

	httpServer := &http.Server{
		Addr:              cfg.BindAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      45 * time.Second,
	}

	go func() {
		log.Info("api server starting", slog.String("addr", cfg.BindAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped", slog.Any("err", err))
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	log.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", slog.Any("err", err))
	}
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

type server struct {
	log     *slog.Logger
	cfg     *config.API
	es      *elasticsearch.Client
	cache   cache.Store
	agg     *aggregate.Aggregator
	tracker *health.Tracker
}

type errorResponse struct {
	Error string `json:"error"`
}

type newsResponse struct {
	City    string            `json:"city"`
	Disease string            `json:"disease"`
	Items   []models.NewsItem `json:"items"`
	Source  string            `json:"source"`
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := map[string]any{
		"status":    "ok",
		"providers": s.tracker.Snapshot(),
	}

	if err := s.es.Health(ctx); err != nil {
		status["status"] = "degraded"
		status["elasticsearch"] = err.Error()
		writeJSON(w, http.StatusServiceUnavailable, status)
		return
	}

	writeJSON(w, http.StatusOK, status)
}

// handleNews serves the merged item list for one city/disease pair. A fresh
// cache entry short-circuits the provider pipeline; total provider failure
// degrades to synthetic items rather than an error.
func (s *server) handleNews(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.FetchTimeout+10*time.Second)
	defer cancel()

	city := strings.TrimSpace(r.URL.Query().Get("city"))
	disease := strings.TrimSpace(r.URL.Query().Get("disease"))
	if city == "" || disease == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "city and disease are required"})
		return
	}
	limit := clampInt(r.URL.Query().Get("limit"), s.cfg.DefaultLimit, s.cfg.MaxLimit)

	key := cache.Key(city, disease, limit)
	if payload, ok, err := s.cache.Get(ctx, key); err == nil && ok {
		var cached models.CachedNews
		if json.Unmarshal(payload, &cached) == nil {
			s.log.Debug("cache hit", slog.String("key", key))
			writeJSON(w, http.StatusOK, newsResponse{City: city, Disease: disease, Items: cached.Items, Source: cached.Source})
			return
		}
	}

	items, err := s.agg.FetchCombined(ctx, disease+" "+city, limit)
	if err != nil {
		// No providers configured: degraded-but-successful response.
		s.log.Debug("aggregation unavailable, serving synthetic items",
			slog.String("city", city),
			slog.String("disease", disease),
			slog.Any("err", err),
		)
		writeJSON(w, http.StatusOK, newsResponse{
			City:    city,
			Disease: disease,
			Items:   synthetic.Items(city, disease, limit, time.Now()),
			Source:  "synthetic",
		})
		return
	}

	if payload, err := json.Marshal(models.CachedNews{Items: items, Source: "external"}); err == nil {
		if err := s.cache.Set(ctx, key, payload, s.cfg.CacheTTL); err != nil {
			s.log.Warn("cache write failed", slog.String("key", key), slog.Any("err", err))
		}
	}

	writeJSON(w, http.StatusOK, newsResponse{City: city, Disease: disease, Items: items, Source: "external"})
}

func (s *server) handleSearch(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	params := elasticsearch.SearchParams{
		Query:     strings.TrimSpace(r.URL.Query().Get("q")),
		Source:    strings.TrimSpace(r.URL.Query().Get("source")),
		Sentiment: strings.TrimSpace(r.URL.Query().Get("sentiment")),
		Domain:    strings.TrimSpace(r.URL.Query().Get("domain")),
		From:      clampInt(r.URL.Query().Get("from"), 0, 10_000),
		Size:      clampInt(r.URL.Query().Get("size"), s.cfg.DefaultLimit, s.cfg.MaxLimit),
	}
	if start := parseTime(r.URL.Query().Get("start")); start != nil {
		params.Start = start
	}
	if end := parseTime(r.URL.Query().Get("end")); end != nil {
		params.End = end
	}

	result, err := s.es.SearchNews(ctx, params)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func parseTime(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return &ts
	}
	return nil
}

func clampInt(raw string, fallback, max int) int {
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	if value <= 0 {
		return fallback
	}
	if value > max {
		return max
	}
	return value
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		// nothing better to do
	}
}
