package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Common contains storage parameters shared by every service.
type Common struct {
	ElasticsearchAddr  string
	ElasticsearchIndex string
	RedisAddr          string
}

// Providers holds credentials and circuit-breaker tuning for the external
// news/social providers. A provider with an empty credential is simply not
// configured; nothing else is required to disable it.
type Providers struct {
	NewsAPIKey         string
	TwitterBearerToken string
	FailThreshold      int
	BackoffBase        time.Duration
	FetchTimeout       time.Duration
	RequestsPerSecond  float64
}

// API describes HTTP-layer configuration.
type API struct {
	Common
	Providers
	BindAddr     string
	DefaultLimit int
	MaxLimit     int
	CacheTTL     time.Duration
}

// Ingestor holds configuration for the background refresh loop.
type Ingestor struct {
	Common
	Providers
	Interval     time.Duration
	CacheTTL     time.Duration
	Cities       []string
	Diseases     []string
	ItemLimit    int
	KafkaBrokers []string
	KafkaTopic   string
}

// Retention configures the cleanup loop.
type Retention struct {
	Common
	Interval  time.Duration
	MaxAge    time.Duration
	BatchSize int
}

func loadCommon() Common {
	return Common{
		ElasticsearchAddr:  getEnv("ELASTICSEARCH_ADDR", "http://elasticsearch:9200"),
		ElasticsearchIndex: getEnv("ELASTICSEARCH_INDEX", "news"),
		RedisAddr:          getEnv("REDIS_ADDR", ""),
	}
}

func loadProviders() (Providers, error) {
	p := Providers{
		NewsAPIKey:         getEnv("NEWSAPI_KEY", ""),
		TwitterBearerToken: getEnv("TWITTER_BEARER_TOKEN", ""),
		FailThreshold:      getInt("NEWS_PROVIDER_FAIL_THRESHOLD", 3),
		BackoffBase:        getDuration("NEWS_PROVIDER_BACKOFF_BASE", "60s"),
		FetchTimeout:       getDuration("NEWS_PROVIDER_TIMEOUT", "20s"),
		RequestsPerSecond:  getFloat("NEWS_PROVIDER_RPS", 1),
	}

	if p.FailThreshold <= 0 {
		return p, fmt.Errorf("NEWS_PROVIDER_FAIL_THRESHOLD must be positive")
	}
	if p.BackoffBase <= 0 {
		return p, fmt.Errorf("NEWS_PROVIDER_BACKOFF_BASE must be positive")
	}
	if p.FetchTimeout <= 0 {
		return p, fmt.Errorf("NEWS_PROVIDER_TIMEOUT must be positive")
	}
	if p.RequestsPerSecond <= 0 {
		return p, fmt.Errorf("NEWS_PROVIDER_RPS must be positive")
	}

	return p, nil
}

// LoadAPI builds an API config from environment variables.
func LoadAPI() (*API, error) {
	providers, err := loadProviders()
	if err != nil {
		return nil, err
	}

	c := &API{
		Common:       loadCommon(),
		Providers:    providers,
		BindAddr:     getEnv("API_BIND_ADDR", "0.0.0.0:8080"),
		DefaultLimit: getInt("API_NEWS_LIMIT", 10),
		MaxLimit:     getInt("API_MAX_NEWS_LIMIT", 50),
		CacheTTL:     getDuration("NEWS_CACHE_TTL", "180s"),
	}

	if c.DefaultLimit <= 0 {
		return nil, fmt.Errorf("API_NEWS_LIMIT must be positive")
	}
	if c.MaxLimit <= 0 {
		return nil, fmt.Errorf("API_MAX_NEWS_LIMIT must be positive")
	}
	if c.DefaultLimit > c.MaxLimit {
		return nil, fmt.Errorf("API_NEWS_LIMIT cannot exceed API_MAX_NEWS_LIMIT")
	}
	if c.CacheTTL <= 0 {
		return nil, fmt.Errorf("NEWS_CACHE_TTL must be positive")
	}

	return c, nil
}

// LoadIngestor builds an Ingestor config from environment variables.
func LoadIngestor() (*Ingestor, error) {
	providers, err := loadProviders()
	if err != nil {
		return nil, err
	}

	c := &Ingestor{
		Common:       loadCommon(),
		Providers:    providers,
		Interval:     getDuration("NEWS_INGEST_INTERVAL", "300s"),
		CacheTTL:     getDuration("NEWS_CACHE_TTL", "180s"),
		Cities:       splitAndTrim(getEnv("INGEST_CITIES", "")),
		Diseases:     splitAndTrim(getEnv("INGEST_DISEASES", "flu,dengue,covid")),
		ItemLimit:    getInt("INGEST_ITEM_LIMIT", 10),
		KafkaBrokers: splitAndTrim(getEnv("KAFKA_BROKERS", "")),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "news_items"),
	}

	if c.Interval <= 0 {
		return nil, fmt.Errorf("NEWS_INGEST_INTERVAL must be positive")
	}
	if c.CacheTTL <= 0 {
		return nil, fmt.Errorf("NEWS_CACHE_TTL must be positive")
	}
	if len(c.Diseases) == 0 {
		return nil, fmt.Errorf("INGEST_DISEASES must contain at least one disease")
	}
	if c.ItemLimit <= 0 {
		return nil, fmt.Errorf("INGEST_ITEM_LIMIT must be positive")
	}
	if len(c.KafkaBrokers) > 0 && c.KafkaTopic == "" {
		return nil, fmt.Errorf("KAFKA_TOPIC must be set when KAFKA_BROKERS is set")
	}

	return c, nil
}

// LoadRetention builds a Retention config from environment variables.
func LoadRetention() (*Retention, error) {
	c := &Retention{
		Common:    loadCommon(),
		Interval:  getDuration("RETENTION_INTERVAL", "24h"),
		MaxAge:    getDuration("RETENTION_MAX_AGE", "720h"),
		BatchSize: getInt("RETENTION_BATCH_SIZE", 500),
	}

	if c.Interval <= 0 {
		return nil, fmt.Errorf("RETENTION_INTERVAL must be positive")
	}
	if c.MaxAge <= 0 {
		return nil, fmt.Errorf("RETENTION_MAX_AGE must be positive")
	}
	if c.BatchSize <= 0 {
		return nil, fmt.Errorf("RETENTION_BATCH_SIZE must be positive")
	}

	return c, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}

func getFloat(key string, fallback float64) float64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getDuration(key, fallback string) time.Duration {
	raw := getEnv(key, fallback)
	d, err := time.ParseDuration(raw)
	if err != nil {
		fd, ferr := time.ParseDuration(fallback)
		if ferr != nil {
			panic(fmt.Sprintf("invalid fallback duration %q: %v", fallback, ferr))
		}
		return fd
	}
	return d
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
