package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/akudrin/epiwatch/backend/internal/metrics"
	"github.com/akudrin/epiwatch/backend/internal/models"
)

const newsAPIBaseURL = "https://newsapi.org"

// newsAPIMaxPageSize is the largest pageSize the /v2/everything endpoint accepts.
const newsAPIMaxPageSize = 50

// NewsAPI fetches articles from NewsAPI.org.
type NewsAPI struct {
	key     string
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	log     *slog.Logger
}

type newsAPIArticle struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	PublishedAt string `json:"publishedAt"`
	Source      struct {
		Name string `json:"name"`
	} `json:"source"`
}

// NewNewsAPI builds the NewsAPI adapter. An empty key leaves the adapter in
// the not-configured state rather than failing construction.
func NewNewsAPI(key string, timeout time.Duration, rps float64, log *slog.Logger) *NewsAPI {
	if rps <= 0 {
		rps = 1
	}
	return &NewsAPI{
		key:     key,
		baseURL: newsAPIBaseURL,
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		log:     log,
	}
}

// Name implements Provider.
func (p *NewsAPI) Name() string { return "newsapi" }

// Fetch retrieves up to limit articles matching the query, most recent
// first, mapped into NewsItem with the raw article kept alongside.
func (p *NewsAPI) Fetch(ctx context.Context, query string, limit int) ([]models.NewsItem, error) {
	if p.key == "" {
		return nil, fmt.Errorf("newsapi: %w", ErrNotConfigured)
	}

	metrics.FetchAttempts.WithLabelValues(p.Name()).Inc()
	items, err := p.fetch(ctx, query, limit)
	if err != nil {
		metrics.FetchFailures.WithLabelValues(p.Name()).Inc()
		return nil, &RequestError{Provider: p.Name(), Err: err}
	}
	return items, nil
}

func (p *NewsAPI) fetch(ctx context.Context, query string, limit int) ([]models.NewsItem, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	pageSize := limit
	if pageSize > newsAPIMaxPageSize {
		pageSize = newsAPIMaxPageSize
	}

	q := url.Values{}
	q.Set("q", query)
	q.Set("pageSize", strconv.Itoa(pageSize))
	q.Set("sortBy", "publishedAt")
	q.Set("language", "en")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/v2/everything?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", p.key)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed struct {
		Articles []json.RawMessage `json:"articles"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if len(parsed.Articles) > limit {
		parsed.Articles = parsed.Articles[:limit]
	}

	items := make([]models.NewsItem, 0, len(parsed.Articles))
	for _, raw := range parsed.Articles {
		var a newsAPIArticle
		if err := json.Unmarshal(raw, &a); err != nil {
			p.log.Debug("skipping malformed article", slog.Any("err", err))
			continue
		}

		source := a.Source.Name
		if source == "" {
			source = "NewsAPI"
		}

		id := a.URL
		if id == "" {
			id = strings.TrimSpace(a.Title)
		}

		items = append(items, models.NewsItem{
			ID:        id,
			Title:     strings.TrimSpace(a.Title),
			Source:    source,
			Timestamp: parseTimestamp(a.PublishedAt),
			Link:      a.URL,
			Raw:       raw,
		})
	}

	return items, nil
}
