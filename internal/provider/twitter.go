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

const twitterBaseURL = "https://api.twitter.com"

// twitterMaxResults is the largest max_results the recent search endpoint accepts.
const twitterMaxResults = 100

// Twitter fetches recent posts via the X API v2 recent search endpoint.
type Twitter struct {
	bearer  string
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	log     *slog.Logger
}

type tweet struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	CreatedAt string `json:"created_at"`
}

// NewTwitter builds the Twitter adapter. An empty bearer token leaves the
// adapter in the not-configured state.
func NewTwitter(bearer string, timeout time.Duration, rps float64, log *slog.Logger) *Twitter {
	if rps <= 0 {
		rps = 1
	}
	return &Twitter{
		bearer:  bearer,
		baseURL: twitterBaseURL,
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		log:     log,
	}
}

// Name implements Provider.
func (p *Twitter) Name() string { return "twitter" }

// Fetch retrieves up to limit recent English posts matching the query,
// retweets excluded.
func (p *Twitter) Fetch(ctx context.Context, query string, limit int) ([]models.NewsItem, error) {
	if p.bearer == "" {
		return nil, fmt.Errorf("twitter: %w", ErrNotConfigured)
	}

	metrics.FetchAttempts.WithLabelValues(p.Name()).Inc()
	items, err := p.fetch(ctx, query, limit)
	if err != nil {
		metrics.FetchFailures.WithLabelValues(p.Name()).Inc()
		return nil, &RequestError{Provider: p.Name(), Err: err}
	}
	return items, nil
}

func (p *Twitter) fetch(ctx context.Context, query string, limit int) ([]models.NewsItem, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	maxResults := limit
	if maxResults > twitterMaxResults {
		maxResults = twitterMaxResults
	}

	q := url.Values{}
	q.Set("query", query+" lang:en -is:retweet")
	q.Set("max_results", strconv.Itoa(maxResults))
	q.Set("tweet.fields", "created_at,text,author_id")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/2/tweets/search/recent?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.bearer)

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
		Data []json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if len(parsed.Data) > limit {
		parsed.Data = parsed.Data[:limit]
	}

	items := make([]models.NewsItem, 0, len(parsed.Data))
	for _, raw := range parsed.Data {
		var t tweet
		if err := json.Unmarshal(raw, &t); err != nil {
			p.log.Debug("skipping malformed tweet", slog.Any("err", err))
			continue
		}
		if t.ID == "" {
			continue
		}

		items = append(items, models.NewsItem{
			ID:        t.ID,
			Title:     strings.TrimSpace(t.Text),
			Source:    "Twitter",
			Timestamp: parseTimestamp(t.CreatedAt),
			Link:      "https://twitter.com/i/web/status/" + t.ID,
			Raw:       raw,
		})
	}

	return items, nil
}
