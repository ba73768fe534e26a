package provider

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewsAPIFetchMapsArticles(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v2/everything", r.URL.Path)
		require.Equal(t, "secret", r.Header.Get("Authorization"))
		require.Equal(t, "flu Mumbai", r.URL.Query().Get("q"))
		require.Equal(t, "publishedAt", r.URL.Query().Get("sortBy"))

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"status":"ok","articles":[
			{"title":" Flu spike in Mumbai ","url":"https://example.com/a1","publishedAt":"2024-01-01T10:00:00Z","source":{"name":"Example Times"},"author":"x"},
			{"title":"Untitled source","url":"","publishedAt":"not-a-date","source":{}}
		]}`)
	}))
	defer srv.Close()

	p := NewNewsAPI("secret", time.Second, 100, discard())
	p.baseURL = srv.URL

	items, err := p.Fetch(context.Background(), "flu Mumbai", 10)
	require.NoError(t, err)
	require.Len(t, items, 2)

	require.Equal(t, "https://example.com/a1", items[0].ID)
	require.Equal(t, "Flu spike in Mumbai", items[0].Title)
	require.Equal(t, "Example Times", items[0].Source)
	require.Equal(t, "https://example.com/a1", items[0].Link)
	require.Equal(t, time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC), items[0].Timestamp)
	require.NotEmpty(t, items[0].Raw)

	// No link: title becomes the identity, missing source name falls back.
	require.Equal(t, "Untitled source", items[1].ID)
	require.Equal(t, "NewsAPI", items[1].Source)
	require.True(t, items[1].Timestamp.IsZero())
}

func TestNewsAPIFetchTruncatesToLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"articles":[
			{"title":"a","url":"https://example.com/1"},
			{"title":"b","url":"https://example.com/2"},
			{"title":"c","url":"https://example.com/3"}
		]}`)
	}))
	defer srv.Close()

	p := NewNewsAPI("secret", time.Second, 100, discard())
	p.baseURL = srv.URL

	items, err := p.Fetch(context.Background(), "q", 2)
	require.NoError(t, err)
	require.Len(t, items, 2)
}

func TestNewsAPIFetchNotConfigured(t *testing.T) {
	p := NewNewsAPI("", time.Second, 100, discard())
	_, err := p.Fetch(context.Background(), "q", 5)
	require.ErrorIs(t, err, ErrNotConfigured)
}

func TestNewsAPIFetchHTTPErrorIsRequestError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := NewNewsAPI("secret", time.Second, 100, discard())
	p.baseURL = srv.URL

	_, err := p.Fetch(context.Background(), "q", 5)
	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	require.Equal(t, "newsapi", reqErr.Provider)
}

func TestTwitterFetchMapsTweets(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/2/tweets/search/recent", r.URL.Path)
		require.Equal(t, "Bearer token", r.Header.Get("Authorization"))
		require.Contains(t, r.URL.Query().Get("query"), "lang:en -is:retweet")

		io.WriteString(w, `{"data":[
			{"id":"111","text":"  dengue rising in Pune  ","created_at":"2024-02-02T08:30:00Z","author_id":"9"},
			{"text":"no id, dropped"}
		]}`)
	}))
	defer srv.Close()

	p := NewTwitter("token", time.Second, 100, discard())
	p.baseURL = srv.URL

	items, err := p.Fetch(context.Background(), "dengue Pune", 10)
	require.NoError(t, err)
	require.Len(t, items, 1)

	require.Equal(t, "111", items[0].ID)
	require.Equal(t, "dengue rising in Pune", items[0].Title)
	require.Equal(t, "Twitter", items[0].Source)
	require.Equal(t, "https://twitter.com/i/web/status/111", items[0].Link)
	require.Equal(t, time.Date(2024, 2, 2, 8, 30, 0, 0, time.UTC), items[0].Timestamp)
}

func TestTwitterFetchNotConfigured(t *testing.T) {
	p := NewTwitter("", time.Second, 100, discard())
	_, err := p.Fetch(context.Background(), "q", 5)
	require.ErrorIs(t, err, ErrNotConfigured)
}

func TestTwitterFetchTransportError(t *testing.T) {
	p := NewTwitter("token", 50*time.Millisecond, 100, discard())
	p.baseURL = "http://127.0.0.1:1" // nothing listens here

	_, err := p.Fetch(context.Background(), "q", 5)
	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	require.Equal(t, "twitter", reqErr.Provider)
	require.False(t, errors.Is(err, ErrNotConfigured))
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want time.Time
	}{
		{name: "rfc3339", raw: "2024-02-03T04:05:06Z", want: time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC)},
		{name: "legacy", raw: "2024-02-03 04:05:06", want: time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC)},
		{name: "empty", raw: "", want: time.Time{}},
		{name: "garbage", raw: "yesterday", want: time.Time{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, parseTimestamp(tt.raw))
		})
	}
}
