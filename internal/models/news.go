package models

import (
	"encoding/json"
	"time"
)

// NewsItem is the canonical shape every provider payload is normalized into.
// ID doubles as the dedup key and the document id in Elasticsearch: the
// provider link when one exists, the title otherwise.
type NewsItem struct {
	ID        string          `json:"id"`
	Title     string          `json:"title"`
	Source    string          `json:"source"`
	Timestamp time.Time       `json:"timestamp"`
	Link      string          `json:"link,omitempty"`
	Domain    string          `json:"domain,omitempty"`
	Sentiment string          `json:"sentiment,omitempty"`
	Raw       json.RawMessage `json:"raw,omitempty"`
}

// CachedNews is the payload stored in the cache for one topic.
type CachedNews struct {
	Items  []NewsItem `json:"items"`
	Source string     `json:"source"` // "external" or "synthetic"
}

// ProviderHealth is a point-in-time view of one provider's circuit state.
type ProviderHealth struct {
	Name                string     `json:"name"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	BackoffUntil        *time.Time `json:"backoff_until,omitempty"`
	Eligible            bool       `json:"eligible"`
}
