// Package provider contains the adapters that turn external news/social
// APIs into the common NewsItem shape.
package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/akudrin/epiwatch/backend/internal/models"
)

// ErrNotConfigured means the provider's credentials are absent. Retrying is
// pointless until an operator supplies them.
var ErrNotConfigured = errors.New("provider not configured")

// ErrInBackoff means the provider's circuit is open and the attempt was
// skipped. It clears on its own once the backoff window elapses.
var ErrInBackoff = errors.New("provider in backoff")

// RequestError wraps a transport or HTTP-level failure. This is the error
// class that feeds the health tracker.
type RequestError struct {
	Provider string
	Err      error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("provider %s: %v", e.Provider, e.Err)
}

func (e *RequestError) Unwrap() error { return e.Err }

// Provider fetches topic-tagged items from one external source.
type Provider interface {
	Name() string
	Fetch(ctx context.Context, query string, limit int) ([]models.NewsItem, error)
}

// parseTimestamp tries the formats providers are known to emit. A zero time
// means unparseable; the normalizer substitutes the aggregation start time.
func parseTimestamp(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}

	formats := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05",
	}

	for _, f := range formats {
		if ts, err := time.Parse(f, raw); err == nil {
			return ts
		}
	}

	return time.Time{}
}
