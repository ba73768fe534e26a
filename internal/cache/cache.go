// Package cache provides the TTL'd key/value store the pipeline writes
// aggregated results into. Request-time callers that find a fresh entry
// skip the provider pipeline entirely.
package cache

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Store holds opaque JSON values under string keys with per-entry TTLs.
// Writes are best effort; a failed Set must not fail the pipeline.
type Store interface {
	// Get returns the value and whether a live entry exists.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores value under key for ttl.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Key builds the canonical cache key for a city/disease/limit combination.
func Key(city, disease string, limit int) string {
	return fmt.Sprintf("news:%s:%s:%d", strings.ToLower(city), strings.ToLower(disease), limit)
}
