// Package metrics holds the Prometheus counters exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FetchAttempts counts every real request made to an external provider.
	FetchAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "news_external_fetch_total",
		Help: "Number of external news fetch attempts.",
	}, []string{"provider"})

	// FetchFailures counts provider requests that ended in an error.
	FetchFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "news_external_fetch_failures_total",
		Help: "Number of external news fetch failures.",
	}, []string{"provider"})

	// ItemsSaved counts items upserted into the persistent store.
	ItemsSaved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "news_items_saved_total",
		Help: "Number of news items saved to the store.",
	})
)
