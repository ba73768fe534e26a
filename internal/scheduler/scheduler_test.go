package scheduler_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/akudrin/epiwatch/backend/internal/aggregate"
	"github.com/akudrin/epiwatch/backend/internal/cache"
	"github.com/akudrin/epiwatch/backend/internal/models"
	"github.com/akudrin/epiwatch/backend/internal/scheduler"
)

type stubFetcher struct {
	mu    sync.Mutex
	items []models.NewsItem
	err   error
	calls int
}

func (f *stubFetcher) FetchCombined(_ context.Context, _ string, _ int) ([]models.NewsItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.items, f.err
}

type stubStore struct {
	mu    sync.Mutex
	items []models.NewsItem
	err   error
}

func (s *stubStore) UpsertItem(_ context.Context, item models.NewsItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.items = append(s.items, item)
	return nil
}

type stubPublisher struct {
	mu     sync.Mutex
	events int
	origin string
}

func (p *stubPublisher) PublishItems(_ context.Context, _, _, origin string, items []models.NewsItem) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events += len(items)
	p.origin = origin
	return nil
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func readCached(t *testing.T, store cache.Store, key string) models.CachedNews {
	t.Helper()
	payload, ok, err := store.Get(context.Background(), key)
	require.NoError(t, err)
	require.True(t, ok, "expected cache entry for %s", key)
	var cached models.CachedNews
	require.NoError(t, json.Unmarshal(payload, &cached))
	return cached
}

func TestRunCachesAndPersistsExternalItems(t *testing.T) {
	item := models.NewsItem{
		ID:        "https://example.com/u1",
		Title:     "Flu spike",
		Source:    "Example Times",
		Timestamp: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC),
		Link:      "https://example.com/u1",
	}
	fetcher := &stubFetcher{items: []models.NewsItem{item}}
	memory := cache.NewMemory(100)
	store := &stubStore{}
	publisher := &stubPublisher{}

	sched := scheduler.New(fetcher, memory, store, publisher,
		[]string{"Mumbai"}, []string{"flu"}, 10, time.Hour, time.Minute, discard())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sched.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		_, ok, _ := memory.Get(context.Background(), "news:mumbai:flu:10")
		return ok
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop on cancellation")
	}

	cached := readCached(t, memory, "news:mumbai:flu:10")
	require.Equal(t, "external", cached.Source)
	require.Len(t, cached.Items, 1)
	require.Equal(t, item.ID, cached.Items[0].ID)

	require.Len(t, store.items, 1)
	require.Equal(t, 1, publisher.events)
	require.Equal(t, "external", publisher.origin)
}

func TestRunFallsBackToSyntheticPerTopic(t *testing.T) {
	fetcher := &stubFetcher{err: aggregate.ErrNoProviders}
	memory := cache.NewMemory(100)

	sched := scheduler.New(fetcher, memory, nil, nil,
		[]string{"Pune", "Kochi"}, []string{"dengue"}, 5, time.Hour, time.Minute, discard())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sched.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		_, okA, _ := memory.Get(context.Background(), "news:pune:dengue:5")
		_, okB, _ := memory.Get(context.Background(), "news:kochi:dengue:5")
		return okA && okB
	}, time.Second, 10*time.Millisecond)

	cancel()
	<-done

	// One failing topic never halts the pass: both topics got a fallback.
	for _, key := range []string{"news:pune:dengue:5", "news:kochi:dengue:5"} {
		cached := readCached(t, memory, key)
		require.Equal(t, "synthetic", cached.Source)
		require.Len(t, cached.Items, 5)
	}
}

func TestRunContinuesWhenUpsertFails(t *testing.T) {
	fetcher := &stubFetcher{items: []models.NewsItem{{ID: "a", Title: "t"}}}
	memory := cache.NewMemory(100)
	store := &stubStore{err: errors.New("es down")}

	sched := scheduler.New(fetcher, memory, store, nil,
		[]string{"Mumbai"}, []string{"flu"}, 10, time.Hour, time.Minute, discard())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sched.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		_, ok, _ := memory.Get(context.Background(), "news:mumbai:flu:10")
		return ok
	}, time.Second, 10*time.Millisecond)

	cancel()
	<-done
}

func TestRunStopsDuringSleepWithoutWaitingFullInterval(t *testing.T) {
	fetcher := &stubFetcher{items: nil}
	memory := cache.NewMemory(10)

	sched := scheduler.New(fetcher, memory, nil, nil,
		[]string{"Mumbai"}, []string{"flu"}, 10, time.Hour, time.Minute, discard())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sched.Run(ctx)
		close(done)
	}()

	// Let the first pass finish, then cancel mid-sleep.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("scheduler kept sleeping after cancellation")
	}

	fetcher.mu.Lock()
	defer fetcher.mu.Unlock()
	require.Equal(t, 1, fetcher.calls)
}
