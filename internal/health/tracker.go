// Package health tracks per-provider failure state and decides when a
// provider should be skipped. It is a circuit breaker without a half-open
// probe: eligibility returns purely from elapsed time.
package health

import (
	"sort"
	"sync"
	"time"

	"github.com/akudrin/epiwatch/backend/internal/models"
)

// maxBackoffExp caps the doubling so the shift cannot overflow.
const maxBackoffExp = 16

// Tracker is shared by every concurrent aggregation call and by the
// background ingestor. Records are created lazily on first failure and live
// for the rest of the process.
type Tracker struct {
	threshold int
	base      time.Duration
	now       func() time.Time

	mu        sync.RWMutex
	providers map[string]*record
}

// record state is guarded by its own mutex so updates for different
// providers never block each other.
type record struct {
	mu           sync.Mutex
	fails        int
	backoffUntil time.Time
}

// NewTracker creates a tracker that opens the circuit after threshold
// consecutive failures, backing off for base*2^(fails-threshold).
func NewTracker(threshold int, base time.Duration) *Tracker {
	if threshold <= 0 {
		threshold = 3
	}
	if base <= 0 {
		base = time.Minute
	}
	return &Tracker{
		threshold: threshold,
		base:      base,
		now:       time.Now,
		providers: make(map[string]*record),
	}
}

// WithClock replaces the time source. Intended for tests.
func (t *Tracker) WithClock(now func() time.Time) *Tracker {
	t.now = now
	return t
}

func (t *Tracker) get(name string) *record {
	t.mu.RLock()
	r := t.providers[name]
	t.mu.RUnlock()
	return r
}

func (t *Tracker) getOrCreate(name string) *record {
	if r := t.get(name); r != nil {
		return r
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if r, ok := t.providers[name]; ok {
		return r
	}
	r := &record{}
	t.providers[name] = r
	return r
}

// Eligible reports whether the provider may be attempted right now. A
// provider with no recorded failures is always eligible; one in backoff
// becomes eligible the instant its window elapses.
func (t *Tracker) Eligible(name string) bool {
	r := t.get(name)
	if r == nil {
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.backoffUntil.IsZero() || !t.now().Before(r.backoffUntil)
}

// Success resets the provider's failure count and closes its circuit.
func (t *Tracker) Success(name string) {
	r := t.get(name)
	if r == nil {
		return
	}
	r.mu.Lock()
	r.fails = 0
	r.backoffUntil = time.Time{}
	r.mu.Unlock()
}

// Failure records one failed attempt. Once the count reaches the threshold
// the backoff window opens at the base duration and doubles with each
// additional consecutive failure.
func (t *Tracker) Failure(name string) {
	r := t.getOrCreate(name)
	r.mu.Lock()
	defer r.mu.Unlock()

	r.fails++
	if r.fails < t.threshold {
		return
	}
	exp := r.fails - t.threshold
	if exp > maxBackoffExp {
		exp = maxBackoffExp
	}
	r.backoffUntil = t.now().Add(t.base * (1 << uint(exp)))
}

// Snapshot returns the current state of every tracked provider, sorted by
// name. Used by the health endpoint.
func (t *Tracker) Snapshot() []models.ProviderHealth {
	t.mu.RLock()
	names := make([]string, 0, len(t.providers))
	for name := range t.providers {
		names = append(names, name)
	}
	t.mu.RUnlock()
	sort.Strings(names)

	out := make([]models.ProviderHealth, 0, len(names))
	for _, name := range names {
		r := t.get(name)
		if r == nil {
			continue
		}
		r.mu.Lock()
		h := models.ProviderHealth{
			Name:                name,
			ConsecutiveFailures: r.fails,
		}
		if !r.backoffUntil.IsZero() {
			until := r.backoffUntil
			h.BackoffUntil = &until
		}
		r.mu.Unlock()
		h.Eligible = t.Eligible(name)
		out = append(out, h)
	}
	return out
}
