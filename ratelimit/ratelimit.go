// Package ratelimit implements the click limiter guarding Windows password
// retrieval. Each user gets a fixed click budget per rolling window; the
// window starts at the first click and resets itself once the interval has
// elapsed, with no background timer involved.
package ratelimit // import "github.com/splunklabhq/splunklab/backend/services/ratelimit"

import (
	"context"
	"sync"
	"time"

	"github.com/splunklabhq/splunklab/backend/services/ratelimit/store"
	"github.com/splunklabhq/splunklab/backend/services/types"
	logger "github.com/splunklabhq/splunklab/backend/services/lablogger"
)

// Decision is the outcome of consulting the limiter for one user.
type Decision struct {
	// Allowed reports whether the click may proceed.
	Allowed bool
	// RemainingClicks is the budget left in the current window, after this
	// click if it was allowed.
	RemainingClicks int
	// RetryAfter is how long until the window resets. Zero when no window
	// is open.
	RetryAfter time.Duration
}

// Limiter enforces the per-user click budget. It is safe for concurrent use.
type Limiter struct {
	store     *store.TieredStore
	maxClicks int
	interval  time.Duration

	// fallback holds per-user records for the rare case where every
	// storage tier is down. It lives only as long as the process.
	mu       sync.Mutex
	fallback map[types.UserEmail]store.Record

	now func() time.Time
}

// New creates a Limiter allowing maxClicks per interval, persisted through
// the given tiered store.
func New(tieredStore *store.TieredStore, maxClicks int, interval time.Duration) *Limiter {
	return &Limiter{
		store:     tieredStore,
		maxClicks: maxClicks,
		interval:  interval,
		fallback:  map[types.UserEmail]store.Record{},
		now:       time.Now,
	}
}

// RegisterClick records one click for the user and reports whether it is
// allowed. A denied click does not consume budget.
func (l *Limiter) RegisterClick(ctx context.Context, userKey types.UserEmail) (Decision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	record := l.currentRecord(ctx, userKey)

	if record.ClickCount >= l.maxClicks {
		return Decision{
			Allowed:         false,
			RemainingClicks: 0,
			RetryAfter:      l.retryAfter(record),
		}, nil
	}

	if record.ClickCount == 0 {
		// First click of a fresh window anchors the window start.
		record.LastResetTime = l.now()
	}
	record.ClickCount++
	l.persist(ctx, userKey, record)

	return Decision{
		Allowed:         true,
		RemainingClicks: l.maxClicks - record.ClickCount,
		RetryAfter:      l.retryAfter(record),
	}, nil
}

// Status reports the user's current budget without consuming a click.
func (l *Limiter) Status(ctx context.Context, userKey types.UserEmail) (Decision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	record := l.currentRecord(ctx, userKey)

	remaining := l.maxClicks - record.ClickCount
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:         record.ClickCount < l.maxClicks,
		RemainingClicks: remaining,
		RetryAfter:      l.retryAfter(record),
	}, nil
}

// Reset clears the user's window entirely.
func (l *Limiter) Reset(ctx context.Context, userKey types.UserEmail) {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.fallback, userKey)
	if err := l.store.Clear(ctx, userKey); err != nil {
		logger.Warningf("couldn't clear rate-limit record for %s: %s", userKey, err)
	}
}

// currentRecord loads the user's record, falling back to process memory when
// the store is entirely unavailable, and self-resets an expired window.
// Callers must hold l.mu.
func (l *Limiter) currentRecord(ctx context.Context, userKey types.UserEmail) store.Record {
	loaded, err := l.store.Load(ctx, userKey)
	if err != nil {
		if store.IsUnavailable(err) {
			logger.Warningf("rate-limit store unavailable, using in-memory record for %s", userKey)
			if record, ok := l.fallback[userKey]; ok && !l.expired(record) {
				return record
			}
			return store.Record{}
		}
		logger.Errorf("couldn't load rate-limit record for %s: %s", userKey, err)
		return store.Record{}
	}

	if loaded == nil {
		return store.Record{}
	}
	if l.expired(*loaded) {
		return store.Record{}
	}
	return *loaded
}

// persist writes the record through the store, always mirroring into the
// in-memory fallback so a store outage mid-window loses nothing.
func (l *Limiter) persist(ctx context.Context, userKey types.UserEmail, record store.Record) {
	l.fallback[userKey] = record
	if err := l.store.Save(ctx, userKey, record.ClickCount, record.LastResetTime); err != nil {
		logger.Warningf("couldn't persist rate-limit record for %s: %s", userKey, err)
	}
}

func (l *Limiter) expired(record store.Record) bool {
	return l.now().Sub(record.LastResetTime) >= l.interval
}

func (l *Limiter) retryAfter(record store.Record) time.Duration {
	if record.ClickCount == 0 {
		return 0
	}
	remaining := l.interval - l.now().Sub(record.LastResetTime)
	if remaining < 0 {
		return 0
	}
	return remaining
}
