package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/splunklabhq/splunklab/backend/services/ratelimit/store"
	"github.com/splunklabhq/splunklab/backend/services/types"
)

const testUser types.UserEmail = "tester@splunklab.io"

type memTier struct {
	record  *store.Record
	failing bool
}

func (t *memTier) Name() string { return "mem" }

func (t *memTier) Load(ctx context.Context, userKey types.UserEmail) (*store.Record, error) {
	if t.failing {
		return nil, errors.New("tier down")
	}
	if t.record == nil {
		return nil, nil
	}
	record := *t.record
	return &record, nil
}

func (t *memTier) Save(ctx context.Context, userKey types.UserEmail, record store.Record) error {
	if t.failing {
		return errors.New("tier down")
	}
	t.record = &record
	return nil
}

func (t *memTier) Clear(ctx context.Context, userKey types.UserEmail) error {
	if t.failing {
		return errors.New("tier down")
	}
	t.record = nil
	return nil
}

func newTestLimiter(tier store.Tier) *Limiter {
	return New(store.New(20*time.Minute, tier), 5, 20*time.Minute)
}

func TestClickBudgetExhaustion(t *testing.T) {
	limiter := newTestLimiter(&memTier{})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		decision, err := limiter.RegisterClick(ctx, testUser)
		if err != nil {
			t.Fatalf("click %d returned error: %s", i+1, err)
		}
		if !decision.Allowed {
			t.Fatalf("click %d denied, expected budget of 5", i+1)
		}
		if decision.RemainingClicks != 4-i {
			t.Errorf("click %d: expected %d remaining, got %d", i+1, 4-i, decision.RemainingClicks)
		}
	}

	decision, err := limiter.RegisterClick(ctx, testUser)
	if err != nil {
		t.Fatalf("sixth click returned error: %s", err)
	}
	if decision.Allowed {
		t.Error("sixth click allowed, expected denial")
	}
	if decision.RetryAfter <= 0 || decision.RetryAfter > 20*time.Minute {
		t.Errorf("expected retry-after inside the window, got %s", decision.RetryAfter)
	}
}

func TestWindowSelfResets(t *testing.T) {
	limiter := newTestLimiter(&memTier{})
	ctx := context.Background()

	clock := time.Now()
	limiter.now = func() time.Time { return clock }

	for i := 0; i < 5; i++ {
		if _, err := limiter.RegisterClick(ctx, testUser); err != nil {
			t.Fatalf("click returned error: %s", err)
		}
	}

	decision, _ := limiter.RegisterClick(ctx, testUser)
	if decision.Allowed {
		t.Fatal("expected denial once budget is spent")
	}

	// The window expires on its own once the interval elapses.
	clock = clock.Add(20 * time.Minute)
	decision, err := limiter.RegisterClick(ctx, testUser)
	if err != nil {
		t.Fatalf("click after window expiry returned error: %s", err)
	}
	if !decision.Allowed {
		t.Error("expected fresh budget after the window elapsed")
	}
	if decision.RemainingClicks != 4 {
		t.Errorf("expected 4 remaining in the new window, got %d", decision.RemainingClicks)
	}
}

func TestDeniedClickConsumesNoBudget(t *testing.T) {
	limiter := newTestLimiter(&memTier{})
	ctx := context.Background()

	for i := 0; i < 7; i++ {
		limiter.RegisterClick(ctx, testUser)
	}

	status, err := limiter.Status(ctx, testUser)
	if err != nil {
		t.Fatalf("Status returned error: %s", err)
	}
	if status.RemainingClicks != 0 {
		t.Errorf("expected 0 remaining, got %d", status.RemainingClicks)
	}
}

func TestFallbackWhenStoreUnavailable(t *testing.T) {
	tier := &memTier{}
	limiter := newTestLimiter(tier)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		limiter.RegisterClick(ctx, testUser)
	}

	// Persistence dies mid-window; the in-memory mirror must keep the
	// exhausted budget visible.
	tier.failing = true
	decision, err := limiter.RegisterClick(ctx, testUser)
	if err != nil {
		t.Fatalf("click with failed store returned error: %s", err)
	}
	if decision.Allowed {
		t.Error("expected denial from in-memory fallback after store failure")
	}
}

func TestStatusDoesNotIncrement(t *testing.T) {
	limiter := newTestLimiter(&memTier{})
	ctx := context.Background()

	limiter.RegisterClick(ctx, testUser)
	for i := 0; i < 10; i++ {
		if _, err := limiter.Status(ctx, testUser); err != nil {
			t.Fatalf("Status returned error: %s", err)
		}
	}

	status, _ := limiter.Status(ctx, testUser)
	if status.RemainingClicks != 4 {
		t.Errorf("expected 4 remaining after one click, got %d", status.RemainingClicks)
	}
}

func TestResetClearsWindow(t *testing.T) {
	limiter := newTestLimiter(&memTier{})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		limiter.RegisterClick(ctx, testUser)
	}
	limiter.Reset(ctx, testUser)

	decision, err := limiter.RegisterClick(ctx, testUser)
	if err != nil {
		t.Fatalf("click after reset returned error: %s", err)
	}
	if !decision.Allowed {
		t.Error("expected click allowed after reset")
	}
}
