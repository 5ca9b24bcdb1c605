package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/splunklabhq/splunklab/backend/services/types"
)

const testUser types.UserEmail = "tester@splunklab.io"

// fakeTier is an in-memory tier whose operations can be forced to fail.
type fakeTier struct {
	name    string
	record  *Record
	failing bool

	saveCalls  int
	clearCalls int
}

func (t *fakeTier) Name() string { return t.name }

func (t *fakeTier) Load(ctx context.Context, userKey types.UserEmail) (*Record, error) {
	if t.failing {
		return nil, errors.New("tier down")
	}
	if t.record == nil {
		return nil, nil
	}
	record := *t.record
	return &record, nil
}

func (t *fakeTier) Save(ctx context.Context, userKey types.UserEmail, record Record) error {
	t.saveCalls++
	if t.failing {
		return errors.New("tier down")
	}
	t.record = &record
	return nil
}

func (t *fakeTier) Clear(ctx context.Context, userKey types.UserEmail) error {
	t.clearCalls++
	if t.failing {
		return errors.New("tier down")
	}
	t.record = nil
	return nil
}

func TestLoadPicksFreshestRecord(t *testing.T) {
	now := time.Now()
	stale := &fakeTier{name: "a", record: &Record{ClickCount: 4, LastResetTime: now.Add(-10 * time.Minute)}}
	fresh := &fakeTier{name: "b", record: &Record{ClickCount: 2, LastResetTime: now.Add(-1 * time.Minute)}}

	store := New(20*time.Minute, stale, fresh)
	record, err := store.Load(context.Background(), testUser)
	if err != nil {
		t.Fatalf("Load returned error: %s", err)
	}
	if record == nil {
		t.Fatal("Load returned nil record")
	}
	if record.ClickCount != 2 {
		t.Errorf("expected freshest record (2 clicks), got %d clicks", record.ClickCount)
	}
}

func TestLoadPurgesExpiredRecords(t *testing.T) {
	now := time.Now()
	expired := &fakeTier{name: "a", record: &Record{ClickCount: 5, LastResetTime: now.Add(-30 * time.Minute)}}

	store := New(20*time.Minute, expired)
	record, err := store.Load(context.Background(), testUser)
	if err != nil {
		t.Fatalf("Load returned error: %s", err)
	}
	if record != nil {
		t.Errorf("expected nil record for expired state, got %+v", record)
	}
	if expired.clearCalls != 1 {
		t.Errorf("expected expired record to be purged, got %d clear calls", expired.clearCalls)
	}
}

func TestLoadSkipsFailingTier(t *testing.T) {
	now := time.Now()
	broken := &fakeTier{name: "a", failing: true}
	healthy := &fakeTier{name: "b", record: &Record{ClickCount: 1, LastResetTime: now}}

	store := New(20*time.Minute, broken, healthy)
	record, err := store.Load(context.Background(), testUser)
	if err != nil {
		t.Fatalf("Load returned error with a healthy tier present: %s", err)
	}
	if record == nil || record.ClickCount != 1 {
		t.Errorf("expected record from healthy tier, got %+v", record)
	}
}

func TestLoadAllTiersFailing(t *testing.T) {
	store := New(20*time.Minute, &fakeTier{name: "a", failing: true}, &fakeTier{name: "b", failing: true})
	_, err := store.Load(context.Background(), testUser)
	if !IsUnavailable(err) {
		t.Errorf("expected unavailable error when every tier fails, got %v", err)
	}
}

func TestSaveWritesEveryTier(t *testing.T) {
	first := &fakeTier{name: "a", failing: true}
	second := &fakeTier{name: "b"}

	store := New(20*time.Minute, first, second)
	err := store.Save(context.Background(), testUser, 3, time.Now())
	if err != nil {
		t.Fatalf("Save returned error with one healthy tier: %s", err)
	}
	if first.saveCalls != 1 || second.saveCalls != 1 {
		t.Errorf("expected save attempted on every tier, got %d/%d calls", first.saveCalls, second.saveCalls)
	}
	if second.record == nil || second.record.ClickCount != 3 {
		t.Errorf("expected record persisted to healthy tier, got %+v", second.record)
	}
}

func TestSaveAllTiersFailing(t *testing.T) {
	store := New(20*time.Minute, &fakeTier{name: "a", failing: true})
	err := store.Save(context.Background(), testUser, 1, time.Now())
	if !IsUnavailable(err) {
		t.Errorf("expected unavailable error when every tier fails, got %v", err)
	}
}

func TestLoadStoredRecordBeatsDerivedEstimate(t *testing.T) {
	ctx := context.Background()
	base := time.Now()
	clock := base

	session := NewSessionTier()
	derived := NewDerivedTier(20 * time.Minute)
	derived.now = func() time.Time { return clock }

	store := New(20*time.Minute, session, derived)
	store.now = func() time.Time { return clock }

	// First window opens when the session starts.
	if err := store.Save(ctx, testUser, 1, base); err != nil {
		t.Fatalf("Save returned error: %s", err)
	}

	// A later window opens 25 minutes in and its budget is exhausted.
	clock = base.Add(25 * time.Minute)
	if err := store.Save(ctx, testUser, 5, clock); err != nil {
		t.Fatalf("Save returned error: %s", err)
	}

	// 41 minutes in, the stored window is still open until minute 45, but
	// the derived boundary has already rolled to minute 40 with zero
	// clicks. The stored record must win.
	clock = base.Add(41 * time.Minute)
	record, err := store.Load(ctx, testUser)
	if err != nil {
		t.Fatalf("Load returned error: %s", err)
	}
	if record == nil {
		t.Fatal("Load returned nil record")
	}
	if record.ClickCount != 5 {
		t.Errorf("derived estimate overrode the stored window: got %d clicks, want 5", record.ClickCount)
	}
	if !record.LastResetTime.Equal(base.Add(25 * time.Minute)) {
		t.Errorf("expected the stored window start, got %s", record.LastResetTime)
	}
}

func TestLoadUsesDerivedEstimateWhenTiersEmpty(t *testing.T) {
	ctx := context.Background()
	base := time.Now()
	clock := base

	session := NewSessionTier()
	derived := NewDerivedTier(20 * time.Minute)
	derived.now = func() time.Time { return clock }

	store := New(20*time.Minute, session, derived)
	store.now = func() time.Time { return clock }

	if err := store.Save(ctx, testUser, 4, base); err != nil {
		t.Fatalf("Save returned error: %s", err)
	}

	// A reload wipes the session tier; only the estimate survives.
	if err := session.Clear(ctx, testUser); err != nil {
		t.Fatalf("Clear returned error: %s", err)
	}

	clock = base.Add(5 * time.Minute)
	record, err := store.Load(ctx, testUser)
	if err != nil {
		t.Fatalf("Load returned error: %s", err)
	}
	if record == nil || record.ClickCount != 4 {
		t.Errorf("expected the derived estimate to fill in, got %+v", record)
	}
}

func TestSessionTierRoundTrip(t *testing.T) {
	tier := NewSessionTier()
	ctx := context.Background()

	record, err := tier.Load(ctx, testUser)
	if err != nil || record != nil {
		t.Fatalf("expected empty tier, got record=%+v err=%v", record, err)
	}

	saved := Record{ClickCount: 2, LastResetTime: time.Now()}
	if err := tier.Save(ctx, testUser, saved); err != nil {
		t.Fatalf("Save returned error: %s", err)
	}

	record, err = tier.Load(ctx, testUser)
	if err != nil {
		t.Fatalf("Load returned error: %s", err)
	}
	if record == nil || record.ClickCount != 2 {
		t.Errorf("expected saved record back, got %+v", record)
	}

	if err := tier.Clear(ctx, testUser); err != nil {
		t.Fatalf("Clear returned error: %s", err)
	}
	record, _ = tier.Load(ctx, testUser)
	if record != nil {
		t.Errorf("expected nil record after clear, got %+v", record)
	}
}

func TestDerivedTierEstimatesCurrentWindow(t *testing.T) {
	tier := NewDerivedTier(20 * time.Minute)
	ctx := context.Background()

	sessionStart := time.Now().Add(-5 * time.Minute)
	clock := sessionStart
	tier.now = func() time.Time { return clock }

	if err := tier.Save(ctx, testUser, Record{ClickCount: 3, LastResetTime: sessionStart}); err != nil {
		t.Fatalf("Save returned error: %s", err)
	}

	// Still inside the first window: clicks and reset time survive.
	clock = sessionStart.Add(5 * time.Minute)
	record, err := tier.Load(ctx, testUser)
	if err != nil {
		t.Fatalf("Load returned error: %s", err)
	}
	if record == nil || record.ClickCount != 3 {
		t.Fatalf("expected 3 clicks inside the window, got %+v", record)
	}
	if !record.LastResetTime.Equal(sessionStart) {
		t.Errorf("expected reset at session start, got %s", record.LastResetTime)
	}

	// Two windows later: the boundary advances and the old clicks no
	// longer count.
	clock = sessionStart.Add(45 * time.Minute)
	record, err = tier.Load(ctx, testUser)
	if err != nil {
		t.Fatalf("Load returned error: %s", err)
	}
	if record == nil {
		t.Fatal("expected derived record, got nil")
	}
	if record.ClickCount != 0 {
		t.Errorf("expected stale clicks dropped after window rollover, got %d", record.ClickCount)
	}
	want := sessionStart.Add(40 * time.Minute)
	if !record.LastResetTime.Equal(want) {
		t.Errorf("expected derived reset %s, got %s", want, record.LastResetTime)
	}
}
