package store

import (
	"context"
	"sync"
	"time"

	"github.com/splunklabhq/splunklab/backend/services/types"
)

// DerivedTier is the last-resort tier. It never stores a reset time
// directly: it remembers when the user's session started and derives the
// most recent reset boundary from the elapsed time, so it can still produce
// a plausible record when both other tiers are gone. The estimate aligns
// resets to the session start rather than the true first click, which is
// acceptable because it only ever errs on the side of an earlier reset.
type DerivedTier struct {
	mu       sync.Mutex
	interval time.Duration
	now      func() time.Time
	states   map[types.UserEmail]derivedState
}

type derivedState struct {
	sessionStart time.Time
	clickCount   int
	savedAt      time.Time
}

func NewDerivedTier(interval time.Duration) *DerivedTier {
	return &DerivedTier{
		interval: interval,
		now:      time.Now,
		states:   map[types.UserEmail]derivedState{},
	}
}

func (t *DerivedTier) Name() string {
	return "derived"
}

// estimateOnly keeps the derived record out of the freshest-wins merge: its
// reconstructed boundary may be newer than a real in-window record.
func (t *DerivedTier) estimateOnly() {}

func (t *DerivedTier) Load(ctx context.Context, userKey types.UserEmail) (*Record, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	state, ok := t.states[userKey]
	if !ok {
		return nil, nil
	}

	elapsed := t.now().Sub(state.sessionStart)
	if elapsed < 0 {
		elapsed = 0
	}
	lastReset := state.sessionStart.Add(elapsed - (elapsed % t.interval))

	record := &Record{
		ClickCount:    state.clickCount,
		LastResetTime: lastReset,
	}
	if state.savedAt.Before(lastReset) {
		// The saved clicks predate the derived boundary, so they belong
		// to an already-expired window.
		record.ClickCount = 0
	}
	return record, nil
}

func (t *DerivedTier) Save(ctx context.Context, userKey types.UserEmail, record Record) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	state, ok := t.states[userKey]
	if !ok {
		state = derivedState{sessionStart: record.LastResetTime}
		if state.sessionStart.IsZero() {
			state.sessionStart = t.now()
		}
	}
	state.clickCount = record.ClickCount
	state.savedAt = t.now()
	t.states[userKey] = state
	return nil
}

func (t *DerivedTier) Clear(ctx context.Context, userKey types.UserEmail) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.states, userKey)
	return nil
}
