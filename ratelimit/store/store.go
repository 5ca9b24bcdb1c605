// Package store implements the tiered persistence behind the
// password-retrieval click limiter. One logical record (click count + window
// start) is kept redundantly across an ordered list of storage tiers, so a
// dashboard reload or a portal restart inside the rolling window cannot
// reset the counter. Tiers are tried in priority order and each one is
// independently fallible: a broken tier is skipped, never fatal.
package store // import "github.com/splunklabhq/splunklab/backend/services/ratelimit/store"

import (
	"context"
	"time"

	"github.com/splunklabhq/splunklab/backend/services/types"
	logger "github.com/splunklabhq/splunklab/backend/services/lablogger"
)

// Record is the persisted rate-limit state for one user.
type Record struct {
	ClickCount    int
	LastResetTime time.Time
}

// A Tier is one storage strategy for rate-limit records. Load returns nil
// without error when the tier holds no record for the user.
type Tier interface {
	Name() string
	Load(ctx context.Context, userKey types.UserEmail) (*Record, error)
	Save(ctx context.Context, userKey types.UserEmail, record Record) error
	Clear(ctx context.Context, userKey types.UserEmail) error
}

// estimateTier marks a tier whose Load reconstructs a record instead of
// returning stored truth. An estimate never competes with a stored record:
// it is consulted only when every authoritative tier holds no valid record.
type estimateTier interface {
	estimateOnly()
}

// TieredStore consults its tiers in priority order. The freshest valid
// (non-expired) record found across the authoritative tiers wins on load;
// estimate tiers only fill in when the authoritative tiers are all empty.
// Saves go to every tier independently.
type TieredStore struct {
	tiers []Tier

	// resetInterval defines expiry: any record whose LastResetTime is older
	// than this is treated as absent and purged.
	resetInterval time.Duration

	// now is replaceable for tests.
	now func() time.Time
}

// New creates a TieredStore over the given tiers, in priority order.
func New(resetInterval time.Duration, tiers ...Tier) *TieredStore {
	return &TieredStore{
		tiers:         tiers,
		resetInterval: resetInterval,
		now:           time.Now,
	}
}

// Load returns the freshest valid record for the user across the
// authoritative tiers, or nil when every tier is empty, expired, or failing.
// An estimate tier is only consulted when no authoritative tier produced a
// valid record, since its reconstructed reset boundary can postdate a real
// in-window record and must never override one. Expired records are purged
// from their tier as a side effect.
func (s *TieredStore) Load(ctx context.Context, userKey types.UserEmail) (*Record, error) {
	var freshest *Record
	var estimates []Tier
	anySucceeded := false

	for _, tier := range s.tiers {
		if _, ok := tier.(estimateTier); ok {
			estimates = append(estimates, tier)
			continue
		}

		record, ok := s.loadTier(ctx, tier, userKey)
		if !ok {
			continue
		}
		anySucceeded = true

		if record == nil {
			continue
		}
		if freshest == nil || record.LastResetTime.After(freshest.LastResetTime) {
			freshest = record
		}
	}

	if freshest == nil {
		for _, tier := range estimates {
			record, ok := s.loadTier(ctx, tier, userKey)
			if !ok {
				continue
			}
			anySucceeded = true

			if record != nil && freshest == nil {
				freshest = record
			}
		}
	}

	if !anySucceeded {
		return nil, errAllTiersFailed
	}

	return freshest, nil
}

// loadTier loads one tier, purging an expired record. The bool reports
// whether the tier answered at all.
func (s *TieredStore) loadTier(ctx context.Context, tier Tier, userKey types.UserEmail) (*Record, bool) {
	record, err := tier.Load(ctx, userKey)
	if err != nil {
		logger.Warningf("rate-limit tier %s failed to load record for %s: %s", tier.Name(), userKey, err)
		return nil, false
	}

	if record != nil && s.expired(*record) {
		// Purge so a stale record can't resurface after fresher tiers are
		// cleared.
		if err := tier.Clear(ctx, userKey); err != nil {
			logger.Warningf("rate-limit tier %s failed to purge expired record for %s: %s", tier.Name(), userKey, err)
		}
		return nil, true
	}

	return record, true
}

// Save writes the record to every tier. A failure in one tier must not
// prevent writes to the others, so each write is attempted regardless of
// previous failures; Save only errors when every tier failed.
func (s *TieredStore) Save(ctx context.Context, userKey types.UserEmail, clickCount int, lastResetTime time.Time) error {
	record := Record{ClickCount: clickCount, LastResetTime: lastResetTime}

	failures := 0
	for _, tier := range s.tiers {
		if err := tier.Save(ctx, userKey, record); err != nil {
			failures++
			logger.Warningf("rate-limit tier %s failed to save record for %s: %s", tier.Name(), userKey, err)
		}
	}

	if failures == len(s.tiers) {
		return errAllTiersFailed
	}
	return nil
}

// Clear removes the user's record from every tier.
func (s *TieredStore) Clear(ctx context.Context, userKey types.UserEmail) error {
	failures := 0
	for _, tier := range s.tiers {
		if err := tier.Clear(ctx, userKey); err != nil {
			failures++
			logger.Warningf("rate-limit tier %s failed to clear record for %s: %s", tier.Name(), userKey, err)
		}
	}

	if failures == len(s.tiers) {
		return errAllTiersFailed
	}
	return nil
}

func (s *TieredStore) expired(record Record) bool {
	return s.now().Sub(record.LastResetTime) >= s.resetInterval
}
