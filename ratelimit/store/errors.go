package store // import "github.com/splunklabhq/splunklab/backend/services/ratelimit/store"

import "errors"

// errAllTiersFailed is returned when no tier could serve the operation at
// all. The limiter treats this as "persistence unavailable" and degrades to
// its in-memory fallback for the current process lifetime.
var errAllTiersFailed = errors.New("all rate-limit storage tiers failed")

// IsUnavailable reports whether the given error means the store as a whole
// was unusable (as opposed to an individual tier hiccup, which the store
// absorbs internally).
func IsUnavailable(err error) bool {
	return errors.Is(err, errAllTiersFailed)
}
