package instances // import "github.com/splunklabhq/splunklab/backend/services/instances"

import (
	"sync"
	"time"

	"github.com/splunklabhq/splunklab/backend/services/types"
)

// FreezeSet tracks instances whose controls are frozen until a deadline.
// The cluster wizard freezes a whole cluster after configuration so users
// can't interrupt Splunk while it settles; the action controller consults
// the same set before dispatching anything. Expiry is lazy: a freeze simply
// stops being reported once its deadline passes.
type FreezeSet struct {
	mu     sync.Mutex
	frozen map[types.InstanceID]time.Time

	now func() time.Time
}

func NewFreezeSet() *FreezeSet {
	return &FreezeSet{
		frozen: map[types.InstanceID]time.Time{},
		now:    time.Now,
	}
}

// Freeze marks every given instance frozen for the duration. All instances
// in one call share a single deadline, so a cluster always thaws as a unit.
func (f *FreezeSet) Freeze(ids []types.InstanceID, duration time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()

	deadline := f.now().Add(duration)
	for _, id := range ids {
		f.frozen[id] = deadline
	}
}

// IsFrozen reports whether the instance is currently frozen.
func (f *FreezeSet) IsFrozen(id types.InstanceID) bool {
	return f.Remaining(id) > 0
}

// Remaining returns how long the instance stays frozen, or zero when it
// isn't. Expired entries are dropped as a side effect.
func (f *FreezeSet) Remaining(id types.InstanceID) time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()

	deadline, ok := f.frozen[id]
	if !ok {
		return 0
	}
	remaining := deadline.Sub(f.now())
	if remaining <= 0 {
		delete(f.frozen, id)
		return 0
	}
	return remaining
}

// AnyFrozen returns the first frozen instance among the given ids, if any.
func (f *FreezeSet) AnyFrozen(ids []types.InstanceID) (types.InstanceID, bool) {
	for _, id := range ids {
		if f.IsFrozen(id) {
			return id, true
		}
	}
	return "", false
}

// Thaw removes any freeze on the given instances, regardless of deadline.
func (f *FreezeSet) Thaw(ids []types.InstanceID) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, id := range ids {
		delete(f.frozen, id)
	}
}
