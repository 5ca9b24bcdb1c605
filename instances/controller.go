// Package instances implements the action controller for instance lifecycle
// buttons. It guards every dispatch with a per-(instance, action) cooldown
// and an in-flight latch, so rapid double clicks and concurrent requests
// collapse into a single backend call, and it honors post-configuration
// freeze windows set by the cluster wizard.
package instances // import "github.com/splunklabhq/splunklab/backend/services/instances"

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/splunklabhq/splunklab/backend/services/labclient"
	"github.com/splunklabhq/splunklab/backend/services/types"
	"github.com/splunklabhq/splunklab/backend/services/utils"
	logger "github.com/splunklabhq/splunklab/backend/services/lablogger"
)

// Dispatcher sends one lifecycle action to the lab backend. Implemented by
// labclient.Client.
type Dispatcher interface {
	InstanceAction(ctx context.Context, email types.UserEmail, action string, instanceID types.InstanceID, region types.Region) error
}

// Refresher re-reads instance state after a dispatch settles. Implemented by
// the polling coordinator's manual refresh.
type Refresher interface {
	ManualRefresh()
}

// lifecycleActions are the only actions a dashboard button can dispatch.
var lifecycleActions = []string{"start", "stop", "reboot"}

type actionKey struct {
	instanceID types.InstanceID
	action     string
}

type actionState struct {
	inflight  bool
	coolUntil time.Time
}

// Controller owns all action gating for one user session.
type Controller struct {
	dispatcher Dispatcher
	refresher  Refresher
	freezes    *FreezeSet
	cooldown   time.Duration

	mu           sync.Mutex
	states       map[actionKey]*actionState
	bulkInflight map[string]bool

	now func() time.Time
}

// NewController creates a Controller with the given cooldown between
// identical dispatches. The refresher may be nil.
func NewController(dispatcher Dispatcher, refresher Refresher, freezes *FreezeSet, cooldown time.Duration) *Controller {
	return &Controller{
		dispatcher:   dispatcher,
		refresher:    refresher,
		freezes:      freezes,
		cooldown:     cooldown,
		states:       map[actionKey]*actionState{},
		bulkInflight: map[string]bool{},
		now:          time.Now,
	}
}

// Freezes exposes the freeze set so the cluster wizard can share it.
func (c *Controller) Freezes() *FreezeSet {
	return c.freezes
}

// PerformAction dispatches one lifecycle action to one instance. Repeated
// calls inside the cooldown, or while an identical dispatch is in flight,
// return an error without touching the backend. A successful dispatch
// triggers one state refresh.
func (c *Controller) PerformAction(ctx context.Context, email types.UserEmail, action string, instanceID types.InstanceID, region types.Region) error {
	if !utils.StringSliceContains(lifecycleActions, action) {
		return utils.MakeError("unknown instance action %s", action)
	}
	if err := c.acquire(instanceID, action); err != nil {
		return err
	}

	err := c.dispatcher.InstanceAction(ctx, email, action, instanceID, region)
	// The cooldown starts when the dispatch settles, success or not, so a
	// failed request can't be hammered either.
	c.settle(instanceID, action)

	if err != nil {
		return utils.MakeError("couldn't dispatch %s to instance %s: %s", action, instanceID, err)
	}

	c.refresh()
	return nil
}

// BulkResult summarizes a bulk dispatch. Failures holds the per-instance
// error for every target that wasn't dispatched successfully.
type BulkResult struct {
	Dispatched int
	Failures   map[types.InstanceID]error
}

// PerformBulkAction dispatches the action to every target concurrently. The
// whole batch is rejected if any target is frozen. Bulk dispatch is tracked
// independently of the per-(instance, action) cooldowns: it neither consults
// nor arms them. One failing dispatch never stops the others, and exactly
// one refresh runs after the batch settles regardless of individual
// outcomes.
func (c *Controller) PerformBulkAction(ctx context.Context, email types.UserEmail, action string, targets []labclient.Instance) (*BulkResult, error) {
	if !utils.StringSliceContains(lifecycleActions, action) {
		return nil, utils.MakeError("unknown instance action %s", action)
	}

	ids := make([]types.InstanceID, 0, len(targets))
	for _, target := range targets {
		ids = append(ids, target.ID)
	}
	if frozenID, frozen := c.freezes.AnyFrozen(ids); frozen {
		return nil, utils.MakeError("%w: instance %s thaws in %s", ErrFrozen, frozenID, utils.FormatCountdown(c.freezes.Remaining(frozenID)))
	}
	// One bulk dispatch per action at a time. A second identical batch
	// while the first is still settling would double every request.
	c.mu.Lock()
	if c.bulkInflight[action] {
		c.mu.Unlock()
		return nil, utils.MakeError("%w: bulk %s", ErrDispatchInFlight, action)
	}
	c.bulkInflight[action] = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.bulkInflight, action)
		c.mu.Unlock()
	}()

	logger.Infof("dispatching bulk %s to instances %s", action, utils.PrintSlice(ids, 10))

	result := &BulkResult{Failures: map[types.InstanceID]error{}}
	var resultMu sync.Mutex

	var group errgroup.Group
	for _, target := range targets {
		target := target

		group.Go(func() error {
			err := c.dispatcher.InstanceAction(ctx, email, action, target.ID, target.Region)

			resultMu.Lock()
			defer resultMu.Unlock()
			if err != nil {
				result.Failures[target.ID] = err
				return err
			}
			result.Dispatched++
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		logger.Warningf("bulk %s for %s finished with failures: %s", action, email, err)
	}

	// One refresh for the whole batch, even when every dispatch failed:
	// some instances may have transitioned before the failure.
	c.refresh()
	return result, nil
}

// acquire takes the dispatch gate for (instanceID, action), or explains why
// it can't.
func (c *Controller) acquire(instanceID types.InstanceID, action string) error {
	if c.freezes.IsFrozen(instanceID) {
		return utils.MakeError("%w: instance %s thaws in %s", ErrFrozen, instanceID, utils.FormatCountdown(c.freezes.Remaining(instanceID)))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	key := actionKey{instanceID: instanceID, action: action}
	state, ok := c.states[key]
	if !ok {
		state = &actionState{}
		c.states[key] = state
	}

	if state.inflight {
		return utils.MakeError("%w: %s on %s", ErrDispatchInFlight, action, instanceID)
	}
	if c.now().Before(state.coolUntil) {
		return utils.MakeError("%w: %s on %s for another %s", ErrCoolingDown, action, instanceID, state.coolUntil.Sub(c.now()).Round(time.Millisecond))
	}

	state.inflight = true
	return nil
}

func (c *Controller) settle(instanceID types.InstanceID, action string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	state := c.states[actionKey{instanceID: instanceID, action: action}]
	state.inflight = false
	state.coolUntil = c.now().Add(c.cooldown)
}

func (c *Controller) refresh() {
	if c.refresher != nil {
		c.refresher.ManualRefresh()
	}
}
