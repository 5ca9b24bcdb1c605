// Package poller implements the dashboard's polling coordinator. At most one
// timer exists per coordinator at any moment: every (re)start tears the old
// scheduler down first, so interval changes or rapid gate flips can never
// leak a second polling loop. Polling is gated on an active session, a
// non-empty instance list and no blocking modal; manual refreshes bypass the
// timer entirely.
package poller // import "github.com/splunklabhq/splunklab/backend/services/poller"

import (
	"context"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	logger "github.com/splunklabhq/splunklab/backend/services/lablogger"
)

// PollFunc performs one poll cycle (typically: fetch instance state and
// publish it to the session).
type PollFunc func(ctx context.Context)

// Coordinator owns the single polling timer for one dashboard session.
type Coordinator struct {
	interval time.Duration
	poll     PollFunc

	mu        sync.Mutex
	scheduler *gocron.Scheduler

	sessionActive bool
	hasInstances  bool
	modalOpen     bool

	// refreshing latches manual refreshes so concurrent calls collapse
	// into one fetch.
	refreshing bool

	ctx context.Context
}

// New creates a stopped Coordinator polling at the given interval. The
// dashboard uses a 3 second interval; embedded read-only views use 30
// seconds.
func New(ctx context.Context, interval time.Duration, poll PollFunc) *Coordinator {
	return &Coordinator{
		interval: interval,
		poll:     poll,
		ctx:      ctx,
	}
}

// SetSessionActive records whether a user session exists and starts or stops
// the timer accordingly.
func (c *Coordinator) SetSessionActive(active bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessionActive = active
	c.reconcileLocked()
}

// SetHasInstances records whether the instance list is non-empty. Polling an
// empty lab is pure waste, so the timer stops until instances appear.
func (c *Coordinator) SetHasInstances(has bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hasInstances = has
	c.reconcileLocked()
}

// SetModalOpen pauses polling while a blocking modal (wizard, payment) is on
// screen, and resumes it when the modal closes.
func (c *Coordinator) SetModalOpen(open bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.modalOpen = open
	c.reconcileLocked()
}

// SetInterval changes the polling cadence. A running timer is torn down and
// rebuilt at the new interval.
func (c *Coordinator) SetInterval(interval time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.interval = interval
	if c.scheduler != nil {
		c.stopLocked()
		c.startLocked()
	}
}

// Stop tears the timer down unconditionally.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}

// Running reports whether a timer currently exists.
func (c *Coordinator) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.scheduler != nil
}

// ManualRefresh runs one poll cycle immediately, independent of the timer
// and its gates. Overlapping manual refreshes collapse into one.
func (c *Coordinator) ManualRefresh() {
	c.mu.Lock()
	if !c.sessionActive || c.refreshing {
		c.mu.Unlock()
		return
	}
	c.refreshing = true
	c.mu.Unlock()

	go func() {
		defer func() {
			c.mu.Lock()
			c.refreshing = false
			c.mu.Unlock()
		}()
		c.poll(c.ctx)
	}()
}

// allowedLocked is the single authority on whether the timer should run.
func (c *Coordinator) allowedLocked() bool {
	return c.sessionActive && c.hasInstances && !c.modalOpen
}

// reconcileLocked brings the timer in line with the gates. Callers must hold
// c.mu.
func (c *Coordinator) reconcileLocked() {
	if c.allowedLocked() {
		if c.scheduler == nil {
			c.startLocked()
		}
		return
	}
	c.stopLocked()
}

func (c *Coordinator) startLocked() {
	// Teardown before restart keeps the one-timer invariant even if a
	// stale scheduler is somehow still around.
	c.stopLocked()

	s := gocron.NewScheduler(time.UTC)
	_, err := s.Every(c.interval).SingletonMode().Do(c.tick)
	if err != nil {
		logger.Errorf("couldn't schedule polling job: %s", err)
		return
	}
	s.StartAsync()
	c.scheduler = s
}

func (c *Coordinator) stopLocked() {
	if c.scheduler == nil {
		return
	}
	c.scheduler.Stop()
	c.scheduler = nil
}

func (c *Coordinator) tick() {
	c.mu.Lock()
	allowed := c.allowedLocked()
	c.mu.Unlock()

	// The gates are re-checked at fire time: a tick already queued when a
	// modal opened must not slip through.
	if !allowed {
		return
	}
	c.poll(c.ctx)
}
