package instances

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/splunklabhq/splunklab/backend/services/labclient"
	"github.com/splunklabhq/splunklab/backend/services/types"
)

const testEmail types.UserEmail = "tester@splunklab.io"

type mockDispatcher struct {
	mu       sync.Mutex
	calls    map[types.InstanceID]int
	failFor  map[types.InstanceID]error
	blockOn  chan struct{}
	lastBody string
}

func newMockDispatcher() *mockDispatcher {
	return &mockDispatcher{
		calls:   map[types.InstanceID]int{},
		failFor: map[types.InstanceID]error{},
	}
}

func (d *mockDispatcher) InstanceAction(ctx context.Context, email types.UserEmail, action string, instanceID types.InstanceID, region types.Region) error {
	if d.blockOn != nil {
		<-d.blockOn
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls[instanceID]++
	if err, ok := d.failFor[instanceID]; ok {
		return err
	}
	return nil
}

func (d *mockDispatcher) callCount(id types.InstanceID) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls[id]
}

type mockRefresher struct {
	mu    sync.Mutex
	count int
}

func (r *mockRefresher) ManualRefresh() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.count++
}

func (r *mockRefresher) refreshes() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

func TestRepeatedClicksCollapse(t *testing.T) {
	dispatcher := newMockDispatcher()
	refresher := &mockRefresher{}
	controller := NewController(dispatcher, refresher, NewFreezeSet(), 5*time.Second)
	ctx := context.Background()

	if err := controller.PerformAction(ctx, testEmail, "start", "i-001", "us-east-1"); err != nil {
		t.Fatalf("first click returned error: %s", err)
	}

	err := controller.PerformAction(ctx, testEmail, "start", "i-001", "us-east-1")
	if !errors.Is(err, ErrCoolingDown) {
		t.Fatalf("second click inside cooldown: expected ErrCoolingDown, got %v", err)
	}

	if got := dispatcher.callCount("i-001"); got != 1 {
		t.Errorf("expected exactly 1 dispatch, got %d", got)
	}
	if refresher.refreshes() != 1 {
		t.Errorf("expected exactly 1 refresh, got %d", refresher.refreshes())
	}
}

func TestCooldownIsPerInstanceAndAction(t *testing.T) {
	dispatcher := newMockDispatcher()
	controller := NewController(dispatcher, nil, NewFreezeSet(), 5*time.Second)
	ctx := context.Background()

	if err := controller.PerformAction(ctx, testEmail, "start", "i-001", "us-east-1"); err != nil {
		t.Fatalf("start i-001 returned error: %s", err)
	}
	// Different instance, same action: no shared cooldown.
	if err := controller.PerformAction(ctx, testEmail, "start", "i-002", "us-east-1"); err != nil {
		t.Errorf("start i-002 blocked by unrelated cooldown: %s", err)
	}
	// Same instance, different action: no shared cooldown either.
	if err := controller.PerformAction(ctx, testEmail, "reboot", "i-001", "us-east-1"); err != nil {
		t.Errorf("reboot i-001 blocked by unrelated cooldown: %s", err)
	}
}

func TestCooldownExpires(t *testing.T) {
	dispatcher := newMockDispatcher()
	controller := NewController(dispatcher, nil, NewFreezeSet(), 5*time.Second)
	ctx := context.Background()

	clock := time.Now()
	controller.now = func() time.Time { return clock }

	if err := controller.PerformAction(ctx, testEmail, "stop", "i-001", "us-east-1"); err != nil {
		t.Fatalf("first dispatch returned error: %s", err)
	}

	clock = clock.Add(5 * time.Second)
	if err := controller.PerformAction(ctx, testEmail, "stop", "i-001", "us-east-1"); err != nil {
		t.Errorf("dispatch after cooldown expiry returned error: %s", err)
	}
	if got := dispatcher.callCount("i-001"); got != 2 {
		t.Errorf("expected 2 dispatches, got %d", got)
	}
}

func TestFailedDispatchStillCoolsDown(t *testing.T) {
	dispatcher := newMockDispatcher()
	dispatcher.failFor["i-001"] = errors.New("backend exploded")
	controller := NewController(dispatcher, nil, NewFreezeSet(), 5*time.Second)
	ctx := context.Background()

	if err := controller.PerformAction(ctx, testEmail, "start", "i-001", "us-east-1"); err == nil {
		t.Fatal("expected dispatch failure to propagate")
	}

	err := controller.PerformAction(ctx, testEmail, "start", "i-001", "us-east-1")
	if !errors.Is(err, ErrCoolingDown) {
		t.Errorf("expected cooldown after failed dispatch, got %v", err)
	}
}

func TestInFlightDispatchBlocksDuplicate(t *testing.T) {
	dispatcher := newMockDispatcher()
	dispatcher.blockOn = make(chan struct{})
	controller := NewController(dispatcher, nil, NewFreezeSet(), 5*time.Second)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		done <- controller.PerformAction(ctx, testEmail, "start", "i-001", "us-east-1")
	}()

	// Wait for the first dispatch to take the gate.
	deadline := time.After(time.Second)
	for {
		err := controller.PerformAction(ctx, testEmail, "start", "i-001", "us-east-1")
		if errors.Is(err, ErrDispatchInFlight) {
			break
		}
		select {
		case <-deadline:
			t.Fatal("duplicate dispatch never reported in-flight")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	close(dispatcher.blockOn)
	if err := <-done; err != nil {
		t.Fatalf("blocked dispatch returned error: %s", err)
	}
	if got := dispatcher.callCount("i-001"); got != 1 {
		t.Errorf("expected exactly 1 dispatch, got %d", got)
	}
}

func TestFrozenInstanceRejectsAction(t *testing.T) {
	dispatcher := newMockDispatcher()
	freezes := NewFreezeSet()
	controller := NewController(dispatcher, nil, freezes, 5*time.Second)
	ctx := context.Background()

	freezes.Freeze([]types.InstanceID{"i-001"}, 25*time.Minute)

	err := controller.PerformAction(ctx, testEmail, "stop", "i-001", "us-east-1")
	if !errors.Is(err, ErrFrozen) {
		t.Fatalf("expected ErrFrozen, got %v", err)
	}
	if got := dispatcher.callCount("i-001"); got != 0 {
		t.Errorf("frozen instance reached the backend %d times", got)
	}
}

func TestBulkActionDispatchesAllWithOneRefresh(t *testing.T) {
	dispatcher := newMockDispatcher()
	dispatcher.failFor["i-002"] = errors.New("backend exploded")
	refresher := &mockRefresher{}
	controller := NewController(dispatcher, refresher, NewFreezeSet(), 5*time.Second)
	ctx := context.Background()

	targets := []labclient.Instance{
		{ID: "i-001", Region: "us-east-1"},
		{ID: "i-002", Region: "us-east-1"},
		{ID: "i-003", Region: "us-east-1"},
	}

	result, err := controller.PerformBulkAction(ctx, testEmail, "stop", targets)
	if err != nil {
		t.Fatalf("bulk action returned batch error: %s", err)
	}

	if result.Dispatched != 2 {
		t.Errorf("expected 2 successful dispatches, got %d", result.Dispatched)
	}
	if len(result.Failures) != 1 {
		t.Errorf("expected 1 failure, got %d", len(result.Failures))
	}
	if _, ok := result.Failures["i-002"]; !ok {
		t.Error("expected failure recorded for i-002")
	}
	for _, target := range targets {
		if got := dispatcher.callCount(target.ID); got != 1 {
			t.Errorf("instance %s dispatched %d times, expected 1", target.ID, got)
		}
	}
	if refresher.refreshes() != 1 {
		t.Errorf("expected exactly 1 refresh for the batch, got %d", refresher.refreshes())
	}
}

func TestUnknownActionRejected(t *testing.T) {
	dispatcher := newMockDispatcher()
	controller := NewController(dispatcher, nil, NewFreezeSet(), 5*time.Second)
	ctx := context.Background()

	if err := controller.PerformAction(ctx, testEmail, "terminate", "i-001", "us-east-1"); err == nil {
		t.Error("unknown action accepted by PerformAction")
	}
	if _, err := controller.PerformBulkAction(ctx, testEmail, "terminate", []labclient.Instance{{ID: "i-001"}}); err == nil {
		t.Error("unknown action accepted by PerformBulkAction")
	}
	if got := dispatcher.callCount("i-001"); got != 0 {
		t.Errorf("unknown action reached the backend %d times", got)
	}
}

func TestBulkActionIndependentOfButtonCooldowns(t *testing.T) {
	dispatcher := newMockDispatcher()
	controller := NewController(dispatcher, nil, NewFreezeSet(), 5*time.Second)
	ctx := context.Background()

	// Arm the per-button cooldown for i-001 with a single dispatch.
	if err := controller.PerformAction(ctx, testEmail, "stop", "i-001", "us-east-1"); err != nil {
		t.Fatalf("single dispatch failed: %s", err)
	}

	// The cooling-down member is still included in a bulk batch.
	targets := []labclient.Instance{
		{ID: "i-001", Region: "us-east-1"},
		{ID: "i-002", Region: "us-east-1"},
	}
	result, err := controller.PerformBulkAction(ctx, testEmail, "stop", targets)
	if err != nil {
		t.Fatalf("bulk action returned batch error: %s", err)
	}
	if result.Dispatched != 2 {
		t.Errorf("expected both members dispatched, got %d", result.Dispatched)
	}

	// And the batch armed no cooldown for i-002.
	if err := controller.PerformAction(ctx, testEmail, "stop", "i-002", "us-east-1"); err != nil {
		t.Errorf("single dispatch after bulk was rejected: %s", err)
	}
}

func TestBulkActionRejectsFrozenBatch(t *testing.T) {
	dispatcher := newMockDispatcher()
	freezes := NewFreezeSet()
	controller := NewController(dispatcher, nil, freezes, 5*time.Second)
	ctx := context.Background()

	freezes.Freeze([]types.InstanceID{"i-002"}, 25*time.Minute)

	targets := []labclient.Instance{
		{ID: "i-001", Region: "us-east-1"},
		{ID: "i-002", Region: "us-east-1"},
	}

	_, err := controller.PerformBulkAction(ctx, testEmail, "stop", targets)
	if !errors.Is(err, ErrFrozen) {
		t.Fatalf("expected ErrFrozen for batch with frozen member, got %v", err)
	}
	if dispatcher.callCount("i-001") != 0 || dispatcher.callCount("i-002") != 0 {
		t.Error("frozen batch still reached the backend")
	}
}

func TestFreezeExpires(t *testing.T) {
	freezes := NewFreezeSet()
	clock := time.Now()
	freezes.now = func() time.Time { return clock }

	freezes.Freeze([]types.InstanceID{"i-001"}, 25*time.Minute)
	if !freezes.IsFrozen("i-001") {
		t.Fatal("expected instance frozen immediately after Freeze")
	}

	clock = clock.Add(25 * time.Minute)
	if freezes.IsFrozen("i-001") {
		t.Error("expected freeze expired after its duration")
	}
}
