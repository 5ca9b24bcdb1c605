// Package clusterwizard drives the guided cluster configuration flow. The
// flow is strictly linear: instances are started, Splunkd health is
// validated on every member, the license master is checked, and finally the
// cluster configuration is pushed. A failure parks the wizard in a failed
// state that retries from the failed phase only, never from the beginning,
// and a successful configuration freezes the cluster's instance controls so
// the user can't interrupt Splunk while it settles.
package clusterwizard // import "github.com/splunklabhq/splunklab/backend/services/clusterwizard"

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hashicorp/go-version"

	"github.com/splunklabhq/splunklab/backend/services/config"
	"github.com/splunklabhq/splunklab/backend/services/labclient"
	"github.com/splunklabhq/splunklab/backend/services/types"
	"github.com/splunklabhq/splunklab/backend/services/utils"
	logger "github.com/splunklabhq/splunklab/backend/services/lablogger"
)

// Phase is one step of the wizard's linear flow.
type Phase string

const (
	PhaseIdle               Phase = "IDLE"
	PhaseStartingInstances  Phase = "STARTING_INSTANCES"
	PhaseValidatingSplunk   Phase = "VALIDATING_SPLUNK"
	PhaseLicenseCheck       Phase = "LICENSE_CHECK"
	PhaseFinalConfiguration Phase = "FINAL_CONFIGURATION"
	PhaseSuccess            Phase = "SUCCESS"
	PhaseFailed             Phase = "FAILED"
)

var (
	// ErrWizardBusy means a configuration run is already in progress.
	ErrWizardBusy = errors.New("cluster configuration already in progress")

	// ErrCancelBlocked means the final configuration request is in flight
	// and can no longer be abandoned safely.
	ErrCancelBlocked = errors.New("configuration can't be cancelled while the final step is in flight")

	// ErrNothingToRetry means the wizard is not in a failed state.
	ErrNothingToRetry = errors.New("no failed phase to retry")
)

// Backend is the subset of the lab client the wizard drives.
type Backend interface {
	Instances(ctx context.Context, email types.UserEmail) ([]labclient.Instance, error)
	InstanceAction(ctx context.Context, email types.UserEmail, action string, instanceID types.InstanceID, region types.Region) error
	ValidateCluster(ctx context.Context, req labclient.ClusterRequest) ([]labclient.ServerStatus, error)
	ValidateLicense(ctx context.Context, req labclient.ClusterRequest) error
	ConfigureCluster(ctx context.Context, req labclient.ClusterRequest) error
}

// Freezer freezes instance controls after a successful configuration.
// Implemented by instances.FreezeSet.
type Freezer interface {
	Freeze(ids []types.InstanceID, duration time.Duration)
}

// ModalGate pauses background polling while the wizard modal is open.
// Implemented by poller.Coordinator.
type ModalGate interface {
	SetModalOpen(open bool)
}

// State is a snapshot of the wizard for rendering.
type State struct {
	Phase       Phase
	FailedPhase Phase
	Error       string
	Statuses    []labclient.ServerStatus
}

// Wizard runs at most one configuration flow at a time.
type Wizard struct {
	backend Backend
	freezer Freezer
	modal   ModalGate

	freezeDuration time.Duration

	// startPollInterval and startTimeout bound the wait for cluster
	// members to reach the running state.
	startPollInterval time.Duration
	startTimeout      time.Duration

	mu          sync.Mutex
	phase       Phase
	failedPhase Phase
	lastErr     error
	statuses    []labclient.ServerStatus
	cancelled   bool

	email   types.UserEmail
	cluster labclient.ClusterRequest
}

// New creates an idle Wizard. The modal gate may be nil.
func New(backend Backend, freezer Freezer, modal ModalGate, freezeDuration time.Duration) *Wizard {
	return &Wizard{
		backend:           backend,
		freezer:           freezer,
		modal:             modal,
		freezeDuration:    freezeDuration,
		startPollInterval: 5 * time.Second,
		startTimeout:      5 * time.Minute,
		phase:             PhaseIdle,
	}
}

// Start begins a configuration run for the given cluster members. It returns
// immediately; progress is observed through State.
func (w *Wizard) Start(ctx context.Context, email types.UserEmail, members []labclient.Instance) error {
	if len(members) == 0 {
		return utils.MakeError("can't configure an empty cluster set")
	}

	w.mu.Lock()
	if w.phase != PhaseIdle && w.phase != PhaseSuccess && w.phase != PhaseFailed {
		w.mu.Unlock()
		return ErrWizardBusy
	}

	ids := make([]types.InstanceID, 0, len(members))
	for _, member := range members {
		ids = append(ids, member.ID)
	}
	w.email = email
	w.cluster = labclient.ClusterRequest{
		InstanceIDs: ids,
		Region:      members[0].Region,
		UserEmail:   email,
	}
	w.failedPhase = ""
	w.lastErr = nil
	w.statuses = nil
	w.cancelled = false
	w.setPhaseLocked(PhaseStartingInstances)
	w.mu.Unlock()

	go w.run(ctx, PhaseStartingInstances, members)
	return nil
}

// Retry resumes a failed run from the phase that failed. Earlier phases are
// not repeated: a validation failure retries validation, not the instance
// starts before it.
func (w *Wizard) Retry(ctx context.Context) error {
	w.mu.Lock()
	if w.phase != PhaseFailed {
		w.mu.Unlock()
		return ErrNothingToRetry
	}
	resumeAt := w.failedPhase
	w.lastErr = nil
	w.cancelled = false
	w.setPhaseLocked(resumeAt)
	w.mu.Unlock()

	go w.run(ctx, resumeAt, nil)
	return nil
}

// Cancel abandons the current run. It is refused once the final
// configuration request is in flight, because the backend applies that step
// atomically and a half-observed cancel would desync the portal.
func (w *Wizard) Cancel() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch w.phase {
	case PhaseFinalConfiguration:
		return ErrCancelBlocked
	case PhaseIdle, PhaseSuccess:
		return nil
	}

	w.cancelled = true
	w.setPhaseLocked(PhaseIdle)
	return nil
}

// State returns a snapshot of the wizard.
func (w *Wizard) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()

	state := State{
		Phase:       w.phase,
		FailedPhase: w.failedPhase,
		Statuses:    append([]labclient.ServerStatus(nil), w.statuses...),
	}
	if w.lastErr != nil {
		state.Error = w.lastErr.Error()
	}
	return state
}

// run executes the flow from the given phase onward, stopping on the first
// failure or cancellation.
func (w *Wizard) run(ctx context.Context, from Phase, members []labclient.Instance) {
	type step struct {
		phase Phase
		fn    func(context.Context) error
	}
	steps := []step{
		{PhaseStartingInstances, func(ctx context.Context) error { return w.startInstances(ctx, members) }},
		{PhaseValidatingSplunk, w.validateSplunk},
		{PhaseLicenseCheck, w.checkLicense},
		{PhaseFinalConfiguration, w.configure},
	}

	started := false
	for _, s := range steps {
		if !started {
			if s.phase != from {
				continue
			}
			started = true
		}

		if w.isCancelled() {
			return
		}
		w.setPhase(s.phase)

		if err := s.fn(ctx); err != nil {
			w.fail(s.phase, err)
			return
		}
	}

	w.succeed()
}

// startInstances starts every stopped member and waits for the whole set to
// report running. When resuming after a failure the member list is gone, so
// it is re-derived from the backend's instance list.
func (w *Wizard) startInstances(ctx context.Context, members []labclient.Instance) error {
	if members == nil {
		all, err := w.backend.Instances(ctx, w.email)
		if err != nil {
			return utils.MakeError("couldn't list instances: %s", err)
		}
		byID := map[types.InstanceID]labclient.Instance{}
		for _, instance := range all {
			byID[instance.ID] = instance
		}
		for _, id := range w.cluster.InstanceIDs {
			instance, ok := byID[id]
			if !ok {
				return utils.MakeError("cluster member %s no longer exists", id)
			}
			members = append(members, instance)
		}
	}

	for _, member := range members {
		if member.State == labclient.StateRunning {
			continue
		}
		if err := w.backend.InstanceAction(ctx, w.email, "start", member.ID, member.Region); err != nil {
			return utils.MakeError("couldn't start cluster member %s: %s", member.ID, err)
		}
	}

	return w.waitForRunning(ctx)
}

// waitForRunning polls the instance list until every cluster member reports
// running, or the timeout expires.
func (w *Wizard) waitForRunning(ctx context.Context) error {
	deadline := time.Now().Add(w.startTimeout)
	for {
		all, err := w.backend.Instances(ctx, w.email)
		if err != nil {
			logger.Warningf("couldn't poll instance states while starting cluster: %s", err)
		} else {
			running := map[types.InstanceID]bool{}
			for _, instance := range all {
				running[instance.ID] = instance.State == labclient.StateRunning
			}
			ready := true
			for _, id := range w.cluster.InstanceIDs {
				if !running[id] {
					ready = false
					break
				}
			}
			if ready {
				return nil
			}
		}

		if w.isCancelled() {
			return nil
		}
		if time.Now().After(deadline) {
			return utils.MakeError("cluster members didn't reach running state within %s", w.startTimeout)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(w.startPollInterval):
		}
	}
}

// validateSplunk checks Splunkd health on every member, and gates on the
// minimum supported Splunk version when members report one.
func (w *Wizard) validateSplunk(ctx context.Context) error {
	statuses, err := w.backend.ValidateCluster(ctx, w.cluster)
	if err != nil {
		return utils.MakeError("cluster validation failed: %s", err)
	}

	w.mu.Lock()
	w.statuses = statuses
	w.mu.Unlock()

	for _, status := range statuses {
		if status.Status != labclient.ServerUp {
			return utils.MakeError("splunkd is not responding on %s: %s", status.Name, status.Details)
		}
	}

	minVersion, err := version.NewVersion(config.GetMinSplunkVersion())
	if err != nil {
		logger.Errorf("invalid minimum Splunk version in config: %s", err)
		return nil
	}
	for _, status := range statuses {
		if status.Version == "" {
			continue
		}
		reported, err := version.NewVersion(status.Version)
		if err != nil {
			logger.Warningf("member %s reports unparseable Splunk version %q", status.Name, status.Version)
			continue
		}
		if reported.LessThan(minVersion) {
			return utils.MakeError("member %s runs Splunk %s, below the supported minimum %s", status.Name, status.Version, minVersion)
		}
	}

	return nil
}

func (w *Wizard) checkLicense(ctx context.Context) error {
	if err := w.backend.ValidateLicense(ctx, w.cluster); err != nil {
		return utils.MakeError("license check failed: %s", err)
	}
	return nil
}

func (w *Wizard) configure(ctx context.Context) error {
	if err := w.backend.ConfigureCluster(ctx, w.cluster); err != nil {
		return utils.MakeError("cluster configuration failed: %s", err)
	}
	return nil
}

func (w *Wizard) succeed() {
	w.mu.Lock()
	w.setPhaseLocked(PhaseSuccess)
	ids := append([]types.InstanceID(nil), w.cluster.InstanceIDs...)
	w.mu.Unlock()

	w.freezer.Freeze(ids, w.freezeDuration)
	logger.Infof("Cluster configuration for %s succeeded, controls frozen for %s", w.email, w.freezeDuration)
}

func (w *Wizard) fail(phase Phase, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.cancelled {
		return
	}
	w.failedPhase = phase
	w.lastErr = err
	w.setPhaseLocked(PhaseFailed)
	logger.Warningf("cluster configuration for %s failed in %s: %s", w.email, phase, err)
}

func (w *Wizard) setPhase(phase Phase) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.setPhaseLocked(phase)
}

// setPhaseLocked also keeps the polling modal gate in sync: polling pauses
// for the whole run and resumes on any terminal phase.
func (w *Wizard) setPhaseLocked(phase Phase) {
	w.phase = phase
	if w.modal != nil {
		switch phase {
		case PhaseIdle, PhaseSuccess, PhaseFailed:
			w.modal.SetModalOpen(false)
		default:
			w.modal.SetModalOpen(true)
		}
	}
}

func (w *Wizard) isCancelled() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cancelled
}
