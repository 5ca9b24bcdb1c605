package instances

import "errors"

var (
	// ErrFrozen means the target instance is inside a post-configuration
	// freeze window and must not receive lifecycle actions.
	ErrFrozen = errors.New("instance controls are frozen")

	// ErrCoolingDown means the same action was dispatched to the same
	// instance too recently.
	ErrCoolingDown = errors.New("action is cooling down")

	// ErrDispatchInFlight means an identical dispatch has started but not
	// yet settled.
	ErrDispatchInFlight = errors.New("action dispatch already in flight")
)
