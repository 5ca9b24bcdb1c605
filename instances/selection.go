package instances

import (
	"github.com/splunklabhq/splunklab/backend/services/labclient"
)

// AllStopped reports whether every instance in the selection is stopped.
// An empty selection is never "all" anything.
func AllStopped(selection []labclient.Instance) bool {
	if len(selection) == 0 {
		return false
	}
	for _, instance := range selection {
		if instance.State != labclient.StateStopped {
			return false
		}
	}
	return true
}

// AllRunning reports whether every instance in the selection is running.
func AllRunning(selection []labclient.Instance) bool {
	if len(selection) == 0 {
		return false
	}
	for _, instance := range selection {
		if instance.State != labclient.StateRunning {
			return false
		}
	}
	return true
}

// MixedStates reports whether the selection contains more than one distinct
// lifecycle state. Bulk controls disable themselves on mixed selections so
// one button can't mean different things for different rows.
func MixedStates(selection []labclient.Instance) bool {
	if len(selection) < 2 {
		return false
	}
	first := selection[0].State
	for _, instance := range selection[1:] {
		if instance.State != first {
			return true
		}
	}
	return false
}
