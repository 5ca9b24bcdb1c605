package instances

import (
	"testing"

	"github.com/splunklabhq/splunklab/backend/services/labclient"
)

func TestSelectionPredicates(t *testing.T) {
	running := labclient.Instance{ID: "i-1", State: labclient.StateRunning}
	stopped := labclient.Instance{ID: "i-2", State: labclient.StateStopped}
	pending := labclient.Instance{ID: "i-3", State: labclient.StatePending}

	tests := []struct {
		name        string
		selection   []labclient.Instance
		allRunning  bool
		allStopped  bool
		mixedStates bool
	}{
		{
			name: "empty selection",
		},
		{
			name:       "single running",
			selection:  []labclient.Instance{running},
			allRunning: true,
		},
		{
			name:       "all stopped",
			selection:  []labclient.Instance{stopped, stopped},
			allStopped: true,
		},
		{
			name:        "running and stopped",
			selection:   []labclient.Instance{running, stopped},
			mixedStates: true,
		},
		{
			name:        "transitional state mixed in",
			selection:   []labclient.Instance{running, pending},
			mixedStates: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AllRunning(tt.selection); got != tt.allRunning {
				t.Errorf("AllRunning = %v, want %v", got, tt.allRunning)
			}
			if got := AllStopped(tt.selection); got != tt.allStopped {
				t.Errorf("AllStopped = %v, want %v", got, tt.allStopped)
			}
			if got := MixedStates(tt.selection); got != tt.mixedStates {
				t.Errorf("MixedStates = %v, want %v", got, tt.mixedStates)
			}
		})
	}
}
