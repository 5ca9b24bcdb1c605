package labclient // import "github.com/splunklabhq/splunklab/backend/services/labclient"

import (
	"github.com/splunklabhq/splunklab/backend/services/types"
)

// LifecycleState is the backend-reported state of an instance. States other
// than the ones below are passed through opaquely; the dashboard renders them
// verbatim and treats them as non-actionable.
type LifecycleState string

const (
	StatePending   LifecycleState = "pending"
	StateStarting  LifecycleState = "starting"
	StateRunning   LifecycleState = "running"
	StateStopping  LifecycleState = "stopping"
	StateStopped   LifecycleState = "stopped"
	StateRebooting LifecycleState = "rebooting"
)

// Instance represents one provisioned virtual machine as reported by the lab
// backend. The portal never creates or destroys instances, it only requests
// state transitions and re-reads state.
type Instance struct {
	ID            types.InstanceID  `json:"instance_id"`
	Name          string            `json:"name"`
	Region        types.Region      `json:"region"`
	State         LifecycleState    `json:"state"`
	PrivateIP     string            `json:"private_ip"`
	PublicIP      string            `json:"public_ip,omitempty"`
	RemoteCommand string            `json:"remote_command,omitempty"`
	ServiceType   types.ServiceType `json:"service_type"`
}

// UsageRecord is the per-service-type quota summary the backend computes for
// a user. `Balance = Quota - Consumed` is server-computed; the portal only
// displays these values and never recomputes them, since partial hours
// accrue server-side at a precision the summary doesn't carry.
type UsageRecord struct {
	ServiceType   types.ServiceType `json:"service_type"`
	QuotaHours    float64           `json:"quota_hours"`
	ConsumedHours float64           `json:"consumed_hours"`
	BalanceHours  float64           `json:"balance_hours"`
	QuotaDays     int               `json:"quota_days"`
	ConsumedDays  int               `json:"consumed_days"`
	BalanceDays   int               `json:"balance_days"`
	PlanStart     string            `json:"plan_start"`
	PlanEnd       string            `json:"plan_end"`
}

// KeyFile is a downloadable credential file offered to the user.
type KeyFile struct {
	Filename string `json:"filename"`
	URL      string `json:"url"`
}

// WindowsCredentials is the response of the `/win-pass` endpoint.
type WindowsCredentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
	PublicIP string `json:"publicIp,omitempty"`
}

// ServerStatus is one row of a cluster validation response: whether Splunkd
// responded on that member, plus free-text details (version, error output).
type ServerStatus struct {
	InstanceID types.InstanceID `json:"instance_id"`
	Name       string           `json:"name"`
	Status     string           `json:"status"` // "UP" or "DOWN"
	Details    string           `json:"details"`
	Version    string           `json:"version,omitempty"`
}

// ServerUp and ServerDown are the two values of ServerStatus.Status.
const (
	ServerUp   = "UP"
	ServerDown = "DOWN"
)

// ClusterRequest identifies a cluster set for the validation, license and
// configuration endpoints.
type ClusterRequest struct {
	InstanceIDs []types.InstanceID `json:"instance_ids"`
	Region      types.Region       `json:"region"`
	UserEmail   types.UserEmail    `json:"email"`
}

// proxyRequest is the wire shape the same-origin proxy forwards upstream.
type proxyRequest struct {
	Path   string      `json:"path"`
	Method string      `json:"method"`
	Body   interface{} `json:"body,omitempty"`
}
