// Package constants contains shared constants between the portal packages.
package constants

import "time"

// MaxPasswordClicks is the number of Windows-credential retrievals a user may
// perform within PasswordResetInterval before the client-side limiter kicks
// in. The limiter exists to stop abuse of the `/win-pass` backend endpoint,
// not to reflect any backend-side quota.
const MaxPasswordClicks = 5

// PasswordResetInterval is the rolling window for the password-retrieval
// limiter. Once the window elapses the click counter resets on its own.
const PasswordResetInterval = 20 * time.Minute

// ActionCooldown is the fixed delay after an instance action dispatch settles
// before the same action on the same instance may be re-issued.
const ActionCooldown = 5 * time.Second

// ClusterFreezeDuration is how long every member of a cluster set stays
// frozen after the final cluster-configuration call is triggered. Splunk
// cluster assembly takes a while on the backend, and poking the instances
// mid-assembly leaves the cluster in a broken state.
const ClusterFreezeDuration = 25 * time.Minute

// DashboardPollInterval is the instance-list refresh period for the
// always-on dashboard. EmbedPollInterval is the lighter variant used by the
// marketing-site embed.
const (
	DashboardPollInterval = 3 * time.Second
	EmbedPollInterval     = 30 * time.Second
)
