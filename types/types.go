// Package types contains defined types shared between the portal packages.
// We define this package separately so that we can safely pass these types
// around to other packages without import cycles.
package types // import "github.com/splunklabhq/splunklab/backend/services/types"

type (
	// UserEmail identifies a portal user. The lab backend keys everything
	// (instances, quotas, credential files) by the user's email address,
	// which the proxy receives in the `x-user-email` header.
	UserEmail string

	// InstanceID is the opaque id the lab backend assigns to a provisioned
	// virtual machine. The portal never creates or destroys instances, it
	// only requests state transitions for existing ids.
	InstanceID string

	// Region is the cloud region an instance lives in. Action requests to
	// the lab backend must carry the region alongside the instance id.
	Region string

	// ServiceType is a tag grouping instances that belong to the same
	// logical product (e.g. "Splunk"). It drives row grouping on the
	// dashboard and gates cluster-configuration actions.
	ServiceType string

	// SessionID is a short random id created per dashboard session, used to
	// correlate fire-and-forget telemetry events.
	SessionID string

	// AccessToken is a JWT minted by the proxy for the upstream hop to the
	// lab backend, derived from the authenticated user's email.
	AccessToken string
)
