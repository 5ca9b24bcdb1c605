package labclient // import "github.com/splunklabhq/splunklab/backend/services/labclient"

import (
	"context"
	"net/http"

	"github.com/splunklabhq/splunklab/backend/services/types"
	"github.com/splunklabhq/splunklab/backend/services/utils"
)

// Instances returns the user's provisioned instances. The backend computes
// the remote-access command and service-type tag per instance.
func (c *Client) Instances(ctx context.Context, email types.UserEmail) ([]Instance, error) {
	var out []Instance
	err := c.do(ctx, email, proxyRequest{Path: "/instances", Method: http.MethodGet}, &out)
	return out, err
}

// UsageSummary returns the per-service-type quota records for the user.
func (c *Client) UsageSummary(ctx context.Context, email types.UserEmail) ([]UsageRecord, error) {
	var out []UsageRecord
	err := c.do(ctx, email, proxyRequest{
		Path:   "/usage-summary",
		Method: http.MethodPost,
		Body:   map[string]interface{}{"email": email},
	}, &out)
	return out, err
}

// UserKeys returns the downloadable credential files for the user.
func (c *Client) UserKeys(ctx context.Context, email types.UserEmail) ([]KeyFile, error) {
	var out []KeyFile
	err := c.do(ctx, email, proxyRequest{
		Path:   "/get-user-keys",
		Method: http.MethodPost,
		Body:   map[string]interface{}{"email": email},
	}, &out)
	return out, err
}

// CheckUserLab reports whether the user has a provisioned lab at all. The
// dashboard uses this to decide whether polling should run.
func (c *Client) CheckUserLab(ctx context.Context, email types.UserEmail) (bool, error) {
	var out struct {
		HasLab bool `json:"hasLab"`
	}
	err := c.do(ctx, email, proxyRequest{
		Path:   "/check-user-lab",
		Method: http.MethodPost,
		Body:   map[string]interface{}{"email": email},
	}, &out)
	return out.HasLab, err
}

// InstanceAction requests a state transition for one instance. The backend
// acknowledges fire-and-forget; the real effect is observed only via a
// subsequent Instances poll.
func (c *Client) InstanceAction(ctx context.Context, email types.UserEmail, action string, instanceID types.InstanceID, region types.Region) error {
	switch action {
	case "start", "stop", "reboot":
	default:
		return utils.MakeError("unknown instance action %q", action)
	}

	return c.do(ctx, email, proxyRequest{
		Path:   "/" + action,
		Method: http.MethodPost,
		Body: map[string]interface{}{
			"instance_id": instanceID,
			"region":      region,
		},
	}, nil)
}

// WindowsPassword retrieves the Windows credentials for an instance. Callers
// must consult the click limiter before even attempting this call.
func (c *Client) WindowsPassword(ctx context.Context, email types.UserEmail, instanceID types.InstanceID) (*WindowsCredentials, error) {
	var out WindowsCredentials
	err := c.do(ctx, email, proxyRequest{
		Path:   "/win-pass",
		Method: http.MethodPost,
		Body: map[string]interface{}{
			"instance_id": instanceID,
			"email":       email,
		},
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ValidateCluster asks the backend to probe each member's Splunk
// installation and returns per-server statuses.
func (c *Client) ValidateCluster(ctx context.Context, req ClusterRequest) ([]ServerStatus, error) {
	var out []ServerStatus
	err := c.do(ctx, req.UserEmail, proxyRequest{
		Path:   "/cluster/validate",
		Method: http.MethodPost,
		Body:   req,
	}, &out)
	return out, err
}

// ValidateLicense asks the backend to verify the Splunk license across the
// cluster set.
func (c *Client) ValidateLicense(ctx context.Context, req ClusterRequest) error {
	var out struct {
		Valid   bool   `json:"valid"`
		Message string `json:"message"`
	}
	if err := c.do(ctx, req.UserEmail, proxyRequest{
		Path:   "/cluster/license",
		Method: http.MethodPost,
		Body:   req,
	}, &out); err != nil {
		return err
	}
	if !out.Valid {
		return utils.MakeError("license validation failed: %s", out.Message)
	}
	return nil
}

// ConfigureCluster triggers the backend's cluster-assembly operation. The
// response is a completion acknowledgment; assembly continues server-side
// well after this returns.
func (c *Client) ConfigureCluster(ctx context.Context, req ClusterRequest) error {
	return c.do(ctx, req.UserEmail, proxyRequest{
		Path:   "/cluster/configure",
		Method: http.MethodPost,
		Body:   req,
	}, nil)
}
