package main

import (
	"context"

	"github.com/splunklabhq/splunklab/backend/services/hosts"
	"github.com/splunklabhq/splunklab/backend/services/labclient"
	"github.com/splunklabhq/splunklab/backend/services/types"
	"github.com/splunklabhq/splunklab/backend/services/utils"
)

// instanceSource lists a user's instances. In managed mode this is the lab
// backend; in self-hosted mode the cloud provider is queried directly.
type instanceSource interface {
	Instances(ctx context.Context, email types.UserEmail) ([]labclient.Instance, error)
}

// selfHostedDriver adapts a cloud host handler to the dispatcher and
// instance-source interfaces the rest of the portal uses. Self-hosted
// deployments have no lab backend, so the portal is the control plane.
type selfHostedDriver struct {
	host hosts.HostHandler
}

func (d *selfHostedDriver) InstanceAction(ctx context.Context, email types.UserEmail, action string, instanceID types.InstanceID, region types.Region) error {
	ids := []types.InstanceID{instanceID}

	switch action {
	case "start":
		return d.host.StartInstances(ctx, ids)
	case "stop":
		return d.host.StopInstances(ctx, ids)
	case "reboot":
		return d.host.RebootInstances(ctx, ids)
	default:
		return utils.MakeError("unsupported instance action %s", action)
	}
}

func (d *selfHostedDriver) Instances(ctx context.Context, email types.UserEmail) ([]labclient.Instance, error) {
	return d.host.DescribeInstances(ctx, nil)
}
