// Package hosts defines the control-plane driver interface used when the
// portal is deployed without the managed lab backend. In that self-hosted
// mode the portal drives the cloud provider directly; otherwise `labclient`
// covers the same operations through the backend.
package hosts

import (
	"context"

	"github.com/splunklabhq/splunklab/backend/services/labclient"
	"github.com/splunklabhq/splunklab/backend/services/types"
)

// HostHandler abstracts the cloud provider's instance control plane.
type HostHandler interface {
	Initialize(region types.Region) error
	StartInstances(ctx context.Context, instanceIDs []types.InstanceID) error
	StopInstances(ctx context.Context, instanceIDs []types.InstanceID) error
	RebootInstances(ctx context.Context, instanceIDs []types.InstanceID) error
	DescribeInstances(ctx context.Context, instanceIDs []types.InstanceID) ([]labclient.Instance, error)
	WaitForInstancesRunning(ctx context.Context, instanceIDs []types.InstanceID) error
	WaitForInstancesStopped(ctx context.Context, instanceIDs []types.InstanceID) error
}
