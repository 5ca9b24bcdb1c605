package aws

import (
	"context"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2Types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/splunklabhq/splunklab/backend/services/labclient"
	"github.com/splunklabhq/splunklab/backend/services/types"
	"github.com/splunklabhq/splunklab/backend/services/utils"
	logger "github.com/splunklabhq/splunklab/backend/services/lablogger"
)

// AWSHost drives EC2 directly for self-hosted deployments.
type AWSHost struct {
	Region types.Region
	Config awssdk.Config
	EC2    *ec2.Client
}

// Initialize starts the AWS and EC2 clients.
func (host *AWSHost) Initialize(region types.Region) error {
	// Initialize general AWS config on the selected region
	cfg, err := config.LoadDefaultConfig(context.Background(), config.WithRegion(string(region)))
	if err != nil {
		return utils.MakeError("unable to load AWS SDK config: %s", err)
	}

	// Start AWS host and EC2 client
	host.Region = region
	host.Config = cfg
	host.EC2 = ec2.NewFromConfig(cfg)

	return nil
}

// StartInstances requests a start for every given instance id.
func (host *AWSHost) StartInstances(ctx context.Context, instanceIDs []types.InstanceID) error {
	input := &ec2.StartInstancesInput{
		InstanceIds: instanceIDStrings(instanceIDs),
	}

	output, err := host.EC2.StartInstances(ctx, input)
	if err != nil {
		return utils.MakeError("error starting instances %v: %s", instanceIDs, err)
	}
	if len(output.StartingInstances) != len(instanceIDs) {
		return utils.MakeError("failed to start requested number of instances, requested %v, starting %v",
			len(instanceIDs), len(output.StartingInstances))
	}

	return nil
}

// StopInstances requests a stop for every given instance id.
func (host *AWSHost) StopInstances(ctx context.Context, instanceIDs []types.InstanceID) error {
	input := &ec2.StopInstancesInput{
		InstanceIds: instanceIDStrings(instanceIDs),
	}

	output, err := host.EC2.StopInstances(ctx, input)
	if err != nil {
		return utils.MakeError("error stopping instances %v: %s", instanceIDs, err)
	}
	if len(output.StoppingInstances) != len(instanceIDs) {
		return utils.MakeError("failed to stop requested number of instances, requested %v, stopping %v",
			len(instanceIDs), len(output.StoppingInstances))
	}

	return nil
}

// RebootInstances requests a reboot for every given instance id. EC2 reboots
// are fire-and-forget: the API acknowledges without a state change we could
// verify here, so the caller observes the effect via DescribeInstances.
func (host *AWSHost) RebootInstances(ctx context.Context, instanceIDs []types.InstanceID) error {
	input := &ec2.RebootInstancesInput{
		InstanceIds: instanceIDStrings(instanceIDs),
	}

	_, err := host.EC2.RebootInstances(ctx, input)
	if err != nil {
		return utils.MakeError("error rebooting instances %v: %s", instanceIDs, err)
	}

	return nil
}

// DescribeInstances reads the current state of the given instances (or all
// instances tagged for the lab when the id list is empty) and maps them onto
// the portal's instance record.
func (host *AWSHost) DescribeInstances(ctx context.Context, instanceIDs []types.InstanceID) ([]labclient.Instance, error) {
	input := &ec2.DescribeInstancesInput{}
	if len(instanceIDs) > 0 {
		input.InstanceIds = instanceIDStrings(instanceIDs)
	} else {
		input.Filters = []ec2Types.Filter{
			{
				Name:   awssdk.String("tag-key"),
				Values: []string{serviceTypeTagKey},
			},
		}
	}

	output, err := host.EC2.DescribeInstances(ctx, input)
	if err != nil {
		return nil, utils.MakeError("error describing instances %v: %s", instanceIDs, err)
	}

	var instances []labclient.Instance
	for _, reservation := range output.Reservations {
		for _, inst := range reservation.Instances {
			record := labclient.Instance{
				ID:     types.InstanceID(awssdk.ToString(inst.InstanceId)),
				Region: host.Region,
				State:  mapInstanceState(inst.State),
			}
			record.PrivateIP = awssdk.ToString(inst.PrivateIpAddress)
			record.PublicIP = awssdk.ToString(inst.PublicIpAddress)

			for _, tag := range inst.Tags {
				switch awssdk.ToString(tag.Key) {
				case nameTagKey:
					record.Name = awssdk.ToString(tag.Value)
				case serviceTypeTagKey:
					record.ServiceType = types.ServiceType(awssdk.ToString(tag.Value))
				case remoteCmdTagKey:
					record.RemoteCommand = awssdk.ToString(tag.Value)
				}
			}

			instances = append(instances, record)
		}
	}

	return instances, nil
}

// WaitForInstancesRunning waits until the given instances are running on AWS.
func (host *AWSHost) WaitForInstancesRunning(ctx context.Context, instanceIDs []types.InstanceID) error {
	waiter := ec2.NewInstanceRunningWaiter(host.EC2, func(*ec2.InstanceRunningWaiterOptions) {
		logger.Infof("Waiting for instances %v to be running on AWS", instanceIDs)
	})

	waitParams := &ec2.DescribeInstancesInput{
		InstanceIds: instanceIDStrings(instanceIDs),
	}

	err := waiter.Wait(ctx, waitParams, maxWaitTime)
	if err != nil {
		return utils.MakeError("failed waiting for instances %v to be running on AWS: %s", instanceIDs, err)
	}

	return nil
}

// WaitForInstancesStopped waits until the given instances are stopped on AWS.
func (host *AWSHost) WaitForInstancesStopped(ctx context.Context, instanceIDs []types.InstanceID) error {
	waiter := ec2.NewInstanceStoppedWaiter(host.EC2, func(*ec2.InstanceStoppedWaiterOptions) {
		logger.Infof("Waiting for instances %v to be stopped on AWS", instanceIDs)
	})

	waitParams := &ec2.DescribeInstancesInput{
		InstanceIds: instanceIDStrings(instanceIDs),
	}

	err := waiter.Wait(ctx, waitParams, maxWaitTime)
	if err != nil {
		return utils.MakeError("failed waiting for instances %v to be stopped on AWS: %s", instanceIDs, err)
	}

	return nil
}

// mapInstanceState translates EC2 state names onto the lifecycle states the
// dashboard knows; unknown states pass through opaquely.
func mapInstanceState(state *ec2Types.InstanceState) labclient.LifecycleState {
	if state == nil {
		return labclient.StatePending
	}

	switch state.Name {
	case ec2Types.InstanceStateNamePending:
		return labclient.StatePending
	case ec2Types.InstanceStateNameRunning:
		return labclient.StateRunning
	case ec2Types.InstanceStateNameStopping:
		return labclient.StateStopping
	case ec2Types.InstanceStateNameStopped:
		return labclient.StateStopped
	default:
		return labclient.LifecycleState(state.Name)
	}
}

func instanceIDStrings(instanceIDs []types.InstanceID) []string {
	ids := make([]string, 0, len(instanceIDs))
	for _, id := range instanceIDs {
		ids = append(ids, string(id))
	}
	return ids
}
