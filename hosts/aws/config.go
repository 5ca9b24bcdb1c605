package aws

import "time"

// Configuration for waiters

const (
	// How long the waiters poll DescribeInstances before giving up. Instance
	// state transitions normally settle well within this window.
	maxWaitTime = 5 * time.Minute
)

// Tag keys the lab provisioner stamps on every instance. DescribeInstances
// maps them back onto the portal's instance record.
const (
	nameTagKey        = "Name"
	serviceTypeTagKey = "splunklab:service-type"
	remoteCmdTagKey   = "splunklab:remote-command"
)
