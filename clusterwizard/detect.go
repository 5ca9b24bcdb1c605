package clusterwizard // import "github.com/splunklabhq/splunklab/backend/services/clusterwizard"

import (
	"strings"

	"github.com/splunklabhq/splunklab/backend/services/config"
	"github.com/splunklabhq/splunklab/backend/services/labclient"
	"github.com/splunklabhq/splunklab/backend/services/types"
)

// DetectClusterSet checks the user's instance list against the configured
// role patterns and, when every role meets its minimum count, returns the
// instances making up the cluster. A lab can hold extra standalone instances
// alongside a cluster; only name-prefix matches are part of the set.
func DetectClusterSet(instances []labclient.Instance, patterns []config.RolePattern) ([]labclient.Instance, bool) {
	if len(patterns) == 0 {
		return nil, false
	}

	var members []labclient.Instance
	seen := map[types.InstanceID]struct{}{}
	for _, pattern := range patterns {
		matched := 0
		for _, instance := range instances {
			if !strings.HasPrefix(strings.ToLower(instance.Name), strings.ToLower(pattern.Prefix)) {
				continue
			}
			matched++
			// A name can match several prefixes once the patterns are
			// operator-edited; the instance joins the set once.
			if _, ok := seen[instance.ID]; ok {
				continue
			}
			seen[instance.ID] = struct{}{}
			members = append(members, instance)
		}
		if matched < pattern.MinCount {
			return nil, false
		}
	}

	return members, true
}
