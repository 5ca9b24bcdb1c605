// Package config provides the data-driven dashboard configuration: the
// service-capability table (which per-service features the dashboard offers,
// e.g. Windows credentials or cluster configuration) and the cluster role
// patterns used to decide when a service-type group forms a complete cluster
// set. Values are read from a JSON file at startup and hot-reloaded when the
// file changes, so role-name conventions can be corrected without a deploy.
// config.Initialize() should be called as close as possible to the top of the
// main function.
package config

import (
	"encoding/json"
	"os"
	"sync"

	"github.com/splunklabhq/splunklab/backend/services/utils"
)

// Capabilities describes the dashboard features enabled for one service
// type. This is a lookup table keyed by service name, not inheritance: the
// dashboard consults it instead of branching per type.
type Capabilities struct {
	// WindowsCredentials controls whether the "Get Password" action (and the
	// rate-limited `/win-pass` proxy call behind it) is offered.
	WindowsCredentials bool `json:"windows_credentials"`

	// RemoteCommand controls whether the precomputed remote-access command
	// column is shown for the service's instances.
	RemoteCommand bool `json:"remote_command"`

	// ClusterConfiguration controls whether the cluster wizard may be
	// offered for the service's instance group at all.
	ClusterConfiguration bool `json:"cluster_configuration"`

	// CredentialFiles controls whether downloadable key files are offered.
	CredentialFiles bool `json:"credential_files"`
}

// RolePattern maps a cluster role to the instance-name prefix that denotes
// it, plus the minimum number of instances carrying that prefix required for
// a complete cluster set.
type RolePattern struct {
	Role     string `json:"role"`
	Prefix   string `json:"prefix"`
	MinCount int    `json:"min_count"`
}

// portalConfig is the on-disk shape of the configuration file.
type portalConfig struct {
	Capabilities     map[string]Capabilities `json:"capabilities"`
	RolePatterns     []RolePattern           `json:"role_patterns"`
	MinSplunkVersion string                  `json:"min_splunk_version"`
}

// config is a singleton that stores the portal configuration.
var config portalConfig

// rw synchronizes access to the configuration singleton.
var rw sync.RWMutex

// defaultRolePatterns is used when the configuration file does not override
// them. The exact role-name conventions are owned by the lab backend; these
// defaults match its current provisioning templates.
var defaultRolePatterns = []RolePattern{
	{Role: "search-head", Prefix: "sh-", MinCount: 2},
	{Role: "indexer", Prefix: "idx-", MinCount: 2},
	{Role: "management", Prefix: "mgmt-", MinCount: 1},
}

// Initialize populates the configuration singleton from the given file. A
// missing file is not an error: the defaults stay in place, which keeps
// localdev working without any setup.
func Initialize(path string) error {
	rw.Lock()
	defer rw.Unlock()

	config = portalConfig{
		Capabilities: map[string]Capabilities{
			"Splunk": {
				WindowsCredentials:   true,
				RemoteCommand:        true,
				ClusterConfiguration: true,
				CredentialFiles:      true,
			},
		},
		RolePatterns:     defaultRolePatterns,
		MinSplunkVersion: "8.2.0",
	}

	if path == "" {
		return nil
	}

	return loadLocked(path)
}

// loadLocked reads the configuration file into the singleton. Callers must
// hold the write lock.
func loadLocked(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return utils.MakeError("couldn't read portal config file %s: %s", path, err)
	}

	var fileConfig portalConfig
	if err := json.Unmarshal(raw, &fileConfig); err != nil {
		return utils.MakeError("couldn't parse portal config file %s: %s", path, err)
	}

	// Only fields the file actually sets override the defaults.
	if len(fileConfig.Capabilities) != 0 {
		config.Capabilities = fileConfig.Capabilities
	}
	if len(fileConfig.RolePatterns) != 0 {
		config.RolePatterns = fileConfig.RolePatterns
	}
	if fileConfig.MinSplunkVersion != "" {
		config.MinSplunkVersion = fileConfig.MinSplunkVersion
	}

	return nil
}

// GetCapabilities returns the capability set for the given service type.
// Unknown service types get the zero value, i.e. every extra feature off.
func GetCapabilities(serviceType string) Capabilities {
	rw.RLock()
	defer rw.RUnlock()

	return config.Capabilities[serviceType]
}

// GetRolePatterns returns the cluster role patterns currently in effect.
func GetRolePatterns() []RolePattern {
	rw.RLock()
	defer rw.RUnlock()

	patterns := make([]RolePattern, len(config.RolePatterns))
	copy(patterns, config.RolePatterns)
	return patterns
}

// GetMinSplunkVersion returns the minimum Splunkd version accepted by the
// cluster validation phase.
func GetMinSplunkVersion() string {
	rw.RLock()
	defer rw.RUnlock()

	return config.MinSplunkVersion
}
