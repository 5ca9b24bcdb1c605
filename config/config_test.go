package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestInitializeDefaults(t *testing.T) {
	if err := Initialize(""); err != nil {
		t.Fatalf("Initialize with empty path errored: %s", err)
	}

	caps := GetCapabilities("Splunk")
	if !caps.WindowsCredentials || !caps.ClusterConfiguration {
		t.Errorf("expected default Splunk capabilities enabled, got %+v", caps)
	}

	// Unknown service types get everything off.
	caps = GetCapabilities("Kafka")
	if caps.WindowsCredentials || caps.RemoteCommand || caps.ClusterConfiguration {
		t.Errorf("expected zero capabilities for unknown service, got %+v", caps)
	}

	patterns := GetRolePatterns()
	if len(patterns) != 3 {
		t.Errorf("expected 3 default role patterns, got %v", len(patterns))
	}
}

func TestInitializeFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "portal.json")

	contents := `{
		"capabilities": {
			"Splunk": {"windows_credentials": false, "cluster_configuration": true}
		},
		"role_patterns": [
			{"role": "search-head", "prefix": "search-", "min_count": 3},
			{"role": "indexer", "prefix": "index-", "min_count": 3},
			{"role": "management", "prefix": "mn-", "min_count": 1}
		],
		"min_splunk_version": "9.0.0"
	}`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("failed to write test config: %s", err)
	}

	if err := Initialize(path); err != nil {
		t.Fatalf("Initialize errored: %s", err)
	}

	caps := GetCapabilities("Splunk")
	if caps.WindowsCredentials {
		t.Error("expected windows_credentials to be overridden to false")
	}
	if !caps.ClusterConfiguration {
		t.Error("expected cluster_configuration to stay enabled")
	}

	patterns := GetRolePatterns()
	if patterns[0].Prefix != "search-" || patterns[0].MinCount != 3 {
		t.Errorf("expected overridden search-head pattern, got %+v", patterns[0])
	}

	if got := GetMinSplunkVersion(); got != "9.0.0" {
		t.Errorf("expected min Splunk version 9.0.0, got %s", got)
	}
}

func TestInitializeMissingFileKeepsDefaults(t *testing.T) {
	if err := Initialize(filepath.Join(t.TempDir(), "nope.json")); err != nil {
		t.Fatalf("Initialize with missing file errored: %s", err)
	}

	if got := GetMinSplunkVersion(); got != "8.2.0" {
		t.Errorf("expected default min Splunk version, got %s", got)
	}
}

func TestInitializeBadJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "portal.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("failed to write test config: %s", err)
	}

	if err := Initialize(path); err == nil {
		t.Error("expected an error for malformed config file")
	}
}
