package metadata // import "github.com/splunklabhq/splunklab/backend/services/metadata"

import (
	"os"
	"strings"
)

func init() {
	// Note: we use panic here to exit from the `metadata` package, since it is one of the rare
	// packages that does not have access to the global context, or the `logger.Panicf` function.
	// We need to verify that the portal is running on a valid environment early in the process,
	// before doing any setup/logging. Due to the special conditions needed, the use of `panic`
	// is acceptable here, but it should not be used anywhere else in the code.
	if IsRunningInCI() && !IsLocalEnv() {
		// Running on a non-local environment with CI enabled is an invalid configuration.
		panic("Running on non-local environment with CI enabled.")
	}
}

// An AppEnvironment represents either localdev (i.e. an engineer's
// development machine), dev (i.e. talking to the dev lab backend), staging,
// or prod.
type AppEnvironment string

// Constants for the various AppEnvironments. DO NOT CHANGE THESE without
// understanding how any consumers of GetAppEnvironment() and
// GetAppEnvironmentLowercase() are using them!
const (
	EnvLocalDev AppEnvironment = "localdev"
	EnvDev      AppEnvironment = "dev"
	EnvStaging  AppEnvironment = "staging"
	EnvProd     AppEnvironment = "prod"
)

// GetAppEnvironment returns the AppEnvironment of the current instance.
var GetAppEnvironment func() AppEnvironment = func(unmemoized func() AppEnvironment) func() AppEnvironment {
	// This nested function syntax is used to memoize the result of the first call
	// to GetAppEnvironment() and cache the result for all future calls.

	var isCached = false
	var cache AppEnvironment

	return func() AppEnvironment {
		if isCached {
			return cache
		}
		cache = unmemoized()
		isCached = true
		return cache
	}
}(func() AppEnvironment {
	// Caching-agnostic logic goes here
	env := strings.ToLower(os.Getenv("APP_ENV"))
	switch env {
	case "development", "dev":
		return EnvDev
	case "staging":
		return EnvStaging
	case "production", "prod":
		return EnvProd
	default:
		return EnvLocalDev
	}
})

// GetAppEnvironmentLowercase returns the app environment string, but just
// converted to lowercase. This is helpful to construct larger strings (i.e.
// config database table names) that depend on the current environment.
func GetAppEnvironmentLowercase() string {
	return strings.ToLower(string(GetAppEnvironment()))
}

// IsLocalEnv returns true if the portal is running locally for development.
func IsLocalEnv() bool {
	return GetAppEnvironment() == EnvLocalDev
}

// IsRunningInCI returns true if the portal is running in continuous
// integration (i.e. for tests).
func IsRunningInCI() bool {
	strCI := strings.ToLower(os.Getenv("CI"))
	switch strCI {
	case "1", "yes", "true", "on":
		return true
	default:
		return false
	}
}

// GetGitCommit returns the git commit hash this build was compiled from. It
// is stamped into the environment by the deploy workflow and used to tag
// Sentry releases.
func GetGitCommit() string {
	return os.Getenv("GIT_COMMIT_SHA")
}
