package subscriptions // import "github.com/splunklabhq/splunklab/backend/services/subscriptions"

import (
	"context"

	"github.com/splunklabhq/splunklab/backend/services/metadata"
	"github.com/splunklabhq/splunklab/backend/services/utils"
)

// GetConfigs queries the config database table matching the current app
// environment and parses the result as a map[string]string.
func GetConfigs(ctx context.Context, client LabGraphQLClient) (map[string]string, error) {
	switch metadata.GetAppEnvironment() {
	case metadata.EnvStaging:
		return getStagingConfigs(ctx, client)
	case metadata.EnvProd:
		return getProdConfigs(ctx, client)
	default:
		return getDevConfigs(ctx, client)
	}
}

// getDevConfigs will query the config database's `dev` table and parse the result as a map[string]string.
func getDevConfigs(ctx context.Context, client LabGraphQLClient) (map[string]string, error) {
	query := QueryDevConfigurations
	err := client.Query(ctx, &query, map[string]interface{}{})
	if err != nil {
		return nil, utils.MakeError("failed to query config database for configuration values of env %s: %s", metadata.GetAppEnvironmentLowercase(), err)
	}

	if len(query.PortalConfigs) == 0 {
		return nil, utils.MakeError("could not find dev configs on database")
	}

	return configsToMap(query.PortalConfigs), nil
}

// getStagingConfigs will query the config database's `staging` table and parse the result as a map[string]string.
func getStagingConfigs(ctx context.Context, client LabGraphQLClient) (map[string]string, error) {
	query := QueryStagingConfigurations
	err := client.Query(ctx, &query, map[string]interface{}{})
	if err != nil {
		return nil, utils.MakeError("failed to query config database for configuration values of env %s: %s", metadata.GetAppEnvironmentLowercase(), err)
	}

	if len(query.PortalConfigs) == 0 {
		return nil, utils.MakeError("could not find staging configs on database")
	}

	return configsToMap(query.PortalConfigs), nil
}

// getProdConfigs will query the config database's `prod` table and parse the result as a map[string]string.
func getProdConfigs(ctx context.Context, client LabGraphQLClient) (map[string]string, error) {
	query := QueryProdConfigurations
	err := client.Query(ctx, &query, map[string]interface{}{})
	if err != nil {
		return nil, utils.MakeError("failed to query config database for configuration values of env %s: %s", metadata.GetAppEnvironmentLowercase(), err)
	}

	if len(query.PortalConfigs) == 0 {
		return nil, utils.MakeError("could not find prod configs on database")
	}

	return configsToMap(query.PortalConfigs), nil
}

// configsToMap converts the config rows to a map for easier manipulation.
func configsToMap(configs PortalConfigs) map[string]string {
	configMap := make(map[string]string)
	for _, entry := range configs {
		configMap[string(entry.Key)] = string(entry.Value)
	}
	return configMap
}
