package subscriptions // import "github.com/splunklabhq/splunklab/backend/services/subscriptions"

import (
	"os"

	"github.com/splunklabhq/splunklab/backend/services/metadata"
	"github.com/splunklabhq/splunklab/backend/services/utils"
)

// HasuraParams contains the URL and admin access key to pass to the Hasura
// client when connecting to the config database.
type HasuraParams struct {
	URL       string
	AccessKey string
}

const localHasuraConfigURL = "http://localhost:8082/v1/graphql"

// getConfigHasuraParams obtains the connection parameters for the config
// database from the environment.
func getConfigHasuraParams() (HasuraParams, error) {
	if metadata.IsLocalEnv() {
		url := os.Getenv("CONFIG_DB_URL")
		if url == "" {
			url = localHasuraConfigURL
		}
		return HasuraParams{
			URL:       url,
			AccessKey: "hasura",
		}, nil
	}

	url := os.Getenv("CONFIG_DB_URL")
	if url == "" {
		return HasuraParams{}, utils.MakeError("couldn't get config Hasura connection URL: CONFIG_DB_URL is uninitialized")
	}
	accessKey := os.Getenv("CONFIG_DB_ACCESS_KEY")
	if accessKey == "" {
		return HasuraParams{}, utils.MakeError("couldn't get config Hasura access key: CONFIG_DB_ACCESS_KEY is uninitialized")
	}

	return HasuraParams{
		URL:       url,
		AccessKey: accessKey,
	}, nil
}
