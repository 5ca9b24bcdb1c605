// Package subscriptions holds the Hasura GraphQL client used to read the
// config database (payment-gateway secrets, price knobs and per-environment
// overrides). The portal only issues queries and mutations against the config
// tables; the live instance state comes from the lab backend via the poller.
package subscriptions // import "github.com/splunklabhq/splunklab/backend/services/subscriptions"

import (
	"context"
	"os"

	graphql "github.com/hasura/go-graphql-client"
	"github.com/splunklabhq/splunklab/backend/services/metadata"
	"github.com/splunklabhq/splunklab/backend/services/utils"
	logger "github.com/splunklabhq/splunklab/backend/services/lablogger"
	"golang.org/x/oauth2"
)

// LabGraphQLClient is an interface used to abstract the interactions with
// the official Hasura client.
type LabGraphQLClient interface {
	Initialize() error
	Query(context.Context, GraphQLQuery, map[string]interface{}) error
	Mutate(context.Context, GraphQLQuery, map[string]interface{}) error
}

// GraphQLClient implements LabGraphQLClient and is exposed to be used by any
// other package that needs to interact with the config database.
type GraphQLClient struct {
	Hasura *graphql.Client
	Params HasuraParams
}

// Initialize creates the client. On local environments without a config
// database the client stays disabled and every consumer must fall back to
// its defaults.
func (gc *GraphQLClient) Initialize() error {
	if !Enabled() {
		logger.Infof("Running in app environment %s so not enabling GraphQL client code.", metadata.GetAppEnvironment())
		return nil
	}

	logger.Infof("Setting up GraphQL client...")

	params, err := getConfigHasuraParams()
	if err != nil {
		// Error obtaining the connection parameters, we stop and don't setup the client
		return utils.MakeError("error creating hasura client: %s", err)
	}

	gc.Params = params

	// Create http client for authenticating the GraphQL client
	src := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: gc.Params.AccessKey},
	)
	httpClient := oauth2.NewClient(context.Background(), src)

	gc.Hasura = graphql.NewClient(gc.Params.URL, httpClient)

	return nil
}

// Query executes the given GraphQL query and assigns the returned values to
// the provided interface.
func (gc *GraphQLClient) Query(ctx context.Context, query GraphQLQuery, variables map[string]interface{}) error {
	if gc.Hasura == nil {
		return utils.MakeError("tried to query config database but the GraphQL client is not initialized")
	}
	return gc.Hasura.Query(ctx, query, variables)
}

// Mutate executes the given GraphQL mutation and writes to the database.
func (gc *GraphQLClient) Mutate(ctx context.Context, query GraphQLQuery, variables map[string]interface{}) error {
	if gc.Hasura == nil {
		return utils.MakeError("tried to mutate config database but the GraphQL client is not initialized")
	}
	return gc.Hasura.Mutate(ctx, query, variables)
}

// Enabled returns whether the config database integration is active. It can
// be forced on locally by setting CONFIG_DB_URL; without it a local run has
// no config database to talk to.
func Enabled() bool {
	if metadata.IsLocalEnv() {
		return os.Getenv("CONFIG_DB_URL") != ""
	}
	return true
}
