package subscriptions // import "github.com/splunklabhq/splunklab/backend/services/subscriptions"

import (
	graphql "github.com/hasura/go-graphql-client"
)

// GraphQLQuery is a custom empty interface to represent the graphql queries
// described in this file.
type GraphQLQuery interface{}

// PortalConfigs is the mapping of the config database's per-environment
// key/value tables. This type interacts directly with the GraphQL client,
// which marshals/unmarshals using this type. Only use for GraphQL operations.
type PortalConfigs []struct {
	Key   graphql.String `graphql:"key"`
	Value graphql.String `graphql:"value"`
}

// QueryDevConfigurations returns all config values from the `dev` table.
var QueryDevConfigurations struct {
	PortalConfigs `graphql:"dev"`
}

// QueryStagingConfigurations returns all config values from the `staging` table.
var QueryStagingConfigurations struct {
	PortalConfigs `graphql:"staging"`
}

// QueryProdConfigurations returns all config values from the `prod` table.
var QueryProdConfigurations struct {
	PortalConfigs `graphql:"prod"`
}
