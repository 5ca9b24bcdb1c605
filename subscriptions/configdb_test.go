package subscriptions

import (
	"context"
	"testing"

	graphql "github.com/hasura/go-graphql-client"
	"github.com/splunklabhq/splunklab/backend/services/metadata"
)

// mockConfigGraphQLClient returns canned config rows for whichever
// environment table is queried.
type mockConfigGraphQLClient struct {
	configs map[string]string
	queryErr error
}

func (mc *mockConfigGraphQLClient) Initialize() error {
	return nil
}

func (mc *mockConfigGraphQLClient) Query(ctx context.Context, query GraphQLQuery, vars map[string]interface{}) error {
	if mc.queryErr != nil {
		return mc.queryErr
	}

	var rows PortalConfigs
	for k, v := range mc.configs {
		rows = append(rows, struct {
			Key   graphql.String `graphql:"key"`
			Value graphql.String `graphql:"value"`
		}{Key: graphql.String(k), Value: graphql.String(v)})
	}

	switch metadata.GetAppEnvironment() {
	case metadata.EnvStaging:
		query.(*struct {
			PortalConfigs "graphql:\"staging\""
		}).PortalConfigs = rows
	case metadata.EnvProd:
		query.(*struct {
			PortalConfigs "graphql:\"prod\""
		}).PortalConfigs = rows
	default:
		query.(*struct {
			PortalConfigs "graphql:\"dev\""
		}).PortalConfigs = rows
	}

	return nil
}

func (mc *mockConfigGraphQLClient) Mutate(ctx context.Context, query GraphQLQuery, vars map[string]interface{}) error {
	return nil
}

func TestGetConfigs(t *testing.T) {
	client := &mockConfigGraphQLClient{configs: map[string]string{
		"GATEWAY_KEY_ID": "key_test_123",
		"GATEWAY_SECRET": "shh",
	}}

	got, err := GetConfigs(context.Background(), client)
	if err != nil {
		t.Fatalf("GetConfigs errored: %s", err)
	}

	if got["GATEWAY_KEY_ID"] != "key_test_123" {
		t.Errorf("expected GATEWAY_KEY_ID to round-trip, got %q", got["GATEWAY_KEY_ID"])
	}
	if got["GATEWAY_SECRET"] != "shh" {
		t.Errorf("expected GATEWAY_SECRET to round-trip, got %q", got["GATEWAY_SECRET"])
	}
}

func TestGetConfigsEmpty(t *testing.T) {
	client := &mockConfigGraphQLClient{configs: map[string]string{}}

	_, err := GetConfigs(context.Background(), client)
	if err == nil {
		t.Error("expected an error when the config table is empty")
	}
}
