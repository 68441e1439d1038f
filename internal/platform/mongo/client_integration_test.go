//go:build integration

package mongo_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"caskhouse/internal/platform/config"
	platformmongo "caskhouse/internal/platform/mongo"
	"caskhouse/pkg/testutil/containers"
)

func TestNewConnectsAndPings(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	mc := containers.GetManager().GetMongo(t)
	ctx := context.Background()

	client, err := platformmongo.New(ctx, config.MongoConfig{URI: mc.URI, Database: "caskhouse_it"})
	require.NoError(t, err)
	defer client.Close(ctx)

	require.NoError(t, client.Health(ctx))
	require.Equal(t, "caskhouse_it", client.Database().Name())
}

func TestNewWithoutURI(t *testing.T) {
	client, err := platformmongo.New(context.Background(), config.MongoConfig{})
	require.NoError(t, err)
	require.Nil(t, client)
	require.Error(t, client.Health(context.Background()))
	require.NoError(t, client.Close(context.Background()))
}
