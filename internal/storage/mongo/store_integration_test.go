//go:build integration

package mongo

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcmongo "github.com/testcontainers/testcontainers-go/modules/mongodb"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	interfaces "github.com/sheikh-saqib/khata-ledger/internal/interfaces"
	"github.com/sheikh-saqib/khata-ledger/internal/storage/storetest"
)

const testDatabase = "khata_test"

// setupMongoContainer starts a single-node replica set, which multi-document
// transactions require, and returns a direct connection string.
func setupMongoContainer(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	container, err := tcmongo.Run(ctx,
		"mongo:7",
		tcmongo.WithReplicaSet("rs0"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("Waiting for connections").
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, container.Terminate(ctx))
	})

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)
	if strings.Contains(uri, "?") {
		return uri + "&directConnection=true"
	}
	return strings.TrimSuffix(uri, "/") + "/?directConnection=true"
}

func TestIntegration_MongoStore(t *testing.T) {
	uri := setupMongoContainer(t)

	storetest.Run(t, func(t *testing.T) interfaces.LedgerStore {
		ctx := context.Background()
		s, err := Open(ctx, uri, testDatabase, zap.NewNop())
		require.NoError(t, err)
		require.NoError(t, s.Drop(ctx))
		require.NoError(t, s.EnsureIndexes(ctx))
		t.Cleanup(func() { s.Close() })
		return s
	})
}
