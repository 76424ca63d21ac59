package sqlite_test

import (
	"context"
	"crypto/rand"
	"fmt"
	"math"
	"math/big"
	"testing"

	"github.com/sagarc03/relaygate"
	"github.com/sagarc03/relaygate/database/sqlite"
	"github.com/stretchr/testify/require"
)

func getRandomString(t *testing.T) string {
	t.Helper()
	n, err := rand.Int(rand.Reader, big.NewInt(math.MaxInt64))
	require.NoError(t, err, "random string")
	return fmt.Sprintf("test%x", n.Int64())
}

func randomTables(t *testing.T) relaygate.Tables {
	t.Helper()
	suffix := getRandomString(t)
	return relaygate.Tables{
		Services: "services_" + suffix,
		Routes:   "routes_" + suffix,
	}
}

// setupTestRepo migrates a fresh in-memory database.
func setupTestRepo(t *testing.T) relaygate.ServiceRepo {
	t.Helper()
	ctx := context.Background()

	db, err := sqlite.Connect(ctx, ":memory:", randomTables(t))
	require.NoError(t, err, "failed to connect")
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, db.Migrate(ctx), "failed to migrate")

	return db.GetRepo()
}

func sampleDescriptor(id, prefix string) relaygate.ServiceDescriptor {
	return relaygate.ServiceDescriptor{
		ID:            id,
		GatewayPrefix: prefix,
		TargetService: relaygate.TargetService{HostVar: "HOST_" + id, BasePath: "/api"},
		Timeouts:      relaygate.Timeouts{ConnectMS: 250, ReadMS: 1500},
		Routes: []relaygate.RouteSpec{
			{Route: "", Methods: []string{"get", "post"}},
			{Route: "/:id", Methods: []string{"get", "put", "delete"}, AuthRequired: true},
		},
	}
}
