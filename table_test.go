package relaygate_test

import (
	"bytes"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/sagarc03/relaygate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRegistry() []relaygate.ServiceDescriptor {
	return []relaygate.ServiceDescriptor{
		{
			ID:            "users-service",
			GatewayPrefix: "/users",
			TargetService: relaygate.TargetService{HostVar: "USERS_HOST", BasePath: "/api"},
			Timeouts:      relaygate.Timeouts{ConnectMS: 500, ReadMS: 2000},
			Routes: []relaygate.RouteSpec{
				{Route: "", Methods: []string{"GET", "POST"}},
				{Route: "/:id", Methods: []string{"GET", "PUT", "DELETE"}, AuthRequired: true},
			},
		},
		{
			ID:            "orders-service",
			GatewayPrefix: "/orders",
			TargetService: relaygate.TargetService{HostVar: "ORDERS_HOST"},
			Routes: []relaygate.RouteSpec{
				{Route: "/", Methods: []string{"get"}},
				{Route: "/:id/items", Methods: []string{"get", "patch", "options"}, AuthRequired: true},
			},
		},
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestBuild_BindingCount(t *testing.T) {
	t.Parallel()

	lookup := relaygate.MapLookup{
		"USERS_HOST":  "http://users:8080",
		"ORDERS_HOST": "http://orders:9090",
	}

	table := relaygate.NewBuilder(lookup, discardLogger()).Build(testRegistry())

	// 2+3 for users, 1+3 for orders
	assert.Equal(t, 9, table.Len())
	assert.Empty(t, table.Skipped())

	b, ok := table.Lookup(relaygate.MethodPut, "/users/:id")
	require.True(t, ok)
	assert.Equal(t, "users-service", b.ServiceID)
	assert.Equal(t, "/users", b.GatewayPrefix)
	assert.Equal(t, "/:id", b.Route)
	assert.True(t, b.AuthRequired)
	assert.Equal(t, "http://users:8080/api", b.Target.String())
	assert.Equal(t, 500*time.Millisecond, b.ConnectTimeout)
	assert.Equal(t, 2*time.Second, b.ReadTimeout)

	b, ok = table.Lookup(relaygate.MethodGet, "/orders/")
	require.True(t, ok)
	assert.False(t, b.AuthRequired)
	assert.Equal(t, relaygate.DefaultConnectTimeout, b.ConnectTimeout)
	assert.Equal(t, relaygate.DefaultReadTimeout, b.ReadTimeout)
}

func TestBuild_RegistrationOrder(t *testing.T) {
	t.Parallel()

	lookup := relaygate.MapLookup{"USERS_HOST": "http://users", "ORDERS_HOST": "http://orders"}
	table := relaygate.NewBuilder(lookup, discardLogger()).Build(testRegistry())

	var keys []string
	for _, b := range table.Bindings() {
		keys = append(keys, b.Key())
	}

	assert.Equal(t, []string{
		"get /users",
		"post /users",
		"get /users/:id",
		"put /users/:id",
		"delete /users/:id",
		"get /orders/",
		"get /orders/:id/items",
		"patch /orders/:id/items",
		"options /orders/:id/items",
	}, keys)
}

func TestBuild_MissingHostSkipsOnlyThatService(t *testing.T) {
	t.Parallel()

	lookup := relaygate.MapLookup{"ORDERS_HOST": "http://orders:9090"}

	table := relaygate.NewBuilder(lookup, discardLogger()).Build(testRegistry())

	assert.Empty(t, table.ForService("users-service"))
	assert.Len(t, table.ForService("orders-service"), 4)

	skipped := table.Skipped()
	require.Len(t, skipped, 1)
	assert.Equal(t, "users-service", skipped[0].Service)
	assert.Equal(t, relaygate.SkipUnresolvedTarget, skipped[0].Reason)
	assert.ErrorIs(t, skipped[0].Err, relaygate.ErrMissingHostVariable)
}

func TestBuild_InvalidTargetSkipsService(t *testing.T) {
	t.Parallel()

	lookup := relaygate.MapLookup{"USERS_HOST": "not a url", "ORDERS_HOST": "http://orders"}

	table := relaygate.NewBuilder(lookup, discardLogger()).Build(testRegistry())

	assert.Empty(t, table.ForService("users-service"))
	require.Len(t, table.Skipped(), 1)
	assert.ErrorIs(t, table.Skipped()[0].Err, relaygate.ErrInvalidTarget)
}

func TestBuild_UnsupportedMethodsSkippedPerEntry(t *testing.T) {
	t.Parallel()

	descs := []relaygate.ServiceDescriptor{{
		ID:            "svc",
		GatewayPrefix: "/svc",
		TargetService: relaygate.TargetService{HostVar: "SVC_HOST"},
		Routes: []relaygate.RouteSpec{
			{Route: "/a", Methods: []string{"GET", "HEAD", "TRACE", "post"}},
			{Route: "/b", Methods: nil},
		},
	}}

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	table := relaygate.NewBuilder(relaygate.MapLookup{"SVC_HOST": "http://svc"}, logger).Build(descs)

	assert.Equal(t, 2, table.Len())
	_, ok := table.Lookup(relaygate.MethodGet, "/svc/a")
	assert.True(t, ok)
	_, ok = table.Lookup(relaygate.MethodPost, "/svc/a")
	assert.True(t, ok)

	skipped := table.Skipped()
	require.Len(t, skipped, 3)
	assert.Equal(t, "HEAD", skipped[0].Method)
	assert.Equal(t, relaygate.SkipUnsupportedMethod, skipped[0].Reason)
	assert.Equal(t, "TRACE", skipped[1].Method)
	assert.Equal(t, relaygate.SkipNoMethods, skipped[2].Reason)

	assert.Contains(t, logs.String(), "skipping unsupported method")
}

func TestBuild_LastRegistrationWins(t *testing.T) {
	t.Parallel()

	descs := []relaygate.ServiceDescriptor{
		{
			ID:            "first",
			GatewayPrefix: "/shared",
			TargetService: relaygate.TargetService{HostVar: "FIRST_HOST"},
			Routes: []relaygate.RouteSpec{
				{Route: "/x", Methods: []string{"GET"}},
				{Route: "/y", Methods: []string{"GET"}},
			},
		},
		{
			ID:            "second",
			GatewayPrefix: "/shared",
			TargetService: relaygate.TargetService{HostVar: "SECOND_HOST"},
			Routes: []relaygate.RouteSpec{
				{Route: "/x", Methods: []string{"get", "GET"}, AuthRequired: true},
			},
		},
	}
	lookup := relaygate.MapLookup{"FIRST_HOST": "http://first", "SECOND_HOST": "http://second"}

	table := relaygate.NewBuilder(lookup, discardLogger()).Build(descs)

	assert.Equal(t, 2, table.Len())

	b, ok := table.Lookup(relaygate.MethodGet, "/shared/x")
	require.True(t, ok)
	assert.Equal(t, "second", b.ServiceID)
	assert.True(t, b.AuthRequired)
	assert.Equal(t, "http://second", b.Target.String())

	// replacement keeps the original slot
	assert.Equal(t, "/shared/x", table.Bindings()[0].FullPath)
}

func TestBuild_Deterministic(t *testing.T) {
	t.Parallel()

	lookup := relaygate.MapLookup{"USERS_HOST": "http://users:8080", "ORDERS_HOST": "http://orders:9090"}
	builder := relaygate.NewBuilder(lookup, discardLogger())

	first := builder.Build(testRegistry())
	second := builder.Build(testRegistry())

	assert.Equal(t, first.Bindings(), second.Bindings())
}

func TestRouteTable_BindingsAreCopies(t *testing.T) {
	t.Parallel()

	lookup := relaygate.MapLookup{"USERS_HOST": "http://users", "ORDERS_HOST": "http://orders"}
	table := relaygate.NewBuilder(lookup, discardLogger()).Build(testRegistry())

	bindings := table.Bindings()
	bindings[0].AuthRequired = true
	bindings[0].Target.Host = "evil"

	b, ok := table.Lookup(relaygate.MethodGet, "/users")
	require.True(t, ok)
	assert.False(t, b.AuthRequired)
	assert.Equal(t, "users", b.Target.Host)
}

func TestRouteTable_ConcurrentReads(t *testing.T) {
	t.Parallel()

	lookup := relaygate.MapLookup{"USERS_HOST": "http://users", "ORDERS_HOST": "http://orders"}
	table := relaygate.NewBuilder(lookup, discardLogger()).Build(testRegistry())

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				_, ok := table.Lookup(relaygate.MethodGet, "/orders/:id/items")
				assert.True(t, ok)
				_ = table.Bindings()
			}
		}()
	}
	wg.Wait()
}

func TestBuild_NilLookupUsesEnvironment(t *testing.T) {
	t.Setenv("RELAYGATE_TABLE_TEST_HOST", "http://from-env:1234")

	descs := []relaygate.ServiceDescriptor{{
		ID:            "env",
		GatewayPrefix: "/env",
		TargetService: relaygate.TargetService{HostVar: "RELAYGATE_TABLE_TEST_HOST"},
		Routes:        []relaygate.RouteSpec{{Route: "/ping", Methods: []string{"GET"}}},
	}}

	table := relaygate.NewBuilder(nil, discardLogger()).Build(descs)

	b, ok := table.Lookup(relaygate.MethodGet, "/env/ping")
	require.True(t, ok)
	assert.Equal(t, "from-env:1234", b.Target.Host)
}
