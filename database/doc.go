// Package database stores service descriptors in SQL backends.
//
// The package supports PostgreSQL and SQLite and handles connection
// management, migrations and schema validation. Descriptors are kept in two
// tables: one row per service and one row per route, each with a position
// column so that List returns them in registration order.
//
// # Supported Backends
//
//   - PostgreSQL: pgx connection pool, methods stored as text[]
//   - SQLite: modernc.org/sqlite, suitable for single-node deployments
//
// # Usage
//
//	cfg := database.Config{
//	    Type:        "sqlite",
//	    DSN:         "relaygate.db",
//	    Tables:      relaygate.Tables{Services: "gateway_services", Routes: "gateway_routes"},
//	    AutoMigrate: true,
//	}
//
//	db, err := database.Open(ctx, cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	descs, err := db.GetRepo().List(ctx)
//
// # Subpackages
//
//   - database/postgres: PostgreSQL implementation using pgx
//   - database/sqlite: SQLite implementation using modernc.org/sqlite
package database
