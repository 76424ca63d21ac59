package database

import (
	"context"
	"fmt"

	"github.com/sagarc03/relaygate"
	"github.com/sagarc03/relaygate/database/postgres"
	"github.com/sagarc03/relaygate/database/sqlite"
)

// Database is a connected descriptor store.
type Database interface {
	Ping(ctx context.Context) error
	// Migrate creates the services and routes tables if they do not exist.
	Migrate(ctx context.Context) error
	// Validate checks that both tables exist with the expected columns.
	Validate(ctx context.Context) error
	GetRepo() relaygate.ServiceRepo
	Close() error
}

// Config holds the configuration for connecting to a descriptor store.
type Config struct {
	// Type specifies the database type: "sqlite" or "postgres"
	Type string `mapstructure:"type"`
	// DSN is the data source name (connection string)
	DSN    string           `mapstructure:"dsn"`
	Tables relaygate.Tables `mapstructure:"tables"`
	// AutoMigrate creates missing tables on Open.
	AutoMigrate bool `mapstructure:"auto_migrate"`
}

// Connect returns a Database for the configured backend without touching the
// schema.
func Connect(ctx context.Context, cfg Config) (Database, error) {
	if err := cfg.Tables.Validate(); err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	switch cfg.Type {
	case "sqlite":
		db, err := sqlite.Connect(ctx, cfg.DSN, cfg.Tables)
		if err != nil {
			return nil, err
		}
		return db, nil
	case "postgres":
		db, err := postgres.Connect(ctx, cfg.DSN, cfg.Tables)
		if err != nil {
			return nil, err
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unsupported database type: %q", cfg.Type)
	}
}

// Open connects, pings, migrates when cfg.AutoMigrate is set and validates the
// schema. The Database is closed again if any step fails.
func Open(ctx context.Context, cfg Config) (Database, error) {
	db, err := Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", cfg.Type, err)
	}

	if cfg.AutoMigrate {
		if err := db.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrate %s: %w", cfg.Type, err)
		}
	}

	if err := db.Validate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("validate %s schema: %w", cfg.Type, err)
	}

	return db, nil
}
