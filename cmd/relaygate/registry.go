package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sagarc03/relaygate"
	"github.com/sagarc03/relaygate/config"
	"github.com/sagarc03/relaygate/database"
	"github.com/sagarc03/relaygate/registry"
)

// openDatabase opens the configured descriptor store.
func openDatabase(ctx context.Context, cfg *config.Config) (database.Database, error) {
	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	slog.Debug("connected to database", "type", cfg.Database.Type)
	return db, nil
}

// loadDescriptors reads the registry from the configured source. The returned
// close function releases the database when one was opened.
func loadDescriptors(ctx context.Context, cfg *config.Config) ([]relaygate.ServiceDescriptor, func(), error) {
	var loader registry.Loader
	closeFn := func() {}

	switch cfg.Registry.Source {
	case config.SourceDatabase:
		db, err := openDatabase(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		closeFn = func() { _ = db.Close() }
		loader = registry.RepoLoader{Repo: db.GetRepo()}
	default:
		loader = registry.FileLoader{Path: cfg.Registry.Path}
	}

	descs, err := loader.Load(ctx)
	if err != nil {
		closeFn()
		return nil, nil, fmt.Errorf("load registry: %w", err)
	}

	slog.Info("registry loaded", "source", cfg.Registry.Source, "services", len(descs))
	return descs, closeFn, nil
}

// buildTable loads the registry and builds the route table from it.
func buildTable(ctx context.Context, cfg *config.Config) (*relaygate.RouteTable, error) {
	descs, closeFn, err := loadDescriptors(ctx, cfg)
	if err != nil {
		return nil, err
	}
	closeFn()

	lookup, err := relaygate.HostLookup(cfg.Registry.EnvFile)
	if err != nil {
		return nil, fmt.Errorf("host lookup: %w", err)
	}

	return relaygate.NewBuilder(lookup, slog.Default()).Build(descs), nil
}
