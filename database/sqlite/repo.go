// Package sqlite implements relaygate.ServiceRepo using SQLite
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sagarc03/relaygate"
)

type repo struct {
	db     *sql.DB
	tables relaygate.Tables
}

// NewRepo returns a ServiceRepo over db. The tables must already exist.
func NewRepo(db *sql.DB, tables relaygate.Tables) (relaygate.ServiceRepo, error) {
	if err := tables.Validate(); err != nil {
		return nil, fmt.Errorf("new repo: %w", err)
	}
	return &repo{db: db, tables: tables}, nil
}

func (r *repo) List(ctx context.Context) ([]relaygate.ServiceDescriptor, error) {
	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`SELECT id, gateway_prefix, host_var, base_path, connect_ms, read_ms
		FROM %s
		ORDER BY position, id`, quoteIdentifier(r.tables.Services))

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list: %w", err)
	}

	var descs []relaygate.ServiceDescriptor
	index := make(map[string]int)
	for rows.Next() {
		var d relaygate.ServiceDescriptor
		if err := rows.Scan(&d.ID, &d.GatewayPrefix, &d.TargetService.HostVar, &d.TargetService.BasePath,
			&d.Timeouts.ConnectMS, &d.Timeouts.ReadMS); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("list: scan: %w", err)
		}
		index[d.ID] = len(descs)
		descs = append(descs, d)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("list: rows: %w", err)
	}
	_ = rows.Close()

	routesQuery := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`SELECT service_id, route, methods, auth_required
		FROM %s
		ORDER BY service_id, position`, quoteIdentifier(r.tables.Routes))

	routeRows, err := r.db.QueryContext(ctx, routesQuery)
	if err != nil {
		return nil, fmt.Errorf("list routes: %w", err)
	}
	defer func() { _ = routeRows.Close() }()

	for routeRows.Next() {
		serviceID, route, err := scanRoute(routeRows)
		if err != nil {
			return nil, fmt.Errorf("list routes: %w", err)
		}
		if i, ok := index[serviceID]; ok {
			descs[i].Routes = append(descs[i].Routes, route)
		}
	}
	if err := routeRows.Err(); err != nil {
		return nil, fmt.Errorf("list routes: rows: %w", err)
	}

	return descs, nil
}

func (r *repo) Get(ctx context.Context, id string) (relaygate.ServiceDescriptor, error) {
	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`SELECT id, gateway_prefix, host_var, base_path, connect_ms, read_ms
		FROM %s
		WHERE id = ?`, quoteIdentifier(r.tables.Services))

	var d relaygate.ServiceDescriptor
	err := r.db.QueryRowContext(ctx, query, id).Scan(&d.ID, &d.GatewayPrefix,
		&d.TargetService.HostVar, &d.TargetService.BasePath, &d.Timeouts.ConnectMS, &d.Timeouts.ReadMS)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return relaygate.ServiceDescriptor{}, fmt.Errorf("get %s: %w", id, relaygate.ErrNotFound)
		}
		return relaygate.ServiceDescriptor{}, fmt.Errorf("get: %w", err)
	}

	routesQuery := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`SELECT service_id, route, methods, auth_required
		FROM %s
		WHERE service_id = ?
		ORDER BY position`, quoteIdentifier(r.tables.Routes))

	rows, err := r.db.QueryContext(ctx, routesQuery, id)
	if err != nil {
		return relaygate.ServiceDescriptor{}, fmt.Errorf("get routes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		_, route, err := scanRoute(rows)
		if err != nil {
			return relaygate.ServiceDescriptor{}, fmt.Errorf("get routes: %w", err)
		}
		d.Routes = append(d.Routes, route)
	}
	if err := rows.Err(); err != nil {
		return relaygate.ServiceDescriptor{}, fmt.Errorf("get routes: rows: %w", err)
	}

	return d, nil
}

func (r *repo) Upsert(ctx context.Context, desc relaygate.ServiceDescriptor) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("upsert: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	services := quoteIdentifier(r.tables.Services)
	routes := quoteIdentifier(r.tables.Routes)
	now := time.Now().UTC().Format(time.RFC3339Nano)

	upsertQuery := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`INSERT INTO %s (id, position, gateway_prefix, host_var, base_path, connect_ms, read_ms, created_at, updated_at)
		VALUES (?, (SELECT COALESCE(MAX(position), -1) + 1 FROM %s), ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE
		SET gateway_prefix = excluded.gateway_prefix,
			host_var = excluded.host_var,
			base_path = excluded.base_path,
			connect_ms = excluded.connect_ms,
			read_ms = excluded.read_ms,
			updated_at = excluded.updated_at`, services, services)

	_, err = tx.ExecContext(ctx, upsertQuery, desc.ID, desc.GatewayPrefix,
		desc.TargetService.HostVar, desc.TargetService.BasePath,
		desc.Timeouts.ConnectMS, desc.Timeouts.ReadMS, now, now)
	if err != nil {
		return fmt.Errorf("upsert: service: %w", err)
	}

	deleteRoutes := fmt.Sprintf(`DELETE FROM %s WHERE service_id = ?`, routes) //nolint:gosec // table name is validated
	if _, err := tx.ExecContext(ctx, deleteRoutes, desc.ID); err != nil {
		return fmt.Errorf("upsert: clear routes: %w", err)
	}

	insertRoute := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`INSERT INTO %s (service_id, position, route, methods, auth_required)
		VALUES (?, ?, ?, ?, ?)`, routes)

	for i, route := range desc.Routes {
		methods, err := json.Marshal(nonNil(route.Methods))
		if err != nil {
			return fmt.Errorf("upsert: encode methods: %w", err)
		}
		if _, err := tx.ExecContext(ctx, insertRoute, desc.ID, i, route.Route, string(methods), route.AuthRequired); err != nil {
			return fmt.Errorf("upsert: route %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("upsert: commit: %w", err)
	}
	return nil
}

func (r *repo) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("delete: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Foreign keys are off by default in SQLite, so routes go first.
	deleteRoutes := fmt.Sprintf(`DELETE FROM %s WHERE service_id = ?`, quoteIdentifier(r.tables.Routes)) //nolint:gosec // table name is validated
	if _, err := tx.ExecContext(ctx, deleteRoutes, id); err != nil {
		return fmt.Errorf("delete: routes: %w", err)
	}

	deleteService := fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, quoteIdentifier(r.tables.Services)) //nolint:gosec // table name is validated
	result, err := tx.ExecContext(ctx, deleteService, id)
	if err != nil {
		return fmt.Errorf("delete: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete: rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("delete %s: %w", id, relaygate.ErrNotFound)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("delete: commit: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRoute(rows rowScanner) (string, relaygate.RouteSpec, error) {
	var serviceID, methods string
	var route relaygate.RouteSpec

	if err := rows.Scan(&serviceID, &route.Route, &methods, &route.AuthRequired); err != nil {
		return "", relaygate.RouteSpec{}, fmt.Errorf("scan: %w", err)
	}
	if err := json.Unmarshal([]byte(methods), &route.Methods); err != nil {
		return "", relaygate.RouteSpec{}, fmt.Errorf("decode methods: %w", err)
	}
	return serviceID, route, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
