// Package postgres implements relaygate.ServiceRepo using PostgreSQL
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sagarc03/relaygate"
)

// Tables is an alias for relaygate.Tables for package compatibility.
type Tables = relaygate.Tables

type Repo struct {
	pool   *pgxpool.Pool
	tables Tables
}

func NewRepo(pool *pgxpool.Pool, tables Tables) (*Repo, error) {
	if err := tables.Validate(); err != nil {
		return nil, fmt.Errorf("new repo: %w", err)
	}

	return &Repo{pool: pool, tables: tables}, nil
}

// Ping verifies database connectivity
func (r *Repo) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *Repo) List(ctx context.Context) ([]relaygate.ServiceDescriptor, error) {
	query := fmt.Sprintf(`
		SELECT id, gateway_prefix, host_var, base_path, connect_ms, read_ms
		FROM %s
		ORDER BY position, id
	`, pgx.Identifier{r.tables.Services}.Sanitize())

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list: %w", err)
	}
	descs, err := pgx.CollectRows(rows, scanService)
	if err != nil {
		return nil, fmt.Errorf("list: %w", err)
	}

	index := make(map[string]int, len(descs))
	for i, d := range descs {
		index[d.ID] = i
	}

	routesQuery := fmt.Sprintf(`
		SELECT service_id, route, methods, auth_required
		FROM %s
		ORDER BY service_id, position
	`, pgx.Identifier{r.tables.Routes}.Sanitize())

	routeRows, err := r.pool.Query(ctx, routesQuery)
	if err != nil {
		return nil, fmt.Errorf("list routes: %w", err)
	}
	defer routeRows.Close()

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

func (r *Repo) Get(ctx context.Context, id string) (relaygate.ServiceDescriptor, error) {
	query := fmt.Sprintf(`
		SELECT id, gateway_prefix, host_var, base_path, connect_ms, read_ms
		FROM %s
		WHERE id = $1
	`, pgx.Identifier{r.tables.Services}.Sanitize())

	rows, err := r.pool.Query(ctx, query, id)
	if err != nil {
		return relaygate.ServiceDescriptor{}, fmt.Errorf("get: %w", err)
	}
	d, err := pgx.CollectExactlyOneRow(rows, scanService)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return relaygate.ServiceDescriptor{}, fmt.Errorf("get %s: %w", id, relaygate.ErrNotFound)
		}
		return relaygate.ServiceDescriptor{}, fmt.Errorf("get: %w", err)
	}

	routesQuery := fmt.Sprintf(`
		SELECT service_id, route, methods, auth_required
		FROM %s
		WHERE service_id = $1
		ORDER BY position
	`, pgx.Identifier{r.tables.Routes}.Sanitize())

	routeRows, err := r.pool.Query(ctx, routesQuery, id)
	if err != nil {
		return relaygate.ServiceDescriptor{}, fmt.Errorf("get routes: %w", err)
	}
	defer routeRows.Close()

	for routeRows.Next() {
		_, route, err := scanRoute(routeRows)
		if err != nil {
			return relaygate.ServiceDescriptor{}, fmt.Errorf("get routes: %w", err)
		}
		d.Routes = append(d.Routes, route)
	}
	if err := routeRows.Err(); err != nil {
		return relaygate.ServiceDescriptor{}, fmt.Errorf("get routes: rows: %w", err)
	}

	return d, nil
}

func (r *Repo) Upsert(ctx context.Context, desc relaygate.ServiceDescriptor) error {
	services := pgx.Identifier{r.tables.Services}.Sanitize()

	upsertQuery := fmt.Sprintf(`
		INSERT INTO %s (id, position, gateway_prefix, host_var, base_path, connect_ms, read_ms)
		VALUES ($1, (SELECT COALESCE(MAX(position), -1) + 1 FROM %s), $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE
		SET gateway_prefix = EXCLUDED.gateway_prefix,
			host_var = EXCLUDED.host_var,
			base_path = EXCLUDED.base_path,
			connect_ms = EXCLUDED.connect_ms,
			read_ms = EXCLUDED.read_ms,
			updated_at = NOW()
	`, services, services)

	deleteRoutes := fmt.Sprintf(`DELETE FROM %s WHERE service_id = $1`, pgx.Identifier{r.tables.Routes}.Sanitize())

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, upsertQuery, desc.ID, desc.GatewayPrefix,
			desc.TargetService.HostVar, desc.TargetService.BasePath,
			desc.Timeouts.ConnectMS, desc.Timeouts.ReadMS); err != nil {
			return fmt.Errorf("service: %w", err)
		}

		if _, err := tx.Exec(ctx, deleteRoutes, desc.ID); err != nil {
			return fmt.Errorf("clear routes: %w", err)
		}

		rows := make([][]any, 0, len(desc.Routes))
		for i, route := range desc.Routes {
			methods := route.Methods
			if methods == nil {
				methods = []string{}
			}
			rows = append(rows, []any{desc.ID, i, route.Route, methods, route.AuthRequired})
		}

		if _, err := tx.CopyFrom(ctx,
			pgx.Identifier{r.tables.Routes},
			[]string{"service_id", "position", "route", "methods", "auth_required"},
			pgx.CopyFromRows(rows),
		); err != nil {
			return fmt.Errorf("insert routes: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("upsert: %w", err)
	}
	return nil
}

func (r *Repo) Delete(ctx context.Context, id string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, pgx.Identifier{r.tables.Services}.Sanitize())

	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("delete %s: %w", id, relaygate.ErrNotFound)
	}

	return nil
}

func scanService(row pgx.CollectableRow) (relaygate.ServiceDescriptor, error) {
	var d relaygate.ServiceDescriptor
	err := row.Scan(&d.ID, &d.GatewayPrefix, &d.TargetService.HostVar, &d.TargetService.BasePath,
		&d.Timeouts.ConnectMS, &d.Timeouts.ReadMS)
	return d, err
}

func scanRoute(rows pgx.Rows) (string, relaygate.RouteSpec, error) {
	var serviceID string
	var route relaygate.RouteSpec

	if err := rows.Scan(&serviceID, &route.Route, &route.Methods, &route.AuthRequired); err != nil {
		return "", relaygate.RouteSpec{}, fmt.Errorf("scan: %w", err)
	}
	return serviceID, route, nil
}
