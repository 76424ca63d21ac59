package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sagarc03/relaygate"
)

type TableMigration struct {
	TableName string
	Up        func(ctx context.Context, pool *pgxpool.Pool) error
	Down      func(ctx context.Context, pool *pgxpool.Pool) error
}

// getTableMigrations returns the migrations in creation order.
func getTableMigrations(tables relaygate.Tables) []TableMigration {
	return []TableMigration{
		{
			TableName: tables.Services,
			Up:        createServicesTable(tables.Services),
			Down:      dropTable(tables.Services),
		},
		{
			TableName: tables.Routes,
			Up:        createRoutesTable(tables.Routes, tables.Services),
			Down:      dropTable(tables.Routes),
		},
	}
}

func Migrate(ctx context.Context, pool *pgxpool.Pool, tables relaygate.Tables) error {
	for _, migration := range getTableMigrations(tables) {
		if err := migration.Up(ctx, pool); err != nil {
			return fmt.Errorf("migrate up %s: %w", migration.TableName, err)
		}
	}
	return nil
}

func DropTables(ctx context.Context, pool *pgxpool.Pool, tables relaygate.Tables) error {
	migrations := getTableMigrations(tables)

	for i := len(migrations) - 1; i >= 0; i-- {
		migration := migrations[i]
		if err := migration.Down(ctx, pool); err != nil {
			return fmt.Errorf("migrate down %s: %w", migration.TableName, err)
		}
	}

	return nil
}

func createServicesTable(tableName string) func(context.Context, *pgxpool.Pool) error {
	return func(ctx context.Context, pool *pgxpool.Pool) error {
		quotedTable := pgx.Identifier{tableName}.Sanitize()
		indexPosition := pgx.Identifier{fmt.Sprintf("idx_%s_position", tableName)}.Sanitize()

		sql := fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id TEXT PRIMARY KEY,
				position INTEGER NOT NULL,
				gateway_prefix TEXT NOT NULL,
				host_var TEXT NOT NULL,
				base_path TEXT NOT NULL DEFAULT '',
				connect_ms INTEGER NOT NULL DEFAULT 0,
				read_ms INTEGER NOT NULL DEFAULT 0,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);

			CREATE INDEX IF NOT EXISTS %s ON %s (position);
		`, quotedTable, indexPosition, quotedTable)

		if _, err := pool.Exec(ctx, sql); err != nil {
			return fmt.Errorf("create services table: %w", err)
		}
		return nil
	}
}

func createRoutesTable(tableName, servicesTable string) func(context.Context, *pgxpool.Pool) error {
	return func(ctx context.Context, pool *pgxpool.Pool) error {
		sql := fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				service_id TEXT NOT NULL REFERENCES %s (id) ON DELETE CASCADE,
				position INTEGER NOT NULL,
				route TEXT NOT NULL,
				methods TEXT[] NOT NULL,
				auth_required BOOLEAN NOT NULL DEFAULT FALSE,
				PRIMARY KEY (service_id, position)
			);
		`, pgx.Identifier{tableName}.Sanitize(), pgx.Identifier{servicesTable}.Sanitize())

		if _, err := pool.Exec(ctx, sql); err != nil {
			return fmt.Errorf("create routes table: %w", err)
		}
		return nil
	}
}

func dropTable(tableName string) func(context.Context, *pgxpool.Pool) error {
	return func(ctx context.Context, pool *pgxpool.Pool) error {
		sql := fmt.Sprintf("DROP TABLE IF EXISTS %s CASCADE", pgx.Identifier{tableName}.Sanitize())
		_, err := pool.Exec(ctx, sql)
		return err
	}
}

type columnInfo struct {
	name       string
	dataType   string
	isNullable bool
}

var servicesTableSchema = map[string]columnInfo{
	"id":             {"id", "text", false},
	"position":       {"position", "integer", false},
	"gateway_prefix": {"gateway_prefix", "text", false},
	"host_var":       {"host_var", "text", false},
	"base_path":      {"base_path", "text", false},
	"connect_ms":     {"connect_ms", "integer", false},
	"read_ms":        {"read_ms", "integer", false},
	"created_at":     {"created_at", "timestamp with time zone", false},
	"updated_at":     {"updated_at", "timestamp with time zone", false},
}

var routesTableSchema = map[string]columnInfo{
	"service_id":    {"service_id", "text", false},
	"position":      {"position", "integer", false},
	"route":         {"route", "text", false},
	"methods":       {"methods", "array", false},
	"auth_required": {"auth_required", "boolean", false},
}

type tableValidation struct {
	tableName      string
	expectedSchema map[string]columnInfo
}

func getTableValidations(tables relaygate.Tables) []tableValidation {
	return []tableValidation{
		{tableName: tables.Services, expectedSchema: servicesTableSchema},
		{tableName: tables.Routes, expectedSchema: routesTableSchema},
	}
}

func ValidateSchema(ctx context.Context, pool *pgxpool.Pool, tables relaygate.Tables) error {
	for _, validation := range getTableValidations(tables) {
		if err := validateTableSchema(ctx, pool, validation.tableName, validation.expectedSchema); err != nil {
			return fmt.Errorf("validate schema %s: %w", validation.tableName, err)
		}
	}
	return nil
}

func validateTableSchema(ctx context.Context, pool *pgxpool.Pool, tableName string, expectedSchema map[string]columnInfo) error {
	if !relaygate.IsValidTableName(tableName) {
		return fmt.Errorf("validate table schema: invalid table name: %s", tableName)
	}

	exists, err := tableExists(ctx, pool, tableName)
	if err != nil {
		return fmt.Errorf("validate table schema: %w", err)
	}

	if !exists {
		return fmt.Errorf("validate table schema: table %s does not exist", tableName)
	}

	query := `
		SELECT column_name, data_type, is_nullable
		FROM information_schema.columns
		WHERE table_schema = 'public' AND table_name = $1
		ORDER BY ordinal_position
	`

	rows, err := pool.Query(ctx, query, tableName)
	if err != nil {
		return fmt.Errorf("validate table schema: query columns: %w", err)
	}
	defer rows.Close()

	actualColumns := make(map[string]columnInfo)
	for rows.Next() {
		var name, dataType, nullable string
		if err := rows.Scan(&name, &dataType, &nullable); err != nil {
			return fmt.Errorf("validate table schema: scan column: %w", err)
		}
		actualColumns[name] = columnInfo{
			name:       name,
			dataType:   strings.ToLower(dataType),
			isNullable: nullable == "YES",
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("validate table schema: rows error: %w", err)
	}

	var missingColumns []string
	var mismatchedColumns []string

	for colName, expected := range expectedSchema {
		actual, exists := actualColumns[colName]
		if !exists {
			missingColumns = append(missingColumns, colName)
			continue
		}

		if actual.dataType != expected.dataType {
			mismatchedColumns = append(mismatchedColumns,
				fmt.Sprintf("%s: expected %s, got %s", colName, expected.dataType, actual.dataType))
		}

		if actual.isNullable != expected.isNullable {
			mismatchedColumns = append(mismatchedColumns,
				fmt.Sprintf("%s: expected nullable=%v, got nullable=%v", colName, expected.isNullable, actual.isNullable))
		}
	}

	if len(missingColumns) > 0 || len(mismatchedColumns) > 0 {
		var errMsg strings.Builder
		fmt.Fprintf(&errMsg, "table %s schema validation failed:\n", tableName)

		if len(missingColumns) > 0 {
			fmt.Fprintf(&errMsg, "  missing columns: %s\n", strings.Join(missingColumns, ", "))
		}

		if len(mismatchedColumns) > 0 {
			fmt.Fprintf(&errMsg, "  mismatched columns:\n")
			for _, msg := range mismatchedColumns {
				fmt.Fprintf(&errMsg, "    - %s\n", msg)
			}
		}

		return errors.New(errMsg.String())
	}

	return nil
}

func tableExists(ctx context.Context, pool *pgxpool.Pool, tableName string) (bool, error) {
	var exists bool
	query := `
		SELECT EXISTS (
			SELECT 1
			FROM information_schema.tables
			WHERE table_schema = 'public'
			AND table_name = $1
		)
	`
	err := pool.QueryRow(ctx, query, tableName).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check table exists: %w", err)
	}
	return exists, nil
}
