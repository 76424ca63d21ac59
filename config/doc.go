// Package config provides configuration loading and validation for relaygate.
//
// The package handles YAML configuration files, environment variables, and CLI flags
// with automatic merging and validation using go-playground/validator.
//
// # Configuration Precedence
//
// Values are loaded in this order (later sources override earlier ones):
//
//  1. Default values
//  2. Configuration file(s) - multiple files merged left-to-right
//  3. Environment variables (RELAYGATE_ prefix, plus PORT for server.port)
//  4. CLI flags
//
// # Usage
//
//	cfg, err := config.Load([]string{"config.yaml"}, cmd.Flags())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Store in context for subcommands
//	ctx = config.WithContext(ctx, cfg)
//
//	// Retrieve later
//	cfg, err = config.FromContext(ctx)
//
// # Environment Variables
//
// All config keys map to environment variables with RELAYGATE_ prefix:
//   - server.port → RELAYGATE_SERVER_PORT (or PORT)
//   - registry.path → RELAYGATE_REGISTRY_PATH
//   - database.dsn → RELAYGATE_DATABASE_DSN
//
// # Configuration Structure
//
// The Config struct contains:
//   - Server: port, body size limit, timeouts and the routes endpoint switch
//   - Registry: descriptor source (file or database), file path and .env file
//   - Database: type, DSN, table names and auto_migrate
//   - Upstream: TLS verification and connection pooling towards services
//   - Auth: optional static bearer tokens
//   - CORS, SecurityHeaders, Metrics and Log
//
// # Validation
//
// Configuration is validated using struct tags:
//   - Port must be 1-65535
//   - Registry source must be file or database
//   - Log level must be debug, info, warn, or error
//
// A database registry additionally requires a DSN and valid table names.
package config
