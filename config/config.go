package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/sagarc03/relaygate/database"
	relayhttp "github.com/sagarc03/relaygate/http"
	"github.com/sagarc03/relaygate/keybackend"
)

const (
	SourceFile     = "file"
	SourceDatabase = "database"
)

// configKey is the context key for storing the loaded configuration.
type configKey struct{}

// WithContext returns a new context with the config stored.
func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// FromContext retrieves the config from context.
// Returns an error if config is not found.
func FromContext(ctx context.Context) (*Config, error) {
	cfg, ok := ctx.Value(configKey{}).(*Config)
	if !ok || cfg == nil {
		return nil, errors.New("config not found in context")
	}
	return cfg, nil
}

// Config is the root configuration struct for relaygate.
type Config struct {
	Env             string                   `mapstructure:"env"`
	Server          ServerConfig             `mapstructure:"server"`
	Registry        RegistryConfig           `mapstructure:"registry"`
	Database        database.Config          `mapstructure:"database"`
	Upstream        relayhttp.UpstreamConfig `mapstructure:"upstream"`
	Auth            AuthConfig               `mapstructure:"auth"`
	CORS            relayhttp.CORSConfig     `mapstructure:"cors"`
	SecurityHeaders bool                     `mapstructure:"security_headers"`
	Metrics         MetricsConfig            `mapstructure:"metrics"`
	Log             LogConfig                `mapstructure:"log"`
}

// ServerConfig holds HTTP server configuration. Timeouts are in seconds.
type ServerConfig struct {
	Port            int   `mapstructure:"port" validate:"required,min=1,max=65535"`
	MaxBodySize     int64 `mapstructure:"max_body_size" validate:"min=0"`
	ReadTimeout     int   `mapstructure:"read_timeout" validate:"min=0"`
	WriteTimeout    int   `mapstructure:"write_timeout" validate:"min=0"`
	IdleTimeout     int   `mapstructure:"idle_timeout" validate:"min=0"`
	ShutdownTimeout int   `mapstructure:"shutdown_timeout" validate:"min=1"`
	ExposeRoutes    bool  `mapstructure:"expose_routes"`
}

// RegistryConfig selects where service descriptors are loaded from.
type RegistryConfig struct {
	Source string `mapstructure:"source" validate:"required,oneof=file database"`
	// Path is the JSON or YAML descriptor file used when Source is "file".
	Path string `mapstructure:"path" validate:"required_if=Source file"`
	// EnvFile supplies host variables missing from the process environment.
	EnvFile string `mapstructure:"env_file"`
}

// AuthConfig holds bearer token verification settings. With no keys
// configured, gated routes only check that a bearer token is present.
type AuthConfig struct {
	Keys keybackend.KeysConfig `mapstructure:"keys"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path" validate:"omitempty,startswith=/"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"omitempty,oneof=text json"`
}

// flagToViperKey maps CLI flag names to viper configuration keys.
var flagToViperKey = map[string]string{
	"db-type":       "database.type",
	"db-dsn":        "database.dsn",
	"port":          "server.port",
	"services":      "registry.path",
	"source":        "registry.source",
	"env-file":      "registry.env_file",
	"expose-routes": "server.expose_routes",
	"log-level":     "log.level",
}

// bindFlags binds CLI flags to viper keys with custom name mapping.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) {
	flags.VisitAll(func(f *pflag.Flag) {
		// Use custom mapping if it exists, otherwise use flag name as-is
		viperKey := f.Name
		if mapped, ok := flagToViperKey[viperKey]; ok {
			viperKey = mapped
		}

		// Only bind if the flag was explicitly set
		if f.Changed {
			_ = v.BindPFlag(viperKey, f)
		}
	})
}

// setDefaults configures default values on the viper instance.
func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "development")

	v.SetDefault("server.port", 4000)
	v.SetDefault("server.max_body_size", 10<<20)
	v.SetDefault("server.read_timeout", 30)
	v.SetDefault("server.write_timeout", 0) // 0 disables
	v.SetDefault("server.idle_timeout", 120)
	v.SetDefault("server.shutdown_timeout", 30)
	v.SetDefault("server.expose_routes", false)

	v.SetDefault("registry.source", SourceFile)
	v.SetDefault("registry.path", "services.json")
	v.SetDefault("registry.env_file", ".env")

	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.dsn", "relaygate.db")
	v.SetDefault("database.tables.services", "gateway_services")
	v.SetDefault("database.tables.routes", "gateway_routes")
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("upstream.insecure_skip_verify", false)
	v.SetDefault("upstream.max_idle_conns_per_host", 32)
	v.SetDefault("upstream.idle_conn_timeout", 90)

	v.SetDefault("auth.keys.file", "")

	v.SetDefault("cors.enabled", true)
	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "HEAD", "PUT", "PATCH", "POST", "DELETE"})
	v.SetDefault("cors.allowed_headers", []string{"*"})
	v.SetDefault("cors.exposed_headers", []string{relayhttp.RequestIDHeader})
	v.SetDefault("cors.allow_credentials", false)
	v.SetDefault("cors.max_age", 0)

	v.SetDefault("security_headers", true)

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "")
}

// Load reads configuration and returns a validated Config struct.
// Order of precedence (highest to lowest): flags > env > config files > defaults
//
// Parameters:
//   - configFiles: list of config file paths (later files override earlier ones)
//   - flags: cobra flag set for flag binding (can be nil)
func Load(configFiles []string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	// 1. Set defaults
	setDefaults(v)

	// 2. Read config files
	if len(configFiles) > 0 {
		v.SetConfigFile(configFiles[0])
		if err := v.ReadInConfig(); err != nil {
			slog.Warn("error reading config file", "file", configFiles[0], "err", err)
		}

		for _, cf := range configFiles[1:] {
			v.SetConfigFile(cf)
			if err := v.MergeInConfig(); err != nil {
				slog.Warn("error merging config file", "file", cf, "err", err)
			}
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")

		if err := v.ReadInConfig(); err != nil {
			var configNotFound viper.ConfigFileNotFoundError
			if !errors.As(err, &configNotFound) {
				slog.Warn("error reading config file", "err", err)
			}
		}
	}

	// 3. Bind environment variables
	v.SetEnvPrefix("RELAYGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// The bare PORT variable set by most hosting platforms.
	_ = v.BindEnv("server.port", "RELAYGATE_SERVER_PORT", "PORT")

	// 4. Bind flags (if provided)
	if flags != nil {
		bindFlags(v, flags)
	}

	// 5. Unmarshal into Config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// 6. Validate using go-playground/validator
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks struct tags and the rules that span sections.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	if c.Registry.Source == SourceDatabase {
		if c.Database.DSN == "" {
			return errors.New("validate config: database.dsn is required when registry.source is database")
		}
		if err := c.Database.Tables.Validate(); err != nil {
			return fmt.Errorf("validate config: %w", err)
		}
	}

	if c.Metrics.Enabled && c.Metrics.Path == "" {
		return errors.New("validate config: metrics.path is required when metrics are enabled")
	}

	return nil
}

// IsProduction reports whether env names a production deployment.
func (c *Config) IsProduction() bool {
	return c.Env == "prod" || c.Env == "production"
}

// HandlerConfig returns the gateway handler settings derived from c. The
// caller supplies the runtime pieces: verifier, metrics and logger.
func (c *Config) HandlerConfig() relayhttp.HandlerConfig {
	cfg := relayhttp.HandlerConfig{
		CORS:            c.CORS,
		SecurityHeaders: c.SecurityHeaders,
		MaxBodySize:     c.Server.MaxBodySize,
		Upstream:        c.Upstream,
		ExposeRoutes:    c.Server.ExposeRoutes,
	}
	if c.Metrics.Enabled {
		cfg.MetricsPath = c.Metrics.Path
	}
	return cfg
}
