package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sagarc03/relaygate/config"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Version: version,
	Use:     "relaygate",
	Short:   "API gateway driven by a declarative service registry",
	Long: `relaygate accepts HTTP requests, matches them against the routes of a
service registry and proxies each one to the owning upstream service.

Services are described in a JSON or YAML file, or stored in a database and
managed with 'relaygate services'.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var configFiles []string
		if f, _ := cmd.Flags().GetString("config"); f != "" {
			configFiles = []string{f}
		}

		cfg, err := config.Load(configFiles, cmd.Flags())
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		setupLogging(cfg)
		cmd.SetContext(config.WithContext(cmd.Context(), cfg))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: ./config.yaml)")
	rootCmd.PersistentFlags().String("services", "", "service descriptor file (default: services.json, env: RELAYGATE_REGISTRY_PATH)")
	rootCmd.PersistentFlags().String("source", "", "descriptor source: file, database (default: file, env: RELAYGATE_REGISTRY_SOURCE)")
	rootCmd.PersistentFlags().String("env-file", "", "dotenv file with host variables (default: .env, env: RELAYGATE_REGISTRY_ENV_FILE)")
	rootCmd.PersistentFlags().String("db-type", "", "database type: sqlite, postgres (default: sqlite, env: RELAYGATE_DATABASE_TYPE)")
	rootCmd.PersistentFlags().String("db-dsn", "", "database connection string (default: relaygate.db, env: RELAYGATE_DATABASE_DSN)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error (env: RELAYGATE_LOG_LEVEL)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
