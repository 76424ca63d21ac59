package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var initCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a starter config file",
	Long: `Ask a few questions and write a starter config.yaml.

You will be prompted for:
  - Listen port
  - Registry source (file or database)
  - Descriptor file path or database settings
  - Whether to expose the route table endpoint`,
	Args: cobra.MaximumNArgs(1),
	// init must work before any config exists.
	PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
	RunE:              runInit,
}

var initForce bool

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "overwrite an existing file")
	rootCmd.AddCommand(initCmd)
}

// starterConfig mirrors the subset of config keys written by init.
type starterConfig struct {
	Server struct {
		Port         int  `yaml:"port"`
		ExposeRoutes bool `yaml:"expose_routes"`
	} `yaml:"server"`
	Registry struct {
		Source  string `yaml:"source"`
		Path    string `yaml:"path,omitempty"`
		EnvFile string `yaml:"env_file"`
	} `yaml:"registry"`
	Database *starterDatabase `yaml:"database,omitempty"`
	Log      struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

type starterDatabase struct {
	Type        string `yaml:"type"`
	DSN         string `yaml:"dsn"`
	AutoMigrate bool   `yaml:"auto_migrate"`
}

func runInit(_ *cobra.Command, args []string) error {
	path := "config.yaml"
	if len(args) > 0 {
		path = args[0]
	}

	if _, err := os.Stat(path); err == nil && !initForce {
		prompt := promptui.Prompt{
			Label:     fmt.Sprintf("%s already exists. Overwrite it", path),
			IsConfirm: true,
		}
		if _, promptErr := prompt.Run(); promptErr != nil {
			fmt.Println("Cancelled.")
			return nil //nolint:nilerr // User cancelled, not an error
		}
	}

	var sc starterConfig
	sc.Registry.EnvFile = ".env"
	sc.Log.Level = "info"

	portPrompt := promptui.Prompt{
		Label:   "Listen port",
		Default: "4000",
		Validate: func(input string) error {
			p, err := strconv.Atoi(input)
			if err != nil || p < 1 || p > 65535 {
				return errors.New("port must be a number between 1 and 65535")
			}
			return nil
		},
	}
	portVal, err := portPrompt.Run()
	if err != nil {
		return handlePromptError(err)
	}
	sc.Server.Port, _ = strconv.Atoi(portVal)

	sourceSelect := promptui.Select{
		Label: "Registry source",
		Items: []string{"file", "database"},
	}
	_, source, err := sourceSelect.Run()
	if err != nil {
		return handlePromptError(err)
	}
	sc.Registry.Source = source

	if source == "file" {
		filePrompt := promptui.Prompt{
			Label:   "Descriptor file",
			Default: "services.json",
		}
		sc.Registry.Path, err = filePrompt.Run()
		if err != nil {
			return handlePromptError(err)
		}
	} else {
		db, dbErr := promptDatabase()
		if dbErr != nil {
			return handlePromptError(dbErr)
		}
		sc.Database = db
	}

	exposePrompt := promptui.Prompt{
		Label:     "Expose the route table endpoint",
		IsConfirm: true,
	}
	if _, promptErr := exposePrompt.Run(); promptErr == nil {
		sc.Server.ExposeRoutes = true
	}

	data, err := yaml.Marshal(&sc)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	fmt.Printf("Config written to %s.\n", path)
	return nil
}

func promptDatabase() (*starterDatabase, error) {
	typeSelect := promptui.Select{
		Label: "Database type",
		Items: []string{"sqlite", "postgres"},
	}
	_, dbType, err := typeSelect.Run()
	if err != nil {
		return nil, err
	}

	defaultDSN := "relaygate.db"
	if dbType == "postgres" {
		defaultDSN = "postgres://localhost:5432/relaygate?sslmode=disable"
	}

	dsnPrompt := promptui.Prompt{
		Label:   "Connection string",
		Default: defaultDSN,
		Validate: func(input string) error {
			if input == "" {
				return errors.New("connection string is required")
			}
			return nil
		},
	}
	dsn, err := dsnPrompt.Run()
	if err != nil {
		return nil, err
	}

	return &starterDatabase{Type: dbType, DSN: dsn, AutoMigrate: true}, nil
}

// handlePromptError handles promptui errors.
func handlePromptError(err error) error {
	if errors.Is(err, promptui.ErrInterrupt) {
		fmt.Println("\nCancelled.")
		os.Exit(0)
	}
	if errors.Is(err, promptui.ErrAbort) {
		fmt.Println("Cancelled.")
		return nil
	}
	return err
}
