package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/sagarc03/relaygate"
	"github.com/sagarc03/relaygate/config"
	"github.com/sagarc03/relaygate/registry"
)

var servicesCmd = &cobra.Command{
	Use:   "services",
	Short: "Manage services stored in the database registry",
	Long: `Manage the service descriptors kept in the database used when
registry.source is "database".

Changes take effect the next time the gateway starts.`,
}

var servicesImportCmd = &cobra.Command{
	Use:   "import <file> [file2] ...",
	Short: "Import descriptors from JSON or YAML files",
	Long: `Validate the descriptors in each file and upsert them into the database.

A descriptor whose id already exists is replaced and keeps its position in
the registry; new descriptors are appended in file order. Nothing is written
when any descriptor fails validation.

Examples:
  # Import the file-based registry into sqlite
  relaygate services import services.json

  # Import into postgres
  relaygate --db-type postgres --db-dsn postgres://localhost/gateway services import services.yaml`,
	Args: cobra.MinimumNArgs(1),
	RunE: runServicesImport,
}

var servicesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored services in registration order",
	RunE:  runServicesList,
}

var servicesRemoveCmd = &cobra.Command{
	Use:     "remove <id> [id2] ...",
	Aliases: []string{"rm"},
	Short:   "Remove services by id",
	Args:    cobra.MinimumNArgs(1),
	RunE:    runServicesRemove,
}

var (
	servicesJSON  bool
	removeYes     bool
	removeMissing bool
)

func init() {
	servicesListCmd.Flags().BoolVar(&servicesJSON, "json", false, "output descriptors as JSON")
	servicesRemoveCmd.Flags().BoolVarP(&removeYes, "yes", "y", false, "do not ask for confirmation")
	servicesRemoveCmd.Flags().BoolVar(&removeMissing, "ignore-missing", false, "do not fail on unknown ids")

	servicesCmd.AddCommand(servicesImportCmd)
	servicesCmd.AddCommand(servicesListCmd)
	servicesCmd.AddCommand(servicesRemoveCmd)
	rootCmd.AddCommand(servicesCmd)
}

func runServicesImport(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	var descs []relaygate.ServiceDescriptor
	for _, path := range args {
		loaded, loadErr := registry.LoadFile(path)
		if loadErr != nil {
			return loadErr
		}
		descs = append(descs, loaded...)
	}

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	if err := registry.Import(ctx, db.GetRepo(), descs); err != nil {
		return err
	}

	for _, d := range descs {
		slog.Info("imported", "service", d.ID, "prefix", d.GatewayPrefix, "routes", len(d.Routes))
	}
	slog.Info("import complete", "services", len(descs))
	return nil
}

func runServicesList(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	descs, err := db.GetRepo().List(ctx)
	if err != nil {
		return fmt.Errorf("list services: %w", err)
	}

	return NewFormatter(servicesJSON).FormatServices(os.Stdout, descs)
}

func runServicesRemove(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	if !removeYes {
		prompt := promptui.Prompt{
			Label:     fmt.Sprintf("Remove %d service(s)", len(args)),
			IsConfirm: true,
		}
		if _, promptErr := prompt.Run(); promptErr != nil {
			fmt.Println("Cancelled.")
			return nil //nolint:nilerr // User cancelled, not an error
		}
	}

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	repo := db.GetRepo()
	removed := 0
	var missing []string

	for _, id := range args {
		if err := repo.Delete(ctx, id); err != nil {
			if errors.Is(err, relaygate.ErrNotFound) {
				missing = append(missing, id)
				slog.Warn("service not found", "service", id)
				continue
			}
			return fmt.Errorf("remove %s: %w", id, err)
		}
		removed++
		slog.Info("removed", "service", id)
	}

	slog.Info("remove complete", "removed", removed, "missing", len(missing))
	if len(missing) > 0 && !removeMissing {
		return fmt.Errorf("%d service(s) not found: %w", len(missing), relaygate.ErrNotFound)
	}
	return nil
}
