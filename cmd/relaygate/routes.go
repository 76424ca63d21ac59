package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/sagarc03/relaygate/config"
	relayhttp "github.com/sagarc03/relaygate/http"
)

var routesCmd = &cobra.Command{
	Use:   "routes",
	Short: "Print the route table",
	Long: `Load the service registry, build the route table and print it without
starting the gateway. Services and routes that were left out are listed with
the reason.`,
	RunE: runRoutes,
}

var routesJSON bool

func init() {
	routesCmd.Flags().BoolVar(&routesJSON, "json", false, "output as JSON")
	rootCmd.AddCommand(routesCmd)
}

func runRoutes(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return err
	}

	table, err := buildTable(cmd.Context(), cfg)
	if err != nil {
		return err
	}

	return NewFormatter(routesJSON).FormatRoutes(os.Stdout, relayhttp.DescribeTable(table))
}
