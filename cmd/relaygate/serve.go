package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/sagarc03/relaygate/config"
	relayhttp "github.com/sagarc03/relaygate/http"
	"github.com/sagarc03/relaygate/keybackend"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gateway",
	Long: `Load the service registry, build the route table and start proxying.

The route table is built once at startup; restart the gateway to pick up
registry changes.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().Int("port", 4000, "HTTP server port (env: PORT, RELAYGATE_SERVER_PORT)")
	serveCmd.Flags().Bool("expose-routes", false, "serve the route table at "+relayhttp.RoutesPath)

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	table, err := buildTable(ctx, cfg)
	if err != nil {
		return err
	}

	handlerConfig := cfg.HandlerConfig()
	handlerConfig.Logger = slog.Default()

	if cfg.Auth.Keys.Enabled() {
		store, err := keybackend.NewTokenStore(cfg.Auth.Keys)
		if err != nil {
			return fmt.Errorf("load bearer tokens: %w", err)
		}
		handlerConfig.Verifier = store
		slog.Info("bearer token verification enabled", "keys", store.Len())
	}

	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		handlerConfig.Metrics = relayhttp.NewMetrics(reg)
	}

	handler := relayhttp.NewHandler(&handlerConfig, table)
	defer handler.Close()

	addr := fmt.Sprintf(":%d", cfg.Server.Port)

	server := &http.Server{
		Addr:              addr,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout:      time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:       time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

		select {
		case <-sigCh:
		case <-ctx.Done():
		}

		slog.Info("shutting down server...")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(),
			time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "err", err)
		}
	}()

	slog.Info("starting gateway", "addr", addr, "routes", table.Len())
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}
