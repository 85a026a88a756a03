package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/teslashibe/go-focus/internal/config"
	"github.com/teslashibe/go-focus/internal/log"
	"github.com/teslashibe/go-focus/pkg/session"
	"github.com/teslashibe/go-focus/pkg/web"
)

func newServeCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the focus session server.",
		Long: `Run the HTTP server.

Landmark providers stream frames to /ws/ingest/:session or POST them to
/api/sessions/:id/frames. Dashboards follow live scores on /ws/scores.

Examples:
  focusd serve --addr :8080 --store sqlite --store-path focusd.db
  FOCUSD_STORE=json FOCUSD_STORE_PATH=sessions.json focusd serve`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}

	f := cmd.Flags()
	f.String("addr", config.DefaultAddr, "listen address")
	f.String("store", config.DefaultBackend, "session store: json or sqlite")
	f.String("store-path", config.DefaultStorePath, "session store file")
	f.Bool("debug", false, "log every request")
	bindFlags(v, f, "addr", "store", "store-path", "debug")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := cfg.OpenStore()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warn("failed to close store", "error", err)
		}
	}()

	manager, err := session.NewManager(store, cfg.ManagerOptions())
	if err != nil {
		return err
	}

	server := web.NewServer(web.Options{Addr: cfg.Addr, Debug: cfg.Debug}, manager)
	log.Info("starting focusd",
		"version", web.Version,
		"store", cfg.Store,
		"path", cfg.StorePath,
		"preset", cfg.Preset,
		"report_interval", cfg.ReportInterval)

	if err := server.Start(ctx); err != nil {
		return err
	}
	log.Info("focusd stopped")
	return nil
}
