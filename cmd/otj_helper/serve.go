package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/otj-helper/internal/config"
	"github.com/jonathan/otj-helper/internal/events"
	"github.com/jonathan/otj-helper/internal/recurrence"
	"github.com/jonathan/otj-helper/internal/server"
	"github.com/jonathan/otj-helper/internal/storage"
)

var (
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long:  `Start the HTTP server and the recurring activity generator. Migrations and KSB seeding run first.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (default $PORT or 8080)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := config.ValidateDeployEnv(cfg.DatabaseURL); err != nil {
		return err
	}
	if servePort > 0 {
		cfg.Port = strconv.Itoa(servePort)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.db.Close()

	log.Printf("Startup: db=%s oauth=%t dev_login=%t migrations(applied=%d skipped=%d version=%d) ksbs_seeded=%d",
		st.db.Dialect(), cfg.OAuthEnabled(), cfg.DevLoginEnabled(),
		st.migrations.Applied, st.migrations.Skipped, st.migrations.Version, st.seeded)

	files, err := storage.NewLocal(cfg.UploadDir)
	if err != nil {
		return fmt.Errorf("failed to prepare upload directory: %w", err)
	}
	broker := events.NewBroker()

	srv, err := server.New(cfg, server.Deps{
		DB:      st.db,
		Catalog: st.catalog,
		Broker:  broker,
		Files:   files,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx)
	})
	g.Go(func() error {
		return recurrence.NewGenerator(st.db, broker).Loop(gctx, cfg.RecurrenceInterval)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Printf("Shutdown complete")
	return nil
}
