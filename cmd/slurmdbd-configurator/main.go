// Command slurmdbd-configurator renders the slurmdbd configuration outside a
// Juju model: credentials are read from a YAML relation file that is watched
// for changes, and a small status API is served.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/juju/clock"

	"github.com/ericfisherdev/slurmdbd-charm/internal/adapter/driven/host"
	"github.com/ericfisherdev/slurmdbd-charm/internal/adapter/driven/relationfile"
	"github.com/ericfisherdev/slurmdbd-charm/internal/adapter/driven/render"
	sqliteadapter "github.com/ericfisherdev/slurmdbd-charm/internal/adapter/driven/sqlite"
	httphandler "github.com/ericfisherdev/slurmdbd-charm/internal/adapter/driving/http"
	"github.com/ericfisherdev/slurmdbd-charm/internal/application"
	"github.com/ericfisherdev/slurmdbd-charm/internal/config"
	"github.com/ericfisherdev/slurmdbd-charm/internal/domain/model"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration (fail fast on invalid env vars).
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel})))

	// A blocking poll would hold the controller lock and stall the API, so
	// the daemon always parks in awaiting-credentials instead.
	if cfg.WaitMode != model.WaitDeferred {
		slog.Warn("configured wait mode ignored; daemon uses deferred",
			"configured", cfg.WaitMode,
			"ignored_poll_timeout", cfg.PollTimeout,
		)
	}

	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"state_path", cfg.StatePath,
		"relation_file", cfg.RelationFile,
		"db_unit", cfg.DBUnit,
		"resync_interval", cfg.ResyncInterval,
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open database (dual reader/writer with WAL mode).
	db, err := sqliteadapter.NewDB(ctx, cfg.StatePath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()
	slog.Info("database opened", "path", db.Path())

	// 4. Run migrations on writer connection.
	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		return err
	}
	slog.Info("migrations complete")

	// 5. Wire adapters.
	store, err := sqliteadapter.NewStateRepo(db, cfg.SecretKey)
	if err != nil {
		return err
	}
	view := relationfile.NewView(cfg.RelationFile)
	if units, err := view.Units(ctx); err != nil {
		slog.Warn("relation file unreadable", "path", view.Path(), "error", err)
	} else {
		slog.Info("relation file loaded", "path", view.Path(), "units", units)
	}

	watcher, err := relationfile.NewWatcher(cfg.RelationFile, slog.Default())
	if err != nil {
		return err
	}

	// Only Peek is used in deferred mode; the poll settings are inert here.
	reader := application.NewRelationReader(view, clock.WallClock, cfg.PollInterval, 0, slog.Default())
	controller := application.NewController(
		application.ControllerConfig{
			TemplatePath:  cfg.TemplatePath,
			TargetPath:    cfg.TargetPath,
			WaitMode:      model.WaitDeferred,
			PersistPolicy: cfg.PersistPolicy,
		},
		reader,
		store,
		render.NewRenderer(render.WithYAMLQuoting()),
		host.NewSystem(),
		clock.WallClock,
		slog.Default(),
	)
	if err := controller.Restore(ctx); err != nil {
		return err
	}

	// 6. Start the watcher and the sync service.
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		watcher.Run(ctx)
	}()

	syncSvc := application.NewSyncService(controller, cfg.RelationName, cfg.DBUnit, watcher.Changes(), cfg.ResyncInterval, clock.WallClock)
	go func() {
		defer wg.Done()
		syncSvc.Start(ctx)
	}()

	// 7. Serve the status API.
	apiHandler := httphandler.NewHandler(controller, syncSvc, slog.Default())
	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           httphandler.NewServeMux(apiHandler, slog.Default()),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "error", err)
		}
	}()

	slog.Info("slurmdbd-configurator started", "state", controller.Status().State)

	// 8. Wait for shutdown signal.
	<-ctx.Done()
	slog.Info("shutting down")

	// 9. Graceful shutdown with 10s timeout for in-flight requests.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}
	wg.Wait()

	slog.Info("shutdown complete")
	return nil
}
