// Command slurmdbd-charm is the charm's dispatch binary: the Juju agent runs
// it once per hook and it exits non-zero when the hook fails.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/juju/clock"

	"github.com/ericfisherdev/slurmdbd-charm/internal/adapter/driven/hooktool"
	"github.com/ericfisherdev/slurmdbd-charm/internal/adapter/driven/host"
	"github.com/ericfisherdev/slurmdbd-charm/internal/adapter/driven/render"
	sqliteadapter "github.com/ericfisherdev/slurmdbd-charm/internal/adapter/driven/sqlite"
	"github.com/ericfisherdev/slurmdbd-charm/internal/adapter/driving/hook"
	"github.com/ericfisherdev/slurmdbd-charm/internal/application"
	"github.com/ericfisherdev/slurmdbd-charm/internal/config"
)

func main() {
	if err := run(); err != nil {
		slog.Error("hook failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration.
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel})))

	env := hook.EnvFromOS()
	slog.Debug("config loaded",
		"hook", env.Name(),
		"state_path", cfg.StatePath,
		"target_path", cfg.TargetPath,
		"wait_mode", cfg.WaitMode,
		"persist_policy", cfg.PersistPolicy,
	)

	// 2. The agent kills hooks that overrun; cancel the relation wait cleanly.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open the state database and migrate.
	db, err := sqliteadapter.NewDB(ctx, cfg.StatePath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()
	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		return err
	}

	// 4. Wire adapters.
	store, err := sqliteadapter.NewStateRepo(db, cfg.SecretKey)
	if err != nil {
		return err
	}
	reader := application.NewRelationReader(
		hooktool.NewRelationGetter(""),
		clock.WallClock,
		cfg.PollInterval,
		cfg.PollTimeout,
		slog.Default(),
	)
	controller := application.NewController(
		application.ControllerConfig{
			TemplatePath:  cfg.TemplatePath,
			TargetPath:    cfg.TargetPath,
			WaitMode:      cfg.WaitMode,
			PersistPolicy: cfg.PersistPolicy,
		},
		reader,
		store,
		render.NewRenderer(render.WithYAMLQuoting()),
		host.NewSystem(),
		clock.WallClock,
		slog.Default(),
	)

	// 5. Pick up the state left by earlier hooks, then handle this one.
	if err := controller.Restore(ctx); err != nil {
		return err
	}

	dispatcher := hook.NewDispatcher(cfg.RelationName, controller, slog.Default())
	return dispatcher.Dispatch(ctx, env)
}
