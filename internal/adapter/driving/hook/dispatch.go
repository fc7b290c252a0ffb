// Package hook turns the hook environment set up by the Juju agent into
// controller events.
package hook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/juju/names/v5"

	"github.com/ericfisherdev/slurmdbd-charm/internal/domain/model"
)

// ErrUnhandledHook is returned by Event for hooks this charm does not handle.
var ErrUnhandledHook = errors.New("unhandled hook")

// EventHandler consumes controller events.
type EventHandler interface {
	Handle(ctx context.Context, ev model.Event) error
}

// Env is the subset of the hook environment the dispatcher reads.
type Env struct {
	DispatchPath string // JUJU_DISPATCH_PATH, e.g. "hooks/install"
	HookName     string // JUJU_HOOK_NAME
	Program      string // argv[0], used by charms that symlink every hook
	RelationID   string // JUJU_RELATION_ID
	RemoteUnit   string // JUJU_REMOTE_UNIT
}

// EnvFromOS reads the hook environment of the current process.
func EnvFromOS() Env {
	return Env{
		DispatchPath: os.Getenv("JUJU_DISPATCH_PATH"),
		HookName:     os.Getenv("JUJU_HOOK_NAME"),
		Program:      os.Args[0],
		RelationID:   os.Getenv("JUJU_RELATION_ID"),
		RemoteUnit:   os.Getenv("JUJU_REMOTE_UNIT"),
	}
}

// Name returns the name of the hook being run.
func (e Env) Name() string {
	switch {
	case e.DispatchPath != "":
		return filepath.Base(e.DispatchPath)
	case e.HookName != "":
		return e.HookName
	}
	return filepath.Base(e.Program)
}

// Dispatcher maps hooks to controller events for a single relation endpoint.
type Dispatcher struct {
	relationName string
	handler      EventHandler
	logger       *slog.Logger
}

// NewDispatcher creates a Dispatcher handling the relation hooks of
// relationName.
func NewDispatcher(relationName string, handler EventHandler, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		relationName: relationName,
		handler:      handler,
		logger:       logger,
	}
}

// Event maps env to a controller event. It returns ErrUnhandledHook for hooks
// the charm ignores.
func (d *Dispatcher) Event(env Env) (model.Event, error) {
	hookName := env.Name()

	var sig model.Signal
	switch hookName {
	case "install":
		sig = model.SignalInstall
	case "start":
		sig = model.SignalStart
	default:
		suffix, ok := strings.CutPrefix(hookName, d.relationName+"-")
		if !ok {
			return model.Event{}, fmt.Errorf("%w: %s", ErrUnhandledHook, hookName)
		}
		switch suffix {
		case "relation-created":
			sig = model.SignalRelationCreated
		case "relation-joined":
			sig = model.SignalRelationJoined
		case "relation-changed":
			sig = model.SignalRelationChanged
		default:
			return model.Event{}, fmt.Errorf("%w: %s", ErrUnhandledHook, hookName)
		}
	}

	ev := model.Event{Signal: sig}
	if sig.IsRelation() {
		ev.RelationID = env.RelationID
		ev.RemoteUnit = env.RemoteUnit
		if ev.RemoteUnit != "" && !names.IsValidUnit(ev.RemoteUnit) {
			return model.Event{}, fmt.Errorf("hook %s: invalid remote unit %q", hookName, ev.RemoteUnit)
		}
	}
	if err := ev.Validate(); err != nil {
		return model.Event{}, fmt.Errorf("hook %s: %w", hookName, err)
	}
	return ev, nil
}

// Dispatch delivers the event for env to the handler. Unhandled hooks are
// logged and succeed.
func (d *Dispatcher) Dispatch(ctx context.Context, env Env) error {
	ev, err := d.Event(env)
	if errors.Is(err, ErrUnhandledHook) {
		d.logger.Debug("hook not handled", "hook", env.Name())
		return nil
	}
	if err != nil {
		return err
	}

	d.logger.Debug("dispatching hook", "hook", env.Name(), "signal", ev.Signal, "relation", ev.RelationID, "unit", ev.RemoteUnit)
	if err := d.handler.Handle(ctx, ev); err != nil {
		return fmt.Errorf("hook %s: %w", env.Name(), err)
	}
	return nil
}
