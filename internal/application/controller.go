package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/juju/clock"

	"github.com/ericfisherdev/slurmdbd-charm/internal/domain/model"
	"github.com/ericfisherdev/slurmdbd-charm/internal/domain/port/driven"
)

// ErrNoCredentials is returned when a render is requested before any
// database credentials are known.
var ErrNoCredentials = errors.New("no database credentials available")

// Persisted controller keys, alongside the model.SnapshotPrefix keys.
const (
	stateKeyPrefix = "controller."
	stateKeyState  = stateKeyPrefix + "state"
	stateKeyUnit   = stateKeyPrefix + "unit"
)

// hostnameVar is the template variable carrying the short hostname.
const hostnameVar = "hostname"

// ControllerConfig holds the controller's static settings.
type ControllerConfig struct {
	TemplatePath  string
	TargetPath    string
	WaitMode      model.WaitMode
	PersistPolicy model.PersistPolicy
}

// Controller drives the slurmdbd lifecycle: it reacts to lifecycle and
// relation signals, keeps the credential record and renders the slurmdbd
// configuration. It is the only writer of persisted charm state.
type Controller struct {
	cfg      ControllerConfig
	reader   *RelationReader
	store    driven.StateStore
	renderer driven.ConfigRenderer
	host     driven.HostInfo
	clock    clock.Clock
	logger   *slog.Logger

	// handleMu serializes event handling, including any blocking relation
	// wait. mu guards the fields below for readers such as Status.
	handleMu sync.Mutex
	mu       sync.RWMutex

	state      model.State
	unit       string
	dbInfo     model.DBInfo
	lastRender time.Time
	lastErr    string
}

// NewController creates a Controller in the uninstalled state. Call Restore
// to pick up state persisted by a previous process.
func NewController(
	cfg ControllerConfig,
	reader *RelationReader,
	store driven.StateStore,
	renderer driven.ConfigRenderer,
	host driven.HostInfo,
	clk clock.Clock,
	logger *slog.Logger,
) *Controller {
	if cfg.WaitMode == "" {
		cfg.WaitMode = model.WaitPoll
	}
	if cfg.PersistPolicy == "" {
		cfg.PersistPolicy = model.PersistBeforeRender
	}
	return &Controller{
		cfg:      cfg,
		reader:   reader,
		store:    store,
		renderer: renderer,
		host:     host,
		clock:    clk,
		logger:   logger,
		state:    model.StateUninstalled,
	}
}

// Restore loads the lifecycle state and credential record persisted by an
// earlier process.
func (c *Controller) Restore(ctx context.Context) error {
	c.handleMu.Lock()
	defer c.handleMu.Unlock()

	saved, err := c.store.Load(ctx, stateKeyPrefix)
	if err != nil {
		return fmt.Errorf("load controller state: %w", err)
	}
	snapshot, err := c.store.Load(ctx, model.SnapshotPrefix())
	if err != nil {
		return fmt.Errorf("load db info: %w", err)
	}

	state := model.StateUninstalled
	if s, ok := saved[stateKeyState]; ok {
		if state, err = model.ParseState(s); err != nil {
			return fmt.Errorf("restore controller state: %w", err)
		}
	}

	var info model.DBInfo
	if len(snapshot) > 0 {
		if info, err = model.RestoreDBInfo(snapshot); err != nil {
			return err
		}
	}

	c.mu.Lock()
	c.state = state
	c.unit = saved[stateKeyUnit]
	c.dbInfo = info
	c.mu.Unlock()

	c.logger.Debug("controller state restored", "state", state, "unit", saved[stateKeyUnit], "has_db_info", !info.IsZero())
	return nil
}

// Handle processes ev and any signals it raises, in order, before returning.
// Incomplete credentials are logged and leave the state unchanged; render
// and persistence failures are returned and are not retried.
func (c *Controller) Handle(ctx context.Context, ev model.Event) error {
	if err := ev.Validate(); err != nil {
		return err
	}

	c.handleMu.Lock()
	defer c.handleMu.Unlock()

	queue := []model.Event{ev}
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]

		raised, err := c.dispatch(ctx, next)
		if err != nil {
			c.mu.Lock()
			c.lastErr = err.Error()
			c.mu.Unlock()
			return err
		}
		queue = append(queue, raised...)
	}
	return nil
}

// Reconfigure renders the configuration again from the current record.
func (c *Controller) Reconfigure(ctx context.Context) error {
	return c.Handle(ctx, model.Event{Signal: model.SignalConfigure})
}

// Status returns a snapshot of the controller for reporting.
func (c *Controller) Status() model.Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return model.Status{
		State:      c.state,
		Unit:       c.unit,
		DBInfo:     c.dbInfo,
		LastRender: c.lastRender,
		LastError:  c.lastErr,
	}
}

// dispatch handles a single event and returns the signals it raises.
func (c *Controller) dispatch(ctx context.Context, ev model.Event) ([]model.Event, error) {
	switch ev.Signal {
	case model.SignalInstall:
		return nil, c.advance(ctx, model.StateInstalled, model.StateUninstalled)
	case model.SignalStart:
		return nil, c.advance(ctx, model.StateStarted, model.StateUninstalled, model.StateInstalled)
	case model.SignalRelationCreated, model.SignalRelationJoined:
		c.logger.Info("credential relation event", "signal", ev.Signal, "relation", ev.RelationID, "unit", ev.RemoteUnit)
		return nil, nil
	case model.SignalRelationChanged:
		return c.onRelationChanged(ctx, ev)
	case model.SignalConfigure:
		return nil, c.onConfigure(ctx)
	}
	return nil, fmt.Errorf("unhandled signal %q", ev.Signal)
}

// advance moves to state `to` when the current state is one of from. Other
// states are left alone so that a repeated start does not undo configuration.
func (c *Controller) advance(ctx context.Context, to model.State, from ...model.State) error {
	current := c.currentState()
	for _, f := range from {
		if current == f {
			return c.setState(ctx, to, nil)
		}
	}
	c.logger.Debug("lifecycle signal ignored in current state", "state", current, "target", to)
	return nil
}

func (c *Controller) onRelationChanged(ctx context.Context, ev model.Event) ([]model.Event, error) {
	var fields map[string]string
	var err error

	switch c.cfg.WaitMode {
	case model.WaitDeferred:
		fields, err = c.reader.Peek(ctx, ev.RelationID, ev.RemoteUnit)
		if errors.Is(err, driven.ErrRelationDataPending) {
			c.logger.Info("waiting on relation data", "relation", ev.RelationID, "unit", ev.RemoteUnit)
			if st := c.currentState(); st == model.StateConfigured || st == model.StateConfigPending {
				return nil, nil
			}
			return nil, c.setState(ctx, model.StateAwaitingCredentials, nil)
		}
	default:
		fields, err = c.reader.AwaitComplete(ctx, ev.RelationID, ev.RemoteUnit)
	}
	if err != nil {
		return nil, err
	}

	info, err := model.DBInfoFromFields(fields)
	if errors.Is(err, model.ErrIncompleteCredentials) {
		c.logger.Info("db info not available", "unit", ev.RemoteUnit, "reason", err)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if c.unchanged(info, ev.RemoteUnit) {
		c.logger.Debug("db info unchanged, config is current", "unit", ev.RemoteUnit)
		return nil, nil
	}

	extra := map[string]string{stateKeyUnit: ev.RemoteUnit}
	var drop []string
	switch c.cfg.PersistPolicy {
	case model.PersistLogOnly:
		// A snapshot left by an earlier persist run is superseded and must
		// not come back on restore.
		c.logger.Info("db info available", "unit", ev.RemoteUnit, "db_info", info)
		drop = append(drop, model.SnapshotPrefix())
	default:
		maps.Copy(extra, info.Snapshot())
	}

	if err := c.setState(ctx, model.StateConfigPending, extra, drop...); err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.dbInfo = info
	c.unit = ev.RemoteUnit
	c.mu.Unlock()

	return []model.Event{{Signal: model.SignalConfigure}}, nil
}

func (c *Controller) onConfigure(ctx context.Context) error {
	c.mu.RLock()
	info := c.dbInfo
	c.mu.RUnlock()

	if info.IsZero() {
		return ErrNoCredentials
	}

	hostname, err := c.host.ShortHostname()
	if err != nil {
		return err
	}

	// Credential fields override local facts on key collision.
	vars := map[string]any{hostnameVar: hostname}
	maps.Copy(vars, info.RenderContext())

	if err := c.renderer.Render(ctx, c.cfg.TemplatePath, c.cfg.TargetPath, vars); err != nil {
		return fmt.Errorf("render slurmdbd config: %w", err)
	}

	c.mu.Lock()
	c.lastRender = c.clock.Now()
	c.lastErr = ""
	c.mu.Unlock()

	c.logger.Info("slurmdbd config rendered", "target", c.cfg.TargetPath, "db_info", info)
	return c.setState(ctx, model.StateConfigured, nil)
}

// setState persists the new state together with any extra keys, dropping
// the keys under drop in the same write, then records it in memory.
func (c *Controller) setState(ctx context.Context, to model.State, extra map[string]string, drop ...string) error {
	values := map[string]string{stateKeyState: string(to)}
	maps.Copy(values, extra)
	if err := c.store.Save(ctx, values, drop...); err != nil {
		return fmt.Errorf("persist state %s: %w", to, err)
	}

	c.mu.Lock()
	from := c.state
	c.state = to
	c.mu.Unlock()

	if from != to {
		c.logger.Info("lifecycle state changed", "from", from, "to", to)
	}
	return nil
}

// unchanged reports whether info from unit is already rendered.
func (c *Controller) unchanged(info model.DBInfo, unit string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state == model.StateConfigured && c.unit == unit && c.dbInfo == info
}

func (c *Controller) currentState() model.State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}
