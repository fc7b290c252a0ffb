package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/juju/clock"

	"github.com/ericfisherdev/slurmdbd-charm/internal/domain/model"
)

// syncRequest represents a manual sync trigger.
type syncRequest struct {
	done chan error
}

// SyncService feeds relation changes to the Controller when no hook runtime
// delivers them: it syncs on every change notification, on a resync interval
// and on request.
type SyncService struct {
	controller *Controller
	relationID string
	unit       string
	changes    <-chan struct{}
	interval   time.Duration
	clock      clock.Clock
	syncCh     chan syncRequest
}

// NewSyncService creates a new SyncService for the credentials published by
// unit. changes may be nil when no change notifications are available.
func NewSyncService(
	controller *Controller,
	relationID string,
	unit string,
	changes <-chan struct{},
	interval time.Duration,
	clk clock.Clock,
) *SyncService {
	return &SyncService{
		controller: controller,
		relationID: relationID,
		unit:       unit,
		changes:    changes,
		interval:   interval,
		clock:      clk,
		syncCh:     make(chan syncRequest),
	}
}

// Start brings the controller through install and start, syncs immediately,
// then syncs on change notifications, on the resync interval and on manual
// requests. Start blocks until the context is canceled.
func (s *SyncService) Start(ctx context.Context) {
	for _, sig := range []model.Signal{model.SignalInstall, model.SignalStart} {
		if err := s.controller.Handle(ctx, model.Event{Signal: sig}); err != nil {
			slog.Error("lifecycle signal failed", "signal", sig, "error", err)
		}
	}
	if err := s.sync(ctx); err != nil {
		slog.Error("initial sync failed", "error", err)
	}

	// The resync timer restarts after every sync, so a burst of change
	// notifications postpones the next periodic read.
	timer := s.clock.NewTimer(s.interval)
	defer timer.Stop()
	resync := func() { timer.Reset(s.interval) }

	changes := s.changes
	for {
		select {
		case <-ctx.Done():
			slog.Info("sync service stopped")
			return
		case <-timer.Chan():
			if err := s.sync(ctx); err != nil {
				slog.Error("resync failed", "error", err)
			}
			resync()
		case _, ok := <-changes:
			if !ok {
				changes = nil
				continue
			}
			if err := s.sync(ctx); err != nil {
				slog.Error("sync on relation change failed", "error", err)
			}
			resync()
		case req := <-s.syncCh:
			req.done <- s.sync(ctx)
			resync()
		}
	}
}

// SyncNow triggers a sync outside the interval. It blocks until the sync
// completes or the context is canceled.
func (s *SyncService) SyncNow(ctx context.Context) error {
	done := make(chan error, 1)
	req := syncRequest{done: done}

	select {
	case s.syncCh <- req:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// sync delivers a relation-changed signal for the credential unit.
func (s *SyncService) sync(ctx context.Context) error {
	start := s.clock.Now()
	err := s.controller.Handle(ctx, model.Event{
		Signal:     model.SignalRelationChanged,
		RelationID: s.relationID,
		RemoteUnit: s.unit,
	})

	slog.Debug("relation sync complete",
		"unit", s.unit,
		"state", s.controller.Status().State,
		"duration", s.clock.Now().Sub(start).Round(time.Millisecond),
	)
	return err
}
