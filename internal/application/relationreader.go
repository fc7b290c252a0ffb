// Package application contains use-case orchestration services.
package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/juju/clock"
	"github.com/juju/retry"

	"github.com/ericfisherdev/slurmdbd-charm/internal/domain/model"
	"github.com/ericfisherdev/slurmdbd-charm/internal/domain/port/driven"
)

// ErrRelationDataTimeout is returned when the poll timeout expires before the
// remote unit publishes its settings.
var ErrRelationDataTimeout = errors.New("timed out waiting for relation data")

// credentialFields are the settings extracted from the remote unit.
var credentialFields = []string{
	model.FieldUser,
	model.FieldPassword,
	model.FieldHost,
	model.FieldPort,
	model.FieldDatabase,
}

// RelationReader waits for a remote unit to publish its credentials on a
// relation.
type RelationReader struct {
	view     driven.RelationView
	clock    clock.Clock
	interval time.Duration
	timeout  time.Duration
	logger   *slog.Logger
}

// NewRelationReader creates a RelationReader that polls view every interval.
// A zero timeout polls until the context is canceled.
func NewRelationReader(view driven.RelationView, clk clock.Clock, interval, timeout time.Duration, logger *slog.Logger) *RelationReader {
	return &RelationReader{
		view:     view,
		clock:    clk,
		interval: interval,
		timeout:  timeout,
		logger:   logger,
	}
}

// AwaitComplete polls the relation until unit has published any settings and
// returns the credential fields among them. Missing fields are tolerated
// here; completeness is checked by model.DBInfoFromFields. The wait ends
// early when ctx is canceled or the configured timeout expires.
func (r *RelationReader) AwaitComplete(ctx context.Context, relationID, unit string) (map[string]string, error) {
	var fields map[string]string
	var readErr error

	err := retry.Call(retry.CallArgs{
		Func: func() error {
			data, err := r.view.UnitData(ctx, relationID, unit)
			if err != nil {
				readErr = err
				return err
			}
			if len(data) == 0 {
				return driven.ErrRelationDataPending
			}
			fields = extractCredentials(data)
			return nil
		},
		IsFatalError: func(err error) bool {
			return !errors.Is(err, driven.ErrRelationDataPending)
		},
		NotifyFunc: func(_ error, attempt int) {
			r.logger.Info("waiting on relation data", "relation", relationID, "unit", unit, "attempt", attempt)
		},
		Attempts:    -1,
		Delay:       r.interval,
		MaxDuration: r.timeout,
		Clock:       r.clock,
		Stop:        ctx.Done(),
	})

	switch {
	case err == nil:
		return fields, nil
	case ctx.Err() != nil:
		return nil, fmt.Errorf("waiting for %s relation data: %w", unit, ctx.Err())
	case readErr != nil:
		return nil, fmt.Errorf("read %s relation data: %w", unit, readErr)
	case retry.IsDurationExceeded(err):
		return nil, fmt.Errorf("%w from %s after %s", ErrRelationDataTimeout, unit, r.timeout)
	default:
		return nil, fmt.Errorf("waiting for %s relation data: %w", unit, err)
	}
}

// Peek checks the relation once. It returns driven.ErrRelationDataPending if
// unit has not published anything yet.
func (r *RelationReader) Peek(ctx context.Context, relationID, unit string) (map[string]string, error) {
	data, err := r.view.UnitData(ctx, relationID, unit)
	if err != nil {
		return nil, fmt.Errorf("read %s relation data: %w", unit, err)
	}
	if len(data) == 0 {
		return nil, driven.ErrRelationDataPending
	}
	return extractCredentials(data), nil
}

// extractCredentials picks the credential fields out of the published
// settings, defaulting the port.
func extractCredentials(data map[string]string) map[string]string {
	fields := make(map[string]string, len(credentialFields))
	for _, key := range credentialFields {
		if v, ok := data[key]; ok {
			fields[key] = v
		}
	}
	if fields[model.FieldPort] == "" {
		fields[model.FieldPort] = model.DefaultDBPort
	}
	return fields
}
