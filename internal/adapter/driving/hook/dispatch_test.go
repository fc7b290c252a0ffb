package hook

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/slurmdbd-charm/internal/domain/model"
)

type recordingHandler struct {
	events []model.Event
	err    error
}

func (h *recordingHandler) Handle(_ context.Context, ev model.Event) error {
	h.events = append(h.events, ev)
	return h.err
}

func newTestDispatcher(h EventHandler) *Dispatcher {
	return NewDispatcher("db", h, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestEnv_Name(t *testing.T) {
	tests := []struct {
		name string
		env  Env
		want string
	}{
		{"dispatch path wins", Env{DispatchPath: "hooks/start", HookName: "install", Program: "dispatch"}, "start"},
		{"hook name", Env{HookName: "install", Program: "dispatch"}, "install"},
		{"program name", Env{Program: "/var/lib/juju/charm/hooks/db-relation-changed"}, "db-relation-changed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.env.Name())
		})
	}
}

func TestDispatcher_Event(t *testing.T) {
	d := newTestDispatcher(&recordingHandler{})

	tests := []struct {
		name string
		env  Env
		want model.Event
	}{
		{
			name: "install",
			env:  Env{DispatchPath: "hooks/install"},
			want: model.Event{Signal: model.SignalInstall},
		},
		{
			name: "start ignores relation vars",
			env:  Env{DispatchPath: "hooks/start", RelationID: "db:3", RemoteUnit: "mysql/0"},
			want: model.Event{Signal: model.SignalStart},
		},
		{
			name: "relation created",
			env:  Env{DispatchPath: "hooks/db-relation-created", RelationID: "db:3"},
			want: model.Event{Signal: model.SignalRelationCreated, RelationID: "db:3"},
		},
		{
			name: "relation joined",
			env:  Env{DispatchPath: "hooks/db-relation-joined", RelationID: "db:3", RemoteUnit: "mysql/0"},
			want: model.Event{Signal: model.SignalRelationJoined, RelationID: "db:3", RemoteUnit: "mysql/0"},
		},
		{
			name: "relation changed",
			env:  Env{DispatchPath: "hooks/db-relation-changed", RelationID: "db:3", RemoteUnit: "mysql/0"},
			want: model.Event{Signal: model.SignalRelationChanged, RelationID: "db:3", RemoteUnit: "mysql/0"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := d.Event(tt.env)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ev)
		})
	}
}

func TestDispatcher_EventUnhandled(t *testing.T) {
	d := newTestDispatcher(&recordingHandler{})

	for _, hook := range []string{"config-changed", "upgrade-charm", "db-relation-departed", "slurmctld-relation-changed"} {
		t.Run(hook, func(t *testing.T) {
			_, err := d.Event(Env{DispatchPath: "hooks/" + hook, RemoteUnit: "mysql/0"})
			assert.ErrorIs(t, err, ErrUnhandledHook)
		})
	}
}

func TestDispatcher_EventInvalid(t *testing.T) {
	d := newTestDispatcher(&recordingHandler{})

	_, err := d.Event(Env{DispatchPath: "hooks/db-relation-changed", RelationID: "db:3"})
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnhandledHook)

	_, err = d.Event(Env{DispatchPath: "hooks/db-relation-joined", RelationID: "db:3", RemoteUnit: "not a unit"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid remote unit")
}

func TestDispatcher_Dispatch(t *testing.T) {
	h := &recordingHandler{}
	d := newTestDispatcher(h)

	err := d.Dispatch(context.Background(), Env{HookName: "db-relation-changed", RelationID: "db:3", RemoteUnit: "mysql/0"})

	require.NoError(t, err)
	require.Len(t, h.events, 1)
	assert.Equal(t, model.SignalRelationChanged, h.events[0].Signal)
}

func TestDispatcher_DispatchUnhandledSucceeds(t *testing.T) {
	h := &recordingHandler{}
	d := newTestDispatcher(h)

	err := d.Dispatch(context.Background(), Env{HookName: "update-status"})

	require.NoError(t, err)
	assert.Empty(t, h.events)
}

func TestDispatcher_DispatchReturnsHandlerError(t *testing.T) {
	failure := errors.New("render failed")
	d := newTestDispatcher(&recordingHandler{err: failure})

	err := d.Dispatch(context.Background(), Env{DispatchPath: "hooks/db-relation-changed", RemoteUnit: "mysql/0"})

	require.Error(t, err)
	assert.ErrorIs(t, err, failure)
	assert.Contains(t, err.Error(), "db-relation-changed")
}
