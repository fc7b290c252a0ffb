package model

import "fmt"

// State is the controller's position in the charm lifecycle.
type State string

const (
	StateUninstalled         State = "uninstalled"
	StateInstalled           State = "installed"
	StateStarted             State = "started"
	StateAwaitingCredentials State = "awaiting-credentials"
	StateConfigPending       State = "config-pending"
	StateConfigured          State = "configured"
)

// ParseState converts a persisted state name back into a State.
func ParseState(s string) (State, error) {
	switch st := State(s); st {
	case StateUninstalled, StateInstalled, StateStarted,
		StateAwaitingCredentials, StateConfigPending, StateConfigured:
		return st, nil
	}
	return "", fmt.Errorf("unknown lifecycle state %q", s)
}

// Signal identifies a lifecycle or relation event.
type Signal string

const (
	SignalInstall         Signal = "install"
	SignalStart           Signal = "start"
	SignalRelationCreated Signal = "relation-created"
	SignalRelationJoined  Signal = "relation-joined"
	SignalRelationChanged Signal = "relation-changed"

	// SignalConfigure is raised internally once credentials are available.
	SignalConfigure Signal = "configure"
)

// IsRelation reports whether s concerns the credential relation.
func (s Signal) IsRelation() bool {
	switch s {
	case SignalRelationCreated, SignalRelationJoined, SignalRelationChanged:
		return true
	}
	return false
}

// Event is a signal delivered to the controller, with the relation details
// that accompany relation hooks.
type Event struct {
	Signal     Signal
	RelationID string
	RemoteUnit string
}

// Validate returns an error if the event is not well formed.
func (e Event) Validate() error {
	switch e.Signal {
	case SignalRelationJoined, SignalRelationChanged:
		if e.RemoteUnit == "" {
			return fmt.Errorf("%q event requires a remote unit", e.Signal)
		}
		return nil
	case SignalInstall, SignalStart, SignalRelationCreated, SignalConfigure:
		return nil
	}
	return fmt.Errorf("unknown signal %q", e.Signal)
}

// WaitMode selects how relation-changed waits for the remote unit's data.
type WaitMode string

const (
	// WaitPoll blocks, polling the relation until the data appears, the
	// context is cancelled or the poll timeout expires.
	WaitPoll WaitMode = "poll"
	// WaitDeferred checks once and parks the controller in
	// StateAwaitingCredentials until the next relation-changed.
	WaitDeferred WaitMode = "deferred"
)

// PersistPolicy selects whether credentials are written to durable state
// before rendering.
type PersistPolicy string

const (
	PersistBeforeRender PersistPolicy = "persist"
	PersistLogOnly      PersistPolicy = "log-only"
)
