package driven

import (
	"context"
	"errors"
)

// ErrRelationDataPending is returned when the remote unit has not published
// any data on the relation yet.
var ErrRelationDataPending = errors.New("relation data not yet published")

// RelationView defines the driven port for reading data published by remote
// units on a relation. Implementations never write to the relation.
type RelationView interface {
	// UnitData returns the flat key/value settings the unit has published on
	// the relation. A unit that has published nothing yields an empty map and
	// a nil error.
	UnitData(ctx context.Context, relationID, unit string) (map[string]string, error)
}
