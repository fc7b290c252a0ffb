// Package driven defines secondary port interfaces for external adapters.
package driven

import (
	"context"
	"errors"
)

var (
	// ErrStateCorrupt is returned when a persisted value cannot be decoded.
	ErrStateCorrupt = errors.New("persisted state is corrupt")

	// ErrEncryptionKeyNotSet is returned when encrypted values are present but
	// the store was opened without SLURMDBD_SECRET_KEY.
	ErrEncryptionKeyNotSet = errors.New("encryption key not configured: set SLURMDBD_SECRET_KEY")
)

// StateStore defines the driven port for durable charm state. Keys are flat
// namespaced strings such as "db_info.user".
type StateStore interface {
	// Load returns every key beginning with prefix. An empty prefix returns
	// the whole store. Missing keys are simply absent from the result.
	Load(ctx context.Context, prefix string) (map[string]string, error)

	// Save removes every key beginning with one of dropPrefixes and then
	// upserts values, all in a single transaction.
	Save(ctx context.Context, values map[string]string, dropPrefixes ...string) error

	// Delete removes every key beginning with prefix.
	Delete(ctx context.Context, prefix string) error
}
