package sqlite

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/ericfisherdev/slurmdbd-charm/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.StateStore = (*StateRepo)(nil)

// StateRepo is the SQLite implementation of the StateStore port interface.
// When constructed with a key, values are encrypted with AES-256-GCM before
// write and decrypted after read; otherwise they are stored as given.
type StateRepo struct {
	db  *DB
	key []byte // 32-byte AES-256 key; nil stores plaintext.
}

// NewStateRepo creates a new StateRepo. key must be 32 bytes for AES-256-GCM,
// or nil to store values unencrypted.
func NewStateRepo(db *DB, key []byte) (*StateRepo, error) {
	if key != nil && len(key) != 32 {
		return nil, fmt.Errorf("state encryption key must be 32 bytes, got %d", len(key))
	}
	return &StateRepo{db: db, key: key}, nil
}

// Load returns every stored key beginning with prefix.
func (r *StateRepo) Load(ctx context.Context, prefix string) (map[string]string, error) {
	const query = `SELECT key, value, encrypted FROM state WHERE substr(key, 1, length(?1)) = ?1`
	rows, err := r.db.Reader.QueryContext(ctx, query, prefix)
	if err != nil {
		return nil, fmt.Errorf("load state %q: %w", prefix, err)
	}
	defer rows.Close()

	values := make(map[string]string)
	for rows.Next() {
		var key, stored string
		var encrypted bool
		if err := rows.Scan(&key, &stored, &encrypted); err != nil {
			return nil, fmt.Errorf("scan state: %w", err)
		}

		if !encrypted {
			values[key] = stored
			continue
		}
		if r.key == nil {
			return nil, fmt.Errorf("load state %q: %w", key, driven.ErrEncryptionKeyNotSet)
		}
		plaintext, err := r.decrypt(stored)
		if err != nil {
			return nil, fmt.Errorf("decrypt state %q: %w: %w", key, driven.ErrStateCorrupt, err)
		}
		values[key] = plaintext
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate state: %w", err)
	}

	return values, nil
}

// deleteQuery removes every key beginning with ?1.
const deleteQuery = `DELETE FROM state WHERE substr(key, 1, length(?1)) = ?1`

// Save drops every key under dropPrefixes and upserts values in a single
// transaction, so readers never see the old and new generations mixed.
func (r *StateRepo) Save(ctx context.Context, values map[string]string, dropPrefixes ...string) error {
	if len(values) == 0 && len(dropPrefixes) == 0 {
		return nil
	}

	// Stable order keeps write patterns deterministic across runs.
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save state: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, prefix := range dropPrefixes {
		if _, err := tx.ExecContext(ctx, deleteQuery, prefix); err != nil {
			return fmt.Errorf("drop state %q: %w", prefix, err)
		}
	}

	const query = `
		INSERT INTO state (key, value, encrypted, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			encrypted = excluded.encrypted,
			updated_at = CURRENT_TIMESTAMP
	`
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("prepare save state: %w", err)
	}
	defer stmt.Close()

	for _, key := range keys {
		value := values[key]
		encrypted := false
		if r.key != nil {
			if value, err = r.encrypt(value); err != nil {
				return fmt.Errorf("encrypt state %q: %w", key, err)
			}
			encrypted = true
		}
		if _, err := stmt.ExecContext(ctx, key, value, encrypted); err != nil {
			return fmt.Errorf("save state %q: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save state: %w", err)
	}
	return nil
}

// Delete removes every key beginning with prefix.
func (r *StateRepo) Delete(ctx context.Context, prefix string) error {
	if _, err := r.db.Writer.ExecContext(ctx, deleteQuery, prefix); err != nil {
		return fmt.Errorf("delete state %q: %w", prefix, err)
	}
	return nil
}

// encrypt encrypts plaintext using AES-256-GCM and returns a base64-encoded string
// containing the nonce (12 bytes) prepended to the ciphertext.
func (r *StateRepo) encrypt(plaintext string) (string, error) {
	gcm, err := r.aead()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("rand nonce: %w", err)
	}

	// Seal appends the ciphertext to nonce, producing: nonce || ciphertext || tag.
	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// decrypt decrypts a base64-encoded AES-256-GCM ciphertext.
func (r *StateRepo) decrypt(encoded string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("base64 decode: %w", err)
	}

	gcm, err := r.aead()
	if err != nil {
		return "", err
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", errors.New("ciphertext too short")
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("gcm.Open: %w", err)
	}

	return string(plaintext), nil
}

func (r *StateRepo) aead() (cipher.AEAD, error) {
	block, err := aes.NewCipher(r.key)
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCM: %w", err)
	}
	return gcm, nil
}
