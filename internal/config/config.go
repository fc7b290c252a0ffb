// Package config loads application configuration from environment variables.
package config

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/juju/names/v5"

	"github.com/ericfisherdev/slurmdbd-charm/internal/domain/model"
)

// DefaultTargetPath is where the slurm snap's configurator reads slurmdbd settings.
const DefaultTargetPath = "/var/snap/slurm/common/etc/slurm-configurator/slurmdbd.yaml"

// Config holds the application configuration loaded from environment variables.
type Config struct {
	TemplatePath   string
	TargetPath     string
	StatePath      string
	RelationName   string
	DBUnit         string
	PollInterval   time.Duration
	PollTimeout    time.Duration
	ResyncInterval time.Duration
	WaitMode       model.WaitMode
	PersistPolicy  model.PersistPolicy
	SecretKey      []byte // nil when SLURMDBD_SECRET_KEY is unset
	RelationFile   string
	ListenAddr     string
	LogLevel       slog.Level
}

// Load reads configuration from environment variables and returns a validated Config.
// Template and state paths default to files inside JUJU_CHARM_DIR when it is set, and
// to the working directory otherwise. SLURMDBD_SECRET_KEY is optional; when present it
// must be 64 hex characters and enables encryption of persisted values.
func Load() (*Config, error) {
	charmDir := os.Getenv("JUJU_CHARM_DIR")

	cfg := &Config{
		TemplatePath:   filepath.Join(charmDir, "slurmdbd.yaml.tmpl"),
		TargetPath:     DefaultTargetPath,
		StatePath:      filepath.Join(charmDir, ".slurmdbd-state.db"),
		RelationName:   "db",
		DBUnit:         "mysql/0",
		PollInterval:   time.Second,
		ResyncInterval: 5 * time.Minute,
		WaitMode:       model.WaitPoll,
		PersistPolicy:  model.PersistBeforeRender,
		RelationFile:   "relation-data.yaml",
		ListenAddr:     "127.0.0.1:8080",
		LogLevel:       slog.LevelInfo,
	}

	stringVar("SLURMDBD_TEMPLATE_PATH", &cfg.TemplatePath)
	stringVar("SLURMDBD_TARGET_PATH", &cfg.TargetPath)
	stringVar("SLURMDBD_STATE_PATH", &cfg.StatePath)
	stringVar("SLURMDBD_RELATION_NAME", &cfg.RelationName)
	stringVar("SLURMDBD_DB_UNIT", &cfg.DBUnit)
	stringVar("SLURMDBD_RELATION_FILE", &cfg.RelationFile)
	stringVar("SLURMDBD_LISTEN_ADDR", &cfg.ListenAddr)

	if cfg.RelationName == "" {
		return nil, fmt.Errorf("SLURMDBD_RELATION_NAME must not be empty")
	}
	if !names.IsValidUnit(cfg.DBUnit) {
		return nil, fmt.Errorf("SLURMDBD_DB_UNIT %q is not a valid unit name", cfg.DBUnit)
	}

	if err := durationVar("SLURMDBD_POLL_INTERVAL", &cfg.PollInterval); err != nil {
		return nil, err
	}
	if cfg.PollInterval <= 0 {
		return nil, fmt.Errorf("SLURMDBD_POLL_INTERVAL must be positive, got %s", cfg.PollInterval)
	}
	if err := durationVar("SLURMDBD_POLL_TIMEOUT", &cfg.PollTimeout); err != nil {
		return nil, err
	}
	if cfg.PollTimeout < 0 {
		return nil, fmt.Errorf("SLURMDBD_POLL_TIMEOUT must not be negative, got %s", cfg.PollTimeout)
	}
	if err := durationVar("SLURMDBD_RESYNC_INTERVAL", &cfg.ResyncInterval); err != nil {
		return nil, err
	}
	if cfg.ResyncInterval <= 0 {
		return nil, fmt.Errorf("SLURMDBD_RESYNC_INTERVAL must be positive, got %s", cfg.ResyncInterval)
	}

	if v, ok := os.LookupEnv("SLURMDBD_WAIT_MODE"); ok {
		switch mode := model.WaitMode(strings.ToLower(v)); mode {
		case model.WaitPoll, model.WaitDeferred:
			cfg.WaitMode = mode
		default:
			return nil, fmt.Errorf("SLURMDBD_WAIT_MODE must be %q or %q, got %q", model.WaitPoll, model.WaitDeferred, v)
		}
	}

	if v, ok := os.LookupEnv("SLURMDBD_PERSIST_POLICY"); ok {
		switch policy := model.PersistPolicy(strings.ToLower(v)); policy {
		case model.PersistBeforeRender, model.PersistLogOnly:
			cfg.PersistPolicy = policy
		default:
			return nil, fmt.Errorf("SLURMDBD_PERSIST_POLICY must be %q or %q, got %q", model.PersistBeforeRender, model.PersistLogOnly, v)
		}
	}

	if v, ok := os.LookupEnv("SLURMDBD_SECRET_KEY"); ok && v != "" {
		key, err := hex.DecodeString(v)
		if err != nil {
			return nil, fmt.Errorf("SLURMDBD_SECRET_KEY is not valid hex: %w", err)
		}
		if len(key) != 32 {
			return nil, fmt.Errorf("SLURMDBD_SECRET_KEY must be 64 hex chars (32 bytes), got %d bytes", len(key))
		}
		cfg.SecretKey = key
	}

	if v, ok := os.LookupEnv("SLURMDBD_LOG_LEVEL"); ok {
		if err := cfg.LogLevel.UnmarshalText([]byte(v)); err != nil {
			return nil, fmt.Errorf("SLURMDBD_LOG_LEVEL has invalid level %q: %w", v, err)
		}
	}

	return cfg, nil
}

func stringVar(key string, dst *string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = v
	}
}

func durationVar(key string, dst *time.Duration) error {
	v, ok := os.LookupEnv(key)
	if !ok {
		return nil
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s has invalid duration %q: %w", key, v, err)
	}
	*dst = parsed
	return nil
}
