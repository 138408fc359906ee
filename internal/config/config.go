// Package config loads service settings from the environment.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds the service settings.
type Config struct {
	Addr          string        `env:"DOCS_ADDR"           envDefault:":8080"`
	HistorySize   int           `env:"DOCS_HISTORY_SIZE"   envDefault:"50"`
	Debounce      time.Duration `env:"DOCS_DEBOUNCE"       envDefault:"300ms"`
	ReplayHold    time.Duration `env:"DOCS_REPLAY_HOLD"    envDefault:"0s"`
	SnapshotEvery int           `env:"DOCS_SNAPSHOT_EVERY" envDefault:"1"`
	DBPath        string        `env:"DOCS_DB_PATH"` // Empty keeps documents in memory
}

// Load reads the configuration from the process environment.
func Load() (Config, error) {
	return parse(env.Options{})
}

// LoadFrom reads the configuration from the given variables only.
func LoadFrom(environ map[string]string) (Config, error) {
	return parse(env.Options{Environment: environ})
}

func parse(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate reports settings the service cannot run with.
func (c Config) Validate() error {
	var errs []error

	if c.Addr == "" {
		errs = append(errs, errors.New("DOCS_ADDR must not be empty"))
	}

	if c.HistorySize < 1 {
		errs = append(errs, fmt.Errorf("DOCS_HISTORY_SIZE must be at least 1, got %d", c.HistorySize))
	}

	if c.Debounce <= 0 {
		errs = append(errs, fmt.Errorf("DOCS_DEBOUNCE must be positive, got %s", c.Debounce))
	}

	if c.ReplayHold < 0 {
		errs = append(errs, fmt.Errorf("DOCS_REPLAY_HOLD must not be negative, got %s", c.ReplayHold))
	}

	if c.SnapshotEvery < 1 {
		errs = append(errs, fmt.Errorf("DOCS_SNAPSHOT_EVERY must be at least 1, got %d", c.SnapshotEvery))
	}

	return errors.Join(errs...)
}
