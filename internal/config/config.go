// Package config loads the settings shared by the example programs from the
// environment. Variables are read with the PERCH_ prefix; .env files are
// applied first and never override variables that are already set.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/casualjim/perch/mpsc"
	"github.com/joho/godotenv"
)

// Prefix is prepended to every variable name.
const Prefix = "PERCH_"

// Config holds the tunables of the demo drivers.
type Config struct {
	LogLevel slog.Level `env:"LOG_LEVEL" envDefault:"info"`

	// work sharing
	Workers  int           `env:"WORKERS" envDefault:"8"`
	Jobs     int           `env:"JOBS" envDefault:"128"`
	Strategy mpsc.Strategy `env:"STRATEGY" envDefault:"fifo"`

	// broadcast
	Consumers         int           `env:"CONSUMERS" envDefault:"4"`
	HeartbeatInterval time.Duration `env:"HEARTBEAT_INTERVAL" envDefault:"1s"`
	Heartbeats        int           `env:"HEARTBEATS" envDefault:"0"`
}

// Load applies the given .env files that exist, then parses the process
// environment. Missing files are skipped.
func Load(files ...string) (Config, error) {
	var existing []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) > 0 {
		if err := godotenv.Load(existing...); err != nil {
			return Config{}, fmt.Errorf("config: loading env files: %w", err)
		}
	}
	return parse(env.Options{Prefix: Prefix})
}

// Parse reads the configuration from environ instead of the process
// environment. Keys carry the prefix.
func Parse(environ map[string]string) (Config, error) {
	return parse(env.Options{Prefix: Prefix, Environment: environ})
}

// MustLoad is Load that panics on error.
func MustLoad(files ...string) Config {
	cfg, err := Load(files...)
	if err != nil {
		panic(err)
	}
	return cfg
}

func parse(options env.Options) (Config, error) {
	cfg, err := env.ParseAsWithOptions[Config](options)
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every out-of-range setting.
func (c Config) Validate() error {
	var errs []error
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("config: %sWORKERS must be at least 1, got %d", Prefix, c.Workers))
	}
	if c.Jobs < 0 {
		errs = append(errs, fmt.Errorf("config: %sJOBS must not be negative, got %d", Prefix, c.Jobs))
	}
	if c.Consumers < 1 {
		errs = append(errs, fmt.Errorf("config: %sCONSUMERS must be at least 1, got %d", Prefix, c.Consumers))
	}
	if c.HeartbeatInterval <= 0 {
		errs = append(errs, fmt.Errorf("config: %sHEARTBEAT_INTERVAL must be positive, got %s", Prefix, c.HeartbeatInterval))
	}
	if c.Heartbeats < 0 {
		errs = append(errs, fmt.Errorf("config: %sHEARTBEATS must not be negative, got %d", Prefix, c.Heartbeats))
	}
	if !c.Strategy.Valid() {
		errs = append(errs, fmt.Errorf("config: %sSTRATEGY: %w", Prefix, mpsc.ErrUnknownStrategy))
	}
	return errors.Join(errs...)
}
