// Package config loads runtime configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App struct {
		Name string `envconfig:"APP_NAME" default:"splitledger"`
		Port int    `envconfig:"PORT" default:"8080"`
	}

	DB struct {
		Path string `envconfig:"DB_PATH" default:"./data/splitledger.db"`
	}

	Finalization struct {
		// DeadlineDays is the default approval window for a finalization
		// when the initiator does not override it.
		DeadlineDays int `envconfig:"FINALIZATION_DEADLINE_DAYS" default:"7"`
	}

	Settlement struct {
		// Expiry is how long a settlement may sit in PENDING before the
		// sweeper fails it.
		Expiry time.Duration `envconfig:"SETTLEMENT_EXPIRY" default:"168h"`
	}

	Sweep struct {
		Interval time.Duration `envconfig:"SWEEP_INTERVAL" default:"1h"`
	}
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}
	return &cfg, nil
}
