// Package config defines process configuration and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Load(ctx) layers defaults, an optional YAML file, and env vars.
// - External errors must be wrapped via this package's error helpers.
package config

import (
	"time"
)

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level" validate:"oneof=debug info warn error"`

	// MetricsAddr configures the metrics HTTP listen address, e.g. ":9090".
	MetricsAddr string `koanf:"metrics_addr" validate:"required"`

	// Strategy selects the normalization formula: fixed or vector.
	Strategy string `koanf:"strategy" validate:"oneof=fixed vector"`

	// DBDriver selects the store backend: memory or sqlite.
	DBDriver string `koanf:"db_driver" validate:"oneof=memory sqlite"`

	// DBDSN is the SQLite data source name. Ignored for the memory store.
	DBDSN string `koanf:"db_dsn"`

	// SeedDefaults loads the built-in criteria, bands, and threshold into an
	// empty store at startup.
	SeedDefaults bool `koanf:"seed_defaults"`

	// RecalcQueueSize bounds the in-memory recalculation queue.
	RecalcQueueSize int `koanf:"recalc_queue_size" validate:"gt=0"`

	// RecalcWorkerCount sets the number of recalculation workers.
	RecalcWorkerCount int `koanf:"recalc_worker_count" validate:"gt=0"`

	// CohortTimeoutMS bounds one cohort recomputation in milliseconds.
	CohortTimeoutMS int `koanf:"cohort_timeout_ms" validate:"gt=0"`

	// DefaultThreshold is the eligibility threshold seeded into an empty
	// store. The store value wins once set.
	DefaultThreshold float64 `koanf:"default_threshold" validate:"gte=0,lte=1"`

	// Dominators overrides the fixed-dominator divisors per criterion code.
	// Empty means the built-in dominator table.
	Dominators map[string]float64 `koanf:"dominators"`
}

// New creates a Config populated with defaults.
func New() *Config {
	c := &Config{
		LogLevel:          "info",
		MetricsAddr:       ":9090",
		Strategy:          "fixed",
		DBDriver:          "memory",
		DBDSN:             "file:donoreval.db?cache=shared&mode=rwc&_pragma=busy_timeout(5000)",
		SeedDefaults:      true,
		RecalcQueueSize:   1024,
		RecalcWorkerCount: 2,
		CohortTimeoutMS:   30_000,
		DefaultThreshold:  0.0520,
	}
	return c
}

// CohortTimeout returns the cohort recomputation bound as a duration.
func (c *Config) CohortTimeout() time.Duration {
	return time.Duration(c.CohortTimeoutMS) * time.Millisecond
}
