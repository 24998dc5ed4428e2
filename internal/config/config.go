// Package config defines service configuration structures and loading hooks.
package config

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/okian/guardrail/internal/domain/constraint"
	"github.com/okian/guardrail/internal/domain/guard"
)

// Store backends accepted by the store key.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// QueueSize bounds the number of runs waiting for a worker.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of run workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize sets how many idempotency keys are remembered.
	DedupeSize int `koanf:"dedupe_size"`

	// Evaluator selects the constraint evaluator: auto, solver or direct.
	Evaluator string `koanf:"evaluator"`

	// Store selects the report store: memory or sqlite.
	Store string `koanf:"store"`

	// SQLitePath is the database file used when Store is sqlite.
	SQLitePath string `koanf:"sqlite_path"`

	// ScanParallelism bounds concurrent record checks within one run.
	// Zero uses the CPU count.
	ScanParallelism int `koanf:"scan_parallelism"`

	// MaxFindings caps the record findings kept in a report.
	MaxFindings int `koanf:"max_findings"`

	// ViolationBudget is how many record violations a run tolerates.
	ViolationBudget int `koanf:"violation_budget"`

	DefaultMinCount      int     `koanf:"default_min_count"`
	DefaultTolerance     float64 `koanf:"default_tolerance"`
	DefaultAllowedLabels []int   `koanf:"default_allowed_labels"`

	// MaxListLimit caps GET /runs?limit.
	MaxListLimit int `koanf:"max_list_limit"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:             "info",
		LogFormat:            "text",
		Addr:                 ":9080",
		QueueSize:            10_000,
		WorkerCount:          runtime.NumCPU() * 2,
		DedupeSize:           100_000,
		Evaluator:            string(constraint.ModeAuto),
		Store:                StoreMemory,
		SQLitePath:           "guardrail.db",
		MaxFindings:          1000,
		ViolationBudget:      0,
		DefaultMinCount:      guard.DefaultMinClassCount,
		DefaultTolerance:     guard.DefaultSamplingTolerance,
		DefaultAllowedLabels: guard.DefaultAllowedLabels(),
		MaxListLimit:         500,
	}
}

// Validate reports the first invalid setting, wrapped in ErrInvalidConfig.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return invalid("addr must not be empty")
	case c.QueueSize < 1:
		return invalid("queue_size must be positive, got %d", c.QueueSize)
	case c.WorkerCount < 1:
		return invalid("worker_count must be positive, got %d", c.WorkerCount)
	case c.DedupeSize < 0:
		return invalid("dedupe_size must not be negative, got %d", c.DedupeSize)
	case c.ScanParallelism < 0:
		return invalid("scan_parallelism must not be negative, got %d", c.ScanParallelism)
	case c.MaxFindings < 1:
		return invalid("max_findings must be positive, got %d", c.MaxFindings)
	case c.ViolationBudget < 0:
		return invalid("violation_budget must not be negative, got %d", c.ViolationBudget)
	case c.DefaultMinCount < 0:
		return invalid("default_min_count must not be negative, got %d", c.DefaultMinCount)
	case c.DefaultTolerance < 0:
		return invalid("default_tolerance must not be negative, got %g", c.DefaultTolerance)
	case len(c.DefaultAllowedLabels) == 0:
		return invalid("default_allowed_labels must not be empty")
	case c.MaxListLimit < 1:
		return invalid("max_list_limit must be positive, got %d", c.MaxListLimit)
	}
	if _, err := constraint.ParseMode(c.Evaluator); err != nil {
		return fmt.Errorf("%w: evaluator: %w", ErrInvalidConfig, err)
	}
	switch c.Store {
	case StoreMemory:
	case StoreSQLite:
		if strings.TrimSpace(c.SQLitePath) == "" {
			return invalid("sqlite_path must be set when store is sqlite")
		}
	default:
		return invalid("store must be memory or sqlite, got %q", c.Store)
	}
	return nil
}

// EvaluatorMode returns the parsed evaluator setting.
func (c *Config) EvaluatorMode() constraint.Mode {
	m, err := constraint.ParseMode(c.Evaluator)
	if err != nil {
		return constraint.ModeAuto
	}
	return m
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...)
}
