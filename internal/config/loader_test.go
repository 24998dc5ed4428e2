package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/okian/guardrail/internal/config"
	"github.com/okian/guardrail/internal/domain/constraint"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.QueueSize, convey.ShouldEqual, 10_000)
			convey.So(cfg.WorkerCount, convey.ShouldEqual, runtime.NumCPU()*2)
			convey.So(cfg.Store, convey.ShouldEqual, config.StoreMemory)
			convey.So(cfg.DefaultTolerance, convey.ShouldEqual, 0.02)
			convey.So(cfg.DefaultMinCount, convey.ShouldEqual, 5)
			convey.So(cfg.DefaultAllowedLabels, convey.ShouldResemble, []int{0, 1})
			convey.So(cfg.EvaluatorMode(), convey.ShouldEqual, constraint.ModeAuto)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given configs with one bad setting", t, func() {
		cases := []struct {
			name   string
			mutate func(*config.Config)
			want   string
		}{
			{"empty addr", func(c *config.Config) { c.Addr = " " }, "addr must not be empty"},
			{"zero queue", func(c *config.Config) { c.QueueSize = 0 }, "queue_size must be positive"},
			{"zero workers", func(c *config.Config) { c.WorkerCount = 0 }, "worker_count must be positive"},
			{"negative budget", func(c *config.Config) { c.ViolationBudget = -1 }, "violation_budget must not be negative"},
			{"negative tolerance", func(c *config.Config) { c.DefaultTolerance = -0.1 }, "default_tolerance must not be negative"},
			{"no labels", func(c *config.Config) { c.DefaultAllowedLabels = nil }, "default_allowed_labels must not be empty"},
			{"unknown evaluator", func(c *config.Config) { c.Evaluator = "quantum" }, "evaluator"},
			{"unknown store", func(c *config.Config) { c.Store = "redis" }, "store must be memory or sqlite"},
			{"sqlite without path", func(c *config.Config) { c.Store = config.StoreSQLite; c.SQLitePath = "" }, "sqlite_path must be set"},
		}

		for _, tc := range cases {
			convey.Convey("When "+tc.name, func() {
				cfg := config.New()
				tc.mutate(cfg)
				err := cfg.Validate()

				convey.Convey("Then validation fails with ErrInvalidConfig", func() {
					convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
					convey.So(err.Error(), convey.ShouldContainSubstring, tc.want)
				})
			})
		}
	})
}

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars(t)

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.Evaluator, convey.ShouldEqual, "auto")
				convey.So(cfg.DefaultAllowedLabels, convey.ShouldResemble, []int{0, 1})
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			t.Setenv("GUARDRAIL_ADDR", ":8080")
			t.Setenv("GUARDRAIL_QUEUE_SIZE", "64")
			t.Setenv("GUARDRAIL_WORKER_COUNT", "3")
			t.Setenv("GUARDRAIL_EVALUATOR", "direct")
			t.Setenv("GUARDRAIL_VIOLATION_BUDGET", "2")
			t.Setenv("GUARDRAIL_DEFAULT_TOLERANCE", "0.05")
			t.Setenv("GUARDRAIL_DEFAULT_ALLOWED_LABELS", "0,1,2")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 64)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 3)
				convey.So(cfg.EvaluatorMode(), convey.ShouldEqual, constraint.ModeDirect)
				convey.So(cfg.ViolationBudget, convey.ShouldEqual, 2)
				convey.So(cfg.DefaultTolerance, convey.ShouldEqual, 0.05)
				convey.So(cfg.DefaultAllowedLabels, convey.ShouldResemble, []int{0, 1, 2})
			})
		})

		convey.Convey("When loading config with YAML file", func() {
			path := writeConfigFile(t, `
addr: ":9090"
queue_size: 300
store: SQLite
sqlite_path: /tmp/reports.db
default_allowed_labels: [3]
`)
			t.Setenv("GUARDRAIL_CONFIG", path)

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load from YAML file", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 300)
				convey.So(cfg.Store, convey.ShouldEqual, config.StoreSQLite)
				convey.So(cfg.SQLitePath, convey.ShouldEqual, "/tmp/reports.db")
				convey.So(cfg.DefaultAllowedLabels, convey.ShouldResemble, []int{3})
			})

			convey.Convey("And env vars set too", func() {
				t.Setenv("GUARDRAIL_ADDR", ":7070")
				cfg, err := config.Load(ctx)

				convey.Convey("Then environment variables should override file values", func() {
					convey.So(err, convey.ShouldBeNil)
					convey.So(cfg.Addr, convey.ShouldEqual, ":7070")
					convey.So(cfg.QueueSize, convey.ShouldEqual, 300)
				})
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			t.Setenv("GUARDRAIL_CONFIG", writeConfigFile(t, `invalid: yaml: content: [`))

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			t.Setenv("GUARDRAIL_CONFIG", "/non/existent/file.yaml")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with invalid numeric environment variables", func() {
			t.Setenv("GUARDRAIL_QUEUE_SIZE", "not_a_number")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When the YAML file empties addr", func() {
			t.Setenv("GUARDRAIL_CONFIG", writeConfigFile(t, `addr: ""`))

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "addr must not be empty")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}

// Helper functions.

func clearConfigEnvVars(t *testing.T) {
	t.Helper()
	for _, kv := range os.Environ() {
		name, _, _ := strings.Cut(kv, "=")
		if strings.HasPrefix(name, config.EnvPrefix) {
			t.Setenv(name, "")
			_ = os.Unsetenv(name)
		}
	}
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "guardrail.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}
