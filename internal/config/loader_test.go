package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"market-pipeline/internal/config"
)

var configEnvVars = []string{
	"MARKET_CONFIG",
	"MARKET_ADDR",
	"MARKET_WORKERS",
	"MARKET_STAGE_RETRIES",
	"MARKET_SCHEMA_MISMATCH",
	"MARKET_STORAGE_BACKEND",
	"MARKET_RUN_TIMEOUT",
}

func clearConfigEnvVars() {
	for _, name := range configEnvVars {
		_ = os.Unsetenv(name)
	}
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx, "")

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.Workers, convey.ShouldEqual, 1)
				convey.So(cfg.StageRetries, convey.ShouldEqual, 1)
				convey.So(cfg.SchemaMismatch, convey.ShouldEqual, config.MismatchDrop)
				convey.So(cfg.StorageBackend, convey.ShouldEqual, config.StorageFS)
				convey.So(cfg.RunTimeoutDuration(), convey.ShouldEqual, 5*time.Minute)
				convey.So(cfg.Datasets, convey.ShouldResemble, config.DefaultDatasets)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("MARKET_ADDR", ":9090")
			_ = os.Setenv("MARKET_WORKERS", "4")
			_ = os.Setenv("MARKET_STAGE_RETRIES", "2")
			_ = os.Setenv("MARKET_RUN_TIMEOUT", "90s")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx, "")

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.Workers, convey.ShouldEqual, 4)
				convey.So(cfg.StageRetries, convey.ShouldEqual, 2)
				convey.So(cfg.RunTimeoutDuration(), convey.ShouldEqual, 90*time.Second)
			})
		})

		convey.Convey("When loading config with a YAML file", func() {
			path := writeConfigFile(t, `
workers: 3
schema_mismatch: fail
datasets:
  local_sample: file:///tmp/sample.csv
`)

			cfg, err := config.Load(ctx, path)

			convey.Convey("Then file values replace the defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Workers, convey.ShouldEqual, 3)
				convey.So(cfg.SchemaMismatch, convey.ShouldEqual, config.MismatchFail)
				convey.So(cfg.Datasets, convey.ShouldResemble, map[string]string{
					"local_sample": "file:///tmp/sample.csv",
				})
			})

			convey.Convey("Then dataset specs are sorted by name", func() {
				specs := cfg.DatasetSpecs()
				convey.So(len(specs), convey.ShouldEqual, 1)
				convey.So(specs[0].Name, convey.ShouldEqual, "local_sample")
			})
		})

		convey.Convey("When MARKET_CONFIG points at a file", func() {
			path := writeConfigFile(t, "addr: \":7070\"\n")
			_ = os.Setenv("MARKET_CONFIG", path)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx, "")

			convey.Convey("Then the file is used", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":7070")
			})
		})

		convey.Convey("When the file does not exist", func() {
			_, err := config.Load(ctx, filepath.Join(t.TempDir(), "missing.yaml"))

			convey.Convey("Then a load error is returned", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When a value fails validation", func() {
			_ = os.Setenv("MARKET_SCHEMA_MISMATCH", "ignore")
			defer clearConfigEnvVars()

			_, err := config.Load(ctx, "")

			convey.Convey("Then the config is rejected", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})
	})
}

func TestConfigValidate(t *testing.T) {
	convey.Convey("Given default config", t, func() {
		cfg := config.New()
		cfg.Datasets = map[string]string{"a": "http://example.com/a"}

		convey.Convey("Then it is valid", func() {
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})

		convey.Convey("When minio is selected without an endpoint", func() {
			cfg.StorageBackend = config.StorageMinio

			convey.Convey("Then validation fails", func() {
				convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When a dataset name contains a path separator", func() {
			cfg.Datasets = map[string]string{"../escape": "http://example.com/a"}

			convey.Convey("Then validation fails", func() {
				convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When a dataset has no source", func() {
			cfg.Datasets = map[string]string{"a": ""}

			convey.Convey("Then validation fails", func() {
				convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When workers is zero", func() {
			cfg.Workers = 0

			convey.Convey("Then validation fails", func() {
				convey.So(cfg.Validate(), convey.ShouldNotBeNil)
			})
		})
	})
}
