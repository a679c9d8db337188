// Package config defines the pipeline configuration and how it is loaded.
//
// A Config is built once at startup and handed to the orchestrator and the
// binaries by value; nothing in this package keeps process-wide state.
package config

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"market-pipeline/internal/model"
	"market-pipeline/pkg/utils"
)

// Storage backends.
const (
	StorageFS    = "fs"
	StorageMinio = "minio"
)

// Schema mismatch policies applied by the cleaner.
const (
	MismatchDrop = "drop"
	MismatchFail = "fail"
)

// DefaultDatasets are the league currency snapshots used when no datasets are configured.
var DefaultDatasets = map[string]string{
	"affliction_currency": "https://drive.google.com/uc?id=13GChRVVkwOZTyv4Ad3wESBH3DSCe_IBA",
	"ancestor_currency":   "https://drive.google.com/uc?id=1NfyV5jFdz-3vmlzHuZGzMh6k8JMR4vSk",
}

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level" validate:"oneof=debug info warn error"`

	// Addr configures the HTTP listen address of pipeline-api, e.g. ":8080".
	Addr string `koanf:"addr" validate:"required"`

	// DBPath is the SQLite run ledger file.
	DBPath string `koanf:"db_path" validate:"required"`

	// StorageBackend selects where artifacts are written: fs or minio.
	StorageBackend string `koanf:"storage_backend" validate:"oneof=fs minio"`
	StorageDir     string `koanf:"storage_dir" validate:"required_if=StorageBackend fs"`

	MinioEndpoint  string `koanf:"minio_endpoint" validate:"required_if=StorageBackend minio"`
	MinioAccessKey string `koanf:"minio_access_key"`
	MinioSecretKey string `koanf:"minio_secret_key"`
	MinioRegion    string `koanf:"minio_region"`
	MinioBucket    string `koanf:"minio_bucket" validate:"required_if=StorageBackend minio"`
	MinioUseSSL    bool   `koanf:"minio_use_ssl"`

	// Workers bounds per-stage fan-out. 1 runs datasets one after another.
	Workers int `koanf:"workers" validate:"min=1,max=64"`

	// StageRetries is the number of automatic retries per (dataset, stage).
	StageRetries int `koanf:"stage_retries" validate:"min=0,max=5"`
	RetryDelayMS int `koanf:"retry_delay_ms" validate:"min=0"`

	FetchTimeoutSec int     `koanf:"fetch_timeout_sec" validate:"min=1"`
	FetchRatePerSec float64 `koanf:"fetch_rate_per_sec" validate:"gte=0"`
	FetchBurst      int     `koanf:"fetch_burst" validate:"min=1"`

	// RunTimeout bounds a whole batch, e.g. "5m".
	RunTimeout string `koanf:"run_timeout"`

	// SchemaMismatch decides what the cleaner does with rows of the wrong width.
	SchemaMismatch string `koanf:"schema_mismatch" validate:"oneof=drop fail"`

	// ExportFile, when set, receives a batch export after each CLI run.
	ExportFile string `koanf:"export_file"`

	// Datasets maps dataset name to source location.
	Datasets map[string]string `koanf:"datasets" validate:"dive,keys,required,excludesall=/\\,endkeys,required"`
}

// New returns a Config populated with defaults. Datasets is left nil so a
// configured map replaces the defaults instead of merging with them.
func New() *Config {
	return &Config{
		LogLevel:        "info",
		Addr:            ":8080",
		DBPath:          "pipeline.db",
		StorageBackend:  StorageFS,
		StorageDir:      "storage",
		MinioRegion:     "us-east-1",
		MinioBucket:     "market-pipeline",
		Workers:         1,
		StageRetries:    1,
		RetryDelayMS:    500,
		FetchTimeoutSec: 30,
		FetchRatePerSec: 0,
		FetchBurst:      1,
		RunTimeout:      "5m",
		SchemaMismatch:  MismatchDrop,
	}
}

// Validate checks struct constraints.
func (c *Config) Validate() error {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("koanf"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// RunTimeoutDuration parses RunTimeout, falling back to five minutes.
func (c *Config) RunTimeoutDuration() time.Duration {
	return utils.ParseDuration(c.RunTimeout)
}

// RetryDelay returns the initial delay between stage attempts.
func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelayMS) * time.Millisecond
}

// FetchTimeout returns the per-request acquisition timeout.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutSec) * time.Second
}

// DatasetSpecs returns the configured datasets as a name-sorted spec list.
func (c *Config) DatasetSpecs() []model.DatasetSpec {
	specs := make([]model.DatasetSpec, 0, len(c.Datasets))
	for name, source := range c.Datasets {
		specs = append(specs, model.DatasetSpec{Name: name, Source: source})
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].Name < specs[j].Name })
	return specs
}
