// Package app assembles the pipeline from a loaded configuration.
package app

import (
	"context"
	"fmt"

	"market-pipeline/internal/artifact"
	"market-pipeline/internal/config"
	"market-pipeline/internal/model"
	"market-pipeline/internal/pipeline"
	"market-pipeline/pkg/logger"
)

// NewArtifactStore opens the backend selected by cfg.StorageBackend.
func NewArtifactStore(ctx context.Context, cfg *config.Config) (artifact.Store, error) {
	switch cfg.StorageBackend {
	case config.StorageFS:
		return artifact.NewFileStore(cfg.StorageDir)
	case config.StorageMinio:
		return artifact.NewMinioStore(ctx, artifact.MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Region:    cfg.MinioRegion,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})
	default:
		return nil, fmt.Errorf("%w: unknown storage backend %q", config.ErrInvalidConfig, cfg.StorageBackend)
	}
}

// RetryConfig derives the per-stage retry policy from cfg.
func RetryConfig(cfg *config.Config) model.RetryConfig {
	rc := model.DefaultRetryConfig()
	rc.MaxRetries = cfg.StageRetries
	rc.InitialDelay = cfg.RetryDelay()
	return rc
}

// NewOrchestrator wires fetcher, stages and artifact store according to cfg.
// extra options are applied after the ones derived from cfg.
func NewOrchestrator(ctx context.Context, cfg *config.Config, log logger.Logger, extra ...pipeline.Option) (*pipeline.Orchestrator, error) {
	if log == nil {
		log = logger.Discard()
	}
	store, err := NewArtifactStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("artifact store: %w", err)
	}

	fetcher := pipeline.NewHTTPFetcher(cfg.FetchTimeout(), cfg.FetchRatePerSec, cfg.FetchBurst)
	opts := []pipeline.Option{
		pipeline.WithRetry(RetryConfig(cfg)),
		pipeline.WithWorkers(cfg.Workers),
		pipeline.WithTimeout(cfg.RunTimeoutDuration()),
		pipeline.WithLogger(log),
	}
	opts = append(opts, extra...)

	return pipeline.New(
		pipeline.NewAcquirer(fetcher, store, log),
		pipeline.NewCleaner(store, pipeline.MismatchPolicy(cfg.SchemaMismatch), log),
		pipeline.NewAnalyzer(store, log),
		opts...,
	), nil
}
