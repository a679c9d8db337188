// Package pipeline runs market-price datasets through acquisition, cleaning
// and analysis.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"market-pipeline/internal/model"
	"market-pipeline/pkg/logger"
)

// AcquireStage fetches and stores a dataset's raw snapshot.
type AcquireStage interface {
	Acquire(ctx context.Context, spec model.DatasetSpec) model.StageOutcome[model.RawTable]
}

// CleanStage turns a raw snapshot into a cleaned table.
type CleanStage interface {
	Clean(ctx context.Context, raw model.RawTable) model.StageOutcome[model.CleanedTable]
}

// AnalyzeStage computes and stores the analysis of a cleaned table.
type AnalyzeStage interface {
	Analyze(ctx context.Context, table model.CleanedTable) model.StageOutcome[model.Analysis]
}

// Recorder persists run progress. Errors are logged and never fail a dataset.
type Recorder interface {
	StartRun(ctx context.Context, runID string, specs []model.DatasetSpec, startedAt time.Time) error
	RecordTransition(ctx context.Context, runID, dataset string, state model.DatasetState, attempts int, failure *model.DatasetFailure) error
	RecordAnalysis(ctx context.Context, runID string, analysis model.Analysis) error
	FinishRun(ctx context.Context, runID string, status model.BatchStatus, finishedAt time.Time) error
}

// Metrics receives pipeline counters.
type Metrics interface {
	RecordRun(outcome string)
	RecordStage(stage string, success bool, d time.Duration)
	RecordRetry(stage string)
	RecordDatasetFailed(stage, kind string)
	RecordRowsCleaned(n int)
	RecordRowsDropped(reason string, n int)
}

// Orchestrator sequences the three stages over a batch of datasets.
type Orchestrator struct {
	acquirer AcquireStage
	cleaner  CleanStage
	analyzer AnalyzeStage

	retry    model.RetryConfig
	workers  int
	timeout  time.Duration
	log      logger.Logger
	metrics  Metrics
	recorder Recorder
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

func WithRetry(cfg model.RetryConfig) Option {
	return func(o *Orchestrator) { o.retry = cfg }
}

// WithWorkers bounds how many datasets a stage processes at once.
func WithWorkers(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithTimeout bounds a whole run. Zero means no limit.
func WithTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.timeout = d }
}

func WithLogger(l logger.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.log = l
		}
	}
}

func WithMetrics(m Metrics) Option {
	return func(o *Orchestrator) {
		if m != nil {
			o.metrics = m
		}
	}
}

func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) {
		if r != nil {
			o.recorder = r
		}
	}
}

// New creates an Orchestrator. Without options it runs datasets one at a
// time and retries each failed stage once.
func New(acquirer AcquireStage, cleaner CleanStage, analyzer AnalyzeStage, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		acquirer: acquirer,
		cleaner:  cleaner,
		analyzer: analyzer,
		retry:    model.DefaultRetryConfig(),
		workers:  1,
		log:      logger.Discard(),
		metrics:  noopMetrics{},
		recorder: noopRecorder{},
	}
	for _, opt := range opts {
		opt(o)
	}
	o.log = o.log.Named("orchestrator")
	return o
}

// Run validates specs and processes them under a fresh run ID.
func (o *Orchestrator) Run(ctx context.Context, specs []model.DatasetSpec) (*model.BatchResult, error) {
	return o.RunWithID(ctx, uuid.NewString(), specs)
}

// RunWithID processes specs under runID. A configuration error rejects the
// whole run; any other failure is confined to its dataset and reported in
// BatchResult.Failures.
func (o *Orchestrator) RunWithID(ctx context.Context, runID string, specs []model.DatasetSpec) (*model.BatchResult, error) {
	if err := ValidateSpecs(specs); err != nil {
		o.metrics.RecordRun("rejected")
		o.log.Error(ctx, "run rejected", logger.String("run_id", runID), logger.Error(err))
		return nil, err
	}

	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	started := time.Now()
	tracker := NewTracker(runID, specs)
	o.log.Info(ctx, "run started",
		logger.String("run_id", runID),
		logger.Int("datasets", len(specs)),
		logger.Int("workers", o.workers),
	)
	if err := o.recorder.StartRun(context.WithoutCancel(ctx), runID, specs, started); err != nil {
		o.log.Error(ctx, "ledger: start run", logger.String("run_id", runID), logger.Error(err))
	}

	raws := runStage(ctx, o, tracker, model.StageAcquisition, specs,
		func(s model.DatasetSpec) string { return s.Name }, o.acquirer.Acquire)

	tables := runStage(ctx, o, tracker, model.StageCleaning, raws,
		func(r model.RawTable) string { return r.Dataset }, o.cleaner.Clean)
	for _, t := range tables {
		o.metrics.RecordRowsCleaned(len(t.Rows))
		o.metrics.RecordRowsDropped("schema_mismatch", len(t.Dropped))
		o.metrics.RecordRowsDropped("blank", t.Blank)
		for _, w := range t.Dropped {
			tracker.Warn(t.Dataset, fmt.Sprintf("line %d dropped: %d fields, expected %d", w.Line, w.Fields, w.Expected))
		}
	}

	analyses := runStage(ctx, o, tracker, model.StageAnalysis, tables,
		func(t model.CleanedTable) string { return t.Dataset }, o.analyzer.Analyze)

	results := make(map[string]model.Analysis, len(analyses))
	for _, a := range analyses {
		if err := tracker.Transition(a.Dataset, model.StateDone); err != nil {
			o.log.Error(ctx, "state transition", logger.Error(err))
			continue
		}
		if a.Result.Spread.Variance == nil {
			tracker.Warn(a.Dataset, "std_dev and variance undefined for fewer than two values")
		}
		results[a.Dataset] = a
		o.record(ctx, runID, a.Dataset, model.StateDone, tracker.Attempts(a.Dataset, model.StageAnalysis), nil)
		if err := o.recorder.RecordAnalysis(context.WithoutCancel(ctx), runID, a); err != nil {
			o.log.Error(ctx, "ledger: record analysis", logger.String("dataset", a.Dataset), logger.Error(err))
		}
	}

	batch := &model.BatchResult{
		RunID:      runID,
		Results:    results,
		Failures:   tracker.Failures(),
		Datasets:   tracker.Snapshot(),
		StartedAt:  started,
		FinishedAt: time.Now(),
	}
	status := batch.Status()
	o.metrics.RecordRun(string(status))
	if err := o.recorder.FinishRun(context.WithoutCancel(ctx), runID, status, batch.FinishedAt); err != nil {
		o.log.Error(ctx, "ledger: finish run", logger.String("run_id", runID), logger.Error(err))
	}

	o.log.Info(ctx, "run finished",
		logger.String("run_id", runID),
		logger.String("status", string(status)),
		logger.Int("succeeded", len(results)),
		logger.Int("failed", len(batch.Failures)),
		logger.String("duration", batch.FinishedAt.Sub(started).String()),
	)
	return batch, nil
}

// runStage applies fn to every input with bounded parallelism and returns
// the successful payloads in input order. Failed datasets are marked in the
// tracker and excluded from the result.
func runStage[In, Out any](
	ctx context.Context,
	o *Orchestrator,
	tracker *Tracker,
	stage model.Stage,
	inputs []In,
	nameOf func(In) string,
	fn func(context.Context, In) model.StageOutcome[Out],
) []Out {
	slots := make([]*Out, len(inputs))

	var g errgroup.Group
	g.SetLimit(o.workers)
	for i, in := range inputs {
		g.Go(func() error {
			if out, ok := runUnit(ctx, o, tracker, stage, nameOf(in), func(ctx context.Context) model.StageOutcome[Out] {
				return fn(ctx, in)
			}); ok {
				slots[i] = &out
			}
			return nil
		})
	}
	_ = g.Wait()

	outs := make([]Out, 0, len(inputs))
	for _, s := range slots {
		if s != nil {
			outs = append(outs, *s)
		}
	}
	return outs
}

// runUnit executes one (dataset, stage) unit with retries.
func runUnit[Out any](
	ctx context.Context,
	o *Orchestrator,
	tracker *Tracker,
	stage model.Stage,
	dataset string,
	fn func(context.Context) model.StageOutcome[Out],
) (Out, bool) {
	var zero Out

	if err := tracker.Transition(dataset, stage.State()); err != nil {
		o.log.Error(ctx, "state transition", logger.Error(err))
		return zero, false
	}
	o.record(ctx, tracker.RunID, dataset, stage.State(), 0, nil)

	start := time.Now()
	var out model.StageOutcome[Out]
	if err := ctx.Err(); err != nil {
		out = model.Failed[Out](fmt.Errorf("%s not started: %w", stage, err))
	} else {
		onRetry := func(attempt int, err error) {
			o.metrics.RecordRetry(string(stage))
			o.log.Warn(ctx, "retrying stage",
				logger.String("dataset", dataset),
				logger.String("stage", string(stage)),
				logger.Int("attempt", attempt),
				logger.Error(err),
			)
		}
		out = Retry(ctx, o.retry, onRetry, func(ctx context.Context) model.StageOutcome[Out] {
			attemptStart := time.Now()
			res := fn(ctx)
			o.metrics.RecordStage(string(stage), res.OK(), time.Since(attemptStart))
			return res
		})
	}
	elapsed := time.Since(start)
	tracker.RecordStage(dataset, stage, out.Attempts, elapsed, out.Status)

	if out.OK() {
		o.log.Debug(ctx, "stage succeeded",
			logger.String("dataset", dataset),
			logger.String("stage", string(stage)),
			logger.Int("attempts", out.Attempts),
			logger.String("duration", elapsed.String()),
		)
		return out.Payload, true
	}

	failure, err := tracker.Fail(dataset, stage, out.Err, out.Attempts)
	if err != nil {
		o.log.Error(ctx, "state transition", logger.Error(err))
	}
	o.metrics.RecordDatasetFailed(string(stage), failure.Kind)
	o.record(ctx, tracker.RunID, dataset, model.StateFailed, failure.Attempts, &failure)
	o.log.Error(ctx, "dataset failed",
		logger.String("dataset", dataset),
		logger.String("stage", string(stage)),
		logger.String("kind", failure.Kind),
		logger.Int("attempts", out.Attempts),
		logger.Error(out.Err),
	)
	return zero, false
}

func (o *Orchestrator) record(ctx context.Context, runID, dataset string, state model.DatasetState, attempts int, failure *model.DatasetFailure) {
	if err := o.recorder.RecordTransition(context.WithoutCancel(ctx), runID, dataset, state, attempts, failure); err != nil {
		o.log.Error(ctx, "ledger: record transition",
			logger.String("dataset", dataset),
			logger.String("state", string(state)),
			logger.Error(err),
		)
	}
}

type noopRecorder struct{}

func (noopRecorder) StartRun(context.Context, string, []model.DatasetSpec, time.Time) error {
	return nil
}

func (noopRecorder) RecordTransition(context.Context, string, string, model.DatasetState, int, *model.DatasetFailure) error {
	return nil
}

func (noopRecorder) RecordAnalysis(context.Context, string, model.Analysis) error { return nil }

func (noopRecorder) FinishRun(context.Context, string, model.BatchStatus, time.Time) error {
	return nil
}

type noopMetrics struct{}

func (noopMetrics) RecordRun(string) {}
func (noopMetrics) RecordStage(string, bool, time.Duration) {}
func (noopMetrics) RecordRetry(string) {}
func (noopMetrics) RecordDatasetFailed(string, string) {}
func (noopMetrics) RecordRowsCleaned(int) {}
func (noopMetrics) RecordRowsDropped(string, int) {}
