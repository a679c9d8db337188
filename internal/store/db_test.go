package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-pipeline/internal/model"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRunLifecycle(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	specs := []model.DatasetSpec{{Name: "a", Source: "http://x/a"}, {Name: "b", Source: "http://x/b"}}
	started := time.Now()

	require.NoError(t, db.StartRun(ctx, "run-1", specs, started))

	run, err := db.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, RunStatusRunning, run.Status)
	assert.Equal(t, specs, run.Specs)
	assert.Nil(t, run.FinishedAt)

	require.NoError(t, db.RecordTransition(ctx, "run-1", "a", model.StateAcquiring, 0, nil))
	require.NoError(t, db.RecordTransition(ctx, "run-1", "a", model.StateDone, 1, nil))
	require.NoError(t, db.RecordTransition(ctx, "run-1", "b", model.StateAcquiring, 0, nil))
	require.NoError(t, db.RecordTransition(ctx, "run-1", "b", model.StateFailed, 0, &model.DatasetFailure{
		Dataset: "b", Stage: model.StageAcquisition, Kind: "source_unavailable", Message: "status 404", Attempts: 2,
	}))

	require.NoError(t, db.RecordAnalysis(ctx, "run-1", model.Analysis{
		Dataset:  "a",
		Location: "storage/a_analysis.json",
		Result:   model.AnalysisResult{Centers: model.Centers{Mean: 20}, Averages: map[string]float64{"A,B": 20}},
	}))
	require.NoError(t, db.FinishRun(ctx, "run-1", model.BatchPartial, time.Now()))

	run, err = db.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, string(model.BatchPartial), run.Status)
	assert.NotNil(t, run.FinishedAt)

	outcomes, err := db.GetDatasetOutcomes(ctx, "run-1", false)
	require.NoError(t, err)
	require.Len(t, outcomes, 2)
	assert.Equal(t, model.StateDone, outcomes[0].State)
	assert.Equal(t, string(model.StageAnalysis), outcomes[0].Stage)
	assert.Equal(t, 1, outcomes[0].Attempts)
	assert.Equal(t, model.StateFailed, outcomes[1].State)
	assert.Equal(t, "source_unavailable", outcomes[1].ErrorKind)
	assert.Equal(t, 2, outcomes[1].Attempts)

	failed, err := db.GetDatasetOutcomes(ctx, "run-1", true)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "b", failed[0].Dataset)

	results, err := db.GetAnalysisResults(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 20.0, results[0].Result.Centers.Mean)
	assert.Equal(t, map[string]float64{"A,B": 20}, results[0].Result.Averages)
}

func TestStartRunIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	specs := []model.DatasetSpec{{Name: "a", Source: "x"}}
	first := time.Now().Add(-time.Minute)

	require.NoError(t, db.StartRun(ctx, "run-1", specs, first))
	require.NoError(t, db.StartRun(ctx, "run-1", specs, time.Now()))

	run, err := db.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, RunStatusRunning, run.Status)
	assert.WithinDuration(t, first, run.CreatedAt, time.Second)

	runs, err := db.ListRuns(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestTransitionStage(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	require.NoError(t, db.StartRun(ctx, "run-1", []model.DatasetSpec{{Name: "a", Source: "x"}}, time.Now()))
	require.NoError(t, db.RecordTransition(ctx, "run-1", "a", model.StateCleaning, 0, nil))

	outcomes, err := db.GetDatasetOutcomes(ctx, "run-1", false)
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.Equal(t, string(model.StageCleaning), outcomes[0].Stage)
}

func TestLatestAnalysisAcrossRuns(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	for i, id := range []string{"run-1", "run-2"} {
		require.NoError(t, db.StartRun(ctx, id, []model.DatasetSpec{{Name: "a", Source: "x"}}, time.Now()))
		require.NoError(t, db.RecordAnalysis(ctx, id, model.Analysis{
			Dataset: "a",
			Result:  model.AnalysisResult{Centers: model.Centers{Mean: float64(i + 1)}},
		}))
	}

	latest, err := db.GetLatestAnalysis(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "run-2", latest.RunID)
	assert.Equal(t, 2.0, latest.Result.Centers.Mean)

	runs, err := db.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-2", runs[0].ID)
}

func TestNotFound(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	_, err := db.GetRun(ctx, "nope")
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = db.GetLatestAnalysis(ctx, "nope")
	assert.True(t, errors.Is(err, ErrNotFound))

	err = db.FinishRun(ctx, "nope", model.BatchFailed, time.Now())
	assert.True(t, errors.Is(err, ErrNotFound))
}
