package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchStatus(t *testing.T) {
	ok := map[string]Analysis{"a": {}}
	failed := []DatasetFailure{{Dataset: "b"}}

	assert.Equal(t, BatchCompleted, (&BatchResult{Results: ok}).Status())
	assert.Equal(t, BatchPartial, (&BatchResult{Results: ok, Failures: failed}).Status())
	assert.Equal(t, BatchFailed, (&BatchResult{Failures: failed}).Status())
}

func TestAnalysisResultJSONShape(t *testing.T) {
	data, err := json.Marshal(AnalysisResult{
		Centers:  Centers{Mean: 1, Median: 1, Mode: 1},
		Averages: map[string]float64{"A,B": 1},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"centers": {"mean": 1, "median": 1, "mode": 1},
		"spread": {"range": 0, "std_dev": null, "variance": null},
		"qualitative_analysis": {"league_count": 0, "earliest_date": "", "latest_date": ""},
		"averages": {"A,B": 1}
	}`, string(data))
}

func TestCleanedTableBytes(t *testing.T) {
	tbl := CleanedTable{Rows: []CleanedRow{{"a", "Missing"}, {"b", "c"}}}
	assert.Equal(t, "a,Missing\nb,c", string(tbl.Bytes()))
	assert.Equal(t, 2, tbl.Width())
}

func TestStageOutcome(t *testing.T) {
	assert.True(t, Succeeded(1).OK())
	assert.False(t, Failed[int](assert.AnError).OK())
	assert.Equal(t, StateCleaning, StageCleaning.State())
	assert.True(t, StateFailed.Terminal())
	assert.False(t, StateAnalyzing.Terminal())
}
