package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-pipeline/internal/model"
)

func TestParseDatasetFlags(t *testing.T) {
	specs, err := parseDatasetFlags([]string{
		"affliction=https://drive.google.com/uc?id=abc",
		" local = ./data/local.csv ",
	})
	require.NoError(t, err)
	assert.Equal(t, []model.DatasetSpec{
		{Name: "affliction", Source: "https://drive.google.com/uc?id=abc"},
		{Name: "local", Source: "./data/local.csv"},
	}, specs)

	for _, bad := range []string{"noequals", "=source", "name="} {
		_, err := parseDatasetFlags([]string{bad})
		assert.Error(t, err, bad)
	}
}

func TestPrintBatch(t *testing.T) {
	batch := &model.BatchResult{
		RunID: "r1",
		Results: map[string]model.Analysis{
			"good": {Dataset: "good", Location: "good_analysis.json", Samples: 4},
		},
		Failures: []model.DatasetFailure{
			{Dataset: "bad", Stage: model.StageAcquisition, Kind: "source_unavailable", Message: "status 404", Attempts: 2},
		},
		Datasets: map[string]model.DatasetTrace{
			"good": {Dataset: "good", Warnings: []string{"line 3 dropped: 2 fields, expected 5"}},
			"bad":  {Dataset: "bad"},
		},
	}

	var buf bytes.Buffer
	printBatch(&buf, batch)
	out := buf.String()

	assert.Contains(t, out, "run r1: partial")
	assert.Contains(t, out, "good_analysis.json (4 values")
	assert.Contains(t, out, "acquisition/source_unavailable after 2 attempt(s): status 404")
	assert.Contains(t, out, "warning line 3 dropped")
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("bad")), bytes.Index(buf.Bytes(), []byte("good")))
}
