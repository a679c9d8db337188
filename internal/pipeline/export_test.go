package pipeline

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"market-pipeline/internal/model"
)

func sampleBatch() *model.BatchResult {
	v := 200.0
	sd := 14.142135623730951
	return &model.BatchResult{
		RunID: "run-1",
		Results: map[string]model.Analysis{
			"ancestor_currency": {
				Dataset: "ancestor_currency",
				Result: model.AnalysisResult{
					Centers:     model.Centers{Mean: 20, Median: 15, Mode: 10},
					Spread:      model.Spread{Range: 30, StdDev: &sd, Variance: &v},
					Qualitative: model.Qualitative{LeagueCount: 1, EarliestDate: "2023-08-01", LatestDate: "2023-08-04"},
					Averages:    map[string]float64{"Exalted Orb,Chaos Orb": 30, "Chaos Orb,Divine Orb": 10},
				},
			},
		},
		Failures: []model.DatasetFailure{
			{Dataset: "affliction_currency", Stage: model.StageAcquisition, Kind: "source_unavailable", Message: "status 404", Attempts: 2},
		},
	}
}

func TestExportBatchCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "averages.csv")

	res, err := ExportBatch(context.Background(), sampleBatch(), path)
	require.NoError(t, err)
	assert.Equal(t, "csv", res.Type)
	assert.Equal(t, 2, res.RecordCount)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "dataset,get,pay,value\n"+
		"ancestor_currency,Chaos Orb,Divine Orb,10\n"+
		"ancestor_currency,Exalted Orb,Chaos Orb,30\n", string(data))
}

func TestExportBatchJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "batch.json")

	_, err := ExportBatch(context.Background(), sampleBatch(), path)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc struct {
		ExportInfo map[string]any                  `json:"export_info"`
		Results    map[string]model.AnalysisResult `json:"results"`
		Failures   []model.DatasetFailure          `json:"failures"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "partial", doc.ExportInfo["status"])
	assert.Equal(t, 20.0, doc.Results["ancestor_currency"].Centers.Mean)
	require.Len(t, doc.Failures, 1)
	assert.Equal(t, "affliction_currency", doc.Failures[0].Dataset)
}

func TestExportBatchXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "batch.xlsx")

	_, err := ExportBatch(context.Background(), sampleBatch(), path)
	require.NoError(t, err)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Summary", "ancestor_currency"}, f.GetSheetList())

	rows, err := f.GetRows("Summary")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "ancestor_currency", rows[1][0])
	assert.Equal(t, "failed", rows[2][1])
	assert.True(t, strings.HasPrefix(rows[2][len(rows[2])-1], "source_unavailable"))

	avg, err := f.GetRows("ancestor_currency")
	require.NoError(t, err)
	assert.Equal(t, []string{"Chaos Orb", "Divine Orb", "10"}, avg[1])
}

func TestExportBatchUnsupported(t *testing.T) {
	_, err := ExportBatch(context.Background(), sampleBatch(), filepath.Join(t.TempDir(), "batch.txt"))
	assert.Error(t, err)
}

func TestSheetName(t *testing.T) {
	used := map[string]bool{"summary": true}
	assert.Equal(t, "Summary_2", sheetName("Summary", used))
	assert.Equal(t, "a_b", sheetName("a/b", used))
	long := strings.Repeat("x", 40)
	assert.Len(t, sheetName(long, used), 31)
	assert.Equal(t, strings.Repeat("x", 29)+"_2", sheetName(long, used))

	cyrillic := "валюта_лиги_аффликшн_сезон"
	assert.Equal(t, cyrillic, sheetName(cyrillic, used))
	renamed := sheetName(cyrillic, used)
	assert.True(t, utf8.ValidString(renamed))
	assert.Equal(t, cyrillic+"_2", renamed)

	wide := strings.Repeat("ж", 40)
	got := sheetName(wide, used)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, 31, utf8.RuneCountInString(got))
	got = sheetName(wide, used)
	assert.Equal(t, strings.Repeat("ж", 29)+"_2", got)
}

func TestExportBatchXLSXNonASCIISheet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "batch.xlsx")
	batch := sampleBatch()
	a := batch.Results["ancestor_currency"]
	a.Dataset = "валюта_лиги_аффликшн_сезон"
	batch.Results = map[string]model.Analysis{a.Dataset: a}

	_, err := ExportBatch(context.Background(), batch, path)
	require.NoError(t, err)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	assert.Contains(t, f.GetSheetList(), "валюта_лиги_аффликшн_сезон")
}

func TestExportBatchCSVKeepsCommasInGroups(t *testing.T) {
	path := filepath.Join(t.TempDir(), "averages.csv")
	table := model.CleanedTable{Rows: []model.CleanedRow{
		{"Orb, Greater", "Chaos Orb", "4", "L", "2023-01-01"},
		{"Orb, Greater", "Chaos Orb", "8", "L", "2023-01-02"},
	}}
	a, err := AnalyzeTable("d", table)
	require.NoError(t, err)
	require.Equal(t, []model.GroupAverage{{Get: "Orb, Greater", Pay: "Chaos Orb", Mean: 6}}, a.Groups)

	batch := &model.BatchResult{RunID: "r", Results: map[string]model.Analysis{"d": a}}
	_, err = ExportBatch(context.Background(), batch, path)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "dataset,get,pay,value\n"+
		"d,\"Orb, Greater\",Chaos Orb,6\n", string(data))
}
