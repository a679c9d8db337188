package pipeline

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"market-pipeline/internal/model"
	"market-pipeline/pkg/utils"
)

// ExportResult describes a finished batch export.
type ExportResult struct {
	Type        string `json:"type"`
	Path        string `json:"path"`
	RecordCount int    `json:"record_count"`
}

// ExportBatch writes a batch to path. The format follows the extension:
// .json holds results and failures, .csv holds averages in long format and
// .xlsx holds a summary sheet plus one averages sheet per dataset.
func ExportBatch(ctx context.Context, batch *model.BatchResult, path string) (ExportResult, error) {
	if err := ctx.Err(); err != nil {
		return ExportResult{}, err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return ExportResult{}, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	typ := utils.FileType(path)
	var (
		n   int
		err error
	)
	switch typ {
	case "json":
		n, err = exportJSON(batch, path)
	case "csv":
		n, err = exportCSV(batch, path)
	case "excel":
		n, err = exportXLSX(batch, path)
	default:
		return ExportResult{}, fmt.Errorf("unsupported export format %q", filepath.Ext(path))
	}
	if err != nil {
		return ExportResult{}, err
	}
	return ExportResult{Type: typ, Path: path, RecordCount: n}, nil
}

type averageRow struct {
	dataset, get, pay string
	value             float64
}

// averageRows flattens every dataset's averages, ordered by dataset then key.
func averageRows(batch *model.BatchResult) []averageRow {
	var rows []averageRow
	for _, name := range sortedResultNames(batch) {
		a := batch.Results[name]
		if len(a.Groups) > 0 {
			for _, g := range a.Groups {
				rows = append(rows, averageRow{dataset: name, get: g.Get, pay: g.Pay, value: g.Mean})
			}
			continue
		}
		// Analyses without groups (loaded from a bare artifact) fall back to
		// splitting the key on its first comma.
		avgs := a.Result.Averages
		keys := make([]string, 0, len(avgs))
		for k := range avgs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			get, pay, _ := strings.Cut(k, ",")
			rows = append(rows, averageRow{dataset: name, get: get, pay: pay, value: avgs[k]})
		}
	}
	return rows
}

func sortedResultNames(batch *model.BatchResult) []string {
	names := make([]string, 0, len(batch.Results))
	for name := range batch.Results {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func exportJSON(batch *model.BatchResult, path string) (int, error) {
	file, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")

	results := make(map[string]model.AnalysisResult, len(batch.Results))
	for name, a := range batch.Results {
		results[name] = a.Result
	}
	exportData := map[string]any{
		"export_info": map[string]any{
			"run_id":      batch.RunID,
			"status":      batch.Status(),
			"exported_at": time.Now().UTC(),
		},
		"results":  results,
		"failures": batch.Failures,
	}
	if err := encoder.Encode(exportData); err != nil {
		return 0, fmt.Errorf("failed to encode JSON: %w", err)
	}
	return len(results), nil
}

func exportCSV(batch *model.BatchResult, path string) (int, error) {
	file, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"dataset", "get", "pay", "value"}); err != nil {
		return 0, fmt.Errorf("failed to write header: %w", err)
	}

	rows := averageRows(batch)
	for _, r := range rows {
		rec := []string{r.dataset, r.get, r.pay, strconv.FormatFloat(r.value, 'f', -1, 64)}
		if err := writer.Write(rec); err != nil {
			return 0, fmt.Errorf("failed to write row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return 0, fmt.Errorf("failed to flush CSV: %w", err)
	}
	return len(rows), nil
}

const summarySheet = "Summary"

func exportXLSX(batch *model.BatchResult, path string) (int, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return 0, err
	}
	header := []any{"dataset", "status", "mean", "median", "mode", "range", "std_dev", "variance",
		"league_count", "earliest_date", "latest_date", "error"}
	if err := f.SetSheetRow(summarySheet, "A1", &header); err != nil {
		return 0, err
	}

	row := 2
	for _, name := range sortedResultNames(batch) {
		r := batch.Results[name].Result
		line := []any{name, "done", r.Centers.Mean, r.Centers.Median, r.Centers.Mode, r.Spread.Range,
			optional(r.Spread.StdDev), optional(r.Spread.Variance),
			r.Qualitative.LeagueCount, r.Qualitative.EarliestDate, r.Qualitative.LatestDate, ""}
		if err := setRow(f, summarySheet, row, line); err != nil {
			return 0, err
		}
		row++
	}
	for _, fl := range batch.Failures {
		line := []any{fl.Dataset, "failed", "", "", "", "", "", "", "", "", "", fl.Kind + ": " + fl.Message}
		if err := setRow(f, summarySheet, row, line); err != nil {
			return 0, err
		}
		row++
	}

	used := map[string]bool{strings.ToLower(summarySheet): true}
	byDataset := make(map[string][]averageRow)
	for _, r := range averageRows(batch) {
		byDataset[r.dataset] = append(byDataset[r.dataset], r)
	}
	for _, name := range sortedResultNames(batch) {
		sheet := sheetName(name, used)
		if _, err := f.NewSheet(sheet); err != nil {
			return 0, err
		}
		if err := setRow(f, sheet, 1, []any{"get", "pay", "average_value"}); err != nil {
			return 0, err
		}
		for i, r := range byDataset[name] {
			if err := setRow(f, sheet, i+2, []any{r.get, r.pay, r.value}); err != nil {
				return 0, err
			}
		}
	}

	if err := f.SaveAs(path); err != nil {
		return 0, fmt.Errorf("failed to save workbook: %w", err)
	}
	return len(batch.Results), nil
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}

func optional(v *float64) any {
	if v == nil {
		return ""
	}
	return *v
}

// sheetName makes a dataset name usable as a worksheet name, unique
// ignoring case. Excel limits names to 31 characters.
func sheetName(name string, used map[string]bool) string {
	const maxRunes = 31
	base := []rune(strings.Map(func(r rune) rune {
		if strings.ContainsRune(`[]:*?/\`, r) {
			return '_'
		}
		return r
	}, name))
	if len(base) > maxRunes {
		base = base[:maxRunes]
	}
	candidate := string(base)
	for i := 2; used[strings.ToLower(candidate)]; i++ {
		suffix := "_" + strconv.Itoa(i)
		candidate = string(base[:min(len(base), maxRunes-len(suffix))]) + suffix
	}
	used[strings.ToLower(candidate)] = true
	return candidate
}
