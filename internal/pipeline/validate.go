package pipeline

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"market-pipeline/internal/model"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ValidateSpecs rejects a batch that cannot run at all: no datasets, a
// dataset without name or source, or two datasets with the same name.
func ValidateSpecs(specs []model.DatasetSpec) error {
	if len(specs) == 0 {
		return fmt.Errorf("%w: no datasets configured", ErrInvalidConfig)
	}

	var errs []error
	seen := make(map[string]struct{}, len(specs))
	for i, spec := range specs {
		if err := validate.Struct(spec); err != nil {
			errs = append(errs, fmt.Errorf("dataset %d (%q): %v", i, spec.Name, err))
			continue
		}
		if _, dup := seen[spec.Name]; dup {
			errs = append(errs, fmt.Errorf("duplicate dataset name %q", spec.Name))
			continue
		}
		seen[spec.Name] = struct{}{}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// ------------------- Cleaned table schema -------------------

// Fixed column positions used when a table has no header row.
const (
	colGet = iota
	colPay
	colValue
	colLeague
	colDate
)

// columns are the positions of the load-bearing fields in a cleaned row.
type columns struct {
	get, pay, value, league, date int
}

func (c columns) maxIndex() int {
	return max(c.get, c.pay, c.value, c.league, c.date)
}

var positional = columns{get: colGet, pay: colPay, value: colValue, league: colLeague, date: colDate}

// resolveColumns finds the column layout of a cleaned table. A first row
// naming both Get and Value is a header and is skipped; otherwise columns
// are positional. It returns the index of the first data row.
func resolveColumns(dataset string, table model.CleanedTable) (columns, int, error) {
	if len(table.Rows) == 0 {
		return columns{}, 0, nil
	}

	cols, start := positional, 0
	if idx := headerIndex(table.Rows[0]); idx != nil {
		var missing []string
		lookup := func(name string) int {
			if i, ok := idx[strings.ToLower(name)]; ok {
				return i
			}
			missing = append(missing, name)
			return -1
		}
		cols = columns{
			get:    lookup("Get"),
			pay:    lookup("Pay"),
			value:  lookup("Value"),
			league: lookup("League"),
			date:   lookup("Date"),
		}
		if len(missing) > 0 {
			return columns{}, 0, newStageError(model.StageAnalysis, dataset, ErrSchemaMismatch, false, nil,
				"header is missing columns %s", strings.Join(missing, ", "))
		}
		start = 1
	}

	if width := table.Width(); width <= cols.maxIndex() {
		return columns{}, 0, newStageError(model.StageAnalysis, dataset, ErrSchemaMismatch, false, nil,
			"rows have %d fields, need at least %d", width, cols.maxIndex()+1)
	}
	return cols, start, nil
}

func headerIndex(row model.CleanedRow) map[string]int {
	idx := make(map[string]int, len(row))
	for i, f := range row {
		key := strings.ToLower(f)
		if _, ok := idx[key]; !ok {
			idx[key] = i
		}
	}
	_, hasGet := idx["get"]
	_, hasValue := idx["value"]
	if !hasGet || !hasValue {
		return nil
	}
	return idx
}
