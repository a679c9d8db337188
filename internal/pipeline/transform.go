package pipeline

import (
	"context"
	"strings"
	"unicode"

	"market-pipeline/internal/artifact"
	"market-pipeline/internal/model"
	"market-pipeline/pkg/logger"
)

// CleanOptions describes the input format of a line.
type CleanOptions struct {
	Delimiter string
	// DropTrailing removes the last field, which raw snapshots leave empty
	// after their terminating delimiter.
	DropTrailing bool
}

var (
	// RawFormat is the semicolon-terminated snapshot format.
	RawFormat = CleanOptions{Delimiter: ";", DropTrailing: true}
	// CleanedFormat is the comma-joined format the cleaner writes.
	CleanedFormat = CleanOptions{Delimiter: ",", DropTrailing: false}
)

// MismatchPolicy decides what happens to rows whose width differs from the table.
type MismatchPolicy string

const (
	MismatchDrop MismatchPolicy = "drop"
	MismatchFail MismatchPolicy = "fail"
)

// CleanLine strips trailing whitespace, splits on the delimiter, optionally
// drops the last field, trims every field and replaces empty ones with
// model.MissingValue.
func CleanLine(line string, opts CleanOptions) model.CleanedRow {
	line = strings.TrimRightFunc(line, unicode.IsSpace)
	fields := strings.Split(line, opts.Delimiter)
	if opts.DropTrailing {
		fields = fields[:len(fields)-1]
	}

	row := make(model.CleanedRow, len(fields))
	for i, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" {
			f = model.MissingValue
		}
		row[i] = f
	}
	return row
}

// CleanTable cleans every line of raw. Lines that are blank after stripping
// are skipped. A header row (one naming Get and Value) fixes the table width;
// without one the most common row width wins, the earliest row breaking ties.
// Rows of any other width are dropped with a warning, or fail the table
// under MismatchFail.
func CleanTable(dataset string, raw []byte, opts CleanOptions, policy MismatchPolicy) (model.CleanedTable, error) {
	table := model.CleanedTable{Dataset: dataset}

	text := strings.TrimSuffix(string(raw), "\n")
	if text == "" {
		return table, nil
	}

	type numbered struct {
		line int
		row  model.CleanedRow
	}
	var rows []numbered
	counts := make(map[int]int)
	for i, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			table.Blank++
			continue
		}
		row := CleanLine(line, opts)
		rows = append(rows, numbered{line: i + 1, row: row})
		counts[len(row)]++
	}

	width, best := 0, 0
	if len(rows) > 0 && headerIndex(rows[0].row) != nil {
		width, best = len(rows[0].row), len(rows)
	}
	for _, r := range rows {
		if n := len(r.row); n > 0 && counts[n] > best {
			width, best = n, counts[n]
		}
	}

	for _, r := range rows {
		if width > 0 && len(r.row) == width {
			table.Rows = append(table.Rows, r.row)
			continue
		}
		w := model.SchemaWarning{Line: r.line, Fields: len(r.row), Expected: width}
		if policy == MismatchFail {
			return model.CleanedTable{Dataset: dataset}, newStageError(model.StageCleaning, dataset, ErrSchemaMismatch, false, nil,
				"line %d has %d fields, expected %d", w.Line, w.Fields, w.Expected)
		}
		table.Dropped = append(table.Dropped, w)
	}
	return table, nil
}

// Cleaner turns stored raw snapshots into cleaned tables.
type Cleaner struct {
	store  artifact.Store
	policy MismatchPolicy
	log    logger.Logger
}

func NewCleaner(store artifact.Store, policy MismatchPolicy, log logger.Logger) *Cleaner {
	if policy == "" {
		policy = MismatchDrop
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Cleaner{store: store, policy: policy, log: log.Named("cleaner")}
}

// Clean reads the raw artifact, cleans it and writes the cleaned artifact.
func (c *Cleaner) Clean(ctx context.Context, raw model.RawTable) model.StageOutcome[model.CleanedTable] {
	data, err := c.store.Get(ctx, raw.Key)
	if err != nil {
		return model.Failed[model.CleanedTable](newStageError(model.StageCleaning, raw.Dataset,
			ErrRawRead, ctx.Err() == nil, err, "read %s", raw.Key))
	}

	table, err := CleanTable(raw.Dataset, data, RawFormat, c.policy)
	if err != nil {
		return model.Failed[model.CleanedTable](err)
	}
	for _, w := range table.Dropped {
		c.log.Warn(ctx, "schema mismatch, row dropped",
			logger.String("dataset", raw.Dataset),
			logger.Int("line", w.Line),
			logger.Int("fields", w.Fields),
			logger.Int("expected", w.Expected),
		)
	}

	table.Key = artifact.CleanedKey(raw.Dataset)
	table.Location, err = c.store.Put(ctx, table.Key, table.Bytes())
	if err != nil {
		return model.Failed[model.CleanedTable](newStageError(model.StageCleaning, raw.Dataset,
			ErrArtifactWrite, ctx.Err() == nil, err, "store cleaned table"))
	}

	c.log.Info(ctx, "dataset cleaned",
		logger.String("dataset", raw.Dataset),
		logger.Int("rows", len(table.Rows)),
		logger.Int("blank", table.Blank),
		logger.Int("dropped", len(table.Dropped)),
	)
	return model.Succeeded(table)
}
