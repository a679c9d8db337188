package pipeline

import (
	"cmp"
	"context"
	"encoding/json"
	"slices"

	"market-pipeline/internal/artifact"
	"market-pipeline/internal/model"
	"market-pipeline/pkg/logger"
	"market-pipeline/pkg/utils"
)

// AnalyzeTable computes the analysis of a cleaned table. Rows whose Value is
// not numeric are left out of the numeric statistics and the averages but
// still count towards leagues and dates.
func AnalyzeTable(dataset string, table model.CleanedTable) (model.Analysis, error) {
	cols, start, err := resolveColumns(dataset, table)
	if err != nil {
		return model.Analysis{}, err
	}

	type pair struct{ get, pay string }
	type group struct {
		sum   float64
		count int
	}
	var (
		values   []float64
		excluded int
		leagues  = make(map[string]struct{})
		groups   = make(map[pair]*group)
		earliest string
		latest   string
	)

	for _, row := range table.Rows[start:] {
		if league := row[cols.league]; league != model.MissingValue {
			leagues[league] = struct{}{}
		}
		if date := row[cols.date]; date != model.MissingValue {
			if earliest == "" || date < earliest {
				earliest = date
			}
			if latest == "" || date > latest {
				latest = date
			}
		}

		v, ok := utils.ParseNumber(row[cols.value])
		if !ok {
			excluded++
			continue
		}
		values = append(values, v)

		key := pair{row[cols.get], row[cols.pay]}
		g, found := groups[key]
		if !found {
			g = &group{}
			groups[key] = g
		}
		g.sum += v
		g.count++
	}

	if len(values) == 0 {
		return model.Analysis{}, newStageError(model.StageAnalysis, dataset, ErrEmptyDataset, false, nil,
			"no numeric values in %d rows", len(table.Rows)-start)
	}

	d := describe(values)
	result := model.AnalysisResult{
		Centers: model.Centers{Mean: d.mean, Median: d.median, Mode: d.mode},
		Spread:  model.Spread{Range: d.max - d.min},
		Qualitative: model.Qualitative{
			LeagueCount:  len(leagues),
			EarliestDate: earliest,
			LatestDate:   latest,
		},
		Averages: make(map[string]float64, len(groups)),
	}
	if d.hasVariance {
		variance := d.variance
		result.Spread.Variance = &variance
		result.Spread.StdDev = sqrtPtr(variance)
	}
	averages := make([]model.GroupAverage, 0, len(groups))
	for key, g := range groups {
		mean := g.sum / float64(g.count)
		result.Averages[key.get+","+key.pay] = mean
		averages = append(averages, model.GroupAverage{Get: key.get, Pay: key.pay, Mean: mean})
	}
	slices.SortFunc(averages, func(a, b model.GroupAverage) int {
		return cmp.Or(cmp.Compare(a.Get, b.Get), cmp.Compare(a.Pay, b.Pay))
	})

	return model.Analysis{
		Dataset:  dataset,
		Samples:  len(values),
		Excluded: excluded,
		Result:   result,
		Groups:   averages,
	}, nil
}

// Analyzer computes and stores analysis artifacts.
type Analyzer struct {
	store artifact.Store
	log   logger.Logger
}

func NewAnalyzer(store artifact.Store, log logger.Logger) *Analyzer {
	if log == nil {
		log = logger.Discard()
	}
	return &Analyzer{store: store, log: log.Named("analyzer")}
}

// Analyze computes the table's statistics and writes them as JSON under the
// dataset's analysis key.
func (a *Analyzer) Analyze(ctx context.Context, table model.CleanedTable) model.StageOutcome[model.Analysis] {
	analysis, err := AnalyzeTable(table.Dataset, table)
	if err != nil {
		return model.Failed[model.Analysis](err)
	}
	if analysis.Result.Spread.Variance == nil {
		a.log.Warn(ctx, "variance undefined for fewer than two values",
			logger.String("dataset", table.Dataset),
			logger.Int("samples", analysis.Samples),
		)
	}

	data, err := json.MarshalIndent(analysis.Result, "", "  ")
	if err != nil {
		return model.Failed[model.Analysis](newStageError(model.StageAnalysis, table.Dataset,
			ErrArtifactWrite, false, err, "encode analysis"))
	}
	analysis.Location, err = a.store.Put(ctx, artifact.AnalysisKey(table.Dataset), data)
	if err != nil {
		return model.Failed[model.Analysis](newStageError(model.StageAnalysis, table.Dataset,
			ErrArtifactWrite, ctx.Err() == nil, err, "store analysis"))
	}

	a.log.Info(ctx, "dataset analyzed",
		logger.String("dataset", table.Dataset),
		logger.Int("samples", analysis.Samples),
		logger.Int("excluded", analysis.Excluded),
		logger.Int("groups", len(analysis.Result.Averages)),
		logger.Float64("mean", analysis.Result.Centers.Mean),
	)
	return model.Succeeded(analysis)
}
