package pipeline

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"market-pipeline/internal/model"
)

// ErrIllegalTransition is returned when a dataset is moved out of order.
var ErrIllegalTransition = errors.New("illegal state transition")

var transitions = map[model.DatasetState][]model.DatasetState{
	model.StatePending:   {model.StateAcquiring, model.StateFailed},
	model.StateAcquiring: {model.StateCleaning, model.StateFailed},
	model.StateCleaning:  {model.StateAnalyzing, model.StateFailed},
	model.StateAnalyzing: {model.StateDone, model.StateFailed},
}

// CanTransition reports whether from -> to is allowed.
func CanTransition(from, to model.DatasetState) bool {
	return slices.Contains(transitions[from], to)
}

// Tracker keeps the per-dataset state machine of one run.
type Tracker struct {
	RunID string

	mu       sync.Mutex
	traces   map[string]*model.DatasetTrace
	failures map[string]model.DatasetFailure
}

// NewTracker starts every dataset in the pending state.
func NewTracker(runID string, specs []model.DatasetSpec) *Tracker {
	t := &Tracker{
		RunID:    runID,
		traces:   make(map[string]*model.DatasetTrace, len(specs)),
		failures: make(map[string]model.DatasetFailure),
	}
	for _, s := range specs {
		t.traces[s.Name] = &model.DatasetTrace{
			Dataset: s.Name,
			Source:  s.Source,
			State:   model.StatePending,
			History: []model.DatasetState{model.StatePending},
			Stages:  make(map[model.Stage]model.StageMetrics),
		}
	}
	return t
}

// Transition moves a dataset to a new state.
func (t *Tracker) Transition(dataset string, to model.DatasetState) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	trace, ok := t.traces[dataset]
	if !ok {
		return fmt.Errorf("unknown dataset %q", dataset)
	}
	if !CanTransition(trace.State, to) {
		return fmt.Errorf("%w: %s %s -> %s", ErrIllegalTransition, dataset, trace.State, to)
	}
	trace.State = to
	trace.History = append(trace.History, to)
	return nil
}

// State returns the current state of a dataset.
func (t *Tracker) State(dataset string) model.DatasetState {
	t.mu.Lock()
	defer t.mu.Unlock()
	if trace, ok := t.traces[dataset]; ok {
		return trace.State
	}
	return ""
}

// RecordStage stores attempts and wall time of a finished stage.
func (t *Tracker) RecordStage(dataset string, stage model.Stage, attempts int, d time.Duration, status model.Status) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if trace, ok := t.traces[dataset]; ok {
		trace.Stages[stage] = model.StageMetrics{Attempts: attempts, Duration: d, Status: status}
	}
}

// Attempts returns how many attempts the stage took for dataset, 0 if it
// has not run.
func (t *Tracker) Attempts(dataset string, stage model.Stage) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if trace, ok := t.traces[dataset]; ok {
		return trace.Stages[stage].Attempts
	}
	return 0
}

// Warn attaches a non-fatal note to a dataset.
func (t *Tracker) Warn(dataset, msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if trace, ok := t.traces[dataset]; ok {
		trace.Warnings = append(trace.Warnings, msg)
	}
}

// Fail marks a dataset failed at stage and records why.
func (t *Tracker) Fail(dataset string, stage model.Stage, err error, attempts int) (model.DatasetFailure, error) {
	f := model.DatasetFailure{
		Dataset:  dataset,
		Stage:    stage,
		Kind:     KindOf(err),
		Message:  err.Error(),
		Attempts: attempts,
		Err:      err,
	}
	if terr := t.Transition(dataset, model.StateFailed); terr != nil {
		return f, terr
	}
	t.mu.Lock()
	t.failures[dataset] = f
	t.mu.Unlock()
	return f, nil
}

// Failures lists failed datasets ordered by name.
func (t *Tracker) Failures() []model.DatasetFailure {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]model.DatasetFailure, 0, len(t.failures))
	for _, f := range t.failures {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Dataset < out[j].Dataset })
	return out
}

// Snapshot returns a copy of every trace.
func (t *Tracker) Snapshot() map[string]model.DatasetTrace {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]model.DatasetTrace, len(t.traces))
	for name, trace := range t.traces {
		c := *trace
		c.History = slices.Clone(trace.History)
		c.Warnings = slices.Clone(trace.Warnings)
		c.Stages = make(map[model.Stage]model.StageMetrics, len(trace.Stages))
		for k, v := range trace.Stages {
			c.Stages[k] = v
		}
		out[name] = c
	}
	return out
}
