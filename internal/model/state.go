package model

// Stage is one step of the pipeline.
type Stage string

const (
	StageAcquisition Stage = "acquisition"
	StageCleaning    Stage = "cleaning"
	StageAnalysis    Stage = "analysis"
)

// Stages in execution order.
var Stages = []Stage{StageAcquisition, StageCleaning, StageAnalysis}

// DatasetState tracks a dataset through one run.
type DatasetState string

const (
	StatePending   DatasetState = "pending"
	StateAcquiring DatasetState = "acquiring"
	StateCleaning  DatasetState = "cleaning"
	StateAnalyzing DatasetState = "analyzing"
	StateDone      DatasetState = "done"
	StateFailed    DatasetState = "failed"
)

// Terminal reports whether no further transitions are allowed.
func (s DatasetState) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// State returns the state a dataset is in while the stage runs.
func (s Stage) State() DatasetState {
	switch s {
	case StageAcquisition:
		return StateAcquiring
	case StageCleaning:
		return StateCleaning
	case StageAnalysis:
		return StateAnalyzing
	default:
		return StatePending
	}
}
