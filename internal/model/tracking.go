package model

import "time"

// BatchStatus summarises a finished run.
type BatchStatus string

const (
	BatchCompleted BatchStatus = "completed"
	BatchPartial   BatchStatus = "partial"
	BatchFailed    BatchStatus = "failed"
)

// DatasetFailure explains why a dataset is missing from the results.
type DatasetFailure struct {
	Dataset  string `json:"dataset"`
	Stage    Stage  `json:"stage"`
	Kind     string `json:"kind"`
	Message  string `json:"message"`
	Attempts int    `json:"attempts"`
	Err      error  `json:"-"`
}

// StageMetrics is the timing of one stage for one dataset.
type StageMetrics struct {
	Attempts int           `json:"attempts"`
	Duration time.Duration `json:"duration"`
	Status   Status        `json:"status"`
}

// DatasetTrace is the state-machine history of one dataset.
type DatasetTrace struct {
	Dataset  string                 `json:"dataset"`
	Source   string                 `json:"source"`
	State    DatasetState           `json:"state"`
	History  []DatasetState         `json:"history"`
	Stages   map[Stage]StageMetrics `json:"stages"`
	Warnings []string               `json:"warnings,omitempty"`
}

// BatchResult is the outcome of one run: analyses of the datasets that
// reached done, plus one failure entry for every other dataset.
type BatchResult struct {
	RunID      string                  `json:"run_id"`
	Results    map[string]Analysis     `json:"results"`
	Failures   []DatasetFailure        `json:"failures"`
	Datasets   map[string]DatasetTrace `json:"datasets"`
	StartedAt  time.Time               `json:"started_at"`
	FinishedAt time.Time               `json:"finished_at"`
}

// Status is completed when nothing failed, failed when nothing succeeded and
// partial otherwise.
func (b *BatchResult) Status() BatchStatus {
	switch {
	case len(b.Failures) == 0:
		return BatchCompleted
	case len(b.Results) == 0:
		return BatchFailed
	default:
		return BatchPartial
	}
}
