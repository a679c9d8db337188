package model

// Status of a single stage invocation.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// StageOutcome is what every stage returns: a payload on success or an error.
type StageOutcome[T any] struct {
	Status   Status
	Payload  T
	Err      error
	Attempts int
}

// Succeeded wraps a successful payload.
func Succeeded[T any](payload T) StageOutcome[T] {
	return StageOutcome[T]{Status: StatusSuccess, Payload: payload, Attempts: 1}
}

// Failed wraps a stage error.
func Failed[T any](err error) StageOutcome[T] {
	return StageOutcome[T]{Status: StatusFailure, Err: err, Attempts: 1}
}

func (o StageOutcome[T]) OK() bool {
	return o.Status == StatusSuccess
}
