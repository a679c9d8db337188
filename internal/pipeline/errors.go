package pipeline

import (
	"errors"
	"fmt"

	"market-pipeline/internal/model"
)

// Error kinds. Match them with errors.Is.
var (
	ErrSourceUnavailable = errors.New("source unavailable")
	ErrRawRead           = errors.New("raw read failed")
	ErrSchemaMismatch    = errors.New("schema mismatch")
	ErrEmptyDataset      = errors.New("empty dataset")
	ErrArtifactWrite     = errors.New("artifact write failed")
	ErrInvalidConfig     = errors.New("invalid pipeline configuration")
)

var kindNames = []struct {
	kind error
	name string
}{
	{ErrSourceUnavailable, "source_unavailable"},
	{ErrRawRead, "raw_read"},
	{ErrSchemaMismatch, "schema_mismatch"},
	{ErrEmptyDataset, "empty_dataset"},
	{ErrArtifactWrite, "artifact_write"},
	{ErrInvalidConfig, "invalid_config"},
}

// StageError is a dataset-scoped failure raised by one stage.
type StageError struct {
	Stage     model.Stage
	Dataset   string
	Kind      error
	Message   string
	Cause     error
	Retryable bool
}

// Error implements the error interface
func (e *StageError) Error() string {
	if e == nil {
		return "unknown stage error"
	}
	msg := fmt.Sprintf("[%s] %s: %s", e.Stage, e.Dataset, e.Message)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap exposes both the kind and the underlying cause.
func (e *StageError) Unwrap() []error {
	if e == nil {
		return nil
	}
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	return errs
}

func newStageError(stage model.Stage, dataset string, kind error, retryable bool, cause error, format string, args ...any) *StageError {
	return &StageError{
		Stage:     stage,
		Dataset:   dataset,
		Kind:      kind,
		Message:   fmt.Sprintf(format, args...),
		Cause:     cause,
		Retryable: retryable,
	}
}

// IsRetryable reports whether err is worth another attempt.
func IsRetryable(err error) bool {
	var se *StageError
	if errors.As(err, &se) {
		return se.Retryable
	}
	return false
}

// KindOf names the error kind, "cancelled" for context errors and "internal" otherwise.
func KindOf(err error) string {
	for _, k := range kindNames {
		if errors.Is(err, k.kind) {
			return k.name
		}
	}
	if isContextErr(err) {
		return "cancelled"
	}
	return "internal"
}
