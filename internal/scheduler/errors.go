package scheduler

import (
	"context"
	"errors"
	"fmt"

	"harvest/internal/models"
)

// ErrorKind classifies a per-target failure for logs and metrics.
type ErrorKind string

const (
	KindTimeout    ErrorKind = "timeout"
	KindNavigation ErrorKind = "navigation"
	KindExtract    ErrorKind = "extract"
	KindPanic      ErrorKind = "panic"
	KindOther      ErrorKind = "other"
)

// TaskError is the failure of one fetch-and-extract task. It never escapes
// Run; it is logged and, under the placeholder policy, recorded.
type TaskError struct {
	Target models.Target
	Kind   ErrorKind
	Err    error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Kind, e.Target.URL, e.Err)
}

func (e *TaskError) Unwrap() error {
	return e.Err
}

// KindOf returns the classification of err.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var te *TaskError
	if errors.As(err, &te) {
		return te.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindOther
}

func navigationError(t models.Target, err error) *TaskError {
	kind := KindNavigation
	if errors.Is(err, context.DeadlineExceeded) {
		kind = KindTimeout
	}
	return &TaskError{Target: t, Kind: kind, Err: err}
}
