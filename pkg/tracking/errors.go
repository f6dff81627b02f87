package tracking

import (
	"errors"
	"fmt"
)

// ErrStartCanceled indicates Stop (or a newer Start) interrupted a start.
var ErrStartCanceled = errors.New("tracking: start canceled")

// ErrorKind classifies tracking failures.
type ErrorKind int

const (
	// KindInitialization means the model failed to load or warm up.
	KindInitialization ErrorKind = iota + 1
	// KindCapture means the camera could not be opened or was lost.
	KindCapture
	// KindEstimation means a single inference cycle failed.
	KindEstimation
)

func (k ErrorKind) String() string {
	switch k {
	case KindInitialization:
		return "initialization"
	case KindCapture:
		return "capture"
	case KindEstimation:
		return "estimation"
	}
	return "unknown"
}

// Error is a classified tracking failure.
type Error struct {
	Kind    ErrorKind
	Op      string // step that failed, e.g. "initialize model"
	Session string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("tracking: %s failure: %s: %v", e.Kind, e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of a tracking error, or 0 if err is not one.
func KindOf(err error) ErrorKind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return 0
}
