package domain

import (
	"context"
	"errors"
	"fmt"
)

// ErrSessionNotFound is returned when a session ID cannot be found.
var ErrSessionNotFound = errors.New("session not found")

// ErrSessionBusy is returned when a session is already executing a step.
var ErrSessionBusy = errors.New("session busy")

// ErrSessionClosed is returned when an operation targets a closed session.
var ErrSessionClosed = errors.New("session closed")

// ErrNoPendingAssist is returned by resume when the session has no run
// waiting on manual assist.
var ErrNoPendingAssist = errors.New("no pending manual assist")

// ErrUnsupportedStep is returned when a step type is outside the vocabulary.
var ErrUnsupportedStep = errors.New("unsupported step type")

// ErrRunNotFound is returned when a run ID has no record on disk.
var ErrRunNotFound = errors.New("run not found")

// ErrConnectionLost is returned when the browser connection drops while a
// session is live. The session transitions to failed and must be reopened.
var ErrConnectionLost = errors.New("browser connection lost")

// ErrorKind classifies a step failure for the run log and the UI.
type ErrorKind string

const (
	KindValidation       ErrorKind = "validation"
	KindNavigation       ErrorKind = "navigation_error"
	KindTimeout          ErrorKind = "timeout"
	KindElementNotFound  ErrorKind = "element_not_found"
	KindInvalidKey       ErrorKind = "invalid_key"
	KindExtractionFailed ErrorKind = "extraction_failed"
	KindCaptureFailed    ErrorKind = "capture_failed"
	KindConnectionLost   ErrorKind = "connection_lost"
)

// StepError carries enough structure (kind + step index + message) to be
// rendered by a consumer without interpretation.
type StepError struct {
	Kind      ErrorKind
	StepIndex int
	Message   string
	Err       error
}

func (e *StepError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("step %d [%s]: %s: %v", e.StepIndex, e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("step %d [%s]: %s", e.StepIndex, e.Kind, e.Message)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// NewStepError creates a StepError without a wrapped cause.
func NewStepError(kind ErrorKind, index int, message string) *StepError {
	return &StepError{Kind: kind, StepIndex: index, Message: message}
}

// WrapStepError wraps an underlying failure with classification context.
func WrapStepError(kind ErrorKind, index int, message string, err error) *StepError {
	return &StepError{Kind: kind, StepIndex: index, Message: message, Err: err}
}

// KindOf extracts the classification from err, defaulting to navigation
// errors for plain failures and timeout for context deadline expiry.
func KindOf(err error) ErrorKind {
	var stepErr *StepError
	if errors.As(err, &stepErr) {
		return stepErr.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	if errors.Is(err, ErrConnectionLost) {
		return KindConnectionLost
	}
	return KindNavigation
}

// IsTimeout reports whether err is a step timeout.
func IsTimeout(err error) bool {
	var stepErr *StepError
	if errors.As(err, &stepErr) {
		return stepErr.Kind == KindTimeout
	}
	return errors.Is(err, context.DeadlineExceeded)
}
