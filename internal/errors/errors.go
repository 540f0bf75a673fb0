package errors

import (
	"fmt"
)

// ErrorType categorizes failures so callers can branch on the class of
// problem without string matching.
type ErrorType int

const (
	// NotFound - lookup against the pending or executed set failed
	ErrorTypeNotFound ErrorType = iota
	// Execution - the executor reported a business-logic failure
	ErrorTypeExecution
	// Log - the durable decision log could not be written or read
	ErrorTypeLog
	// Learning - feedback could not be recorded; never fatal to the caller
	ErrorTypeLearning
	// Config - missing or invalid configuration
	ErrorTypeConfig
	// Validation - invalid input data
	ErrorTypeValidation
	// Internal - unexpected internal state
	ErrorTypeInternal
)

// Severity ranks how much a failure should disturb the current operation.
type Severity int

const (
	// SeverityLow - continue, degraded
	SeverityLow Severity = iota
	// SeverityMedium - record and continue
	SeverityMedium
	// SeverityHigh - the current operation failed
	SeverityHigh
	// SeverityCritical - stop; state may be inconsistent
	SeverityCritical
)

// Error is a structured error carrying its type, severity and optional
// decision id context.
type Error struct {
	Type       ErrorType
	Severity   Severity
	Message    string
	DecisionID string
	Cause      error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.DecisionID != "" {
		msg = fmt.Sprintf("%s (decision %s)", msg, e.DecisionID)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches on error type, so errors.Is(err, errors.DecisionNotFound(""))
// style comparisons work across wrapping.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// New creates an error with the given type, severity and message.
func New(errType ErrorType, severity Severity, message string) *Error {
	return &Error{Type: errType, Severity: severity, Message: message}
}

// Wrap annotates an existing error. Returns nil for a nil cause.
func Wrap(err error, errType ErrorType, severity Severity, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Type: errType, Severity: severity, Message: message, Cause: err}
}

// DecisionNotFound reports a lookup miss against the pending or executed set.
// Surfaced to the caller, never retried.
func DecisionNotFound(id string) *Error {
	return &Error{
		Type:       ErrorTypeNotFound,
		Severity:   SeverityHigh,
		Message:    "decision not found",
		DecisionID: id,
	}
}

// ExecutionFailed records an executor failure for a decision. Recorded in the
// log, not retried automatically.
func ExecutionFailed(id string, cause error) *Error {
	return &Error{
		Type:       ErrorTypeExecution,
		Severity:   SeverityMedium,
		Message:    "execution failed",
		DecisionID: id,
		Cause:      cause,
	}
}

// LogWriteFailed reports that the durable store rejected a write. Fatal to
// the current operation: a decision whose outcome could not be recorded must
// not be considered executed.
func LogWriteFailed(cause error, message string) *Error {
	return Wrap(cause, ErrorTypeLog, SeverityCritical, message)
}

// LearningRecordFailed reports a feedback-recording failure. Non-fatal: it
// must not roll back an already-committed decision or execution record.
func LearningRecordFailed(cause error) *Error {
	return Wrap(cause, ErrorTypeLearning, SeverityLow, "record feedback")
}

// IsNotFound reports whether err is (or wraps) a DecisionNotFound error.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	e, ok := err.(*Error)
	if !ok {
		return false
	}
	return e.Type == ErrorTypeNotFound
}

// GetType returns the type of a structured error, ErrorTypeInternal otherwise.
func GetType(err error) ErrorType {
	if e, ok := err.(*Error); ok {
		return e.Type
	}
	return ErrorTypeInternal
}

// GetSeverity returns the severity of a structured error.
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityLow
	}
	if e, ok := err.(*Error); ok {
		return e.Severity
	}
	return SeverityMedium
}
