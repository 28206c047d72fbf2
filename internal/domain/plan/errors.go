package plan

import (
	"errors"
	"fmt"
)

// ValidationError reports a missing or undersized required field together
// with the exact threshold the caller failed to meet, so clients can render
// the requirement without a second round trip.
type ValidationError struct {
	Field string
	Min   int
	Got   int
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Msg)
	}
	if e.Min > 0 {
		return fmt.Sprintf("%s must be at least %d characters (got %d)", e.Field, e.Min, e.Got)
	}
	return fmt.Sprintf("%s is required", e.Field)
}

func NewValidationError(field, msg string) *ValidationError {
	return &ValidationError{Field: field, Msg: msg}
}

func NewLengthError(field string, min, got int) *ValidationError {
	return &ValidationError{Field: field, Min: min, Got: got}
}

// PermissionError reports a mutation attempted without the necessary
// capability or lock bypass.
type PermissionError struct {
	Capability string
	Reason     string
}

func (e *PermissionError) Error() string {
	if e.Reason != "" {
		return e.Reason
	}
	return fmt.Sprintf("caller lacks capability %s", e.Capability)
}

// ConflictError reports that server state diverged from the state the caller
// based its decision on. The caller must refetch before retrying.
type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string {
	if e.Reason != "" {
		return e.Reason
	}
	return "plan was modified concurrently"
}

// RecalledError is the specific conflict raised when the plan's owner
// withdrew the submission while a grading action was in flight.
type RecalledError struct {
	PlanName string
}

func (e *RecalledError) Error() string {
	if e.PlanName != "" {
		return fmt.Sprintf("submission for %q was recalled by its owner; refetch before grading", e.PlanName)
	}
	return "submission was recalled by its owner; refetch before grading"
}

// TransientError wraps a network or timeout failure. The outcome of the
// remote call is unknown; the caller must re-sync and retry explicitly.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// PolicyConfigError reports missing administrator configuration. The
// operation stays blocked until the configuration exists; there is no
// engine-side fallback.
type PolicyConfigError struct {
	Setting string
}

func (e *PolicyConfigError) Error() string {
	return fmt.Sprintf("policy configuration %q is not set; ask an administrator", e.Setting)
}

// IsConflict reports whether err is a conflict of any kind, including a
// recalled submission.
func IsConflict(err error) bool {
	var c *ConflictError
	var r *RecalledError
	return errors.As(err, &c) || errors.As(err, &r)
}
