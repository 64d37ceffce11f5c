package engine

import (
	"errors"
	"fmt"
)

// RunError represents a failure of the run lifecycle.
//
// Run errors include:
//   - Busy: another process holds the run lock
//   - Safety check failed: the current account is not the requested one
//   - Catalog empty: no techniques match the filter
//   - External tool failure: warmup or detonation exited non-zero
//
// Errors raised before a record exists (busy, safety check, empty catalog)
// leave no durable trace; external tool failures are also captured into the
// run record before being surfaced.
type RunError struct {
	// Code identifies the error category.
	Code RunErrorCode

	// Message is a human-readable description.
	Message string

	// RunID identifies the affected run, when a record exists.
	RunID string

	// HolderPID is the lock holder's PID (busy errors only, 0 if unknown).
	HolderPID int

	// Err is the underlying cause, if any.
	Err error
}

// RunErrorCode categorizes run errors.
type RunErrorCode string

const (
	// ErrCodeBusy indicates another run is in progress.
	ErrCodeBusy RunErrorCode = "BUSY"

	// ErrCodeSafetyCheck indicates the target account did not match the
	// actual execution context.
	ErrCodeSafetyCheck RunErrorCode = "SAFETY_CHECK_FAILED"

	// ErrCodeCatalogEmpty indicates no techniques matched the filter.
	ErrCodeCatalogEmpty RunErrorCode = "CATALOG_EMPTY"

	// ErrCodeExternalTool indicates an external invocation failed.
	ErrCodeExternalTool RunErrorCode = "EXTERNAL_TOOL_FAILURE"
)

// Error implements the error interface.
func (e *RunError) Error() string {
	msg := e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	if e.RunID != "" {
		return fmt.Sprintf("%s: %s (run=%s)", e.Code, msg, e.RunID)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

func (e *RunError) Unwrap() error {
	return e.Err
}

// CodeOf extracts the run error code from an error chain, or "" if the error
// is not a RunError.
func CodeOf(err error) RunErrorCode {
	var re *RunError
	if errors.As(err, &re) {
		return re.Code
	}
	return ""
}

// IsBusy reports whether the error means another run holds the lock.
func IsBusy(err error) bool {
	return CodeOf(err) == ErrCodeBusy
}

// NewBusyError creates a RunError for a contended lock. pid may be 0 when
// the holder could not be read.
func NewBusyError(pid int) *RunError {
	return &RunError{
		Code:      ErrCodeBusy,
		Message:   fmt.Sprintf("another run is in progress (PID: %d)", pid),
		HolderPID: pid,
	}
}

// NewSafetyCheckError creates a RunError for an account mismatch.
func NewSafetyCheckError(current, expected string) *RunError {
	return &RunError{
		Code:    ErrCodeSafetyCheck,
		Message: fmt.Sprintf("running in account %s, expected %s", current, expected),
	}
}

// NewCatalogEmptyError creates a RunError for an empty technique catalog.
func NewCatalogEmptyError(tactic string) *RunError {
	msg := "no techniques found"
	if tactic != "" {
		msg = fmt.Sprintf("no techniques found for tactic %q", tactic)
	}
	return &RunError{Code: ErrCodeCatalogEmpty, Message: msg}
}
