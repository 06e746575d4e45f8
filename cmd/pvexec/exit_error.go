// SPDX-License-Identifier: MPL-2.0

package main

import "fmt"

// ExitError signals a specific process exit code without forcing os.Exit in
// RunE handlers.
type ExitError struct {
	Code int
	Err  error
}

// Error returns the error message for ExitError.
func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

// Unwrap returns the underlying error, if any.
func (e *ExitError) Unwrap() error {
	return e.Err
}

// systemFailure wraps err in an ExitError carrying the runner's
// system-failure code, marking it an executor fault rather than a job
// failure.
func systemFailure(err error) error {
	return &ExitError{Code: systemFailureCode(), Err: err}
}

// scriptExit maps a job script's exit status onto the driver's exit code.
// The status is forwarded verbatim; a script killed by a signal has no
// status to forward and reports the runner's generic build-failure code.
func scriptExit(code int) error {
	switch {
	case code == 0:
		return nil
	case code < 0:
		return &ExitError{Code: buildFailureCode()}
	default:
		return &ExitError{Code: code}
	}
}
