// SPDX-License-Identifier: MPL-2.0

package pct

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrCreateFailed is the sentinel error wrapped by CreateError.
	ErrCreateFailed = errors.New("container create failed")
	// ErrDestroyFailed is the sentinel error wrapped by DestroyError.
	ErrDestroyFailed = errors.New("container destroy failed")
	// ErrExecTimeout is the sentinel error wrapped by ExecTimeoutError.
	ErrExecTimeout = errors.New("in-container command timed out")
	// ErrBootTimeout is returned when a started container never reaches
	// multi-user.target within the configured boot timeout.
	ErrBootTimeout = errors.New("container boot timed out")
	// ErrBinaryNotFound is returned when the pct or pveam binary cannot be
	// resolved on the host PATH.
	ErrBinaryNotFound = errors.New("control plane binary not found")
)

type (
	// CreateError is returned when pct create fails. Output carries the
	// control plane's combined stdout/stderr for the job log.
	CreateError struct {
		VMID   int
		Output string
		Err    error
	}

	// DestroyError is returned when pct destroy fails, typically because the
	// container is still running or locked.
	DestroyError struct {
		VMID   int
		Output string
		Err    error
	}

	// ExecTimeoutError is returned when an in-container command exceeds its
	// timeout. The container is left running.
	ExecTimeoutError struct {
		VMID    int
		Timeout time.Duration
	}
)

// Error implements the error interface.
func (e *CreateError) Error() string {
	msg := fmt.Sprintf("create container %d: %v", e.VMID, e.Err)
	if out := strings.TrimSpace(e.Output); out != "" {
		msg += ": " + out
	}
	return msg
}

// Unwrap returns ErrCreateFailed so callers can use errors.Is.
func (e *CreateError) Unwrap() error { return ErrCreateFailed }

// Error implements the error interface.
func (e *DestroyError) Error() string {
	msg := fmt.Sprintf("destroy container %d: %v", e.VMID, e.Err)
	if out := strings.TrimSpace(e.Output); out != "" {
		msg += ": " + out
	}
	return msg
}

// Unwrap returns ErrDestroyFailed so callers can use errors.Is.
func (e *DestroyError) Unwrap() error { return ErrDestroyFailed }

// Error implements the error interface.
func (e *ExecTimeoutError) Error() string {
	return fmt.Sprintf("exec in container %d exceeded %s", e.VMID, e.Timeout)
}

// Unwrap returns ErrExecTimeout so callers can use errors.Is.
func (e *ExecTimeoutError) Unwrap() error { return ErrExecTimeout }
