// SPDX-License-Identifier: MPL-2.0

package executor

import (
	"errors"
	"fmt"

	"pvexec/internal/pct"
)

// ErrInfrastructure is the sentinel error wrapped by InfrastructureError.
// The protocol adapter maps it to the runner's system-failure exit code so
// the runner never mistakes an executor malfunction for a failing job script.
var ErrInfrastructure = errors.New("executor infrastructure failure")

// InfrastructureError is returned when run finds the container in any state
// other than running. The job script never executed, so no script exit code
// exists to forward.
type InfrastructureError struct {
	VMID  int
	State pct.ContainerState
}

// Error implements the error interface.
func (e *InfrastructureError) Error() string {
	return fmt.Sprintf("container %d is %s, expected running", e.VMID, e.State)
}

// Unwrap returns ErrInfrastructure so callers can use errors.Is.
func (e *InfrastructureError) Unwrap() error { return ErrInfrastructure }
