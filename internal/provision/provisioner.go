// SPDX-License-Identifier: MPL-2.0

package provision

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"pvexec/internal/pct"
)

// RemotePath is where the payload lands inside the container.
const RemotePath = "/usr/local/bin/pvexec-provision"

//go:embed payload.sh
var payload []byte

// ErrProvisionFailed is the sentinel error wrapped by ProvisionError.
var ErrProvisionFailed = errors.New("container provisioning failed")

type (
	// ProvisionerOption configures a Provisioner.
	ProvisionerOption func(*Provisioner)

	// Provisioner installs the job prerequisites into a running container by
	// pushing the payload script and executing it via the control plane.
	Provisioner struct {
		engine      pct.Engine
		payloadPath string
		timeout     time.Duration
		stdout      io.Writer
		stderr      io.Writer
	}

	// ProvisionError is returned when the payload exits non-zero. Stderr
	// carries the payload's diagnostic for the job log.
	ProvisionError struct {
		VMID     int
		ExitCode int
		Stderr   string
	}
)

// Error implements the error interface.
func (e *ProvisionError) Error() string {
	msg := fmt.Sprintf("provision container %d: payload exited %d", e.VMID, e.ExitCode)
	if diag := strings.TrimSpace(e.Stderr); diag != "" {
		msg += ": " + diag
	}
	return msg
}

// Unwrap returns ErrProvisionFailed so callers can use errors.Is.
func (e *ProvisionError) Unwrap() error { return ErrProvisionFailed }

// WithPayloadPath overrides the embedded payload with a script on the host.
func WithPayloadPath(path string) ProvisionerOption {
	return func(p *Provisioner) {
		p.payloadPath = path
	}
}

// WithTimeout bounds the payload execution.
func WithTimeout(d time.Duration) ProvisionerOption {
	return func(p *Provisioner) {
		p.timeout = d
	}
}

// WithOutput tees the payload's stdout and stderr to the given writers so
// provisioning progress shows up in the job log.
func WithOutput(stdout, stderr io.Writer) ProvisionerOption {
	return func(p *Provisioner) {
		p.stdout = stdout
		p.stderr = stderr
	}
}

// NewProvisioner creates a Provisioner driving the given engine.
func NewProvisioner(engine pct.Engine, opts ...ProvisionerOption) *Provisioner {
	p := &Provisioner{
		engine:  engine,
		timeout: 10 * time.Minute,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Provision pushes the payload into the container and runs it. A non-zero
// payload exit is a ProvisionError; the caller treats it as fatal to prepare.
func (p *Provisioner) Provision(ctx context.Context, vmid int) error {
	local, cleanup, err := p.localPayload()
	if err != nil {
		return err
	}
	defer cleanup()

	if err := p.engine.Push(ctx, vmid, local, RemotePath, 0o755); err != nil {
		return fmt.Errorf("%w: %w", ErrProvisionFailed, err)
	}

	res, err := p.engine.Exec(ctx, vmid, []string{RemotePath}, pct.ExecOptions{
		Timeout: p.timeout,
		Stdout:  p.stdout,
		Stderr:  p.stderr,
	})
	if err != nil {
		// Keeps the bridge error inspectable, e.g. errors.Is on the exec
		// timeout sentinel.
		return fmt.Errorf("%w: %w", ErrProvisionFailed, err)
	}
	if res.ExitCode != 0 {
		return &ProvisionError{VMID: vmid, ExitCode: res.ExitCode, Stderr: res.Stderr}
	}
	return nil
}

// localPayload returns a host path for the payload: the configured override,
// or the embedded script written to a temp file.
func (p *Provisioner) localPayload() (path string, cleanup func(), err error) {
	if p.payloadPath != "" {
		if _, err := os.Stat(p.payloadPath); err != nil {
			return "", nil, fmt.Errorf("%w: payload %s: %v", ErrProvisionFailed, p.payloadPath, err)
		}
		return p.payloadPath, func() {}, nil
	}

	f, err := os.CreateTemp("", "pvexec-provision-*.sh")
	if err != nil {
		return "", nil, fmt.Errorf("%w: write payload: %v", ErrProvisionFailed, err)
	}
	if _, err := f.Write(payload); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", nil, fmt.Errorf("%w: write payload: %v", ErrProvisionFailed, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", nil, fmt.Errorf("%w: write payload: %v", ErrProvisionFailed, err)
	}
	return f.Name(), func() { _ = os.Remove(f.Name()) }, nil
}
