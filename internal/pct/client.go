// SPDX-License-Identifier: MPL-2.0

package pct

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

type (
	// ExecCommandFunc is the function signature for creating exec.Cmd.
	// This allows injection of mock implementations for testing.
	ExecCommandFunc func(ctx context.Context, name string, arg ...string) *exec.Cmd

	// ClientOption configures a Client.
	ClientOption func(*Client)

	// Client is the production Engine implementation. It shells out to the
	// pct binary for every operation and keeps no state between calls.
	Client struct {
		binaryPath  string
		execCommand ExecCommandFunc
	}
)

// WithBinaryPath sets the pct binary path, bypassing PATH lookup.
func WithBinaryPath(path string) ClientOption {
	return func(c *Client) {
		c.binaryPath = path
	}
}

// WithExecCommand sets a custom exec command function for testing.
func WithExecCommand(fn ExecCommandFunc) ClientOption {
	return func(c *Client) {
		c.execCommand = fn
	}
}

// NewClient creates a Client, resolving the pct binary on PATH unless
// WithBinaryPath overrides it.
func NewClient(opts ...ClientOption) (*Client, error) {
	c := &Client{execCommand: exec.CommandContext}
	for _, opt := range opts {
		opt(c)
	}
	if c.binaryPath == "" {
		path, err := exec.LookPath("pct")
		if err != nil {
			return nil, fmt.Errorf("%w: pct: %v", ErrBinaryNotFound, err)
		}
		c.binaryPath = path
	}
	return c, nil
}

// BinaryPath returns the resolved pct binary path.
func (c *Client) BinaryPath() string { return c.binaryPath }

// --- Argument Builders ---

// StatusArgs constructs arguments for pct status.
func (c *Client) StatusArgs(vmid int) []string {
	return []string{"status", strconv.Itoa(vmid)}
}

// CreateArgs constructs arguments for pct create.
//
// Generated command: pct create <vmid> <template> [options]
func (c *Client) CreateArgs(vmid int, template string, opts CreateOptions) []string {
	args := []string{"create", strconv.Itoa(vmid), template}

	if opts.Hostname != "" {
		args = append(args, "--hostname", opts.Hostname)
	}
	if opts.Description != "" {
		args = append(args, "--description", opts.Description)
	}
	if opts.RootFS != "" {
		args = append(args, "--rootfs", "volume="+opts.RootFS)
	}
	if opts.MemoryMB > 0 {
		args = append(args, "--memory", strconv.Itoa(opts.MemoryMB))
	}
	if opts.Cores > 0 {
		args = append(args, "--cores", strconv.Itoa(opts.Cores))
	}
	if opts.Bridge != "" {
		args = append(args, "--net0", fmt.Sprintf("name=eth0,bridge=%s,ip=dhcp", opts.Bridge))
	}
	if opts.Unprivileged {
		args = append(args, "--unprivileged", "1")
	}
	if opts.Nesting {
		args = append(args, "--features", "nesting=1")
	}
	if len(opts.Tags) > 0 {
		args = append(args, "--tags", strings.Join(opts.Tags, ";"))
	}
	args = append(args, "--timezone", "host")

	return args
}

// StartArgs constructs arguments for pct start.
func (c *Client) StartArgs(vmid int) []string {
	return []string{"start", strconv.Itoa(vmid)}
}

// StopArgs constructs arguments for an immediate pct stop.
func (c *Client) StopArgs(vmid int) []string {
	return []string{"stop", strconv.Itoa(vmid)}
}

// ShutdownArgs constructs arguments for a graceful pct shutdown that falls
// back to a hard stop when the guest does not halt within the timeout.
func (c *Client) ShutdownArgs(vmid int, timeout time.Duration) []string {
	secs := int(timeout / time.Second)
	if secs < 1 {
		secs = 1
	}
	return []string{"shutdown", strconv.Itoa(vmid), "--timeout", strconv.Itoa(secs), "--forceStop", "1"}
}

// DestroyArgs constructs arguments for pct destroy.
func (c *Client) DestroyArgs(vmid int) []string {
	return []string{"destroy", strconv.Itoa(vmid)}
}

// ExecArgs constructs arguments for pct exec.
//
// Generated command: pct exec <vmid> -- <command...>
func (c *Client) ExecArgs(vmid int, command []string) []string {
	args := []string{"exec", strconv.Itoa(vmid), "--"}
	return append(args, command...)
}

// PushArgs constructs arguments for pct push.
func (c *Client) PushArgs(vmid int, localPath, remotePath string, perms fs.FileMode) []string {
	return []string{
		"push", strconv.Itoa(vmid), localPath, remotePath,
		"--perms", fmt.Sprintf("%#o", perms.Perm()),
		"--user", "root",
		"--group", "root",
	}
}

// --- Operations ---

// Status reports the observed container state. pct answers with a line of
// the form "status: running"; an unknown VMID makes pct fail with a
// "does not exist" diagnostic, which maps to StateAbsent.
func (c *Client) Status(ctx context.Context, vmid int) (ContainerState, error) {
	out, err := c.runCombined(ctx, c.StatusArgs(vmid)...)
	if err != nil {
		if strings.Contains(out, "does not exist") {
			return StateAbsent, nil
		}
		return StateAbsent, fmt.Errorf("status of container %d: %w: %s", vmid, err, strings.TrimSpace(out))
	}

	fields := strings.Fields(out)
	if len(fields) == 0 {
		return StateAbsent, fmt.Errorf("status of container %d: empty control plane output", vmid)
	}
	switch state := ContainerState(fields[len(fields)-1]); state {
	case StateRunning, StateStopped:
		return state, nil
	default:
		// Proxmox reports transitional states (e.g. while locked by create)
		// with the same verb pct uses internally; surface them as-is.
		return state, nil
	}
}

// Create creates a container from a template volume.
func (c *Client) Create(ctx context.Context, vmid int, template string, opts CreateOptions) error {
	out, err := c.runCombined(ctx, c.CreateArgs(vmid, template, opts)...)
	if err != nil {
		return &CreateError{VMID: vmid, Output: out, Err: err}
	}
	return nil
}

// Start starts the container.
func (c *Client) Start(ctx context.Context, vmid int) error {
	out, err := c.runCombined(ctx, c.StartArgs(vmid)...)
	if err != nil {
		return fmt.Errorf("start container %d: %w: %s", vmid, err, strings.TrimSpace(out))
	}
	return nil
}

// WaitReady polls the guest until systemd reaches multi-user.target. Fresh
// containers refuse exec for the first moments after start, so non-zero poll
// results are expected and retried until the timeout elapses.
func (c *Client) WaitReady(ctx context.Context, vmid int, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	probe := []string{"systemctl", "is-active", "--quiet", "multi-user.target"}

	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("wait for container %d: %w", vmid, err)
		}

		res, err := c.Exec(ctx, vmid, probe, ExecOptions{Timeout: 10 * time.Second})
		if err == nil && res.ExitCode == 0 {
			return nil
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("container %d not ready after %s: %w", vmid, timeout, ErrBootTimeout)
		}
		time.Sleep(time.Second)
	}
}

// Stop stops the container. Already-stopped and absent containers are
// success: teardown must never fail a pipeline on a half-gone container.
func (c *Client) Stop(ctx context.Context, vmid int, timeout time.Duration) error {
	state, err := c.Status(ctx, vmid)
	if err != nil {
		return err
	}
	if state != StateRunning {
		return nil
	}

	var args []string
	if timeout > 0 {
		args = c.ShutdownArgs(vmid, timeout)
	} else {
		args = c.StopArgs(vmid)
	}
	out, err := c.runCombined(ctx, args...)
	if err != nil {
		return fmt.Errorf("stop container %d: %w: %s", vmid, err, strings.TrimSpace(out))
	}
	return nil
}

// Destroy removes the container from the host. The caller stops it first;
// destroying a running container is a control plane error.
func (c *Client) Destroy(ctx context.Context, vmid int) error {
	out, err := c.runCombined(ctx, c.DestroyArgs(vmid)...)
	if err != nil {
		return &DestroyError{VMID: vmid, Output: out, Err: err}
	}
	return nil
}

// Exec runs a command inside the container. The exit code is propagated
// verbatim in the result; stdout and stderr are captured in full as separate
// streams and optionally teed to opts.Stdout/opts.Stderr. On timeout the pct
// process is killed but the container is left running.
func (c *Client) Exec(ctx context.Context, vmid int, command []string, opts ExecOptions) (*CommandResult, error) {
	runCtx := ctx
	var cancel context.CancelFunc
	if opts.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	cmd := c.execCommand(runCtx, c.binaryPath, c.ExecArgs(vmid, command)...)
	cmd.Stdin = opts.Stdin

	var stdout, stderr bytes.Buffer
	cmd.Stdout = teeWriter(&stdout, opts.Stdout)
	cmd.Stderr = teeWriter(&stderr, opts.Stderr)

	start := time.Now()
	err := cmd.Run()
	result := &CommandResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	if err != nil {
		// A killed pct process with an expired exec deadline (and a live
		// parent context) is a timeout, not a command failure.
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, &ExecTimeoutError{VMID: vmid, Timeout: opts.Timeout}
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		return nil, fmt.Errorf("exec in container %d: %w", vmid, err)
	}

	return result, nil
}

// Push copies a local file into the container filesystem as root.
func (c *Client) Push(ctx context.Context, vmid int, localPath, remotePath string, perms fs.FileMode) error {
	out, err := c.runCombined(ctx, c.PushArgs(vmid, localPath, remotePath, perms)...)
	if err != nil {
		return fmt.Errorf("push %s to container %d:%s: %w: %s",
			localPath, vmid, remotePath, err, strings.TrimSpace(out))
	}
	return nil
}

// runCombined executes a pct command and returns combined stdout/stderr.
func (c *Client) runCombined(ctx context.Context, args ...string) (string, error) {
	cmd := c.execCommand(ctx, c.binaryPath, args...)
	out, err := cmd.CombinedOutput()
	return string(out), err
}

// teeWriter returns capture, or a writer that duplicates into passthrough
// when one is supplied.
func teeWriter(capture *bytes.Buffer, passthrough io.Writer) io.Writer {
	if passthrough == nil {
		return capture
	}
	return io.MultiWriter(capture, passthrough)
}
