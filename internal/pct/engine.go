// SPDX-License-Identifier: MPL-2.0

package pct

import (
	"context"
	"io"
	"io/fs"
	"time"
)

type (
	// ContainerState is the observed lifecycle state of an LXC container.
	// It is never stored; every value comes from querying the host.
	ContainerState string

	// Engine defines the container operations the executor needs. The
	// production implementation is Client; tests substitute a fake.
	Engine interface {
		// Status reports the observed state of the container. A container
		// unknown to the host reports StateAbsent with a nil error.
		Status(ctx context.Context, vmid int) (ContainerState, error)
		// Create creates a new container from a template volume. It is not
		// idempotent; callers must check Status first.
		Create(ctx context.Context, vmid int, template string, opts CreateOptions) error
		// Start starts a created or stopped container.
		Start(ctx context.Context, vmid int) error
		// WaitReady polls the guest init system until it reaches
		// multi-user.target or the timeout elapses.
		WaitReady(ctx context.Context, vmid int, timeout time.Duration) error
		// Stop stops a running container. Stopping a container that is
		// already stopped or absent is success, not an error.
		Stop(ctx context.Context, vmid int, timeout time.Duration) error
		// Destroy removes a stopped container from the host.
		Destroy(ctx context.Context, vmid int) error
		// Exec runs a command inside a running container and blocks until it
		// exits or opts.Timeout elapses. On timeout the container is left
		// running; stopping it is the caller's decision.
		Exec(ctx context.Context, vmid int, command []string, opts ExecOptions) (*CommandResult, error)
		// Push copies a local file into the container filesystem.
		Push(ctx context.Context, vmid int, localPath, remotePath string, perms fs.FileMode) error
	}

	// CreateOptions carries the resource and network parameters for pct create.
	CreateOptions struct {
		// Hostname is the guest hostname (also the handle name).
		Hostname string
		// Description is a free-form note shown in the Proxmox UI.
		Description string
		// RootFS is the rootfs volume spec (e.g. "local-zfs:10").
		RootFS string
		// MemoryMB is the memory limit in megabytes.
		MemoryMB int
		// Cores is the CPU core limit. Zero means host default.
		Cores int
		// Bridge is the network bridge for eth0 (e.g. "vmbr0").
		Bridge string
		// Unprivileged creates an unprivileged container.
		Unprivileged bool
		// Nesting enables the nesting feature (required for docker-in-lxc jobs).
		Nesting bool
		// Tags are host-side labels attached to the container. They are the
		// only cross-invocation state the driver leaves on the host.
		Tags []string
	}

	// ExecOptions controls a single in-container command execution.
	ExecOptions struct {
		// Timeout bounds the execution. Zero means no bound beyond ctx.
		Timeout time.Duration
		// Stdin is forwarded to the command. May be nil.
		Stdin io.Reader
		// Stdout, if non-nil, receives a live copy of standard output in
		// addition to the captured CommandResult stream.
		Stdout io.Writer
		// Stderr, if non-nil, receives a live copy of standard error.
		Stderr io.Writer
	}

	// CommandResult is the outcome of a single control-plane or in-container
	// invocation. It is owned by the call site and never aggregated.
	CommandResult struct {
		// ExitCode is the command's exit status, propagated verbatim.
		ExitCode int
		// Stdout is the full captured standard output.
		Stdout string
		// Stderr is the full captured standard error.
		Stderr string
		// Duration is the wall-clock time the invocation took.
		Duration time.Duration
	}
)

const (
	// StateAbsent means the host has no container with this ID.
	StateAbsent ContainerState = "absent"
	// StateCreating means the container exists but is still locked by create.
	StateCreating ContainerState = "creating"
	// StateRunning means the container is up.
	StateRunning ContainerState = "running"
	// StateStopped means the container exists but is not running.
	StateStopped ContainerState = "stopped"
	// StateDestroyed means the container was removed during this invocation.
	StateDestroyed ContainerState = "destroyed"
)

// String returns the state name.
func (s ContainerState) String() string { return string(s) }
