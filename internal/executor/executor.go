// SPDX-License-Identifier: MPL-2.0

package executor

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"

	"pvexec/internal/config"
	"pvexec/internal/jobctx"
	"pvexec/internal/pct"
)

type (
	// TemplateEnsurer makes a container template available on a storage.
	// Implemented by pct.TemplateStore.
	TemplateEnsurer interface {
		Ensure(ctx context.Context, storage, template string) (string, error)
	}

	// ProvisionRunner installs job prerequisites into a running container.
	// Implemented by provision.Provisioner.
	ProvisionRunner interface {
		Provision(ctx context.Context, vmid int) error
	}

	// Option configures an Executor.
	Option func(*Executor)

	// Executor drives the container lifecycle for a single job. It holds no
	// cross-invocation state; everything it needs to find a container is
	// derived from the job context.
	Executor struct {
		cfg         *config.Config
		engine      pct.Engine
		templates   TemplateEnsurer
		provisioner ProvisionRunner
		logger      *log.Logger
		stdout      io.Writer
		stderr      io.Writer
	}
)

// WithLogger sets the logger. The default discards nothing but writes to
// stderr, keeping stdout clean for job log passthrough.
func WithLogger(logger *log.Logger) Option {
	return func(e *Executor) {
		e.logger = logger
	}
}

// WithIO sets the writers that receive the job script's live output.
func WithIO(stdout, stderr io.Writer) Option {
	return func(e *Executor) {
		e.stdout = stdout
		e.stderr = stderr
	}
}

// New creates an Executor.
func New(cfg *config.Config, engine pct.Engine, templates TemplateEnsurer, provisioner ProvisionRunner, opts ...Option) *Executor {
	e := &Executor{
		cfg:         cfg,
		engine:      engine,
		templates:   templates,
		provisioner: provisioner,
		logger:      log.New(os.Stderr),
		stdout:      os.Stdout,
		stderr:      os.Stderr,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// handle derives the container handle for the job from the configured VMID
// window.
func (e *Executor) handle(job *jobctx.JobContext) jobctx.Handle {
	return job.Handle(e.cfg.VMIDBase, e.cfg.VMIDSpan)
}

// Prepare creates, starts, and provisions the job's container. A leftover
// container under the same VMID — a crashed earlier attempt — is destroyed
// and recreated, never reused, so a job cannot inherit mutated state. On any
// failure the partial container is torn down best-effort before returning.
func (e *Executor) Prepare(ctx context.Context, job *jobctx.JobContext) error {
	h := e.handle(job)
	logger := e.logger.With("vmid", h.VMID, "name", h.Name)

	state, err := e.engine.Status(ctx, h.VMID)
	if err != nil {
		return err
	}
	if state != pct.StateAbsent {
		logger.Warn("destroying stale container from a previous attempt", "state", state)
		e.teardown(ctx, h.VMID, logger)
	}

	template := job.Template(e.cfg.DefaultTemplate)
	volid, err := e.templates.Ensure(ctx, e.cfg.Storage, template)
	if err != nil {
		return err
	}

	logger.Info("creating container", "template", volid)
	err = e.engine.Create(ctx, h.VMID, volid, pct.CreateOptions{
		Hostname:     h.Name,
		Description:  fmt.Sprintf("CI job %d (project %s, pipeline %s)", job.JobID, job.ProjectID, job.PipelineID),
		RootFS:       e.cfg.RootFS,
		MemoryMB:     e.cfg.MemoryMB,
		Cores:        e.cfg.Cores,
		Bridge:       e.cfg.Bridge,
		Unprivileged: e.cfg.Unprivileged,
		Nesting:      e.cfg.Nesting,
		Tags: []string{
			"ci",
			"project-" + job.ProjectID,
			fmt.Sprintf("job-%d", job.JobID),
		},
	})
	if err != nil {
		e.teardown(ctx, h.VMID, logger)
		return err
	}

	if err := e.startAndProvision(ctx, h.VMID, logger); err != nil {
		e.teardown(ctx, h.VMID, logger)
		return err
	}

	logger.Info("container ready")
	return nil
}

// startAndProvision boots the freshly created container and runs the
// provisioning payload inside it.
func (e *Executor) startAndProvision(ctx context.Context, vmid int, logger *log.Logger) error {
	if err := e.engine.Start(ctx, vmid); err != nil {
		return err
	}

	logger.Debug("waiting for guest init", "timeout", e.cfg.BootTimeout)
	if err := e.engine.WaitReady(ctx, vmid, e.cfg.BootTimeout); err != nil {
		return err
	}

	logger.Info("provisioning container")
	return e.provisioner.Provision(ctx, vmid)
}

// Run executes the job script inside the container prepared for this job and
// returns the script's exit code verbatim. A container that is missing or
// not running is an infrastructure failure, never a script failure.
func (e *Executor) Run(ctx context.Context, job *jobctx.JobContext, scriptPath, stage string) (int, error) {
	h := e.handle(job)
	logger := e.logger.With("vmid", h.VMID, "name", h.Name, "stage", stage)

	state, err := e.engine.Status(ctx, h.VMID)
	if err != nil {
		return 0, err
	}
	if state != pct.StateRunning {
		return 0, &InfrastructureError{VMID: h.VMID, State: state}
	}

	remote := remoteScriptPath(stage)
	if err := e.engine.Push(ctx, h.VMID, scriptPath, remote, 0o755); err != nil {
		return 0, err
	}

	command, err := buildJobCommand(job.BuildDir, job.Env(), remote)
	if err != nil {
		return 0, err
	}

	logger.Debug("executing job script", "workdir", job.BuildDir)
	res, err := e.engine.Exec(ctx, h.VMID, command, pct.ExecOptions{
		Timeout: e.cfg.ExecTimeout,
		Stdout:  e.stdout,
		Stderr:  e.stderr,
	})
	if err != nil {
		// Includes exec timeouts: the container stays running and cleanup
		// will collect it; the runner sees a system failure either way.
		return 0, err
	}

	logger.Debug("job script finished", "exit_code", res.ExitCode, "duration", res.Duration)
	return res.ExitCode, nil
}

// Cleanup stops and destroys the job's container. Every failure is logged
// and swallowed: a botched teardown must never block pipeline completion.
// Invoking it for a container that never existed, or twice in a row, is
// success.
func (e *Executor) Cleanup(ctx context.Context, job *jobctx.JobContext) error {
	h := e.handle(job)
	logger := e.logger.With("vmid", h.VMID, "name", h.Name)

	state, err := e.engine.Status(ctx, h.VMID)
	if err != nil {
		logger.Error("cleanup: cannot query container state", "err", err)
		return nil
	}
	if state == pct.StateAbsent {
		logger.Debug("cleanup: container already absent")
		return nil
	}

	if err := e.engine.Stop(ctx, h.VMID, e.cfg.StopTimeout); err != nil {
		logger.Error("cleanup: stop failed", "err", err)
	}

	// One retry on destroy covers transient "CT is locked" style failures
	// right after a stop.
	err = pct.RetryWithBackoff(ctx, 2, time.Second, func(attempt int) (bool, error) {
		if attempt > 0 {
			logger.Warn("cleanup: retrying destroy")
		}
		return true, e.engine.Destroy(ctx, h.VMID)
	})
	if err != nil {
		logger.Error("cleanup: destroy failed, container left on host", "err", err)
		return nil
	}

	logger.Info("container destroyed")
	return nil
}

// teardown is the best-effort stop+destroy used when prepare fails partway.
func (e *Executor) teardown(ctx context.Context, vmid int, logger *log.Logger) {
	if err := e.engine.Stop(ctx, vmid, e.cfg.StopTimeout); err != nil {
		logger.Error("teardown: stop failed", "err", err)
	}
	if err := e.engine.Destroy(ctx, vmid); err != nil {
		logger.Error("teardown: destroy failed", "err", err)
	}
}
