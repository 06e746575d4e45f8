// SPDX-License-Identifier: MPL-2.0

package main

import (
	"io"

	"pvexec/internal/config"
	"pvexec/internal/executor"
	"pvexec/internal/jobctx"
	"pvexec/internal/pct"
	"pvexec/internal/provision"
)

// newDriver is the composition root: it loads configuration, resolves the
// job identity from the environment, and wires the control-plane client,
// template store, and provisioner into an executor.
func newDriver(stdout, stderr io.Writer) (*executor.Executor, *jobctx.JobContext, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, err
	}

	job, err := jobctx.FromEnv()
	if err != nil {
		return nil, nil, err
	}

	client, err := pct.NewClient(pct.WithBinaryPath(cfg.PCTBinary))
	if err != nil {
		return nil, nil, err
	}

	store, err := pct.NewTemplateStore(pct.WithTemplateBinaryPath(cfg.PveamBinary))
	if err != nil {
		return nil, nil, err
	}

	provOpts := []provision.ProvisionerOption{
		provision.WithTimeout(cfg.ProvisionTimeout),
		provision.WithOutput(stdout, stderr),
	}
	if cfg.PayloadPath != "" {
		provOpts = append(provOpts, provision.WithPayloadPath(cfg.PayloadPath))
	}
	prov := provision.NewProvisioner(client, provOpts...)

	exec := executor.New(cfg, client, store, prov,
		executor.WithLogger(newLogger(verbose || cfg.Verbose)),
		executor.WithIO(stdout, stderr),
	)
	return exec, job, nil
}
