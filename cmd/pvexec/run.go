// SPDX-License-Identifier: MPL-2.0

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// runCmd executes a job script inside the prepared container. The runner
// passes a script path and stage name as arguments; with no arguments the
// script is read from stdin. The script's exit code becomes this process's
// exit code verbatim, so the runner can tell a failing job from a broken
// executor (which uses the system-failure code instead).
var runCmd = &cobra.Command{
	Use:   "run [script [stage]]",
	Short: "Execute a job script inside the job's container",
	Args:  cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		driver, job, err := newDriver(os.Stdout, os.Stderr)
		if err != nil {
			return systemFailure(err)
		}

		stage := "step_script"
		if len(args) > 1 {
			stage = args[1]
		}

		scriptPath, cleanup, err := resolveScript(args, cmd.InOrStdin())
		if err != nil {
			return systemFailure(err)
		}
		defer cleanup()

		code, err := driver.Run(cmd.Context(), job, scriptPath, stage)
		if err != nil {
			return systemFailure(err)
		}
		return scriptExit(code)
	},
}

// resolveScript returns a host path to the job script: the path argument
// when the runner supplied one, otherwise stdin spooled to a temp file.
func resolveScript(args []string, stdin io.Reader) (path string, cleanup func(), err error) {
	if len(args) > 0 && args[0] != "" {
		if _, err := os.Stat(args[0]); err != nil {
			return "", nil, fmt.Errorf("job script %s: %w", args[0], err)
		}
		return args[0], func() {}, nil
	}

	f, err := os.CreateTemp("", "pvexec-script-*.sh")
	if err != nil {
		return "", nil, fmt.Errorf("spool job script: %w", err)
	}
	if _, err := io.Copy(f, stdin); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", nil, fmt.Errorf("spool job script: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", nil, fmt.Errorf("spool job script: %w", err)
	}
	return f.Name(), func() { _ = os.Remove(f.Name()) }, nil
}
