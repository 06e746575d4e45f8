// SPDX-License-Identifier: MPL-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"

	// verbose enables debug logging
	verbose bool
	// cfgFile allows specifying a custom config file
	cfgFile string

	// rootCmd represents the base command when called without any subcommands
	rootCmd = &cobra.Command{
		Use:   "pvexec",
		Short: "GitLab custom-executor driver for Proxmox LXC containers",
		Long: `pvexec implements the GitLab Runner custom-executor contract against the
Proxmox VE container control plane. The runner invokes it three times per
job, each as an independent process:

  pvexec prepare            create, boot, and provision the job container
  pvexec run [script stage] run a job script inside the container
  pvexec cleanup            stop and destroy the container

Job identity arrives in CUSTOM_ENV_* variables; all host-side work goes
through the pct and pveam binaries. Exit codes follow the custom-executor
contract: run forwards the script's exit code verbatim, and internal faults
use the runner's SYSTEM_FAILURE_EXIT_CODE so they are retried as
infrastructure errors instead of failing the job.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $XDG_CONFIG_HOME/pvexec/config.yaml)")

	rootCmd.AddCommand(prepareCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(cleanupCmd)
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute runs the root command and maps the outcome onto the process exit
// code the runner expects. Any error that is not an explicit ExitError is an
// internal fault and uses the system-failure code, never a generic one.
func Execute() {
	err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	)
	if err == nil {
		return
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		os.Exit(exitErr.Code)
	}
	os.Exit(systemFailureCode())
}

// newLogger builds the driver logger. It writes to stderr only: stdout
// belongs to the job log the runner captures.
func newLogger(debug bool) *log.Logger {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "pvexec",
	})
	if debug {
		logger.SetLevel(log.DebugLevel)
	}
	return logger
}
