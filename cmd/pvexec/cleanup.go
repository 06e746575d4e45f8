// SPDX-License-Identifier: MPL-2.0

package main

import (
	"os"

	"github.com/spf13/cobra"
)

// cleanupCmd tears the job's container down. It always exits zero: a failed
// teardown is an operational concern for the host, never a reason to block
// pipeline completion. Leftovers stay findable through their "ci" tag.
var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Stop and destroy the current job's container",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		driver, job, err := newDriver(os.Stdout, os.Stderr)
		if err != nil {
			newLogger(verbose).Error("cleanup skipped", "err", err)
			return nil
		}
		return driver.Cleanup(cmd.Context(), job)
	},
}
