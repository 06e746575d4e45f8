// SPDX-License-Identifier: MPL-2.0

package main

import (
	"os"

	"github.com/spf13/cobra"
)

// prepareCmd creates, boots, and provisions the job's container. Any failure
// here is an executor fault: the job script never had a chance to run.
var prepareCmd = &cobra.Command{
	Use:   "prepare",
	Short: "Create and provision the container for the current job",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		driver, job, err := newDriver(os.Stdout, os.Stderr)
		if err != nil {
			return systemFailure(err)
		}
		if err := driver.Prepare(cmd.Context(), job); err != nil {
			return systemFailure(err)
		}
		return nil
	},
}
