// SPDX-License-Identifier: MPL-2.0

package main

import (
	"os"
	"strconv"
)

// GitLab Runner tells the driver which exit codes it interprets specially
// through these variables. The defaults cover running the driver by hand.
const (
	envBuildFailureCode  = "BUILD_FAILURE_EXIT_CODE"
	envSystemFailureCode = "SYSTEM_FAILURE_EXIT_CODE"

	defaultBuildFailureCode  = 1
	defaultSystemFailureCode = 2
)

// buildFailureCode is the exit code the runner reads as "job failed".
func buildFailureCode() int {
	return codeFromEnv(envBuildFailureCode, defaultBuildFailureCode)
}

// systemFailureCode is the exit code the runner reads as "executor broke",
// making the failure eligible for the runner's infrastructure retry policy.
func systemFailureCode() int {
	return codeFromEnv(envSystemFailureCode, defaultSystemFailureCode)
}

func codeFromEnv(key string, def int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	code, err := strconv.Atoi(raw)
	if err != nil || code <= 0 {
		return def
	}
	return code
}
