// SPDX-License-Identifier: MPL-2.0

// Package jobctx resolves the identity of a CI job from the environment the
// runner injects into each driver invocation. The derived container handle is
// the only coordination key between prepare, run, and cleanup — the three run
// as independent processes with no shared memory.
package jobctx

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// envPrefix is the prefix GitLab Runner puts on every job variable it
// forwards to a custom executor.
const envPrefix = "CUSTOM_ENV_"

// Environment variable names (without the CUSTOM_ENV_ prefix) the driver
// reads from the job context.
const (
	envProjectID  = "CI_PROJECT_ID"
	envJobID      = "CI_JOB_ID"
	envPipelineID = "CI_PIPELINE_ID"
	envRunnerID   = "CI_RUNNER_ID"
	envJobImage   = "CI_JOB_IMAGE"
	envBuildsDir  = "CI_BUILDS_DIR"
	envProjectDir = "CI_PROJECT_DIR"
)

// ErrInvalidContext is the sentinel error wrapped by InvalidContextError.
var ErrInvalidContext = errors.New("invalid job context")

type (
	// JobContext is an immutable snapshot of the runner-provided job
	// identity, taken once at process start.
	JobContext struct {
		// ProjectID identifies the project the job belongs to.
		ProjectID string
		// JobID is the numeric, globally unique job identifier.
		JobID int
		// PipelineID identifies the pipeline the job belongs to.
		PipelineID string
		// RunnerID identifies the runner that scheduled the job.
		RunnerID string
		// Image is the job-requested container template, if any.
		Image string
		// BuildDir is the in-container working directory for the job script.
		BuildDir string

		env map[string]string
	}

	// InvalidContextError is returned when required identity variables are
	// missing or malformed in the environment.
	InvalidContextError struct {
		// Missing lists the absent or unparsable variable names, with the
		// CUSTOM_ENV_ prefix as the runner sets them.
		Missing []string
	}
)

// Error implements the error interface.
func (e *InvalidContextError) Error() string {
	return fmt.Sprintf("missing or malformed job context variables: %s", strings.Join(e.Missing, ", "))
}

// Unwrap returns ErrInvalidContext so callers can use errors.Is.
func (e *InvalidContextError) Unwrap() error { return ErrInvalidContext }

// FromEnv builds a JobContext from the current process environment. Project,
// job, pipeline, and runner identifiers are required; the job ID must be
// numeric because it seeds the VMID derivation.
func FromEnv() (*JobContext, error) {
	env := jobEnv()

	var missing []string
	require := func(key string) string {
		v := env[key]
		if v == "" {
			missing = append(missing, envPrefix+key)
		}
		return v
	}

	jc := &JobContext{
		ProjectID:  require(envProjectID),
		PipelineID: require(envPipelineID),
		RunnerID:   require(envRunnerID),
		Image:      env[envJobImage],
		env:        env,
	}

	if raw := require(envJobID); raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil || id <= 0 {
			missing = append(missing, envPrefix+envJobID)
		} else {
			jc.JobID = id
		}
	}

	jc.BuildDir = env[envBuildsDir]
	if jc.BuildDir == "" {
		jc.BuildDir = env[envProjectDir]
	}
	if jc.BuildDir == "" {
		jc.BuildDir = "/builds"
	}

	if len(missing) > 0 {
		return nil, &InvalidContextError{Missing: missing}
	}
	return jc, nil
}

// Template returns the job-requested template, falling back to def when the
// job did not request one.
func (jc *JobContext) Template(def string) string {
	if jc.Image != "" {
		return jc.Image
	}
	return def
}

// Env returns the job variables with the CUSTOM_ENV_ prefix stripped, ready
// to be forwarded into the container. The returned map is a copy.
func (jc *JobContext) Env() map[string]string {
	out := make(map[string]string, len(jc.env))
	for k, v := range jc.env {
		out[k] = v
	}
	return out
}

// jobEnv collects every CUSTOM_ENV_ variable from the process environment,
// keyed without the prefix.
func jobEnv() map[string]string {
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		if !strings.HasPrefix(kv, envPrefix) {
			continue
		}
		k, v, ok := strings.Cut(strings.TrimPrefix(kv, envPrefix), "=")
		if !ok || k == "" {
			continue
		}
		env[k] = v
	}
	return env
}
