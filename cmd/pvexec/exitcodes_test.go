// SPDX-License-Identifier: MPL-2.0

package main

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExitCodesFromEnv(t *testing.T) {
	t.Setenv(envBuildFailureCode, "77")
	t.Setenv(envSystemFailureCode, "88")

	assert.Equal(t, 77, buildFailureCode())
	assert.Equal(t, 88, systemFailureCode())
}

func TestExitCodesDefaults(t *testing.T) {
	t.Setenv(envBuildFailureCode, "")
	t.Setenv(envSystemFailureCode, "")

	assert.Equal(t, defaultBuildFailureCode, buildFailureCode())
	assert.Equal(t, defaultSystemFailureCode, systemFailureCode())
}

func TestExitCodesIgnoreGarbage(t *testing.T) {
	t.Setenv(envSystemFailureCode, "not-a-code")
	assert.Equal(t, defaultSystemFailureCode, systemFailureCode())

	t.Setenv(envSystemFailureCode, "-5")
	assert.Equal(t, defaultSystemFailureCode, systemFailureCode())

	t.Setenv(envSystemFailureCode, "0")
	assert.Equal(t, defaultSystemFailureCode, systemFailureCode())
}

func TestSystemFailureWrapsCause(t *testing.T) {
	t.Setenv(envSystemFailureCode, "")
	cause := errors.New("pct not found")

	err := systemFailure(cause)

	var exitErr *ExitError
	assert.ErrorAs(t, err, &exitErr)
	assert.Equal(t, defaultSystemFailureCode, exitErr.Code)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "pct not found", err.Error())
}

func TestExitErrorMessageWithoutCause(t *testing.T) {
	err := &ExitError{Code: 3}
	assert.Equal(t, "exit status 3", err.Error())
}

func TestScriptExit(t *testing.T) {
	t.Setenv(envBuildFailureCode, "")

	assert.NoError(t, scriptExit(0))

	var exitErr *ExitError
	require.ErrorAs(t, scriptExit(3), &exitErr)
	assert.Equal(t, 3, exitErr.Code)

	// Killed by a signal: the script left no exit status to forward.
	require.ErrorAs(t, scriptExit(-1), &exitErr)
	assert.Equal(t, defaultBuildFailureCode, exitErr.Code)
}
