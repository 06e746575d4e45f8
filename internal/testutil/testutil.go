// SPDX-License-Identifier: MPL-2.0

// Package testutil provides helper functions for tests that manipulate the
// process environment, reducing boilerplate and ensuring restoration.
package testutil

import (
	"os"
	"strings"
	"testing"
)

// MustSetenv sets the environment variable key to value.
// It returns a cleanup function that restores the original value (or unsets it).
// The test fails immediately if the operation fails.
func MustSetenv(t testing.TB, key, value string) func() {
	t.Helper()
	originalValue, hadValue := os.LookupEnv(key)
	if err := os.Setenv(key, value); err != nil {
		t.Fatalf("failed to set env %s: %v", key, err)
	}
	return func() {
		if hadValue {
			if err := os.Setenv(key, originalValue); err != nil {
				t.Errorf("failed to restore env %s: %v", key, err)
			}
		} else {
			if err := os.Unsetenv(key); err != nil {
				t.Errorf("failed to unset env %s: %v", key, err)
			}
		}
	}
}

// MustUnsetenv unsets the environment variable key.
// It returns a cleanup function that restores the original value (if any).
func MustUnsetenv(t testing.TB, key string) func() {
	t.Helper()
	originalValue, hadValue := os.LookupEnv(key)
	if err := os.Unsetenv(key); err != nil {
		t.Fatalf("failed to unset env %s: %v", key, err)
	}
	return func() {
		if hadValue {
			if err := os.Setenv(key, originalValue); err != nil {
				t.Errorf("failed to restore env %s: %v", key, err)
			}
		}
	}
}

// ClearJobEnv unsets every CUSTOM_ENV_ variable for the duration of the
// test, so job-context tests start from a clean runner environment.
func ClearJobEnv(t testing.TB) {
	t.Helper()
	for _, kv := range os.Environ() {
		if !strings.HasPrefix(kv, "CUSTOM_ENV_") {
			continue
		}
		key, _, _ := strings.Cut(kv, "=")
		cleanup := MustUnsetenv(t, key)
		t.Cleanup(cleanup)
	}
}

// SetJobEnv sets a batch of CUSTOM_ENV_-prefixed variables and registers
// their restoration with t.Cleanup. Keys are given without the prefix.
func SetJobEnv(t testing.TB, vars map[string]string) {
	t.Helper()
	for k, v := range vars {
		cleanup := MustSetenv(t, "CUSTOM_ENV_"+k, v)
		t.Cleanup(cleanup)
	}
}
