// SPDX-License-Identifier: MPL-2.0

// Package executor implements the three custom-executor lifecycle operations
// — prepare, run, cleanup — as transitions over host-side container state.
// Each operation runs in its own process; the deterministic container handle
// is the only link between them.
package executor
